package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

const receiveOrderPath = "/internal/orders/receive"

// Notifier hands created orders to the email service. Delivery is best
// effort: the order is already committed when Notify runs.
type Notifier struct {
	email   Caller
	cb      *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(email Caller, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "email-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", slog.String("breaker", name),
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &Notifier{email: email, cb: cb, timeout: timeout}
}

type receiveOrderRequest struct {
	Email       string      `json:"email"`
	Items       []Item      `json:"items"`
	TotalAmount json.Number `json:"total_amount"`
}

// Notify sends the order in the background. The request id of ctx is kept
// but its cancellation is not, so the call outlives the HTTP request.
func (n *Notifier) Notify(ctx context.Context, o Order) {
	bg := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Send(bg, o); err != nil {
			slog.Error("failed to notify email service",
				slog.String(logkey.RequestID, ctxmanage.RequestIDFromContext(bg)),
				slog.Int64("order_id", o.ID),
				slog.String(logkey.ERROR, err.Error()))
		}
	}()
}

// Send posts the order to the email service through the circuit breaker.
func (n *Notifier) Send(ctx context.Context, o Order) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	payload := receiveOrderRequest{
		Email:       o.Email,
		Items:       o.Items,
		TotalAmount: json.Number(o.TotalAmount.StringFixed(2)),
	}
	_, err := n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.email.Post(ctx, receiveOrderPath, payload, nil)
	})
	if err != nil {
		return fmt.Errorf("email notification failed: %w", err)
	}
	return nil
}

// Wait blocks until every pending notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
