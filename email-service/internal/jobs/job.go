// Package jobs runs the asynchronous order email job on top of a queue.
package jobs

import (
	"context"
	"log/slog"

	"storefront/email-service/internal/mailer"
	"storefront/pkg/events"
	"storefront/pkg/logkey"
)

// JobName identifies the job in logs.
const JobName = "SendOrderEmail"

// MaxAttempts bounds how often a job runs before it is dropped.
const MaxAttempts = 3

// Endpoint the job originates from, reported on its events.
const Endpoint = "internal/orders/receive"

// SendOrderEmail carries the received order plus the correlation id of the
// request that enqueued it. Attempts counts the runs so far.
type SendOrderEmail struct {
	mailer.Order
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`
}

// Handler runs one attempt of a job.
type Handler interface {
	Handle(ctx context.Context, job SendOrderEmail) error
}

// Processor renders and delivers order confirmations.
type Processor struct {
	sender mailer.Sender
	events *events.Logger
}

func NewProcessor(s mailer.Sender, ev *events.Logger) *Processor {
	return &Processor{sender: s, events: ev}
}

// Handle runs one attempt. A delivery failure is logged and returned so the
// queue can retry.
func (p *Processor) Handle(ctx context.Context, job SendOrderEmail) error {
	p.events.Info(ctx, "job_processing", job.RequestID, Endpoint,
		slog.String("job", JobName),
		slog.Int("attempt", job.Attempts),
		slog.String("recipient_email", job.Email),
		slog.String("total_amount", job.TotalAmount.String()),
		slog.Int("items_count", len(job.Items)),
	)

	if err := p.deliver(ctx, job); err != nil {
		p.events.Error(ctx, "email_send_failed", job.RequestID, Endpoint,
			slog.String("job", JobName),
			slog.Int("attempt", job.Attempts),
			slog.String(logkey.ERROR, err.Error()),
		)
		return err
	}

	p.events.Info(ctx, "email_delivered", job.RequestID, Endpoint,
		slog.String("job", JobName),
		slog.String("recipient_email", job.Email),
		slog.String("status", "delivered"),
	)
	return nil
}

func (p *Processor) deliver(ctx context.Context, job SendOrderEmail) error {
	msg, err := mailer.RenderOrderSummary(job.Order, job.RequestID)
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, msg)
}
