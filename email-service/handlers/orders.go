package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/email-service/internal/jobs"
	"storefront/email-service/internal/mailer"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
	"storefront/pkg/validation"
)

// Pointers tell a missing field apart from a zero value.
type receiveOrderItem struct {
	ProductID  *int64           `json:"product_id" validate:"required"`
	VariantID  *int64           `json:"variant_id" validate:"required"`
	Quantity   *int             `json:"quantity" validate:"required"`
	UnitPrice  *decimal.Decimal `json:"unit_price" validate:"required"`
	TotalPrice *decimal.Decimal `json:"total_price" validate:"required"`
}

type receiveOrderRequest struct {
	Email       string             `json:"email" validate:"required,email"`
	Items       []receiveOrderItem `json:"items" validate:"required,min=1,dive"`
	TotalAmount *decimal.Decimal   `json:"total_amount" validate:"required"`
}

func (r receiveOrderRequest) order() mailer.Order {
	items := make([]mailer.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, mailer.OrderItem{
			ProductID:  *it.ProductID,
			VariantID:  *it.VariantID,
			Quantity:   *it.Quantity,
			UnitPrice:  *it.UnitPrice,
			TotalPrice: *it.TotalPrice,
		})
	}
	return mailer.Order{Email: r.Email, Items: items, TotalAmount: *r.TotalAmount}
}

// ReceiveOrder queues the confirmation mail for a finalized order and
// answers before it is sent.
func (h *Handler) ReceiveOrder(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)
	endpoint := strings.TrimPrefix(c.Request.URL.Path, "/")

	var req receiveOrderRequest
	if !validation.BindJSON(c, &req) {
		return
	}

	h.events.Info(c.Request.Context(), "order_received", requestId, endpoint,
		slog.Int("items_count", len(req.Items)),
		slog.String("email", req.Email))

	job := jobs.SendOrderEmail{Order: req.order(), RequestID: requestId}
	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		slog.Error("error in queueing order email", slog.String(logkey.RequestID, requestId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "Failed to queue order email"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
