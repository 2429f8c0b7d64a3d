package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/checkout-service/internal/orders"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/internalclient"
	"storefront/pkg/logkey"
	"storefront/pkg/validation"
)

const ordersEndpoint = "/api/v1/orders"

// CreateOrder validates the items with catalog, persists the order and
// notifies the email service. Nothing is persisted unless catalog accepts
// every item.
func (h *Handler) CreateOrder(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)
	ctx := c.Request.Context()

	var req orders.NewOrder
	if !validation.BindJSON(c, &req) {
		return
	}

	h.events.Info(ctx, "order_request_received", requestId, ordersEndpoint,
		slog.String("email", req.Email),
		slog.Int("items_count", len(req.Items)))

	validated, err := h.validator.ValidateOrder(ctx, req)
	if err != nil {
		h.events.Error(ctx, "order_validation_failed", requestId, ordersEndpoint,
			slog.String(logkey.ERROR, err.Error()))

		// Catalog's item errors are relayed as they are; anything else is
		// an upstream failure.
		var statusErr *internalclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity {
			c.Data(http.StatusUnprocessableEntity, "application/json; charset=utf-8", statusErr.Body)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Order validation failed."})
		return
	}

	order, err := h.orders.CreateOrder(ctx, validated)
	if err != nil {
		slog.Error("error in creating order", slog.String(logkey.RequestID, requestId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to create order"})
		return
	}

	h.events.Info(ctx, "order_created", requestId, ordersEndpoint,
		slog.Int64("order_id", order.ID),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)))

	h.notifier.Notify(ctx, order)

	c.JSON(http.StatusCreated, order)
}
