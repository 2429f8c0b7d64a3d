package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/catalog-service/internal/products"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
	"storefront/pkg/validation"
)

type validateProductsRequest struct {
	ProductIDs []int64 `json:"product_ids"`
	VariantIDs []int64 `json:"variant_ids"`
}

type validateItemsRequest struct {
	Items []products.LineItem `json:"items" validate:"required,min=1,dive"`
}

// ValidateProducts returns every product named by id or owning one of the
// named variants.
func (h *Handler) ValidateProducts(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)
	endpoint := strings.TrimPrefix(c.Request.URL.Path, "/")

	var req validateProductsRequest
	if !validation.BindJSON(c, &req) {
		return
	}

	h.events.Info(c.Request.Context(), "internal_validation_request", requestId, endpoint,
		slog.Int("items_count", len(req.ProductIDs)+len(req.VariantIDs)))

	ps, err := h.store.ValidateProducts(c.Request.Context(), req.ProductIDs, req.VariantIDs)
	if err != nil {
		slog.Error("error in validating products", slog.String(logkey.RequestID, requestId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to validate products"})
		return
	}

	h.events.Info(c.Request.Context(), "internal_validation_success", requestId, endpoint,
		slog.Int("validated_items", len(ps)))

	c.JSON(http.StatusOK, gin.H{"data": products.NewProductResources(ps)})
}

// ValidateItems prices a batch of line items against current variant data.
// The batch is accepted only when every item passes.
func (h *Handler) ValidateItems(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)

	var req validateItemsRequest
	if !validation.BindJSON(c, &req) {
		return
	}

	variants, err := h.store.VariantsByIDs(c.Request.Context(), products.VariantIDs(req.Items))
	if err != nil {
		slog.Error("error in loading variants", slog.String(logkey.RequestID, requestId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to validate items"})
		return
	}

	quote, errs := products.PriceItems(req.Items, variants)
	if len(errs) > 0 {
		slog.Info("order items rejected", slog.String(logkey.RequestID, requestId), slog.Int("errors", len(errs)))
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Validation failed.",
			"errors":  errs,
		})
		return
	}

	c.JSON(http.StatusOK, quote)
}
