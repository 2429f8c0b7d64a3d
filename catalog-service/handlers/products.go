package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/catalog-service/internal/products"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) ListProducts(c *gin.Context) {
	// Get the requestId from the request for tracking logs
	requestId := ctxmanage.GetRequestIdOfRequest(c)

	ps, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		slog.Error("error in fetching products", slog.String(logkey.RequestID, requestId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products.NewProductResources(ps)})
}

// GetProduct serves both the public and the internal product lookup.
func (h *Handler) GetProduct(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)

	// Non-numeric ids cannot match any product
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Product not found."})
		return
	}

	p, err := h.store.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Product not found."})
			return
		}
		slog.Error("error in retrieving product", slog.String(logkey.RequestID, requestId),
			slog.Int64("product_id", id), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products.NewProductResource(p)})
}
