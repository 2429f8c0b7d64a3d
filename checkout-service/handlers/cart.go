package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/checkout-service/internal/cart"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
	"storefront/pkg/validation"
)

// HeaderCartToken identifies the cart on requests and responses.
const HeaderCartToken = "X-Cart-Token"

type addItemRequest struct {
	VariantID int64 `json:"variant_id" validate:"required"`
	Quantity  *int  `json:"quantity" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type cartResponse struct {
	CartToken string      `json:"cart_token"`
	Items     []cart.Item `json:"items"`
}

func (h *Handler) GetCart(c *gin.Context) {
	cr, ok := h.resolveCart(c)
	if !ok {
		return
	}
	h.respondCart(c, cr)
}

func (h *Handler) AddCartItem(c *gin.Context) {
	var req addItemRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	cr, ok := h.resolveCart(c)
	if !ok {
		return
	}

	if err := h.carts.AddItem(c.Request.Context(), cr.ID, req.VariantID, *req.Quantity); err != nil {
		h.cartError(c, "error in adding cart item", cartUpdateFailed, err)
		return
	}
	h.respondCart(c, cr)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	variantID, ok := variantParam(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	cr, ok := h.resolveCart(c)
	if !ok {
		return
	}

	if err := h.carts.SetQuantity(c.Request.Context(), cr.ID, variantID, *req.Quantity); err != nil {
		h.cartError(c, "error in updating cart item", cartUpdateFailed, err)
		return
	}
	h.respondCart(c, cr)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	variantID, ok := variantParam(c)
	if !ok {
		return
	}
	cr, ok := h.resolveCart(c)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(c.Request.Context(), cr.ID, variantID); err != nil {
		h.cartError(c, "error in removing cart item", cartUpdateFailed, err)
		return
	}
	h.respondCart(c, cr)
}

func (h *Handler) ClearCart(c *gin.Context) {
	cr, ok := h.resolveCart(c)
	if !ok {
		return
	}

	if err := h.carts.Clear(c.Request.Context(), cr.ID); err != nil {
		h.cartError(c, "error in clearing cart", cartUpdateFailed, err)
		return
	}
	h.respondCart(c, cr)
}

// resolveCart finds the cart named by the X-Cart-Token header or the
// cart_token query parameter, creating one when neither is given.
func (h *Handler) resolveCart(c *gin.Context) (cart.Cart, bool) {
	token := c.GetHeader(HeaderCartToken)
	if token == "" {
		token = c.Query("cart_token")
	}
	if len(token) > cart.MaxTokenLength {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid cart token."})
		return cart.Cart{}, false
	}

	cr, err := h.carts.Resolve(c.Request.Context(), token)
	if err != nil {
		h.cartError(c, "error in resolving cart", cartLoadFailed, err)
		return cart.Cart{}, false
	}
	return cr, true
}

func (h *Handler) respondCart(c *gin.Context, cr cart.Cart) {
	items, err := h.carts.Items(c.Request.Context(), cr.ID)
	if err != nil {
		h.cartError(c, "error in fetching cart items", cartLoadFailed, err)
		return
	}

	c.Header(HeaderCartToken, cr.Token)
	c.JSON(http.StatusOK, cartResponse{CartToken: cr.Token, Items: items})
}

const (
	cartLoadFailed   = "Failed to load cart"
	cartUpdateFailed = "Failed to update cart"
)

func (h *Handler) cartError(c *gin.Context, msg, public string, err error) {
	slog.Error(msg, slog.String(logkey.RequestID, ctxmanage.GetRequestIdOfRequest(c)), slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": public})
}

func variantParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("variantId"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Cart item not found."})
		return 0, false
	}
	return id, true
}
