package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"storefront/checkout-service/internal/cart"
	"storefront/checkout-service/internal/orders"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/events"
	"storefront/pkg/logkey"
	"storefront/pkg/metrics"
	"storefront/pkg/middleware"
)

type CartStore interface {
	Resolve(ctx context.Context, token string) (cart.Cart, error)
	Items(ctx context.Context, cartID int64) ([]cart.Item, error)
	AddItem(ctx context.Context, cartID, variantID int64, quantity int) error
	SetQuantity(ctx context.Context, cartID, variantID int64, quantity int) error
	RemoveItem(ctx context.Context, cartID, variantID int64) error
	Clear(ctx context.Context, cartID int64) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, v orders.Validated) (orders.Order, error)
}

// OrderValidator checks and prices a new order against catalog.
type OrderValidator interface {
	ValidateOrder(ctx context.Context, o orders.NewOrder) (orders.Validated, error)
}

// OrderNotifier hands a persisted order to the email service without
// blocking the request.
type OrderNotifier interface {
	Notify(ctx context.Context, o orders.Order)
}

type Handler struct {
	carts     CartStore
	orders    OrderStore
	validator OrderValidator
	notifier  OrderNotifier
	events    *events.Logger
}

func NewHandler(carts CartStore, orderStore OrderStore, v OrderValidator, n OrderNotifier, ev *events.Logger) *Handler {
	return &Handler{
		carts:     carts,
		orders:    orderStore,
		validator: v,
		notifier:  n,
		events:    ev,
	}
}

// API builds the checkout engine. Checkout exposes no internal routes.
func API(h *Handler, sm *metrics.ServerMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if mode != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	r.Use(middleware.RequestID(), middleware.Logger())
	// metrics wraps recovery so panics are counted as 500s
	if sm != nil {
		r.Use(middleware.Metrics(sm))
	}
	r.Use(gin.Recovery())

	r.GET("/ping", healthCheck)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/cart", h.GetCart)                            // GET /api/v1/cart - current cart, created on first access
		v1.DELETE("/cart", h.ClearCart)                       // DELETE /api/v1/cart - remove every line, keep the token
		v1.POST("/cart/items", h.AddCartItem)                 // POST /api/v1/cart/items - add or increment a line
		v1.PATCH("/cart/items/:variantId", h.UpdateCartItem)  // PATCH /api/v1/cart/items/:variantId - set quantity, 0 removes
		v1.DELETE("/cart/items/:variantId", h.RemoveCartItem) // DELETE /api/v1/cart/items/:variantId - remove a line
		v1.POST("/orders", h.CreateOrder)                     // POST /api/v1/orders - validate with catalog, persist, notify email
	}

	return r
}

func healthCheck(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)
	slog.Debug("healthCheck handler", slog.String(logkey.RequestID, requestId))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
