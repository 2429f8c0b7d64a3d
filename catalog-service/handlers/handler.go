package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"storefront/catalog-service/internal/products"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/events"
	"storefront/pkg/logkey"
	"storefront/pkg/metrics"
	"storefront/pkg/middleware"
)

// ProductStore is the read side of the catalog used by the handlers.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]products.Product, error)
	GetProduct(ctx context.Context, id int64) (products.Product, error)
	ValidateProducts(ctx context.Context, productIDs, variantIDs []int64) ([]products.Product, error)
	VariantsByIDs(ctx context.Context, ids []int64) (map[int64]products.Variant, error)
}

type Handler struct {
	store  ProductStore
	events *events.Logger
}

func NewHandler(store ProductStore, ev *events.Logger) *Handler {
	return &Handler{
		store:  store,
		events: ev,
	}
}

// API builds the catalog engine. sm and gatherer may be nil, in which case
// no metrics are recorded or exposed.
func API(h *Handler, m *middleware.Mid, sm *metrics.ServerMetrics, gatherer prometheus.Gatherer) *gin.Engine {
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
		v1.GET("/products", h.ListProducts)   // GET /api/v1/products - all products with their variants
		v1.GET("/products/:id", h.GetProduct) // GET /api/v1/products/:id - one product, 404 if absent
	}

	internal := r.Group("/internal/v1")
	{
		internal.Use(m.VerifyInternalService())
		internal.POST("/products/validate", h.ValidateProducts)
		internal.POST("/products/validate-items", h.ValidateItems)
		internal.GET("/products/:id", h.GetProduct)
	}

	return r
}

func healthCheck(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)
	slog.Debug("healthCheck handler", slog.String(logkey.RequestID, requestId))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
