package handlers

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"storefront/email-service/internal/jobs"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/events"
	"storefront/pkg/logkey"
	"storefront/pkg/metrics"
	"storefront/pkg/middleware"
)

type Handler struct {
	queue  jobs.Queue
	events *events.Logger
}

func NewHandler(q jobs.Queue, ev *events.Logger) *Handler {
	return &Handler{
		queue:  q,
		events: ev,
	}
}

// API builds the email engine. Every order route is internal.
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

	internal := r.Group("/internal")
	{
		internal.Use(m.VerifyInternalService())
		internal.POST("/orders/receive", h.ReceiveOrder) // POST /internal/orders/receive - queue the confirmation mail
	}

	return r
}

func healthCheck(c *gin.Context) {
	requestId := ctxmanage.GetRequestIdOfRequest(c)
	slog.Debug("healthCheck handler", slog.String(logkey.RequestID, requestId))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
