package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const requestIDKey ctxKey = 1

// GinKey is the key the request id is stored under on a *gin.Context.
const GinKey = "request_id"

// HeaderRequestID carries the correlation id between services.
const HeaderRequestID = "x-request-id"

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored in ctx, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// SetRequestID stores the request id on the gin context and on the
// underlying request context, so code that only sees a context.Context
// (clients, stores) can read it too.
func SetRequestID(c *gin.Context, requestID string) {
	c.Set(GinKey, requestID)
	c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
}

// GetRequestIdOfRequest returns the request id assigned to the current request.
func GetRequestIdOfRequest(c *gin.Context) string {
	if id := c.GetString(GinKey); id != "" {
		return id
	}
	return RequestIDFromContext(c.Request.Context())
}
