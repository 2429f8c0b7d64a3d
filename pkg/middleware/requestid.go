package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/pkg/ctxmanage"
)

// RequestID forwards the inbound x-request-id or assigns a new one, and
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := assignRequestID(c)
		c.Header(ctxmanage.HeaderRequestID, id)
		c.Next()
	}
}

func assignRequestID(c *gin.Context) string {
	if id := ctxmanage.GetRequestIdOfRequest(c); id != "" {
		return id
	}
	id := c.GetHeader(ctxmanage.HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	ctxmanage.SetRequestID(c, id)
	return id
}
