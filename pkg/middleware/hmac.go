package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/pkg/ctxmanage"
	"storefront/pkg/hmacauth"
	"storefront/pkg/logkey"
)

// VerifyInternalService authenticates signed service-to-service calls. The
// body is buffered, up to the configured limit, and restored so the handler
// can bind it afterwards.
func (m *Mid) VerifyInternalService() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, m.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				slog.Warn("internal request body too large",
					slog.String("path", c.Request.URL.Path),
					slog.Int64("limit", tooLarge.Limit),
				)
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Request body too large."})
				return
			}
			slog.Error("failed to read request body", slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		cred := hmacauth.CredentialsFromHeader(c.Request.Header)
		err = m.verifier.Verify(c.Request.Method, c.Request.URL.Path, body, cred)
		if err != nil {
			reason := hmacauth.BadSignature
			var authErr *hmacauth.Error
			if errors.As(err, &authErr) {
				reason = authErr.Reason
			}
			slog.Warn("internal request rejected",
				slog.String(logkey.RequestID, c.GetHeader(ctxmanage.HeaderRequestID)),
				slog.String("caller", cred.ServiceID),
				slog.String("path", c.Request.URL.Path),
				slog.String("reason", reason.String()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": reason.Message(),
			})
			return
		}

		assignRequestID(c)
		c.Next()
	}
}
