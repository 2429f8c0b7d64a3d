package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/ctxmanage"
	"storefront/pkg/hmacauth"
	"storefront/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newInternalEngine(t *testing.T) *gin.Engine {
	t.Helper()
	m, err := NewMid(hmacauth.NewVerifier([]string{"checkout"}, "secret", 300*time.Second))
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID())
	internal := r.Group("/internal")
	internal.Use(m.VerifyInternalService())
	internal.POST("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{
			"body":       string(body),
			"request_id": ctxmanage.GetRequestIdOfRequest(c),
			"ctx_id":     ctxmanage.RequestIDFromContext(c.Request.Context()),
		})
	})
	return r
}

func signedRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	hmacauth.Signer{ServiceID: "checkout", Secret: "secret"}.SignRequest(req, []byte(body))
	return req
}

func TestVerifyInternalServiceBodyLimit(t *testing.T) {
	m, err := NewMid(hmacauth.NewVerifier([]string{"checkout"}, "secret", 300*time.Second), WithMaxBodyBytes(16))
	require.NoError(t, err)

	r := gin.New()
	r.POST("/internal/echo", m.VerifyInternalService(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "at limit", body: strings.Repeat("a", 16), want: http.StatusOK},
		{name: "over limit", body: strings.Repeat("a", 17), want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, signedRequest("/internal/echo", tt.body))
			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusRequestEntityTooLarge {
				var got map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, "Request body too large.", got["message"])
			}
		})
	}
}

func TestNewMidDefaultBodyLimit(t *testing.T) {
	m, err := NewMid(hmacauth.NewVerifier(nil, "secret", 0), WithMaxBodyBytes(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBodyBytes, m.maxBody)
}

func TestNewMidRequiresVerifier(t *testing.T) {
	_, err := NewMid(nil)
	assert.Error(t, err)
}

func TestRequestIDIsForwarded(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, ctxmanage.GetRequestIdOfRequest(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(ctxmanage.HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(ctxmanage.HeaderRequestID))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRequestIDIsGenerated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, ctxmanage.GetRequestIdOfRequest(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	id := w.Header().Get(ctxmanage.HeaderRequestID)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())
}

func TestVerifyInternalServiceAcceptsAndRestoresBody(t *testing.T) {
	r := newInternalEngine(t)

	req := signedRequest("/internal/echo", `{"product_ids":[]}`)
	req.Header.Set(ctxmanage.HeaderRequestID, "req-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, `{"product_ids":[]}`, got["body"])
	assert.Equal(t, "req-9", got["request_id"])
	assert.Equal(t, "req-9", got["ctx_id"])
	assert.Equal(t, "req-9", w.Header().Get(ctxmanage.HeaderRequestID))
}

func TestVerifyInternalServiceRejects(t *testing.T) {
	r := newInternalEngine(t)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	tests := []struct {
		name    string
		mutate  func(req *http.Request)
		message string
	}{
		{
			name:    "missing signature",
			mutate:  func(req *http.Request) { req.Header.Del(hmacauth.HeaderSignature) },
			message: "Missing required authentication headers.",
		},
		{
			name:    "unknown service",
			mutate:  func(req *http.Request) { req.Header.Set(hmacauth.HeaderServiceID, "invalid-service") },
			message: "Invalid service identifier.",
		},
		{
			name: "expired timestamp",
			mutate: func(req *http.Request) {
				req.Header.Set(hmacauth.HeaderTimestamp, strconv.FormatInt(time.Now().Unix()-600, 10))
			},
			message: "Request timestamp is outside acceptable window.",
		},
		{
			name: "invalid signature",
			mutate: func(req *http.Request) {
				req.Header.Set(hmacauth.HeaderTimestamp, now)
				req.Header.Set(hmacauth.HeaderSignature, "invalid-signature")
			},
			message: "Invalid signature.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signedRequest("/internal/echo", `{}`)
			tt.mutate(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"Unauthorized","message":"`+tt.message+`"}`, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(ctxmanage.HeaderRequestID))
		})
	}
}

func TestMetricsCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics("test", reg)

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/1", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "/items/:id", "204")))
}
