// Package internalclient performs signed JSON calls between internal services.
package internalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/pkg/ctxmanage"
	"storefront/pkg/hmacauth"
)

// DefaultTimeout bounds every outbound internal call.
const DefaultTimeout = 5 * time.Second

// StatusError is returned when the peer answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("internal call %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Client calls one peer service.
type Client struct {
	baseURL    string
	signer     hmacauth.Signer
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithClock replaces the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.signer.Now = now
	}
}

// New returns a client for the peer at baseURL that identifies itself as serviceID.
func New(baseURL, secret, serviceID string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  hmacauth.Signer{ServiceID: serviceID, Secret: secret},
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get sends a signed GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends data as a signed JSON POST and decodes the response into out.
// A nil or empty data value is sent as an empty body.
func (c *Client) Post(ctx context.Context, path string, data any, out any) error {
	body, err := encodeBody(data)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := ctxmanage.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(ctxmanage.HeaderRequestID, requestID)
	}
	c.signer.SignRequest(req, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("internal call %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: req.URL.Path, StatusCode: resp.StatusCode, Body: respBody}
	}

	trimmed := bytes.TrimSpace(respBody)
	if out == nil || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func encodeBody(data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error encoding request body: %w", err)
	}
	switch string(body) {
	case "null", "{}", "[]":
		return nil, nil
	}
	return body, nil
}
