package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/checkout-service/internal/cart"
	"storefront/checkout-service/internal/orders"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/events"
	"storefront/pkg/hmacauth"
	"storefront/pkg/internalclient"
	"storefront/pkg/metrics"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// memCarts keeps carts in memory with the same semantics as the SQL store.
type memCarts struct {
	mu       sync.Mutex
	nextID   int64
	tokens   map[string]int64
	items    map[int64][]cart.Item
	itemsErr error
	addErr   error
}

func newMemCarts() *memCarts {
	return &memCarts{tokens: map[string]int64{}, items: map[int64][]cart.Item{}}
}

func (m *memCarts) Resolve(_ context.Context, token string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		token = "generated-token"
	}
	id, ok := m.tokens[token]
	if !ok {
		m.nextID++
		id = m.nextID
		m.tokens[token] = id
	}
	return cart.Cart{ID: id, Token: token}, nil
}

func (m *memCarts) Items(_ context.Context, cartID int64) ([]cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.itemsErr != nil {
		return nil, m.itemsErr
	}
	return append([]cart.Item{}, m.items[cartID]...), nil
}

func (m *memCarts) AddItem(_ context.Context, cartID, variantID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	for i, item := range m.items[cartID] {
		if item.VariantID == variantID {
			m.items[cartID][i].Quantity += quantity
			return nil
		}
	}
	m.items[cartID] = append(m.items[cartID], cart.Item{VariantID: variantID, Quantity: quantity})
	return nil
}

func (m *memCarts) SetQuantity(ctx context.Context, cartID, variantID int64, quantity int) error {
	if quantity == 0 {
		return m.RemoveItem(ctx, cartID, variantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items[cartID] {
		if item.VariantID == variantID {
			m.items[cartID][i].Quantity = quantity
			return nil
		}
	}
	m.items[cartID] = append(m.items[cartID], cart.Item{VariantID: variantID, Quantity: quantity})
	return nil
}

func (m *memCarts) RemoveItem(_ context.Context, cartID, variantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[cartID][:0]
	for _, item := range m.items[cartID] {
		if item.VariantID != variantID {
			kept = append(kept, item)
		}
	}
	m.items[cartID] = kept
	return nil
}

func (m *memCarts) Clear(_ context.Context, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, cartID)
	return nil
}

type memOrders struct {
	mu      sync.Mutex
	created []orders.Order
	err     error
}

func (m *memOrders) CreateOrder(_ context.Context, v orders.Validated) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return orders.Order{}, m.err
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := orders.Order{
		ID:          int64(len(m.created) + 1),
		Email:       v.Email,
		Items:       v.Items,
		TotalAmount: v.TotalAmount.Round(2),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.created = append(m.created, o)
	return o, nil
}

// peer is a signed-call recipient standing in for catalog or email.
type peer struct {
	mu         sync.Mutex
	status     int
	body       string
	paths      []string
	bodies     []string
	requestIDs []string
	authErrs   []error
}

func newPeer(t *testing.T, status int, body string) (*httptest.Server, *peer) {
	t.Helper()
	p := &peer{status: status, body: body}
	verifier := hmacauth.NewVerifier([]string{"checkout"}, secret, 300*time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.paths = append(p.paths, r.URL.Path)
		p.bodies = append(p.bodies, string(raw))
		p.requestIDs = append(p.requestIDs, r.Header.Get(ctxmanage.HeaderRequestID))
		p.authErrs = append(p.authErrs, verifier.Verify(r.Method, r.URL.Path, raw, hmacauth.CredentialsFromHeader(r.Header)))
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.status)
		_, _ = w.Write([]byte(p.body))
	}))
	t.Cleanup(srv.Close)
	return srv, p
}

func (p *peer) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

type fixture struct {
	engine   *gin.Engine
	carts    *memCarts
	orders   *memOrders
	catalog  *peer
	email    *peer
	notifier *orders.Notifier
}

func newFixture(t *testing.T, catalogStatus int, catalogBody string) *fixture {
	t.Helper()
	catalogSrv, catalog := newPeer(t, catalogStatus, catalogBody)
	emailSrv, email := newPeer(t, http.StatusAccepted, `{"status":"accepted"}`)

	validator := orders.NewValidator(internalclient.New(catalogSrv.URL, secret, "checkout"))
	notifier := orders.NewNotifier(internalclient.New(emailSrv.URL, secret, "checkout"), time.Second)

	f := &fixture{
		carts:    newMemCarts(),
		orders:   &memOrders{},
		catalog:  catalog,
		email:    email,
		notifier: notifier,
	}
	h := NewHandler(f.carts, f.orders, validator, notifier, events.New("checkout", nil))
	f.engine = API(h, nil, nil)
	return f
}

func (f *fixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var got cartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

const acceptedQuote = `{
	"items": [
		{"product_id":1,"variant_id":10,"quantity":3,"unit_price":10,"total_price":30},
		{"product_id":2,"variant_id":20,"quantity":1,"unit_price":5.55,"total_price":5.55}
	],
	"total_amount": 35.55
}`

const orderBody = `{"email":"buyer@example.com","items":[{"product_id":1,"variant_id":10,"quantity":3},{"product_id":2,"variant_id":20,"quantity":1}]}`

func TestPing(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)

	w := f.do(http.MethodGet, "/ping", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetCartCreatesCart(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)

	w := f.do(http.MethodGet, "/api/v1/cart", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cart_token":"generated-token","items":[]}`, w.Body.String())
	assert.Equal(t, "generated-token", w.Header().Get(HeaderCartToken))
}

func TestCartTokenFromQuery(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)

	w := f.do(http.MethodGet, "/api/v1/cart?cart_token=from-query", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-query", decodeCart(t, w).CartToken)
}

func TestCartLifecycle(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)
	token := map[string]string{HeaderCartToken: "tok-1"}

	w := f.do(http.MethodPost, "/api/v1/cart/items", `{"variant_id":10,"quantity":2}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPost, "/api/v1/cart/items", `{"variant_id":10,"quantity":3}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []cart.Item{{VariantID: 10, Quantity: 5}}, decodeCart(t, w).Items)

	w = f.do(http.MethodPost, "/api/v1/cart/items", `{"variant_id":20,"quantity":1}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPatch, "/api/v1/cart/items/10", `{"quantity":0}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []cart.Item{{VariantID: 20, Quantity: 1}}, decodeCart(t, w).Items)

	w = f.do(http.MethodDelete, "/api/v1/cart", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cart_token":"tok-1","items":[]}`, w.Body.String())

	// the cart row survives clearing
	w = f.do(http.MethodGet, "/api/v1/cart", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-1", decodeCart(t, w).CartToken)
	assert.Len(t, f.carts.tokens, 1)
}

func TestRemoveCartItem(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)
	token := map[string]string{HeaderCartToken: "tok-2"}

	f.do(http.MethodPost, "/api/v1/cart/items", `{"variant_id":10,"quantity":1}`, token)
	w := f.do(http.MethodDelete, "/api/v1/cart/items/10", "", token)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, w).Items)
}

func TestCartTokenTooLong(t *testing.T) {
	long := strings.Repeat("t", cart.MaxTokenLength+1)
	tests := []struct {
		name   string
		target string
		header map[string]string
	}{
		{name: "header", target: "/api/v1/cart", header: map[string]string{HeaderCartToken: long}},
		{name: "query", target: "/api/v1/cart?cart_token=" + long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK, acceptedQuote)

			w := f.do(http.MethodGet, tt.target, "", tt.header)

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"message":"Invalid cart token."}`, w.Body.String())
			assert.Empty(t, f.carts.tokens)
		})
	}

	f := newFixture(t, http.StatusOK, acceptedQuote)
	w := f.do(http.MethodGet, "/api/v1/cart", "", map[string]string{HeaderCartToken: long[:cart.MaxTokenLength]})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCartStoreFailures(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		setup   func(*memCarts)
		message string
	}{
		{name: "read", method: http.MethodGet, target: "/api/v1/cart", setup: func(m *memCarts) { m.itemsErr = errors.New("db down") }, message: "Failed to load cart"},
		{name: "update", method: http.MethodPost, target: "/api/v1/cart/items", body: `{"variant_id":10,"quantity":1}`, setup: func(m *memCarts) { m.addErr = errors.New("db down") }, message: "Failed to update cart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK, acceptedQuote)
			tt.setup(f.carts)

			w := f.do(tt.method, tt.target, tt.body, nil)

			require.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"message":"`+tt.message+`"}`, w.Body.String())
		})
	}
}

func TestCartItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		field  string
	}{
		{name: "zero quantity on add", method: http.MethodPost, target: "/api/v1/cart/items", body: `{"variant_id":10,"quantity":0}`, status: http.StatusUnprocessableEntity, field: "quantity"},
		{name: "missing quantity on add", method: http.MethodPost, target: "/api/v1/cart/items", body: `{"variant_id":10}`, status: http.StatusUnprocessableEntity, field: "quantity"},
		{name: "missing variant", method: http.MethodPost, target: "/api/v1/cart/items", body: `{"quantity":1}`, status: http.StatusUnprocessableEntity, field: "variant_id"},
		{name: "negative quantity on patch", method: http.MethodPatch, target: "/api/v1/cart/items/10", body: `{"quantity":-1}`, status: http.StatusUnprocessableEntity, field: "quantity"},
		{name: "missing quantity on patch", method: http.MethodPatch, target: "/api/v1/cart/items/10", body: `{}`, status: http.StatusUnprocessableEntity, field: "quantity"},
		{name: "non numeric variant", method: http.MethodPatch, target: "/api/v1/cart/items/abc", body: `{"quantity":1}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK, acceptedQuote)
			w := f.do(tt.method, tt.target, tt.body, nil)

			require.Equal(t, tt.status, w.Code)
			if tt.field != "" {
				var got struct {
					Errors map[string][]string `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Contains(t, got.Errors, tt.field)
			}
		})
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)

	w := f.do(http.MethodPost, "/api/v1/orders", orderBody, map[string]string{ctxmanage.HeaderRequestID: "req-42"})
	f.notifier.Wait()

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{
		"id": 1,
		"email": "buyer@example.com",
		"items": [
			{"product_id":1,"variant_id":10,"quantity":3,"unit_price":10,"total_price":30},
			{"product_id":2,"variant_id":20,"quantity":1,"unit_price":5.55,"total_price":5.55}
		],
		"total_amount": 35.55,
		"created_at": "2026-01-01T00:00:00Z",
		"updated_at": "2026-01-01T00:00:00Z"
	}`, w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(ctxmanage.HeaderRequestID))

	require.Len(t, f.orders.created, 1)
	assert.Equal(t, "35.55", f.orders.created[0].TotalAmount.StringFixed(2))

	require.Equal(t, 1, f.catalog.calls())
	assert.Equal(t, "/internal/v1/products/validate-items", f.catalog.paths[0])
	assert.JSONEq(t, `{"items":[{"product_id":1,"variant_id":10,"quantity":3},{"product_id":2,"variant_id":20,"quantity":1}]}`, f.catalog.bodies[0])
	assert.NoError(t, f.catalog.authErrs[0])
	assert.Equal(t, "req-42", f.catalog.requestIDs[0])

	require.Equal(t, 1, f.email.calls())
	assert.Equal(t, "/internal/orders/receive", f.email.paths[0])
	assert.JSONEq(t, `{
		"email": "buyer@example.com",
		"items": [
			{"product_id":1,"variant_id":10,"quantity":3,"unit_price":10,"total_price":30},
			{"product_id":2,"variant_id":20,"quantity":1,"unit_price":5.55,"total_price":5.55}
		],
		"total_amount": 35.55
	}`, f.email.bodies[0])
	assert.NoError(t, f.email.authErrs[0])
	assert.Equal(t, "req-42", f.email.requestIDs[0])
}

func TestCreateOrderInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing email", body: `{"items":[{"product_id":1,"variant_id":10,"quantity":1}]}`, field: "email"},
		{name: "invalid email", body: `{"email":"nope","items":[{"product_id":1,"variant_id":10,"quantity":1}]}`, field: "email"},
		{name: "no items", body: `{"email":"a@b.co","items":[]}`, field: "items"},
		{name: "zero quantity", body: `{"email":"a@b.co","items":[{"product_id":1,"variant_id":10,"quantity":0}]}`, field: "items.0.quantity"},
		{name: "numeric email", body: `{"email":123,"items":[{"product_id":1,"variant_id":10,"quantity":1}]}`, field: "email"},
		{name: "string quantity in second item", body: `{"email":"a@b.co","items":[{"product_id":1,"variant_id":10,"quantity":1},{"product_id":2,"variant_id":20,"quantity":"x"}]}`, field: "items.1.quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK, acceptedQuote)
			w := f.do(http.MethodPost, "/api/v1/orders", tt.body, nil)

			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			var got struct {
				Message string              `json:"message"`
				Errors  map[string][]string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Message)
			assert.Contains(t, got.Errors, tt.field)
			assert.Zero(t, f.catalog.calls())
			assert.Empty(t, f.orders.created)
		})
	}
}

func TestCreateOrderCatalogFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
		relay  bool
	}{
		{
			name:   "catalog rejects items",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"Validation failed.","errors":{"items.0.quantity":["Insufficient stock."]}}`,
			want:   http.StatusUnprocessableEntity,
			relay:  true,
		},
		{name: "catalog error", status: http.StatusInternalServerError, body: `{"message":"boom"}`, want: http.StatusBadGateway},
		{name: "catalog unauthorized", status: http.StatusUnauthorized, body: `{"error":"Unauthorized","message":"Invalid signature."}`, want: http.StatusBadGateway},
		{name: "inconsistent quote", status: http.StatusOK, body: `{"items":[],"total_amount":0}`, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.status, tt.body)

			w := f.do(http.MethodPost, "/api/v1/orders", orderBody, nil)
			f.notifier.Wait()

			require.Equal(t, tt.want, w.Code)
			if tt.relay {
				assert.JSONEq(t, tt.body, w.Body.String())
			} else {
				assert.JSONEq(t, `{"message":"Order validation failed."}`, w.Body.String())
			}
			assert.Empty(t, f.orders.created)
			assert.Zero(t, f.email.calls())
		})
	}
}

func TestCreateOrderPersistenceFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)
	f.orders.err = errors.New("db down")

	w := f.do(http.MethodPost, "/api/v1/orders", orderBody, nil)
	f.notifier.Wait()

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, f.email.calls())
}

func TestCreateOrderSurvivesEmailFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK, acceptedQuote)
	f.email.status = http.StatusInternalServerError

	w := f.do(http.MethodPost, "/api/v1/orders", orderBody, nil)
	f.notifier.Wait()

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, f.orders.created, 1)
	assert.Equal(t, 1, f.email.calls())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	sm := metrics.NewServerMetrics("checkout", reg)
	h := NewHandler(newMemCarts(), &memOrders{}, nil, nil, events.New("checkout", nil))
	r := API(h, sm, reg)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `handler="/api/v1/cart"`)
}

func TestMetricsCountPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sm := metrics.NewServerMetrics("checkout", reg)
	r := API(NewHandler(newMemCarts(), &memOrders{}, nil, nil, events.New("checkout", nil)), sm, reg)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.Requests.WithLabelValues(http.MethodGet, "/boom", "500")))
}
