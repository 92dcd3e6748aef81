package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velaluna/storefront-api/internal/backend"
	"github.com/velaluna/storefront-api/internal/catalog"
	"github.com/velaluna/storefront-api/internal/domain/cart"
	"github.com/velaluna/storefront-api/internal/domain/checkout"
	"github.com/velaluna/storefront-api/internal/domain/shipping"
	"github.com/velaluna/storefront-api/pkg/httpmiddleware"
)

// --- mocks ---

type memCartStorage struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func newMemCartStorage() *memCartStorage {
	return &memCartStorage{carts: make(map[string]*cart.Cart)}
}

func (m *memCartStorage) Load(_ context.Context, sessionID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	return &cp, nil
}

func (m *memCartStorage) Save(_ context.Context, sessionID string, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	m.carts[sessionID] = &cp
	return nil
}

func (m *memCartStorage) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

type mockCatalogRepo struct {
	products []catalog.Product
}

func (m *mockCatalogRepo) List(_ context.Context) ([]catalog.Product, error) {
	return m.products, nil
}

func (m *mockCatalogRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalogRepo) Search(_ context.Context, query string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockQuoter struct {
	cost decimal.Decimal
	err  error
}

func (m *mockQuoter) QuoteShipping(_ context.Context, _, _ string) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return m.cost, nil
}

type mockBackend struct {
	orderErr error
	prefErr  error
}

func (m *mockBackend) CreateOrder(_ context.Context, _ checkout.OrderRequest) (int64, error) {
	if m.orderErr != nil {
		return 0, m.orderErr
	}
	return 777, nil
}

func (m *mockBackend) CreatePaymentPreference(_ context.Context, req checkout.PreferenceRequest) (string, error) {
	if m.prefErr != nil {
		return "", m.prefErr
	}
	return fmt.Sprintf("https://pay.example/init/%d", req.OrderID), nil
}

func (m *mockBackend) FetchCustomer(_ context.Context) (*checkout.Customer, error) {
	return &checkout.Customer{
		Name:  "Ana Pérez",
		Email: "ana@example.com",
		Phone: "261-555-0101",
	}, nil
}

type mockSubmissionLog struct{}

func (mockSubmissionLog) Create(_ context.Context, _ *checkout.Submission) error { return nil }
func (mockSubmissionLog) SetOrder(_ context.Context, _ string, _ int64) error    { return nil }
func (mockSubmissionLog) SetStatus(_ context.Context, _ string, _ checkout.SubmissionStatus, _ string) error {
	return nil
}

// --- fixture ---

type fixture struct {
	server  http.Handler
	backend *mockBackend
	cookie  *http.Cookie
}

func intp(n int) *int { return &n }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := &mockCatalogRepo{products: []catalog.Product{
		{ID: "p1", Name: "Malbec Reserva", Price: decimal.RequireFromString("50.00"), Category: "vinos", Stock: intp(3)},
		{ID: "p2", Name: "Copa de cristal", Price: decimal.RequireFromString("10.00"), Category: "accesorios"},
	}}

	be := &mockBackend{}
	carts := cart.NewStore(newMemCartStorage())
	machine := checkout.NewMachine(
		carts,
		shipping.NewResolver(&mockQuoter{cost: decimal.RequireFromString("20.00")}),
		be,
		mockSubmissionLog{},
		func() string { return "req-1" },
	)

	h := NewHandler(catalog.NewService(repo, time.Minute), carts, machine)
	mux := http.NewServeMux()
	h.Register(mux)

	return &fixture{
		server:  httpmiddleware.Wrap(mux, httpmiddleware.Session()),
		backend: be,
		cookie:  &http.Cookie{Name: "sid", Value: "f6a7dc39-21bb-4f9e-8f2c-3a0dd94c2f11"},
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.AddCookie(f.cookie)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

// walk a correo checkout up to the review step
func (f *fixture) advanceToReview(t *testing.T) {
	t.Helper()

	w, _ := f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/checkout/shipping-method", `{"method":"correo"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/checkout/quote", `{"postal_code":"5500"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusOK, w.Code)

	billing := `{"name":"Ana Pérez","phone":"261-555-0101","email":"ana@example.com",` +
		`"address":"San Martín 123","postal_code":"5500","province":"Mendoza"}`
	w, _ = f.do(t, http.MethodPut, "/api/checkout/billing", billing)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/checkout/payment-method", `{"method":"mercadopago"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, body := f.do(t, http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(5), body["step"], "should be at the review step")
}

// --- tests ---

func TestSearchProducts(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/products?q=malbec", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "malbec", body["query"])
	products := body["products"].([]any)
	require.Len(t, products, 1)

	p := products[0].(map[string]any)
	assert.Equal(t, "p1", p["id"])
	assert.Equal(t, 50.0, p["price"])
	assert.Equal(t, 3.0, p["stock"])
}

func TestSearchProducts_ShortQueryListsAll(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/products?q=ma", "")

	assert.Equal(t, http.StatusOK, w.Code)
	// Below the server-search threshold the cached list is filtered instead.
	products := body["products"].([]any)
	assert.Len(t, products, 1)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/products/ghost", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(404), body["code"])
}

func TestAddCartItem_ClampsToStock(t *testing.T) {
	f := newFixture(t)

	// p1 has stock 3; asking for 5 clamps.
	w, body := f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":5}`)

	assert.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, 3.0, line["quantity"])
	assert.Equal(t, 50.0, line["price"], "price must come from the catalog")
	assert.Equal(t, 150.0, body["subtotal"])
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"ghost"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(404), body["code"])
}

func TestUpdateCartItem_ZeroRemoves(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"p2","quantity":2}`)

	w, body := f.do(t, http.MethodPatch, "/api/cart/items/p2", `{"quantity":0}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["items"])
	assert.Equal(t, 0.0, body["total_items"])
}

func TestClearCart(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"p2"}`)

	w, _ := f.do(t, http.MethodDelete, "/api/cart", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, body := f.do(t, http.MethodGet, "/api/cart", "")
	assert.Empty(t, body["items"])
}

func TestCheckoutNext_MissingMethod(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"p2"}`)

	w, body := f.do(t, http.MethodPost, "/api/checkout/next", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "select a shipping method", body["message"])
}

func TestSetShippingMethod_Unknown(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPut, "/api/checkout/shipping-method", `{"method":"dron"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, float64(422), body["code"])
}

func TestCheckout_SubmitHappyPath(t *testing.T) {
	f := newFixture(t)
	f.advanceToReview(t)

	w, body := f.do(t, http.MethodPost, "/api/checkout/submit", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["completed"])
	assert.Equal(t, float64(777), body["order_id"])
	assert.Equal(t, "https://pay.example/init/777", body["init_point"])

	summary := body["summary"].(map[string]any)
	assert.Equal(t, 100.0, summary["subtotal"])

	// The cart is emptied on completion.
	_, cartBody := f.do(t, http.MethodGet, "/api/cart", "")
	assert.Empty(t, cartBody["items"])
}

func TestCheckout_SubmitOrderFailure(t *testing.T) {
	f := newFixture(t)
	f.advanceToReview(t)
	f.backend.orderErr = &backend.StatusError{Op: "create order", Status: http.StatusBadGateway}

	w, body := f.do(t, http.MethodPost, "/api/checkout/submit", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "order could not be created", body["message"])
}

func TestCheckout_SubmitBreakerOpen(t *testing.T) {
	f := newFixture(t)
	f.advanceToReview(t)
	f.backend.orderErr = backend.ErrBreakerOpen

	w, body := f.do(t, http.MethodPost, "/api/checkout/submit", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, float64(503), body["code"])
}

func TestCheckout_QuoteUpdatesSummary(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cart/items", `{"product_id":"p1","quantity":2}`)
	f.do(t, http.MethodPut, "/api/checkout/shipping-method", `{"method":"correo"}`)

	w, body := f.do(t, http.MethodPost, "/api/checkout/quote", `{"postal_code":"5500"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 20.0, summary["shipping"])
	assert.Equal(t, 120.0, summary["total"])
}

func TestCheckout_PrefillFillsEmptyFields(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, "/api/checkout/billing", `{"name":"Berta"}`)

	w, body := f.do(t, http.MethodPost, "/api/checkout/prefill", "")

	assert.Equal(t, http.StatusOK, w.Code)
	billing := body["billing"].(map[string]any)
	assert.Equal(t, "Berta", billing["name"], "user input is never overwritten")
	assert.Equal(t, "ana@example.com", billing["email"])
}

func TestCheckout_ResetStartsOver(t *testing.T) {
	f := newFixture(t)
	f.advanceToReview(t)

	w, body := f.do(t, http.MethodPost, "/api/checkout/reset", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["step"])
	billing := body["billing"].(map[string]any)
	assert.Equal(t, "", billing["name"], "billing does not survive a restart")
}

func TestSetBilling_MalformedBody(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, "/api/checkout/billing", `{"name":"Ana Pérez"}`)

	w, _ := f.do(t, http.MethodPut, "/api/checkout/billing", `not json at all`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, body := f.do(t, http.MethodGet, "/api/checkout", "")
	billing := body["billing"].(map[string]any)
	assert.Equal(t, "Ana Pérez", billing["name"], "a rejected body leaves billing untouched")
}

func TestSetBilling_EmptyBodyClearsFields(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, "/api/checkout/billing", `{"name":"Ana Pérez"}`)

	// An empty body is the empty object, and PUT replaces.
	w, body := f.do(t, http.MethodPut, "/api/checkout/billing", "")

	assert.Equal(t, http.StatusOK, w.Code)
	billing := body["billing"].(map[string]any)
	assert.Equal(t, "", billing["name"])
}

func TestMissingSession(t *testing.T) {
	// Bypass the session middleware entirely.
	repo := &mockCatalogRepo{}
	carts := cart.NewStore(newMemCartStorage())
	machine := checkout.NewMachine(carts, shipping.NewResolver(&mockQuoter{}), &mockBackend{}, mockSubmissionLog{}, func() string { return "x" })
	h := NewHandler(catalog.NewService(repo, time.Minute), carts, machine)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
