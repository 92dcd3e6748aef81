//go:build integration

package integration

import (
	"net/http"
	"strings"
	"testing"
)

func addToCart(t *testing.T, s *session, productID string, quantity int) {
	t.Helper()

	resp := s.do(http.MethodPost, "/api/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	})
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusOK)
}

func TestCheckout_FullCorreoFlow(t *testing.T) {
	s := newSession(t)
	addToCart(t, s, "malbec-reserva-750", 2)

	// Step 1: shipping method.
	resp := s.do(http.MethodPut, "/api/checkout/shipping-method", map[string]any{
		"method": "correo",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/checkout/next", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Step 2: quote against the stub backend.
	resp = s.do(http.MethodPost, "/api/checkout/quote", map[string]any{
		"postal_code": "5500",
	})
	wantStatus(t, resp, http.StatusOK)
	view := decodeJSON[checkoutView](t, resp)
	resp.Body.Close()
	if view.Shipping.Cost != 1540.50 {
		t.Fatalf("expected stub quote 1540.50, got %v", view.Shipping.Cost)
	}
	if view.Summary.Total != 2*8500.0+1540.50 {
		t.Fatalf("unexpected total %v", view.Summary.Total)
	}

	resp = s.do(http.MethodPost, "/api/checkout/next", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Step 3: billing.
	resp = s.do(http.MethodPut, "/api/checkout/billing", map[string]any{
		"name":        "Ana Pérez",
		"phone":       "261-555-0101",
		"email":       "ana@example.com",
		"address":     "San Martín 123",
		"postal_code": "5500",
		"province":    "Mendoza",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/checkout/next", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Step 4: payment.
	resp = s.do(http.MethodPut, "/api/checkout/payment-method", map[string]any{
		"method": "mercadopago",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/checkout/next", nil)
	wantStatus(t, resp, http.StatusOK)
	view = decodeJSON[checkoutView](t, resp)
	resp.Body.Close()
	if view.Step != 5 {
		t.Fatalf("expected review step, got %d", view.Step)
	}

	// Step 5: submit.
	resp = s.do(http.MethodPost, "/api/checkout/submit", nil)
	wantStatus(t, resp, http.StatusOK)
	view = decodeJSON[checkoutView](t, resp)
	resp.Body.Close()

	if !view.Completed {
		t.Fatal("expected completed checkout")
	}
	if view.OrderID == 0 {
		t.Fatal("expected an order id")
	}
	if !strings.HasPrefix(view.InitPoint, "https://pago.example/init/") {
		t.Fatalf("unexpected init point %q", view.InitPoint)
	}

	// The cart is emptied on completion.
	resp = s.do(http.MethodGet, "/api/cart", nil)
	defer resp.Body.Close()
	cart := decodeJSON[cartResponse](t, resp)
	if cart.TotalItems != 0 {
		t.Fatalf("expected empty cart after checkout, got %d items", cart.TotalItems)
	}
}

func TestCheckout_PickupSkipsQuoteAndAddress(t *testing.T) {
	s := newSession(t)
	addToCart(t, s, "sacacorchos-sommelier", 1)

	resp := s.do(http.MethodPut, "/api/checkout/shipping-method", map[string]any{
		"method": "pickup",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Steps 1 and 2 pass without a quote for free methods.
	for range 2 {
		resp = s.do(http.MethodPost, "/api/checkout/next", nil)
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	// Billing in simple mode: only name, phone, email.
	resp = s.do(http.MethodPut, "/api/checkout/billing", map[string]any{
		"name":  "Bruno Díaz",
		"phone": "261-555-0202",
		"email": "bruno@example.com",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/checkout/next", nil)
	wantStatus(t, resp, http.StatusOK)
	view := decodeJSON[checkoutView](t, resp)
	resp.Body.Close()
	if view.Step != 4 {
		t.Fatalf("expected payment step, got %d", view.Step)
	}
	if view.Summary.Shipping != 0 {
		t.Fatalf("pickup must cost zero, got %v", view.Summary.Shipping)
	}

	// Back from payment with a free method returns to the quote step.
	resp = s.do(http.MethodPost, "/api/checkout/back", nil)
	wantStatus(t, resp, http.StatusOK)
	view = decodeJSON[checkoutView](t, resp)
	resp.Body.Close()
	if view.Step != 2 {
		t.Fatalf("expected back to step 2, got %d", view.Step)
	}
}

func TestCheckout_ValidationErrors(t *testing.T) {
	s := newSession(t)
	addToCart(t, s, "cabernet-roble-750", 1)

	// No shipping method selected yet.
	resp := s.do(http.MethodPost, "/api/checkout/next", nil)
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	body := decodeJSON[errorResponse](t, resp)
	resp.Body.Close()
	if body.Code != 422 {
		t.Fatalf("expected error code 422, got %d", body.Code)
	}

	// Unknown shipping method.
	resp = s.do(http.MethodPut, "/api/checkout/shipping-method", map[string]any{
		"method": "paloma-mensajera",
	})
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}

func TestCheckout_PrefillFromBackend(t *testing.T) {
	s := newSession(t)

	resp := s.do(http.MethodPost, "/api/checkout/prefill", nil)
	wantStatus(t, resp, http.StatusOK)
	view := decodeJSON[checkoutView](t, resp)
	defer resp.Body.Close()

	if view.Billing.Name != "Ana Pérez" {
		t.Fatalf("expected prefilled name, got %q", view.Billing.Name)
	}
	if view.Billing.PostalCode != "5500" {
		t.Fatalf("expected prefilled postal code, got %q", view.Billing.PostalCode)
	}
	if view.Billing.Extra != "4B" {
		t.Fatalf("expected prefilled apartment, got %q", view.Billing.Extra)
	}
}

func TestCheckout_TransporteRequiresCarrier(t *testing.T) {
	s := newSession(t)
	addToCart(t, s, "torrontes-joven-750", 1)

	resp := s.do(http.MethodPut, "/api/checkout/shipping-method", map[string]any{
		"method": "transporte",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Quote without a carrier fails.
	resp = s.do(http.MethodPost, "/api/checkout/quote", map[string]any{
		"postal_code": "5500",
	})
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	// With a carrier the stub returns the freight price.
	resp = s.do(http.MethodPut, "/api/checkout/shipping-method", map[string]any{
		"method":  "transporte",
		"carrier": "viacargo",
	})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/checkout/quote", map[string]any{
		"postal_code": "5500",
	})
	wantStatus(t, resp, http.StatusOK)
	view := decodeJSON[checkoutView](t, resp)
	resp.Body.Close()
	if view.Shipping.Cost != 2890.0 {
		t.Fatalf("expected freight quote 2890.00, got %v", view.Shipping.Cost)
	}
}
