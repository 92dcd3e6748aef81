// Package handler exposes the storefront API over HTTP, delegating business
// logic to the catalog service, cart store, and checkout machine.
package handler

import (
	"net/http"

	"github.com/velaluna/storefront-api/internal/catalog"
	"github.com/velaluna/storefront-api/internal/domain/cart"
	"github.com/velaluna/storefront-api/internal/domain/checkout"
)

// Handler serves the /api routes for one storefront session per request,
// identified by the sid cookie set by the session middleware.
type Handler struct {
	catalog  *catalog.Service
	carts    *cart.Store
	checkout *checkout.Machine
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(catalogSvc *catalog.Service, carts *cart.Store, machine *checkout.Machine) *Handler {
	return &Handler{
		catalog:  catalogSvc,
		carts:    carts,
		checkout: machine,
	}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.SearchProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.RemoveCartItem)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("GET /api/checkout", h.GetCheckout)
	mux.HandleFunc("POST /api/checkout/next", h.CheckoutNext)
	mux.HandleFunc("POST /api/checkout/back", h.CheckoutBack)
	mux.HandleFunc("PUT /api/checkout/shipping-method", h.SetShippingMethod)
	mux.HandleFunc("PUT /api/checkout/billing", h.SetBilling)
	mux.HandleFunc("PUT /api/checkout/payment-method", h.SetPaymentMethod)
	mux.HandleFunc("POST /api/checkout/quote", h.QuoteShipping)
	mux.HandleFunc("POST /api/checkout/prefill", h.PrefillBilling)
	mux.HandleFunc("POST /api/checkout/submit", h.SubmitCheckout)
	mux.HandleFunc("POST /api/checkout/reset", h.ResetCheckout)
}
