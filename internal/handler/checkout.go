package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/velaluna/storefront-api/internal/domain/checkout"
	"github.com/velaluna/storefront-api/internal/domain/shipping"
)

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, v *checkout.View, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeView(e, v) })
}

// GetCheckout handles GET /api/checkout.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	v, err := h.checkout.Session(r.Context(), sid)
	h.writeView(w, r, v, err)
}

// CheckoutNext handles POST /api/checkout/next. Advancing from the review
// step submits the order.
func (h *Handler) CheckoutNext(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	v, err := h.checkout.Next(r.Context(), sid)
	h.writeView(w, r, v, err)
}

// CheckoutBack handles POST /api/checkout/back.
func (h *Handler) CheckoutBack(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	v, err := h.checkout.Back(r.Context(), sid)
	h.writeView(w, r, v, err)
}

// SetShippingMethod handles PUT /api/checkout/shipping-method. The body may
// carry a carrier alongside the method for carrier-based shipping.
func (h *Handler) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	var rawMethod, rawCarrier string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "method":
			rawMethod, err = d.Str()
			return err
		case "carrier":
			rawCarrier, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	method, err := shipping.ParseMethod(rawMethod)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.checkout.SetShippingMethod(r.Context(), sid, method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rawCarrier != "" {
		carrier, err := shipping.ParseCarrier(rawCarrier)
		if err != nil {
			writeError(w, r, err)
			return
		}
		v, err = h.checkout.SetCarrier(r.Context(), sid, carrier)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.writeView(w, r, v, nil)
}

// SetBilling handles PUT /api/checkout/billing.
func (h *Handler) SetBilling(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	var b checkout.BillingData
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			b.Name, err = d.Str()
		case "address":
			b.Address, err = d.Str()
		case "city":
			b.City, err = d.Str()
		case "province":
			b.Province, err = d.Str()
		case "postal_code":
			b.PostalCode, err = d.Str()
		case "phone":
			b.Phone, err = d.Str()
		case "extra":
			b.Extra, err = d.Str()
		case "email":
			b.Email, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v, err := h.checkout.SetBilling(r.Context(), sid, b)
	h.writeView(w, r, v, err)
}

// SetPaymentMethod handles PUT /api/checkout/payment-method.
func (h *Handler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	var method string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		if key != "method" {
			return d.Skip()
		}
		method, err = d.Str()
		return err
	})
	if err != nil || method == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v, err := h.checkout.SetPaymentMethod(r.Context(), sid, method)
	h.writeView(w, r, v, err)
}

// QuoteShipping handles POST /api/checkout/quote.
func (h *Handler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	var postalCode string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		if key != "postal_code" {
			return d.Skip()
		}
		postalCode, err = d.Str()
		return err
	})
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v, err := h.checkout.Quote(r.Context(), sid, postalCode)
	h.writeView(w, r, v, err)
}

// PrefillBilling handles POST /api/checkout/prefill, filling empty billing
// fields from the backend customer profile.
func (h *Handler) PrefillBilling(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	v, err := h.checkout.Prefill(r.Context(), sid)
	h.writeView(w, r, v, err)
}

// SubmitCheckout handles POST /api/checkout/submit.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	v, err := h.checkout.Submit(r.Context(), sid)
	h.writeView(w, r, v, err)
}

// ResetCheckout handles POST /api/checkout/reset.
func (h *Handler) ResetCheckout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	v, err := h.checkout.Reset(r.Context(), sid)
	h.writeView(w, r, v, err)
}
