package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/velaluna/storefront-api/internal/domain/cart"
)

// GetCart handles GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	c, err := h.carts.Get(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// AddCartItem handles POST /api/cart/items. The product is looked up in the
// catalog so price, name, and stock ceiling always come from the mirror, not
// the client.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	var (
		productID string
		quantity  = 1
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = d.Str()
			return err
		case "quantity":
			quantity, err = d.Int()
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil || productID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.catalog.GetByID(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), sid, cart.Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  quantity,
		Stock:     p.Stock,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// UpdateCartItem handles PATCH /api/cart/items/{id}. A quantity of zero or
// less removes the line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	quantity := 0
	seen := false
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		if key != "quantity" {
			return d.Skip()
		}
		seen = true
		quantity, err = d.Int()
		return err
	})
	if err != nil || !seen {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), sid, r.PathValue("id"), quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// RemoveCartItem handles DELETE /api/cart/items/{id}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), sid, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// ClearCart handles DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	if err := h.carts.Clear(r.Context(), sid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
