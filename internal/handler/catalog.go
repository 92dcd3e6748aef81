package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// SearchProducts handles GET /api/products?q=. Short queries are answered
// from the cached full list, longer ones hit the product mirror.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("query")
		e.Str(result.Query)
		e.FieldStart("seq")
		e.UInt64(result.Seq)
		e.FieldStart("products")
		e.ArrStart()
		for _, p := range result.Products {
			encodeProduct(e, p)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}
