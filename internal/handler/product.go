package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
				e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
				e.Field("taxPct", func(e *jx.Encoder) { money(e, p.TaxPct) })
				e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
			})
		}
	})
	writeJSON(w, http.StatusOK, &e)
}
