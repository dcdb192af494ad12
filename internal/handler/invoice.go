package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/posline/billing-engine/internal/domain/invoice"
)

type cartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createInvoiceRequest struct {
	CustomerEmail string          `json:"customerEmail"`
	Items         []cartItem      `json:"items"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
}

func (req *createInvoiceRequest) cartLines() []invoice.CartLine {
	lines := make([]invoice.CartLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = invoice.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

// CreateInvoice computes the cart, commits it, and returns the recorded
// invoice. A result with exactChangePossible=false is still a successful
// creation: whether to proceed without exact change is the caller's policy.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerEmail == "" {
		writeError(w, http.StatusBadRequest, "customerEmail is required")
		return
	}

	inv, err := h.billing.CreateInvoice(r.Context(), req.CustomerEmail, req.cartLines(), req.PaidAmount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeInvoice(&e, inv)
	writeJSON(w, http.StatusCreated, &e)
}

// PreviewInvoice prices a cart without committing anything.
func (h *Handler) PreviewInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comp, err := h.billing.Quote(r.Context(), req.cartLines(), req.PaidAmount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeComputation(&e, comp)
	writeJSON(w, http.StatusOK, &e)
}

// GetInvoice returns a committed invoice by id.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.billing.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeInvoice(&e, inv)
	writeJSON(w, http.StatusOK, &e)
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeInvoice(e *jx.Encoder, inv *invoice.Invoice) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(inv.ID) })
		e.Field("customerEmail", func(e *jx.Encoder) { e.Str(inv.CustomerEmail) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(inv.CreatedAt.Format(time.RFC3339)) })
		e.Field("totalWithoutTax", func(e *jx.Encoder) { money(e, inv.TotalWithoutTax) })
		e.Field("totalTax", func(e *jx.Encoder) { money(e, inv.TotalTax) })
		e.Field("totalAmount", func(e *jx.Encoder) { money(e, inv.TotalAmount) })
		e.Field("paidAmount", func(e *jx.Encoder) { money(e, inv.PaidAmount) })
		e.Field("changeAmount", func(e *jx.Encoder) { money(e, inv.ChangeAmount) })
		e.Field("denominationsGiven", func(e *jx.Encoder) { encodeAllocation(e, inv.Given) })
		e.Field("exactChangePossible", func(e *jx.Encoder) { e.Bool(inv.ExactChange) })
		e.Field("items", func(e *jx.Encoder) { encodeLines(e, inv.Lines) })
	})
}

func encodeComputation(e *jx.Encoder, comp *invoice.Computation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalWithoutTax", func(e *jx.Encoder) { money(e, comp.TotalWithoutTax) })
		e.Field("totalTax", func(e *jx.Encoder) { money(e, comp.TotalTax) })
		e.Field("totalAmount", func(e *jx.Encoder) { money(e, comp.TotalAmount) })
		e.Field("paidAmount", func(e *jx.Encoder) { money(e, comp.PaidAmount) })
		e.Field("changeAmount", func(e *jx.Encoder) { money(e, comp.ChangeAmount) })
		e.Field("denominationsGiven", func(e *jx.Encoder) { encodeAllocation(e, comp.Given) })
		e.Field("exactChangePossible", func(e *jx.Encoder) { e.Bool(comp.ExactChangePossible) })
		e.Field("items", func(e *jx.Encoder) { encodeLines(e, comp.Lines) })
	})
}

// encodeAllocation writes the allocation map with keys in descending face
// value order, matching the vault's canonical ordering. Keys are parsed once
// up front; a key that fails to parse (impossible for keys built with
// invoice.Key) is still emitted, after the numeric ones.
func encodeAllocation(e *jx.Encoder, given invoice.Allocation) {
	type entry struct {
		key     string
		value   decimal.Decimal
		numeric bool
	}

	entries := make([]entry, 0, len(given))
	for k := range given {
		v, err := decimal.NewFromString(k)
		entries = append(entries, entry{key: k, value: v, numeric: err == nil})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.numeric != b.numeric {
			return a.numeric
		}
		if !a.numeric {
			return a.key < b.key
		}
		return a.value.GreaterThan(b.value)
	})

	e.Obj(func(e *jx.Encoder) {
		for _, ent := range entries {
			e.Field(ent.key, func(e *jx.Encoder) { e.Int(given[ent.key]) })
		}
	})
}

func encodeLines(e *jx.Encoder, lines []invoice.Line) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
				e.Field("price", func(e *jx.Encoder) { money(e, l.Price) })
				e.Field("taxAmount", func(e *jx.Encoder) { money(e, l.TaxAmount) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
				e.Field("subtotal", func(e *jx.Encoder) { money(e, l.Subtotal) })
			})
		}
	})
}
