package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/posline/billing-engine/internal/domain/billing"
	"github.com/posline/billing-engine/internal/domain/invoice"
	"github.com/posline/billing-engine/internal/domain/ledger"
)

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, &e)
}

// writeDomainError maps billing errors onto HTTP statuses. Computation-stage
// failures are 422 (the request was well-formed but cannot be fulfilled),
// commit contention is 409 and safe to retry, everything unrecognized is a
// logged 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr  *invoice.InvalidQuantityError
		pnfErr *invoice.ProductNotFoundError
		issErr *invoice.InsufficientStockError
		cErr   *ledger.ConflictError
	)

	switch {
	case errors.Is(err, invoice.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &iqErr):
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	case errors.As(err, &issErr):
		writeError(w, http.StatusUnprocessableEntity, issErr.Error())
	case errors.As(err, &cErr):
		writeError(w, http.StatusConflict, "commit contention, retry the request")
	case errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
