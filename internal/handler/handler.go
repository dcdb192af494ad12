// Package handler exposes the billing engine over a thin JSON surface.
// Routing, authentication, admin editing, and invoice rendering live in
// other services; this package only maps requests onto the billing service
// and domain errors onto status codes.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/posline/billing-engine/internal/domain/billing"
	"github.com/posline/billing-engine/internal/domain/product"
)

// Handler serves the caller-facing billing API.
type Handler struct {
	products product.Repository
	billing  *billing.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, svc *billing.Service) *Handler {
	return &Handler{
		products: products,
		billing:  svc,
	}
}

// Routes mounts all API routes on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.ListProducts)
	r.Post("/invoices", h.CreateInvoice)
	r.Post("/invoices/preview", h.PreviewInvoice)
	r.Get("/invoices/{invoiceID}", h.GetInvoice)
	return r
}
