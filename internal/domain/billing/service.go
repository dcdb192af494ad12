// Package billing ties the read path (invoice computation) to the write path
// (ledger commit) and the post-commit notification.
package billing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/posline/billing-engine/internal/domain/invoice"
	"github.com/posline/billing-engine/internal/domain/ledger"
)

// ErrInvoiceNotFound is returned when a requested invoice does not exist.
var ErrInvoiceNotFound = errors.New("invoice not found")

// Reader provides read access to committed invoices.
type Reader interface {
	GetByID(ctx context.Context, id string) (*invoice.Invoice, error)
}

// Dispatcher receives the committed invoice snapshot exactly once per
// successful commit. Implementations must not block the caller and must
// swallow their own failures: notification outcome never affects a commit.
type Dispatcher interface {
	Dispatch(inv invoice.Invoice)
}

// Service is the caller-facing surface of the billing engine.
type Service struct {
	computer   *invoice.Computer
	writer     ledger.Writer
	reader     Reader
	dispatcher Dispatcher
}

// NewService creates a Service with the required dependencies.
func NewService(computer *invoice.Computer, writer ledger.Writer, reader Reader, dispatcher Dispatcher) *Service {
	return &Service{
		computer:   computer,
		writer:     writer,
		reader:     reader,
		dispatcher: dispatcher,
	}
}

// Quote prices a cart without committing anything. Repeated calls are
// side-effect free.
func (s *Service) Quote(ctx context.Context, cart []invoice.CartLine, tendered decimal.Decimal) (*invoice.Computation, error) {
	return s.computer.Compute(ctx, cart, tendered)
}

// CreateInvoice computes the cart, commits the result atomically, and hands
// the committed snapshot to the dispatcher. Computation errors and commit
// errors are returned as-is; notification is fire-and-forget and cannot fail
// the call.
func (s *Service) CreateInvoice(ctx context.Context, customerEmail string, cart []invoice.CartLine, tendered decimal.Decimal) (*invoice.Invoice, error) {
	comp, err := s.computer.Compute(ctx, cart, tendered)
	if err != nil {
		return nil, err
	}

	inv, err := s.writer.Commit(ctx, customerEmail, comp)
	if err != nil {
		return nil, errors.Wrap(err, "commit invoice")
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(*inv)
	}

	return inv, nil
}

// GetInvoice returns a committed invoice by id.
func (s *Service) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.reader.GetByID(ctx, id)
}
