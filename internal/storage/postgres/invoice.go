package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/posline/billing-engine/internal/domain/billing"
	"github.com/posline/billing-engine/internal/domain/invoice"
)

const (
	getInvoiceSQL = `SELECT id, customer_email, created_at, total_without_tax,
		total_tax, total_amount, paid_amount, change_amount,
		denominations_given, exact_change
		FROM invoices WHERE id = $1`

	getInvoiceLinesSQL = `SELECT product_id, name, price, tax_amount, quantity, subtotal
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`
)

var _ billing.Reader = (*InvoiceRepository)(nil)

// InvoiceRepository provides read access to committed invoices. Invoices are
// append-only: there is deliberately no update or delete here.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// GetByID returns a committed invoice with its lines.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	rows, err := r.pool.Query(ctx, getInvoiceSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice %q: %w", id, err)
	}

	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("getting invoice %q: %w", id, err)
	}

	lineRows, err := r.pool.Query(ctx, getInvoiceLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice lines %q: %w", id, err)
	}
	inv.Lines, err = pgx.CollectRows(lineRows, scanLine)
	if err != nil {
		return nil, fmt.Errorf("getting invoice lines %q: %w", id, err)
	}

	return &inv, nil
}

func scanInvoice(row pgx.CollectableRow) (invoice.Invoice, error) {
	var (
		inv       invoice.Invoice
		givenJSON []byte
	)
	err := row.Scan(
		&inv.ID, &inv.CustomerEmail, &inv.CreatedAt,
		&inv.TotalWithoutTax, &inv.TotalTax, &inv.TotalAmount,
		&inv.PaidAmount, &inv.ChangeAmount, &givenJSON, &inv.ExactChange,
	)
	if err != nil {
		return inv, err
	}
	if err := json.Unmarshal(givenJSON, &inv.Given); err != nil {
		return inv, fmt.Errorf("decoding allocation map: %w", err)
	}
	return inv, nil
}

func scanLine(row pgx.CollectableRow) (invoice.Line, error) {
	var l invoice.Line
	err := row.Scan(&l.ProductID, &l.Name, &l.Price, &l.TaxAmount, &l.Quantity, &l.Subtotal)
	return l, err
}
