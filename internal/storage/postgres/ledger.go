package postgres

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/posline/billing-engine/internal/domain/invoice"
	"github.com/posline/billing-engine/internal/domain/ledger"
)

const (
	// Product rows are locked in ascending id order so concurrent commits
	// acquire locks in the same sequence and cannot deadlock on each other.
	lockProductsSQL = `SELECT id, stock FROM products
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	decrementStockSQL = `UPDATE products
		SET stock = GREATEST(0, stock - $2) WHERE id = $1`

	decrementDenominationSQL = `UPDATE denominations
		SET count_available = GREATEST(0, count_available - $2) WHERE value = $1`

	insertInvoiceSQL = `INSERT INTO invoices
		(id, customer_email, created_at, total_without_tax, total_tax,
		 total_amount, paid_amount, change_amount, denominations_given, exact_change)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertLineSQL = `INSERT INTO invoice_lines
		(invoice_id, position, product_id, name, price, tax_amount, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

const defaultMaxAttempts = 3

var _ ledger.Writer = (*LedgerWriter)(nil)

// LedgerWriter implements ledger.Writer on a single PostgreSQL transaction
// with pessimistic row locks and a bounded retry loop for transient
// serialization and deadlock failures.
type LedgerWriter struct {
	pool        *pgxpool.Pool
	maxAttempts int
	now         func() time.Time
}

// NewLedgerWriter returns a LedgerWriter that uses the given pool.
func NewLedgerWriter(pool *pgxpool.Pool) *LedgerWriter {
	return &LedgerWriter{
		pool:        pool,
		maxAttempts: defaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Commit applies the computation atomically. On SQLSTATE 40001 or 40P01 the
// transaction is retried with jittered backoff; exhaustion maps to
// *ledger.ConflictError. A failed commit leaves catalog, vault, and invoice
// storage untouched.
func (w *LedgerWriter) Commit(ctx context.Context, customerEmail string, comp *invoice.Computation) (*invoice.Invoice, error) {
	ctx, span := tracer.Start(ctx, "LedgerWriter.Commit",
		trace.WithAttributes(attribute.Int("invoice.lines", len(comp.Lines))))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		inv, err := w.commitOnce(ctx, customerEmail, comp)
		if err == nil {
			span.SetAttributes(attribute.Int("commit.attempts", attempt))
			commitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
			return inv, nil
		}
		if !isTransient(err) {
			span.SetStatus(codes.Error, err.Error())
			commitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
			return nil, err
		}
		lastErr = err
		conflictCounter.Add(ctx, 1)
		if attempt < w.maxAttempts {
			sleep(ctx, backoff(attempt))
		}
	}
	span.SetStatus(codes.Error, "commit attempts exhausted")
	commitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "conflict")))
	return nil, &ledger.ConflictError{Attempts: w.maxAttempts, Err: lastErr}
}

func (w *LedgerWriter) commitOnce(ctx context.Context, customerEmail string, comp *invoice.Computation) (*invoice.Invoice, error) {
	tx, err := w.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := w.decrementStock(ctx, tx, comp.Lines); err != nil {
		return nil, err
	}
	if err := w.decrementDenominations(ctx, tx, comp.Given); err != nil {
		return nil, err
	}

	inv, err := w.insertInvoice(ctx, tx, customerEmail, comp)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return inv, nil
}

// decrementStock locks every referenced product row, re-verifies stock
// sufficiency under the lock (the computation's read may be stale), and
// applies the decrements.
func (w *LedgerWriter) decrementStock(ctx context.Context, tx pgx.Tx, lines []invoice.Line) error {
	// Aggregate quantities: a cart may reference the same product on
	// multiple lines, but each row is locked and checked once.
	qtyByProduct := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, seen := qtyByProduct[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		qtyByProduct[line.ProductID] += line.Quantity
	}
	sort.Strings(ids)

	rows, err := tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "lock products")
	}

	type lockedRow struct {
		ID    string
		Stock int
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lockedRow, error) {
		var lr lockedRow
		err := row.Scan(&lr.ID, &lr.Stock)
		return lr, err
	})
	if err != nil {
		return errors.Wrap(err, "lock products")
	}

	stockByProduct := make(map[string]int, len(locked))
	for _, lr := range locked {
		stockByProduct[lr.ID] = lr.Stock
	}

	for _, id := range ids {
		stock, ok := stockByProduct[id]
		if !ok {
			return &invoice.ProductNotFoundError{ProductID: id}
		}
		if stock < qtyByProduct[id] {
			return &invoice.InsufficientStockError{
				ProductID: id,
				Requested: qtyByProduct[id],
				Available: stock,
			}
		}
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, decrementStockSQL, id, qtyByProduct[id]); err != nil {
			return errors.Wrapf(err, "decrement stock for %s", id)
		}
	}
	return nil
}

// decrementDenominations applies every positive allocation entry, walking
// face values in descending order so concurrent commits lock denomination
// rows in the same sequence.
func (w *LedgerWriter) decrementDenominations(ctx context.Context, tx pgx.Tx, given invoice.Allocation) error {
	type entry struct {
		value decimal.Decimal
		count int
	}
	entries := make([]entry, 0, len(given))
	for key, count := range given {
		if count <= 0 {
			continue
		}
		value, err := decimal.NewFromString(key)
		if err != nil {
			return errors.Wrapf(err, "bad allocation key %q", key)
		}
		entries = append(entries, entry{value: value, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].value.GreaterThan(entries[j].value)
	})

	for _, e := range entries {
		if _, err := tx.Exec(ctx, decrementDenominationSQL, e.value, e.count); err != nil {
			return errors.Wrapf(err, "decrement denomination %s", e.value.StringFixed(2))
		}
	}
	return nil
}

func (w *LedgerWriter) insertInvoice(ctx context.Context, tx pgx.Tx, customerEmail string, comp *invoice.Computation) (*invoice.Invoice, error) {
	givenJSON, err := json.Marshal(comp.Given)
	if err != nil {
		return nil, errors.Wrap(err, "marshal allocation")
	}

	inv := &invoice.Invoice{
		ID:              uuid.New().String(),
		CustomerEmail:   customerEmail,
		CreatedAt:       w.now(),
		TotalWithoutTax: comp.TotalWithoutTax,
		TotalTax:        comp.TotalTax,
		TotalAmount:     comp.TotalAmount,
		PaidAmount:      comp.PaidAmount,
		ChangeAmount:    comp.ChangeAmount,
		Given:           comp.Given,
		ExactChange:     comp.ExactChangePossible,
		Lines:           comp.Lines,
	}

	_, err = tx.Exec(ctx, insertInvoiceSQL,
		inv.ID, inv.CustomerEmail, inv.CreatedAt,
		inv.TotalWithoutTax, inv.TotalTax, inv.TotalAmount,
		inv.PaidAmount, inv.ChangeAmount, givenJSON, inv.ExactChange,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "insert invoice %s", inv.ID)
	}

	for i, line := range inv.Lines {
		_, err := tx.Exec(ctx, insertLineSQL,
			inv.ID, i, line.ProductID, line.Name,
			line.Price, line.TaxAmount, line.Quantity, line.Subtotal,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "insert invoice line %d", i)
		}
	}

	return inv, nil
}

// isTransient reports whether err is a serialization failure (40001) or
// deadlock (40P01), both safe to retry on a fresh transaction.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func backoff(attempt int) time.Duration {
	base := time.Duration(attempt) * 25 * time.Millisecond
	return base + rand.N(25*time.Millisecond)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
