// Package ledger defines the single mutation point of the billing engine:
// the atomic commit that records an invoice while decrementing product stock
// and denomination counts.
package ledger

import (
	"context"
	"fmt"

	"github.com/posline/billing-engine/internal/domain/invoice"
)

// Writer applies a computation as one all-or-nothing unit:
//
//  1. insert the invoice row with totals and the full allocation map,
//  2. insert one line row per cart line with snapshotted product data,
//  3. decrement each product's stock, floored at zero,
//  4. decrement each denomination's count for every positive allocation
//     entry, floored at zero.
//
// Implementations must serialize commits touching the same product or
// denomination rows (no two commits may act on the same pre-decrement
// value), and must re-verify stock sufficiency inside the transaction, since
// the computation's read may be stale. On re-check failure they return
// *invoice.InsufficientStockError; on unresolved contention, *ConflictError.
// Either way nothing is written.
type Writer interface {
	Commit(ctx context.Context, customerEmail string, comp *invoice.Computation) (*invoice.Invoice, error)
}

// ConflictError reports commit-time contention that survived bounded
// retries. It is transient: the caller may recompute and retry the whole
// operation.
type ConflictError struct {
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("commit conflict after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }
