// Package vault models the physical cash drawer: the set of note and coin
// denominations and how many of each are currently available.
package vault

import (
	"context"

	"github.com/shopspring/decimal"
)

// Denomination is a single face value held in the vault.
type Denomination struct {
	// Value is the face value, unique across the vault (2 decimal places).
	Value decimal.Decimal
	// Available is the number of physical units on hand.
	Available int
}

// Repository defines read access to the vault. ListDescending MUST return
// denominations strictly descending by face value with no duplicates: the
// change allocator depends on this ordering. Counts are mutated only by the
// ledger writer.
type Repository interface {
	ListDescending(ctx context.Context) ([]Denomination, error)
}

// SortedDescending reports whether ds is strictly descending by value.
// Repositories use it to enforce the listing contract instead of relying on
// an incidental query order.
func SortedDescending(ds []Denomination) bool {
	for i := 1; i < len(ds); i++ {
		if ds[i].Value.GreaterThanOrEqual(ds[i-1].Value) {
			return false
		}
	}
	return true
}
