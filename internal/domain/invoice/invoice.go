// Package invoice implements the billing computation: pricing and tax per
// cart line, aggregate totals, change determination, and the greedy
// availability-constrained allocation of change across vault denominations.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a single entry of the caller's cart.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Line is a priced invoice line. Name, price and tax are snapshots taken at
// computation time and persisted verbatim: later catalog edits must not
// retroactively alter a recorded invoice.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	TaxAmount decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Allocation maps a denomination face value (fixed 2-decimal string, e.g.
// "20.00") to the count handed out as change. Every denomination known to
// the vault appears, including zero-count entries, so the record is a
// complete audit of the drawer at commit time.
type Allocation map[string]int

// Key renders a face value in the canonical Allocation key form.
func Key(value decimal.Decimal) string {
	return value.StringFixed(2)
}

// Computation is the pure result of pricing a cart against catalog and vault
// snapshots. It performs no mutation; the ledger writer applies it.
type Computation struct {
	Lines           []Line
	TotalWithoutTax decimal.Decimal
	TotalTax        decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	ChangeAmount    decimal.Decimal

	// Given is the greedy change allocation over the vault snapshot.
	Given Allocation
	// ExactChangePossible is false when the greedy pass left a remainder.
	// That is a valid result, not an error: the caller decides whether to
	// reject the sale or proceed anyway.
	ExactChangePossible bool
}

// Invoice is a committed, immutable billing record.
type Invoice struct {
	ID            string
	CustomerEmail string
	CreatedAt     time.Time

	TotalWithoutTax decimal.Decimal
	TotalTax        decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	ChangeAmount    decimal.Decimal

	Given       Allocation
	ExactChange bool
	Lines       []Line
}
