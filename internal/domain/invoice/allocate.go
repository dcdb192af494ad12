package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/posline/billing-engine/internal/domain/money"
	"github.com/posline/billing-engine/internal/domain/vault"
)

// Allocate performs the greedy change allocation: walk the vault strictly
// descending by face value, at each step handing out as many units as both
// the remaining change and the drawer allow. The division is exact integer
// cent math, never floating point.
//
// Every denomination in denoms gets an entry in the result, zero included.
// The second return value is false when the pass could not reach exactly
// zero remaining. The greedy heuristic is deliberately not an optimal
// solver: with non-canonical denomination sets it can fail where a
// combination using smaller values would succeed. That failure mode is part
// of the contract; callers wanting optimality must layer their own strategy
// over the same vault snapshot.
func Allocate(denoms []vault.Denomination, change decimal.Decimal) (Allocation, bool) {
	given := make(Allocation, len(denoms))
	remaining := money.Cents(change)

	for _, d := range denoms {
		val := money.Cents(d.Value)
		if remaining <= 0 || val <= 0 {
			// The schema forbids non-positive face values, but a corrupt
			// snapshot must not divide by zero here.
			given[Key(d.Value)] = 0
			continue
		}

		want := int(remaining / val)
		give := min(want, d.Available)
		given[Key(d.Value)] = give
		remaining -= int64(give) * val
	}

	return given, remaining == 0
}

// Value sums the cash value of an allocation over the given vault snapshot,
// in cents. Used by tests and audit tooling to check the allocation never
// exceeds the change amount.
func (a Allocation) Value(denoms []vault.Denomination) int64 {
	var total int64
	for _, d := range denoms {
		total += int64(a[Key(d.Value)]) * money.Cents(d.Value)
	}
	return total
}
