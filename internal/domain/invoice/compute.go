package invoice

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/posline/billing-engine/internal/domain/money"
	"github.com/posline/billing-engine/internal/domain/product"
	"github.com/posline/billing-engine/internal/domain/vault"
)

var hundred = decimal.NewFromInt(100)

// Computer prices carts against catalog and vault snapshots. It is a pure
// read path: Compute never mutates anything and may run with arbitrary
// concurrency.
type Computer struct {
	products product.Repository
	vault    vault.Repository
}

// NewComputer creates a Computer with the required read dependencies.
func NewComputer(products product.Repository, v vault.Repository) *Computer {
	return &Computer{
		products: products,
		vault:    v,
	}
}

// Compute validates the cart, prices each line, aggregates totals, and
// allocates change from the vault snapshot.
//
// Per line: quantity must be positive, the product must exist, and stock
// must cover the quantity (a pre-check; the ledger writer re-verifies under
// its transaction). Tax is price*qty*taxPct/100 rounded half-up to the cent,
// subtotal is price*qty plus tax, rounded the same way.
//
// The tendered amount is quantized before use. Underpayment is not an error
// here: change clamps to zero and policy is left to the caller.
func (c *Computer) Compute(ctx context.Context, cart []CartLine, tendered decimal.Decimal) (*Computation, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(cart))
	for i, line := range cart {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		ids[i] = line.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := c.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(cart))
	totalWithoutTax := decimal.Zero
	totalTax := decimal.Zero

	for _, cl := range cart {
		p, ok := byID[cl.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: cl.ProductID}
		}
		if p.Stock < cl.Quantity {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Requested: cl.Quantity,
				Available: p.Stock,
			}
		}

		qty := decimal.NewFromInt(int64(cl.Quantity))
		gross := p.Price.Mul(qty)
		taxAmount := money.Quantize(gross.Mul(p.TaxPct).Div(hundred))
		subtotal := money.Quantize(gross.Add(taxAmount))

		lines = append(lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     money.Quantize(p.Price),
			TaxAmount: taxAmount,
			Quantity:  cl.Quantity,
			Subtotal:  subtotal,
		})

		totalWithoutTax = totalWithoutTax.Add(money.Quantize(gross))
		totalTax = totalTax.Add(taxAmount)
	}

	totalWithoutTax = money.Quantize(totalWithoutTax)
	totalTax = money.Quantize(totalTax)
	totalAmount := money.Quantize(totalWithoutTax.Add(totalTax))

	paid := money.Quantize(tendered)
	change := money.Quantize(paid.Sub(totalAmount))
	if change.IsNegative() {
		change = decimal.Zero.Round(2)
	}

	denoms, err := c.vault.ListDescending(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list denominations")
	}

	given, exact := Allocate(denoms, change)

	return &Computation{
		Lines:               lines,
		TotalWithoutTax:     totalWithoutTax,
		TotalTax:            totalTax,
		TotalAmount:         totalAmount,
		PaidAmount:          paid,
		ChangeAmount:        change,
		Given:               given,
		ExactChangePossible: exact,
	}, nil
}
