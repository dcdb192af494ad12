package invoice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posline/billing-engine/internal/domain/product"
	"github.com/posline/billing-engine/internal/domain/vault"
)

// --- Mock implementations ---

type mockCatalog struct {
	byID  map[string]product.Product
	calls int
	err   error
}

func (m *mockCatalog) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockVault struct {
	denoms []vault.Denomination
	calls  int
	err    error
}

func (m *mockVault) ListDescending(_ context.Context) ([]vault.Denomination, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.denoms, nil
}

// --- Helpers ---

func newTestProduct(id, name, price, taxPct string, stock int) product.Product {
	return product.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		TaxPct: decimal.RequireFromString(taxPct),
		Stock:  stock,
	}
}

func newCatalog(products ...product.Product) *mockCatalog {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockCatalog{byID: byID}
}

func newVault(denoms ...vault.Denomination) *mockVault {
	return &mockVault{denoms: denoms}
}

func eq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// --- Tests ---

func TestCompute_SingleLineWithTaxAndChange(t *testing.T) {
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "10.00", 5))
	drawer := newVault(denom("20.00", 1), denom("5.00", 10), denom("1.00", 100))
	c := NewComputer(catalog, drawer)

	comp, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 2}},
		decimal.RequireFromString("50.00"),
	)

	require.NoError(t, err)
	require.Len(t, comp.Lines, 1)
	eq(t, "2.00", comp.Lines[0].TaxAmount)
	eq(t, "22.00", comp.Lines[0].Subtotal)
	eq(t, "20.00", comp.TotalWithoutTax)
	eq(t, "2.00", comp.TotalTax)
	eq(t, "22.00", comp.TotalAmount)
	eq(t, "50.00", comp.PaidAmount)
	eq(t, "28.00", comp.ChangeAmount)
	assert.True(t, comp.ExactChangePossible)
	assert.Equal(t, Allocation{"20.00": 1, "5.00": 1, "1.00": 3}, comp.Given)
}

func TestCompute_HalfUpRounding(t *testing.T) {
	// 1.25 * 1 * 10% = 0.125, which must round up to 0.13 (never 0.12).
	catalog := newCatalog(newTestProduct("p1", "Widget", "1.25", "10.00", 5))
	c := NewComputer(catalog, newVault())

	comp, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 1}},
		decimal.RequireFromString("2.00"),
	)

	require.NoError(t, err)
	eq(t, "0.13", comp.Lines[0].TaxAmount)
	eq(t, "1.38", comp.Lines[0].Subtotal)
	eq(t, "1.38", comp.TotalAmount)
	eq(t, "0.62", comp.ChangeAmount)
}

func TestCompute_TotalsAddUp(t *testing.T) {
	catalog := newCatalog(
		newTestProduct("p1", "Widget", "3.33", "7.25", 10),
		newTestProduct("p2", "Gadget", "19.99", "21.00", 10),
		newTestProduct("p3", "Sprocket", "0.99", "0.00", 10),
	)
	c := NewComputer(catalog, newVault())

	comp, err := c.Compute(context.Background(),
		[]CartLine{
			{ProductID: "p1", Quantity: 3},
			{ProductID: "p2", Quantity: 2},
			{ProductID: "p3", Quantity: 7},
		},
		decimal.RequireFromString("100.00"),
	)

	require.NoError(t, err)
	assert.True(t, comp.TotalAmount.Equal(comp.TotalWithoutTax.Add(comp.TotalTax)))

	lineTax := decimal.Zero
	for _, l := range comp.Lines {
		lineTax = lineTax.Add(l.TaxAmount)
	}
	assert.True(t, comp.TotalTax.Equal(lineTax))
}

func TestCompute_ExactTenderZeroChange(t *testing.T) {
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "10.00", 5))
	drawer := newVault(denom("20.00", 1), denom("1.00", 50))
	c := NewComputer(catalog, drawer)

	comp, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 2}},
		decimal.RequireFromString("22.00"),
	)

	require.NoError(t, err)
	eq(t, "0.00", comp.ChangeAmount)
	assert.True(t, comp.ExactChangePossible)
	assert.Equal(t, Allocation{"20.00": 0, "1.00": 0}, comp.Given)
}

func TestCompute_UnderpaymentClampsChange(t *testing.T) {
	// Underpayment is not an error at this layer; rejecting it is caller policy.
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "0.00", 5))
	c := NewComputer(catalog, newVault(denom("1.00", 10)))

	comp, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 2}},
		decimal.RequireFromString("15.00"),
	)

	require.NoError(t, err)
	eq(t, "20.00", comp.TotalAmount)
	eq(t, "0.00", comp.ChangeAmount)
	assert.True(t, comp.ExactChangePossible)
}

func TestCompute_TenderedIsQuantized(t *testing.T) {
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "0.00", 5))
	c := NewComputer(catalog, newVault(denom("1.00", 10), denom("0.50", 10)))

	comp, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 1}},
		decimal.RequireFromString("11.499"),
	)

	require.NoError(t, err)
	eq(t, "11.50", comp.PaidAmount)
	eq(t, "1.50", comp.ChangeAmount)
}

func TestCompute_EmptyCart(t *testing.T) {
	c := NewComputer(newCatalog(), newVault())

	_, err := c.Compute(context.Background(), nil, decimal.Zero)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCompute_InvalidQuantity(t *testing.T) {
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "0.00", 5))
	c := NewComputer(catalog, newVault())

	_, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 0}},
		decimal.RequireFromString("10.00"),
	)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestCompute_ProductNotFound(t *testing.T) {
	c := NewComputer(newCatalog(), newVault())

	_, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "missing", Quantity: 1}},
		decimal.RequireFromString("10.00"),
	)

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestCompute_InsufficientStock(t *testing.T) {
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "0.00", 3))
	c := NewComputer(catalog, newVault())

	_, err := c.Compute(context.Background(),
		[]CartLine{{ProductID: "p1", Quantity: 5}},
		decimal.RequireFromString("100.00"),
	)

	var issErr *InsufficientStockError
	require.ErrorAs(t, err, &issErr)
	assert.Equal(t, "p1", issErr.ProductID)
	assert.Equal(t, 5, issErr.Requested)
	assert.Equal(t, 3, issErr.Available)
}

func TestCompute_ReadOnlyAndRepeatable(t *testing.T) {
	catalog := newCatalog(newTestProduct("p1", "Widget", "10.00", "10.00", 5))
	drawer := newVault(denom("20.00", 1), denom("5.00", 10), denom("1.00", 100))
	c := NewComputer(catalog, drawer)

	cart := []CartLine{{ProductID: "p1", Quantity: 2}}
	tendered := decimal.RequireFromString("50.00")

	first, err := c.Compute(context.Background(), cart, tendered)
	require.NoError(t, err)

	for range 10 {
		comp, err := c.Compute(context.Background(), cart, tendered)
		require.NoError(t, err)
		assert.Equal(t, first.Given, comp.Given)
		assert.True(t, first.TotalAmount.Equal(comp.TotalAmount))
	}

	// Snapshots are only read, never written: the mocks still hold the
	// original values after repeated computations.
	assert.Equal(t, 5, catalog.byID["p1"].Stock)
	assert.Equal(t, 1, drawer.denoms[0].Available)
	assert.Equal(t, 11, catalog.calls)
	assert.Equal(t, 11, drawer.calls)
}
