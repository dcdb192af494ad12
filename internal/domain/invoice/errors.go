package invoice

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrEmptyCart is returned when a computation is requested for no lines.
var ErrEmptyCart = errors.New("cart lines required")

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s, got %d", e.ProductID, e.Quantity)
}

// ProductNotFoundError indicates a cart line referencing an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError indicates the catalog cannot cover a requested
// quantity. It is raised both by the computation pre-check and by the ledger
// writer's commit-time re-verification.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
