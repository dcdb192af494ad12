package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/posline/billing-engine/internal/domain/vault"
)

const listDenominationsSQL = `SELECT value, count_available
	FROM denominations ORDER BY value DESC`

var _ vault.Repository = (*VaultRepository)(nil)

// VaultRepository implements vault.Repository backed by PostgreSQL.
type VaultRepository struct {
	pool *pgxpool.Pool
}

// NewVaultRepository returns a VaultRepository that uses the given pool.
func NewVaultRepository(pool *pgxpool.Pool) *VaultRepository {
	return &VaultRepository{pool: pool}
}

// ListDescending returns all denominations strictly descending by face
// value. The ordering is enforced, not assumed: face value is the primary
// key, so the query order is total, and the result is verified before it is
// handed to the allocator.
func (r *VaultRepository) ListDescending(ctx context.Context) ([]vault.Denomination, error) {
	rows, err := r.pool.Query(ctx, listDenominationsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing denominations: %w", err)
	}

	ds, err := pgx.CollectRows(rows, scanDenomination)
	if err != nil {
		return nil, fmt.Errorf("listing denominations: %w", err)
	}
	if !vault.SortedDescending(ds) {
		return nil, errors.New("denomination listing violated descending order")
	}
	return ds, nil
}

func scanDenomination(row pgx.CollectableRow) (vault.Denomination, error) {
	var d vault.Denomination
	err := row.Scan(&d.Value, &d.Available)
	return d, err
}
