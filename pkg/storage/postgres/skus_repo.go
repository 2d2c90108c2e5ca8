package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetSKU fetches a single SKU by code.
func (db *Database) GetSKU(ctx context.Context, sku string) (*SKU, error) {
	query := `SELECT sku, style_code, size, created_at, updated_at FROM skus WHERE sku = $1`

	s := &SKU{}
	err := db.pool.QueryRow(ctx, query, sku).Scan(&s.SKU, &s.StyleCode, &s.Size, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("sku not found: %s", sku)
		}
		return nil, fmt.Errorf("failed to get sku %s: %w", sku, err)
	}
	return s, nil
}

// ListSKUs returns every SKU row ordered by SKU code.
func (db *Database) ListSKUs(ctx context.Context) ([]*SKU, error) {
	query := `SELECT sku, style_code, size, created_at, updated_at FROM skus ORDER BY sku`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}
	defer rows.Close()

	var result []*SKU
	for rows.Next() {
		s := &SKU{}
		if err := rows.Scan(&s.SKU, &s.StyleCode, &s.Size, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sku row: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// SKUStyleMap returns every SKU's owning style code keyed by SKU code, so
// a sale's SKU can be resolved to its style without a query per sale.
func (db *Database) SKUStyleMap(ctx context.Context) (map[string]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT sku, style_code FROM skus`)
	if err != nil {
		return nil, fmt.Errorf("failed to load sku style map: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var sku, styleCode string
		if err := rows.Scan(&sku, &styleCode); err != nil {
			return nil, fmt.Errorf("failed to scan sku style map row: %w", err)
		}
		m[sku] = styleCode
	}
	return m, rows.Err()
}

// SKUExists reports whether a SKU code is known master data — used by the
// Ingestion Pipeline's Sales loader to implement skip-only-missing-SKU
// semantics instead of all-or-nothing validation.
func (db *Database) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM skus WHERE sku = $1)`, sku).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check sku existence for %s: %w", sku, err)
	}
	return exists, nil
}

// CountSKUs returns the number of SKU rows currently loaded.
func (db *Database) CountSKUs(ctx context.Context) (int, error) {
	var count int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM skus`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count skus: %w", err)
	}
	return count, nil
}
