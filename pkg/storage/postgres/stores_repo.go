package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetStore fetches a single store by branch code.
func (db *Database) GetStore(ctx context.Context, branch string) (*Store, error) {
	query := `SELECT branch, city, created_at, updated_at FROM stores WHERE branch = $1`

	s := &Store{}
	err := db.pool.QueryRow(ctx, query, branch).Scan(&s.Branch, &s.City, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store not found: %s", branch)
		}
		return nil, fmt.Errorf("failed to get store %s: %w", branch, err)
	}
	return s, nil
}

// ListStores returns every store row ordered by branch.
func (db *Database) ListStores(ctx context.Context) ([]*Store, error) {
	query := `SELECT branch, city, created_at, updated_at FROM stores ORDER BY branch`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var result []*Store
	for rows.Next() {
		s := &Store{}
		if err := rows.Scan(&s.Branch, &s.City, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store row: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// StoreExists reports whether a branch code is known master data — used
// by the Ingestion Pipeline's Sales loader, which hard-fails on an
// unknown store (unlike the skip-only-missing-SKU semantics for SKUs).
func (db *Database) StoreExists(ctx context.Context, branch string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stores WHERE branch = $1)`, branch).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check store existence for %s: %w", branch, err)
	}
	return exists, nil
}

// CountStores returns the number of store rows currently loaded.
func (db *Database) CountStores(ctx context.Context) (int, error) {
	var count int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stores`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stores: %w", err)
	}
	return count, nil
}
