package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetStyle fetches a single style by code.
func (db *Database) GetStyle(ctx context.Context, styleCode string) (*Style, error) {
	query := `
		SELECT style_code, brand, category, sub_category, mrp, gender, created_at, updated_at
		FROM styles WHERE style_code = $1`

	s := &Style{}
	err := db.pool.QueryRow(ctx, query, styleCode).Scan(
		&s.StyleCode, &s.Brand, &s.Category, &s.SubCategory, &s.MRP, &s.Gender, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("style not found: %s", styleCode)
		}
		return nil, fmt.Errorf("failed to get style %s: %w", styleCode, err)
	}
	return s, nil
}

// StyleExists reports whether a style code is known master data — used by
// the Ingestion Pipeline's SKU loader, which hard-fails on an unknown
// style.
func (db *Database) StyleExists(ctx context.Context, styleCode string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM styles WHERE style_code = $1)`, styleCode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check style existence for %s: %w", styleCode, err)
	}
	return exists, nil
}

// ListStyles returns every style row, ordered deterministically by style
// code so callers that need bit-identical output (the NOOS algorithm) get
// a stable iteration order for free.
func (db *Database) ListStyles(ctx context.Context) ([]*Style, error) {
	query := `
		SELECT style_code, brand, category, sub_category, mrp, gender, created_at, updated_at
		FROM styles ORDER BY style_code`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list styles: %w", err)
	}
	defer rows.Close()

	var result []*Style
	for rows.Next() {
		s := &Style{}
		if err := rows.Scan(&s.StyleCode, &s.Brand, &s.Category, &s.SubCategory, &s.MRP, &s.Gender, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan style row: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// CountStyles returns the number of style rows currently loaded.
func (db *Database) CountStyles(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM styles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count styles: %w", err)
	}
	return count, nil
}
