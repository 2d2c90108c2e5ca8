package postgres

import (
	"context"
	"fmt"
	"time"
)

// SalesInDateRange returns every sales row whose sale date falls within
// [from, to], the first stage of the NOOS algorithm's seven-stage
// pipeline.
func (db *Database) SalesInDateRange(ctx context.Context, from, to time.Time) ([]*SalesRecord, error) {
	query := `
		SELECT id, sale_date, sku, store_code, quantity, discount, revenue, created_at
		FROM sales_records
		WHERE sale_date >= $1 AND sale_date <= $2
		ORDER BY sale_date, sku, store_code`

	rows, err := db.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales in range: %w", err)
	}
	defer rows.Close()
	return scanSalesRows(rows)
}

// AllSales returns every sales row — used when the NOOS algorithm's
// analysis window has a null start or end date, meaning "// either date is null, select all sales").
func (db *Database) AllSales(ctx context.Context) ([]*SalesRecord, error) {
	query := `SELECT id, sale_date, sku, store_code, quantity, discount, revenue, created_at FROM sales_records ORDER BY sale_date, sku, store_code`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all sales: %w", err)
	}
	defer rows.Close()
	return scanSalesRows(rows)
}

func scanSalesRows(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*SalesRecord, error) {
	var result []*SalesRecord
	for rows.Next() {
		r := &SalesRecord{}
		if err := rows.Scan(&r.ID, &r.SaleDate, &r.SKU, &r.StoreCode, &r.Quantity, &r.Discount, &r.Revenue, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sales row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// CountSalesRecords returns the number of sales rows currently loaded.
func (db *Database) CountSalesRecords(ctx context.Context) (int, error) {
	var count int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sales records: %w", err)
	}
	return count, nil
}

// RecentUploadCount reports how many upload tasks created at or after since
// completed successfully — backing the dashboard
// tile recentUploads.
func (db *Database) RecentUploadCount(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE category = 'upload' AND status = $1 AND created_at >= $2`
	var count int
	if err := db.pool.QueryRow(ctx, query, TaskStatusCompleted, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent uploads: %w", err)
	}
	return count, nil
}
