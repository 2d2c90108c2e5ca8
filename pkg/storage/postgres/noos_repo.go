package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ListNoosResults returns every currently stored result row, ordered by
// style code — the stable ordering the algorithm's determinism
// guarantee demands, not merely "some" order. Only the latest run's
// rows exist at any time (stage 7 clears before reinserting), so no
// run filter is needed.
func (db *Database) ListNoosResults(ctx context.Context) ([]*NoosResult, error) {
	query := `
		SELECT id, algorithm_run_id, style_code, category, type, style_ros,
			   style_rev_contribution, total_quantity_sold, total_revenue,
			   days_available, days_with_sales, avg_discount, calculated_date
		FROM noos_results ORDER BY style_code`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list noos results: %w", err)
	}
	defer rows.Close()

	var result []*NoosResult
	for rows.Next() {
		r := &NoosResult{}
		if err := rows.Scan(
			&r.ID, &r.AlgorithmRunID, &r.StyleCode, &r.Category, &r.Type, &r.StyleROS,
			&r.StyleRevContribution, &r.TotalQuantitySold, &r.TotalRevenue,
			&r.DaysAvailable, &r.DaysWithSales, &r.AvgDiscount, &r.CalculatedDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan noos result row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LatestRunID returns the algorithm run ID backing the currently stored
// results, or an empty string if no run has ever completed.
func (db *Database) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := db.pool.QueryRow(ctx, `SELECT algorithm_run_id FROM noos_results LIMIT 1`).Scan(&runID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get latest run id: %w", err)
	}
	return runID, nil
}

// ClassificationCounts returns how many styles fell into each of the
// three classification buckets, keyed by type. report1 falls back to
// this when the latest run's task record carries no usable result
// payload.
func (db *Database) ClassificationCounts(ctx context.Context) (map[string]int, error) {
	query := `SELECT type, COUNT(*) FROM noos_results GROUP BY type`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate classification counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var classification string
		var count int
		if err := rows.Scan(&classification, &count); err != nil {
			return nil, fmt.Errorf("failed to scan classification count row: %w", err)
		}
		counts[classification] = count
	}
	return counts, rows.Err()
}
