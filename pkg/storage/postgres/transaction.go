package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transaction groups every write that must be all-or-nothing: a master
// data clear-and-load, a Sales batch insert, a parameter-set activation
// swap, or a NOOS run's delete-then-reinsert.
type Transaction interface {
	ClearStyles(ctx context.Context) error
	InsertStyle(ctx context.Context, s *Style) error
	ClearStores(ctx context.Context) error
	InsertStore(ctx context.Context, s *Store) error
	ClearSKUs(ctx context.Context) error
	InsertSKU(ctx context.Context, s *SKU) error
	ClearSales(ctx context.Context) error
	InsertSalesRecord(ctx context.Context, r *SalesRecord) error

	DeactivateActiveParameterSet(ctx context.Context) error
	InsertParameterSet(ctx context.Context, p *AlgorithmParameters) error
	UpdateParameterSet(ctx context.Context, p *AlgorithmParameters) error
	ActivateParameterSet(ctx context.Context, id int64) error

	DeleteAllNoosResults(ctx context.Context) error
	InsertNoosResult(ctx context.Context, r *NoosResult) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// pgxTransaction implements Transaction over a live pgx.Tx.
type pgxTransaction struct {
	tx pgx.Tx
}

func (t *pgxTransaction) ClearStyles(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM styles`); err != nil {
		return fmt.Errorf("failed to clear styles: %w", err)
	}
	return nil
}

func (t *pgxTransaction) InsertStyle(ctx context.Context, s *Style) error {
	query := `
		INSERT INTO styles (style_code, brand, category, sub_category, mrp, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`
	_, err := t.tx.Exec(ctx, query, s.StyleCode, s.Brand, s.Category, s.SubCategory, s.MRP, s.Gender)
	if err != nil {
		return fmt.Errorf("failed to insert style %s: %w", s.StyleCode, err)
	}
	return nil
}

func (t *pgxTransaction) ClearStores(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM stores`); err != nil {
		return fmt.Errorf("failed to clear stores: %w", err)
	}
	return nil
}

func (t *pgxTransaction) InsertStore(ctx context.Context, s *Store) error {
	query := `
		INSERT INTO stores (branch, city, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())`
	_, err := t.tx.Exec(ctx, query, s.Branch, s.City)
	if err != nil {
		return fmt.Errorf("failed to insert store %s: %w", s.Branch, err)
	}
	return nil
}

func (t *pgxTransaction) ClearSKUs(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM skus`); err != nil {
		return fmt.Errorf("failed to clear skus: %w", err)
	}
	return nil
}

func (t *pgxTransaction) InsertSKU(ctx context.Context, s *SKU) error {
	query := `
		INSERT INTO skus (sku, style_code, size, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`
	_, err := t.tx.Exec(ctx, query, s.SKU, s.StyleCode, s.Size)
	if err != nil {
		return fmt.Errorf("failed to insert sku %s: %w", s.SKU, err)
	}
	return nil
}

// ClearSales truncates every sales row. Spec §4.2's dependency-clearing
// table always clears the whole Sales table first, regardless of which
// master file triggered the clear — there is no selective "only sales for
// these SKUs" variant, because a master reload invalidates the entire
// transactional history built against the prior master data.
func (t *pgxTransaction) ClearSales(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM sales_records`); err != nil {
		return fmt.Errorf("failed to clear sales: %w", err)
	}
	return nil
}

func (t *pgxTransaction) InsertSalesRecord(ctx context.Context, r *SalesRecord) error {
	query := `
		INSERT INTO sales_records (sale_date, sku, store_code, quantity, discount, revenue, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	_, err := t.tx.Exec(ctx, query, r.SaleDate, r.SKU, r.StoreCode, r.Quantity, r.Discount, r.Revenue)
	if err != nil {
		return fmt.Errorf("failed to insert sales record: %w", err)
	}
	return nil
}

// DeactivateActiveParameterSet clears the is_active flag on whichever
// single row currently carries it, regardless of name — the active-one
// invariant is global, not scoped to a parameter-set name.
func (t *pgxTransaction) DeactivateActiveParameterSet(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `UPDATE algorithm_parameters SET is_active = false, updated_at = NOW() WHERE is_active`)
	if err != nil {
		return fmt.Errorf("failed to deactivate active parameter set: %w", err)
	}
	return nil
}

func (t *pgxTransaction) InsertParameterSet(ctx context.Context, p *AlgorithmParameters) error {
	query := `
		INSERT INTO algorithm_parameters (
			name, is_active, liquidation_threshold, bestseller_multiplier,
			min_volume_threshold, consistency_threshold, analysis_start_date,
			analysis_end_date, core_duration_months, bestseller_duration_days,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id`
	return t.tx.QueryRow(ctx, query,
		p.Name, p.IsActive, p.LiquidationThreshold, p.BestsellerMultiplier,
		p.MinVolumeThreshold, p.ConsistencyThreshold, p.AnalysisStartDate,
		p.AnalysisEndDate, p.CoreDurationMonths, p.BestsellerDurationDays,
	).Scan(&p.ID)
}

// UpdateParameterSet rewrites a parameter set's fields in place without
// touching IsActive, backing both the active-set and named-set update
// paths. The caller decides which row to target; this call never
// toggles activity.
func (t *pgxTransaction) UpdateParameterSet(ctx context.Context, p *AlgorithmParameters) error {
	query := `
		UPDATE algorithm_parameters SET
			liquidation_threshold = $2, bestseller_multiplier = $3,
			min_volume_threshold = $4, consistency_threshold = $5,
			analysis_start_date = $6, analysis_end_date = $7,
			core_duration_months = $8, bestseller_duration_days = $9,
			updated_at = NOW()
		WHERE id = $1`
	result, err := t.tx.Exec(ctx, query,
		p.ID, p.LiquidationThreshold, p.BestsellerMultiplier,
		p.MinVolumeThreshold, p.ConsistencyThreshold, p.AnalysisStartDate,
		p.AnalysisEndDate, p.CoreDurationMonths, p.BestsellerDurationDays,
	)
	if err != nil {
		return fmt.Errorf("failed to update parameter set %d: %w", p.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("parameter set %d not found", p.ID)
	}
	return nil
}

// ActivateParameterSet marks a single parameter set active. Callers must
// have already deactivated the current active set inside the same
// transaction — the exactly-one-active invariant is a property of the
// whole transaction, not of this call alone.
func (t *pgxTransaction) ActivateParameterSet(ctx context.Context, id int64) error {
	result, err := t.tx.Exec(ctx, `UPDATE algorithm_parameters SET is_active = true, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to activate parameter set %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("parameter set %d not found", id)
	}
	return nil
}

// DeleteAllNoosResults clears every previous result row before a run
// reinserts, implementing the NOOS algorithm's "reports only the latest
// run" persistence semantics.
func (t *pgxTransaction) DeleteAllNoosResults(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM noos_results`); err != nil {
		return fmt.Errorf("failed to clear noos results: %w", err)
	}
	return nil
}

func (t *pgxTransaction) InsertNoosResult(ctx context.Context, r *NoosResult) error {
	query := `
		INSERT INTO noos_results (
			algorithm_run_id, style_code, category, type, style_ros,
			style_rev_contribution, total_quantity_sold, total_revenue,
			days_available, days_with_sales, avg_discount, calculated_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := t.tx.Exec(ctx, query,
		r.AlgorithmRunID, r.StyleCode, r.Category, r.Type, r.StyleROS,
		r.StyleRevContribution, r.TotalQuantitySold, r.TotalRevenue,
		r.DaysAvailable, r.DaysWithSales, r.AvgDiscount, r.CalculatedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert noos result for style %s: %w", r.StyleCode, err)
	}
	return nil
}

func (t *pgxTransaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *pgxTransaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
