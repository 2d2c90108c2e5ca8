package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const paramsColumns = `
	id, name, is_active, liquidation_threshold, bestseller_multiplier,
	min_volume_threshold, consistency_threshold, analysis_start_date,
	analysis_end_date, core_duration_months, bestseller_duration_days,
	created_at, updated_at`

func scanParams(row pgx.Row) (*AlgorithmParameters, error) {
	p := &AlgorithmParameters{}
	err := row.Scan(
		&p.ID, &p.Name, &p.IsActive, &p.LiquidationThreshold, &p.BestsellerMultiplier,
		&p.MinVolumeThreshold, &p.ConsistencyThreshold, &p.AnalysisStartDate,
		&p.AnalysisEndDate, &p.CoreDurationMonths, &p.BestsellerDurationDays,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// GetActiveParameterSet returns the single active parameter set. The
// active-one invariant guarantees this returns exactly zero or
// one row.
func (db *Database) GetActiveParameterSet(ctx context.Context) (*AlgorithmParameters, error) {
	query := `SELECT` + paramsColumns + ` FROM algorithm_parameters WHERE is_active`
	p, err := scanParams(db.pool.QueryRow(ctx, query))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no active parameter set")
		}
		return nil, fmt.Errorf("failed to get active parameter set: %w", err)
	}
	return p, nil
}

// GetParameterSetByName fetches a named parameter set.
func (db *Database) GetParameterSetByName(ctx context.Context, name string) (*AlgorithmParameters, error) {
	query := `SELECT` + paramsColumns + ` FROM algorithm_parameters WHERE name = $1`
	p, err := scanParams(db.pool.QueryRow(ctx, query, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("parameter set not found: %s", name)
		}
		return nil, fmt.Errorf("failed to get parameter set %s: %w", name, err)
	}
	return p, nil
}

// GetParameterSet fetches a single parameter set by id.
func (db *Database) GetParameterSet(ctx context.Context, id int64) (*AlgorithmParameters, error) {
	query := `SELECT` + paramsColumns + ` FROM algorithm_parameters WHERE id = $1`
	p, err := scanParams(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("parameter set not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get parameter set %d: %w", id, err)
	}
	return p, nil
}

// ParameterSetNameExists reports whether a parameter set name is already
// taken, for create's CONFLICT check.
func (db *Database) ParameterSetNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM algorithm_parameters WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check parameter set name %s: %w", name, err)
	}
	return exists, nil
}

// ListRecentParameterSets returns parameter sets ordered by IsActive desc,
// then UpdatedAt desc, bounded by limit — the ordering the recent-sets
// listRecent requires.
func (db *Database) ListRecentParameterSets(ctx context.Context, limit int) ([]*AlgorithmParameters, error) {
	query := `SELECT` + paramsColumns + ` FROM algorithm_parameters ORDER BY is_active DESC, updated_at DESC LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent parameter sets: %w", err)
	}
	defer rows.Close()

	var result []*AlgorithmParameters
	for rows.Next() {
		p, err := scanParams(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parameter set row: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
