package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestContainer starts a disposable Postgres container for a single
// test run.
func setupTestContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("noosengine_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	return container, connStr
}

// setupTestDatabase opens a connection against the test container and
// creates the schema directly (tests don't exercise the migration runner;
// MigrateToLatest is covered separately against the real migrations/ dir).
func setupTestDatabase(ctx context.Context, connStr string) (*Database, error) {
	config := &Config{
		ConnectionString: connStr,
		MaxConnections:   5,
		ConnectTimeout:   30 * time.Second,
	}

	db, err := NewDatabase(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := createTestSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	return db, nil
}

func createTestSchema(ctx context.Context, db *Database) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS styles (
			style_code VARCHAR(50) PRIMARY KEY,
			brand VARCHAR(50) NOT NULL,
			category VARCHAR(50) NOT NULL,
			sub_category VARCHAR(50) NOT NULL,
			mrp NUMERIC(12,2) NOT NULL,
			gender VARCHAR(10) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS stores (
			branch VARCHAR(50) PRIMARY KEY,
			city VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS skus (
			sku VARCHAR(50) PRIMARY KEY,
			style_code VARCHAR(50) NOT NULL REFERENCES styles(style_code),
			size VARCHAR(10) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sales_records (
			id BIGSERIAL PRIMARY KEY,
			sale_date DATE NOT NULL,
			sku VARCHAR(50) NOT NULL REFERENCES skus(sku),
			store_code VARCHAR(50) NOT NULL REFERENCES stores(branch),
			quantity INTEGER NOT NULL,
			discount NUMERIC(14,2) NOT NULL DEFAULT 0,
			revenue NUMERIC(14,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id VARCHAR(64) PRIMARY KEY,
			type VARCHAR(32) NOT NULL,
			category VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			file_name TEXT NOT NULL DEFAULT '',
			progress_pct NUMERIC(5,2) NOT NULL DEFAULT 0,
			progress_message TEXT NOT NULL DEFAULT '',
			payload BYTEA,
			result BYTEA,
			error_kind VARCHAR(32) NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			cancel_requested BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS algorithm_parameters (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(128) NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT false,
			liquidation_threshold NUMERIC(5,4) NOT NULL,
			bestseller_multiplier NUMERIC(6,4) NOT NULL,
			min_volume_threshold NUMERIC(14,2) NOT NULL,
			consistency_threshold NUMERIC(5,4) NOT NULL,
			analysis_start_date DATE,
			analysis_end_date DATE,
			core_duration_months INTEGER NOT NULL,
			bestseller_duration_days INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_parameter_set ON algorithm_parameters(is_active) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS noos_results (
			id BIGSERIAL PRIMARY KEY,
			algorithm_run_id VARCHAR(64) NOT NULL,
			style_code VARCHAR(50) NOT NULL,
			category VARCHAR(50) NOT NULL,
			type VARCHAR(16) NOT NULL,
			style_ros NUMERIC(14,4) NOT NULL,
			style_rev_contribution NUMERIC(6,2) NOT NULL,
			total_quantity_sold INTEGER NOT NULL,
			total_revenue NUMERIC(14,2) NOT NULL,
			days_available INTEGER NOT NULL,
			days_with_sales INTEGER NOT NULL,
			avg_discount NUMERIC(14,2) NOT NULL,
			calculated_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func clearTestData(ctx context.Context, db *Database) error {
	tables := []string{
		"noos_results", "algorithm_parameters", "tasks",
		"sales_records", "skus", "stores", "styles",
	}
	for _, table := range tables {
		if _, err := db.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}
