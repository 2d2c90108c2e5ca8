// Package postgres is the Storage Adapter: the single component that talks
// to the relational store backing master data, sales, tasks, and parameter
// sets. Every other package reaches the database only through this one.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Config holds connection and migration settings for the Storage Adapter.
type Config struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
	MigrationsPath   string
}

// Database is the connection pool and entry point for every repository
// method in this package.
type Database struct {
	pool   *pgxpool.Pool
	config *Config
}

// NewDatabase opens a connection pool against the configured Postgres
// instance and verifies connectivity with a ping before returning.
func NewDatabase(ctx context.Context, config *Config) (*Database, error) {
	if config == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.MigrationsPath == "" {
		config.MigrationsPath = "file://migrations"
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = config.MaxConnections
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{pool: pool, config: config}, nil
}

// Close releases the connection pool.
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies database connectivity.
func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// MigrateToLatest applies all pending schema migrations from the
// configured migrations path. Called once at process startup, before any
// recovery or ingestion work begins.
func (db *Database) MigrateToLatest(ctx context.Context) error {
	migrationDB, err := sql.Open("postgres", db.config.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(db.config.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// GetPool returns the underlying connection pool for callers that need to
// compose their own statements.
func (db *Database) GetPool() *pgxpool.Pool {
	return db.pool
}

// Stats reports connection pool utilization.
type Stats struct {
	TotalConnections     int
	IdleConnections      int
	AcquiredConnections  int
	MaxConnections       int
	AcquireCount         int64
	AcquireDuration      time.Duration
	EmptyAcquireCount    int64
	CanceledAcquireCount int64
}

// GetStats returns current connection pool statistics.
func (db *Database) GetStats() *Stats {
	s := db.pool.Stat()
	return &Stats{
		TotalConnections:     int(s.TotalConns()),
		IdleConnections:      int(s.IdleConns()),
		AcquiredConnections:  int(s.AcquiredConns()),
		MaxConnections:       int(db.config.MaxConnections),
		AcquireCount:         s.AcquireCount(),
		AcquireDuration:      s.AcquireDuration(),
		EmptyAcquireCount:    s.EmptyAcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
	}
}

// HealthCheck confirms the pool has at least one live connection and can
// execute a trivial query.
func (db *Database) HealthCheck(ctx context.Context) error {
	stats := db.pool.Stat()
	if stats.TotalConns() == 0 {
		return fmt.Errorf("no database connections available")
	}

	var result int
	if err := db.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to execute health check query: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result: %d", result)
	}
	return nil
}

// BeginTransaction starts a read-committed transaction, the isolation
// level the ingestion clear-and-load and parameter-activation swaps both
// rely on.
func (db *Database) BeginTransaction(ctx context.Context) (Transaction, error) {
	return db.BeginTransactionWithIsolation(ctx, pgx.ReadCommitted)
}

// BeginTransactionWithIsolation starts a transaction at the given isolation
// level.
func (db *Database) BeginTransactionWithIsolation(ctx context.Context, isolation pgx.TxIsoLevel) (Transaction, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: isolation})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgxTransaction{tx: tx}, nil
}

// WithRetry re-runs fn on deadlock or serialization failures, with
// exponential backoff, up to three attempts total. The Parameter-Set
// Manager's activity-touching swaps go through this: two concurrent
// swaps contend on the same active row, and the loser's retry succeeds
// against the committed state. Ingestion deliberately does not use it —
// a conflicting concurrent upload is surfaced to the caller as a
// failure, never retried behind its back.
func (db *Database) WithRetry(ctx context.Context, fn func(context.Context) error) error {
	const maxRetries = 3
	const baseDelay = 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryableError(err) && attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "lock not available")
}
