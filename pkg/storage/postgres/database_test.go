package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDatabase_RequiresConfig(t *testing.T) {
	_, err := NewDatabase(context.Background(), nil)
	require.Error(t, err)
}

func TestNewDatabase_RequiresConnectionString(t *testing.T) {
	_, err := NewDatabase(context.Background(), &Config{})
	require.Error(t, err)
}

func TestDatabaseLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.HealthCheck(ctx))

	stats := db.GetStats()
	require.Greater(t, stats.MaxConnections, 0)
}

func TestWithRetry_SucceedsImmediately(t *testing.T) {
	db := &Database{}
	calls := 0
	err := db.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetry_RespectsContextCancellation(t *testing.T) {
	db := &Database{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return &testRetryableError{}
	})
	require.Error(t, err)
}

type testRetryableError struct{}

func (e *testRetryableError) Error() string { return "deadlock detected" }

func TestIsRetryableError(t *testing.T) {
	require.True(t, isRetryableError(&testRetryableError{}))
	require.False(t, isRetryableError(nil))
}
