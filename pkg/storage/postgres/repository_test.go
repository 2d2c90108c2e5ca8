package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	defer clearTestData(ctx, db)

	task := &TaskRecord{ID: "task-1", Type: TaskTypeUpload, Category: "upload", Status: TaskStatusPending}
	require.NoError(t, db.CreateTask(ctx, task))

	require.NoError(t, db.MarkTaskRunning(ctx, "task-1"))
	got, err := db.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, TaskStatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)

	require.NoError(t, db.UpdateTaskProgress(ctx, "task-1", 42.5, "processing rows"))
	got, err = db.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, "processing rows", got.ProgressMsg)

	require.NoError(t, db.RequestTaskCancellation(ctx, "task-1"))
	cancelled, err := db.IsCancellationRequested(ctx, "task-1")
	require.NoError(t, err)
	require.True(t, cancelled)

	require.NoError(t, db.MarkTaskCompleted(ctx, "task-1", []byte(`{"rows":10}`)))
	got, err = db.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, TaskStatusCompleted, got.Status)
	require.Equal(t, float64(100), got.ProgressPct)
	require.NotNil(t, got.FinishedAt)
}

func TestTaskRecovery_ListByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	defer clearTestData(ctx, db)

	require.NoError(t, db.CreateTask(ctx, &TaskRecord{ID: "p1", Type: TaskTypeUpload, Category: "upload", Status: TaskStatusPending}))
	require.NoError(t, db.CreateTask(ctx, &TaskRecord{ID: "p2", Type: TaskTypeCompute, Category: "compute", Status: TaskStatusPending}))
	require.NoError(t, db.CreateTask(ctx, &TaskRecord{ID: "r1", Type: TaskTypeDownload, Category: "download", Status: TaskStatusPending}))
	require.NoError(t, db.MarkTaskRunning(ctx, "r1"))

	pending, err := db.ListTasksByStatus(ctx, TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	running, err := db.ListTasksByStatus(ctx, TaskStatusRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)

	active, err := db.CountActiveTasksByCategory(ctx, "upload")
	require.NoError(t, err)
	require.Equal(t, 1, active)
}

func TestNoosResults_DeleteThenReinsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	defer clearTestData(ctx, db)

	tx, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertNoosResult(ctx, &NoosResult{AlgorithmRunID: "run-1", StyleCode: "STY-001", Category: "Apparel", Type: "Core"}))
	require.NoError(t, tx.Commit(ctx))

	rerun, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, rerun.DeleteAllNoosResults(ctx))
	require.NoError(t, rerun.InsertNoosResult(ctx, &NoosResult{AlgorithmRunID: "run-2", StyleCode: "STY-001", Category: "Apparel", Type: "Bestseller"}))
	require.NoError(t, rerun.Commit(ctx))

	results, err := db.ListNoosResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Bestseller", results[0].Type)

	runID, err := db.LatestRunID(ctx)
	require.NoError(t, err)
	require.Equal(t, "run-2", runID)

	counts, err := db.ClassificationCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts["Bestseller"])
}
