package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreateTask persists a new task in PENDING state.
func (db *Database) CreateTask(ctx context.Context, t *TaskRecord) error {
	query := `
		INSERT INTO tasks (id, type, category, status, progress_pct, progress_message, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`
	_, err := db.pool.Exec(ctx, query, t.ID, t.Type, t.Category, t.Status, t.ProgressPct, t.ProgressMsg, t.Payload)
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask fetches a single task by ID.
func (db *Database) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	query := `
		SELECT id, type, category, status, progress_pct, progress_message, payload, result,
			   error_kind, error_message, cancel_requested, created_at, updated_at, started_at, finished_at
		FROM tasks WHERE id = $1`

	t := &TaskRecord{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Type, &t.Category, &t.Status, &t.ProgressPct, &t.ProgressMsg, &t.Payload, &t.Result,
		&t.ErrorKind, &t.ErrorMessage, &t.CancelRequested, &t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.FinishedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("task not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return t, nil
}

// UpdateTaskProgress records an incremental progress update. Callers are
// expected to have already clamped/coalesced the update; this is a plain
// write.
func (db *Database) UpdateTaskProgress(ctx context.Context, id string, pct float64, message string) error {
	query := `UPDATE tasks SET progress_pct = $2, progress_message = $3, updated_at = NOW() WHERE id = $1`
	result, err := db.pool.Exec(ctx, query, id, pct, message)
	if err != nil {
		return fmt.Errorf("failed to update progress for task %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// MarkTaskRunning transitions a task to RUNNING and stamps its start time.
func (db *Database) MarkTaskRunning(ctx context.Context, id string) error {
	query := `UPDATE tasks SET status = $2, started_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task %s running: %w", id, err)
	}
	return nil
}

// MarkTaskCompleted transitions a task to COMPLETED, storing its result
// payload and stamping its finish time.
func (db *Database) MarkTaskCompleted(ctx context.Context, id string, result []byte) error {
	query := `
		UPDATE tasks SET status = $2, result = $3, progress_pct = 100, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, TaskStatusCompleted, result)
	if err != nil {
		return fmt.Errorf("failed to mark task %s completed: %w", id, err)
	}
	return nil
}

// MarkTaskFailed transitions a task to FAILED or CANCELLED, storing the
// terminal error kind (which may be INTERRUPTED, TIMEOUT, or any other
// tasks.Kind) and message.
func (db *Database) MarkTaskFailed(ctx context.Context, id string, status TaskStatus, errKind, errMessage string) error {
	return db.MarkTaskFailedWithResult(ctx, id, status, errKind, errMessage, nil)
}

// MarkTaskFailedWithResult is MarkTaskFailed plus an optional diagnostic
// result payload (e.g. a partially-built ingestion.Result with its row
// errors) a handler wants preserved even though the task did not
// complete — the failed-batch case still has detail worth returning to
// the caller beyond the one-line errMessage.
func (db *Database) MarkTaskFailedWithResult(ctx context.Context, id string, status TaskStatus, errKind, errMessage string, result []byte) error {
	query := `
		UPDATE tasks SET status = $2, error_kind = $3, error_message = $4, result = $5, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, status, errKind, errMessage, result)
	if err != nil {
		return fmt.Errorf("failed to mark task %s as %s: %w", id, status, err)
	}
	return nil
}

// RequestTaskCancellation flags a task for cooperative cancellation. The
// worker executing it observes the flag at its own checkpoints; this call
// does not itself stop anything.
func (db *Database) RequestTaskCancellation(ctx context.Context, id string) error {
	query := `UPDATE tasks SET cancel_requested = true, updated_at = NOW() WHERE id = $1`
	result, err := db.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to request cancellation for task %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// IsCancellationRequested reports whether a cancellation flag has been set
// for a task, for a worker's cooperative-cancellation checkpoint.
func (db *Database) IsCancellationRequested(ctx context.Context, id string) (bool, error) {
	var requested bool
	err := db.pool.QueryRow(ctx, `SELECT cancel_requested FROM tasks WHERE id = $1`, id).Scan(&requested)
	if err != nil {
		return false, fmt.Errorf("failed to check cancellation flag for task %s: %w", id, err)
	}
	return requested, nil
}

// ListTasksByStatus returns tasks in the given status, oldest first —
// used both by recovery-on-startup (PENDING, RUNNING) and by status
// dashboards.
func (db *Database) ListTasksByStatus(ctx context.Context, status TaskStatus) ([]*TaskRecord, error) {
	query := `
		SELECT id, type, category, status, progress_pct, progress_message, payload, result,
			   error_kind, error_message, cancel_requested, created_at, updated_at, started_at, finished_at
		FROM tasks WHERE status = $1 ORDER BY created_at`

	rows, err := db.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks with status %s: %w", status, err)
	}
	defer rows.Close()

	var result []*TaskRecord
	for rows.Next() {
		t := &TaskRecord{}
		if err := rows.Scan(
			&t.ID, &t.Type, &t.Category, &t.Status, &t.ProgressPct, &t.ProgressMsg, &t.Payload, &t.Result,
			&t.ErrorKind, &t.ErrorMessage, &t.CancelRequested, &t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// ListRecentTasks returns the most recently created tasks, newest first,
// bounded by limit — backing the dashboard's task history tile.
func (db *Database) ListRecentTasks(ctx context.Context, limit int) ([]*TaskRecord, error) {
	query := `
		SELECT id, type, category, status, progress_pct, progress_message, payload, result,
			   error_kind, error_message, cancel_requested, created_at, updated_at, started_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	defer rows.Close()

	var result []*TaskRecord
	for rows.Next() {
		t := &TaskRecord{}
		if err := rows.Scan(
			&t.ID, &t.Type, &t.Category, &t.Status, &t.ProgressPct, &t.ProgressMsg, &t.Payload, &t.Result,
			&t.ErrorKind, &t.ErrorMessage, &t.CancelRequested, &t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// CountActiveTasksByCategory reports how many tasks in a category are
// currently PENDING or RUNNING — the number the Task Engine's admission
// control compares against each pool's configured capacity.
func (db *Database) CountActiveTasksByCategory(ctx context.Context, category string) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE category = $1 AND status IN ($2, $3)`
	var count int
	err := db.pool.QueryRow(ctx, query, category, TaskStatusPending, TaskStatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active tasks for category %s: %w", category, err)
	}
	return count, nil
}

// TaskCreatedBefore is a small helper for recovery logic that needs to
// reason about how stale a PENDING task is.
func TaskCreatedBefore(t *TaskRecord, cutoff time.Duration) bool {
	return time.Since(t.CreatedAt) > cutoff
}
