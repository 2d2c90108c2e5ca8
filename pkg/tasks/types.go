// Package tasks implements the Task Engine: an asynchronous upload/
// download/compute orchestrator with bounded per-category worker pools,
// admission control, cooperative cancellation, and a durable lifecycle
// that survives process restarts.
package tasks

import (
	"context"
	"time"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// Type names the operation a task represents.
type Type string

const (
	TypeUpload   Type = "UPLOAD"
	TypeDownload Type = "DOWNLOAD"
	TypeCompute  Type = "COMPUTE"
)

// Category groups tasks for admission control and worker pool routing.
// Today it mirrors Type one-to-one, but is kept distinct because a future
// task type may share a pool with an existing category.
type Category string

const (
	CategoryUpload   Category = "upload"
	CategoryDownload Category = "download"
	CategoryCompute  Category = "compute"
)

func categoryFor(t Type) Category {
	switch t {
	case TypeUpload:
		return CategoryUpload
	case TypeDownload:
		return CategoryDownload
	case TypeCompute:
		return CategoryCompute
	default:
		return Category(t)
	}
}

// Status mirrors postgres.TaskStatus as the package's own durable lifecycle
// vocabulary, so callers don't need to import the storage layer directly.
type Status = postgres.TaskStatus

const (
	StatusPending   = postgres.TaskStatusPending
	StatusRunning   = postgres.TaskStatusRunning
	StatusCompleted = postgres.TaskStatusCompleted
	StatusFailed    = postgres.TaskStatusFailed
	StatusCancelled = postgres.TaskStatusCancelled
)

func isTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Handler performs the actual work of a task. Implementations must poll
// Engine.CancelRequested(ctx) at meaningful checkpoints (e.g. once per
// ingestion chunk, once per NOOS stage) and return a *Error with
// KindCancelled when it is set — cancellation in this engine is
// cooperative, never forced.
type Handler interface {
	// Execute runs the task body. progress should be called with a
	// monotonically non-decreasing percentage in [0, 100] and a short
	// human-readable status message; the engine clamps and coalesces
	// calls before they reach durable storage.
	Execute(ctx context.Context, payload []byte, progress ProgressFunc) (result []byte, err error)
}

// ProgressFunc reports incremental progress from within a Handler.
type ProgressFunc func(pct float64, message string)

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload []byte, progress ProgressFunc) ([]byte, error)

func (f HandlerFunc) Execute(ctx context.Context, payload []byte, progress ProgressFunc) ([]byte, error) {
	return f(ctx, payload, progress)
}

// Task is the in-memory view of one unit of work, mirroring the durable
// postgres.TaskRecord it is backed by.
type Task struct {
	ID           string
	Type         Type
	Category     Category
	Status       Status
	ProgressPct  float64
	ProgressMsg  string
	Result       []byte
	ErrorKind    Kind
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

type contextKey int

const taskIDContextKey contextKey = 0

// TaskIDFromContext recovers the ID of the task currently executing, so a
// Handler can call Engine.CancelRequested at its own checkpoints without
// threading the ID through every call signature.
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDContextKey).(string)
	return id
}

func contextWithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDContextKey, id)
}

func taskFromRecord(r *postgres.TaskRecord) *Task {
	return &Task{
		ID:           r.ID,
		Type:         Type(r.Type),
		Category:     Category(r.Category),
		Status:       r.Status,
		ProgressPct:  r.ProgressPct,
		ProgressMsg:  r.ProgressMsg,
		Result:       r.Result,
		ErrorKind:    Kind(r.ErrorKind),
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}
