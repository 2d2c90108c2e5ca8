package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retaildata/noosengine/pkg/common/logging"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// Config sizes the three category pools and their admission capacities and
// timeouts. See pkg/common/config.TaskEngineConfig for the process-wide
// configuration this is built from.
type Config struct {
	UploadWorkers    int
	DownloadWorkers  int
	ComputeWorkers   int
	QueueMultiplier  int
	UploadTimeout    time.Duration
	DownloadTimeout  time.Duration
	ComputeTimeout   time.Duration
	ProgressFlushPct float64
	ProgressFlushDur time.Duration
}

// Engine is the Task Engine: it owns one bounded pool per category,
// dispatches submissions to registered Handlers, enforces admission
// control, and keeps every task's lifecycle durable across restarts.
type Engine struct {
	db     *postgres.Database
	logger *logging.Logger
	config Config

	pools    map[Category]*categoryPool
	handlers map[Type]Handler

	mu          sync.Mutex
	subscribers map[string][]chan *Task
}

// NewEngine constructs an Engine with one pool per category, sized from
// config.
func NewEngine(db *postgres.Database, logger *logging.Logger, config Config) (*Engine, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithComponent("tasks")

	mult := config.QueueMultiplier
	if mult <= 0 {
		mult = 2
	}

	e := &Engine{
		db:          db,
		logger:      logger,
		config:      config,
		pools:       make(map[Category]*categoryPool),
		handlers:    make(map[Type]Handler),
		subscribers: make(map[string][]chan *Task),
	}

	uploadPool, err := newCategoryPool(config.UploadWorkers, config.UploadWorkers*mult, config.UploadWorkers*mult, config.UploadTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload pool: %w", err)
	}
	downloadPool, err := newCategoryPool(config.DownloadWorkers, config.DownloadWorkers*mult, config.DownloadWorkers*mult, config.DownloadTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create download pool: %w", err)
	}
	computePool, err := newCategoryPool(config.ComputeWorkers, config.ComputeWorkers*mult, config.ComputeWorkers*mult, config.ComputeTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute pool: %w", err)
	}

	e.pools[CategoryUpload] = uploadPool
	e.pools[CategoryDownload] = downloadPool
	e.pools[CategoryCompute] = computePool

	return e, nil
}

// RegisterHandler binds a Handler to a task Type. Must be called before
// any task of that type is submitted.
func (e *Engine) RegisterHandler(t Type, h Handler) {
	e.handlers[t] = h
}

// Submit admits a new task if the category has spare capacity, persists it
// in PENDING state, and dispatches it to the category's worker pool.
// Returns a *Error with KindBusy if the category is at capacity, or
// KindValidation if no handler is registered for the type.
func (e *Engine) Submit(ctx context.Context, taskType Type, payload []byte) (*Task, error) {
	handler, ok := e.handlers[taskType]
	if !ok {
		return nil, NewError(KindValidation, fmt.Sprintf("no handler registered for task type %s", taskType), nil)
	}

	category := categoryFor(taskType)
	cp, ok := e.pools[category]
	if !ok {
		return nil, NewError(KindValidation, fmt.Sprintf("unknown task category %s", category), nil)
	}

	active, err := e.db.CountActiveTasksByCategory(ctx, string(category))
	if err != nil {
		return nil, NewError(KindInternal, "failed to check admission capacity", err)
	}
	if active >= cp.capacity {
		return nil, NewError(KindBusy, fmt.Sprintf("category %s is at capacity (%d/%d)", category, active, cp.capacity), nil)
	}

	id := uuid.NewString()
	record := &postgres.TaskRecord{
		ID:       id,
		Type:     postgres.TaskType(taskType),
		Category: string(category),
		Status:   StatusPending,
		Payload:  payload,
	}
	if err := e.db.CreateTask(ctx, record); err != nil {
		return nil, NewError(KindInternal, "failed to persist new task", err)
	}

	e.dispatch(id, taskType, category, handler, payload, cp.timeout)

	return taskFromRecord(record), nil
}

// dispatch submits the task's execution to its category pool. Called both
// from Submit (fresh tasks) and from the recovery pass (re-enqueued
// PENDING tasks found at startup).
func (e *Engine) dispatch(id string, taskType Type, category Category, handler Handler, payload []byte, timeout time.Duration) {
	cp := e.pools[category]
	err := cp.submit(context.Background(), id, func(ctx context.Context) (interface{}, error) {
		return nil, e.run(ctx, id, handler, payload, timeout)
	})
	if err != nil {
		e.logger.Errorf("failed to dispatch task %s: %v", id, err)
		_ = e.db.MarkTaskFailed(context.Background(), id, StatusFailed, string(KindInternal), err.Error())
	}
}

// run executes one task's body: marks it RUNNING, wires up its progress
// sink and cancellation checkpoint, invokes the handler, and transitions
// it to its terminal state.
func (e *Engine) run(ctx context.Context, id string, handler Handler, payload []byte, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = contextWithTaskID(ctx, id)

	if err := e.db.MarkTaskRunning(ctx, id); err != nil {
		e.logger.Errorf("failed to mark task %s running: %v", id, err)
	}
	e.publish(id)

	sink := newProgressSink(e.db, id, e.config.ProgressFlushPct, e.config.ProgressFlushDur)
	progress := func(pct float64, message string) {
		sink.report(pct, message)
		e.publish(id)
	}

	result, err := handler.Execute(ctx, payload, progress)

	if err != nil {
		kind := KindOf(err)
		if ctx.Err() == context.DeadlineExceeded {
			kind = KindTimeout
		} else if ctx.Err() == context.Canceled {
			kind = KindCancelled
		}
		status := StatusFailed
		if kind == KindCancelled {
			status = StatusCancelled
		}
		sink.flushFinal(sink.currentPct(), err.Error())
		markErr := e.db.MarkTaskFailedWithResult(context.Background(), id, status, string(kind), err.Error(), result)
		e.publish(id)
		if markErr != nil {
			return fmt.Errorf("task failed (%w) and could not be recorded: %v", err, markErr)
		}
		return err
	}

	if err := e.db.MarkTaskCompleted(context.Background(), id, result); err != nil {
		e.logger.Errorf("failed to mark task %s completed: %v", id, err)
	}
	e.publish(id)
	return nil
}

// Get returns the current state of a task.
func (e *Engine) Get(ctx context.Context, id string) (*Task, error) {
	record, err := e.db.GetTask(ctx, id)
	if err != nil {
		return nil, NewError(KindNotFound, fmt.Sprintf("task %s not found", id), err)
	}
	return taskFromRecord(record), nil
}

// RequestCancel flags a task for cooperative cancellation. Idempotent;
// a task already in a terminal state is left untouched.
func (e *Engine) RequestCancel(ctx context.Context, id string) error {
	record, err := e.db.GetTask(ctx, id)
	if err != nil {
		return NewError(KindNotFound, fmt.Sprintf("task %s not found", id), err)
	}
	if isTerminal(record.Status) {
		return nil
	}
	if err := e.db.RequestTaskCancellation(ctx, id); err != nil {
		return NewError(KindInternal, "failed to request cancellation", err)
	}
	return nil
}

// CancelRequested is the checkpoint a Handler polls cooperatively, using
// the task ID embedded in ctx by the engine. Return a *Error with
// KindCancelled from Execute once this reports true.
func (e *Engine) CancelRequested(ctx context.Context) bool {
	id := TaskIDFromContext(ctx)
	if id == "" {
		return false
	}
	requested, err := e.db.IsCancellationRequested(ctx, id)
	if err != nil {
		return false
	}
	return requested
}

// ListRecent returns the most recently created tasks.
func (e *Engine) ListRecent(ctx context.Context, limit int) ([]*Task, error) {
	records, err := e.db.ListRecentTasks(ctx, limit)
	if err != nil {
		return nil, NewError(KindInternal, "failed to list recent tasks", err)
	}
	result := make([]*Task, len(records))
	for i, r := range records {
		result[i] = taskFromRecord(r)
	}
	return result, nil
}

// Shutdown drains and stops every category pool.
func (e *Engine) Shutdown() {
	for _, cp := range e.pools {
		cp.shutdown()
	}
}
