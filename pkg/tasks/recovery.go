package tasks

import (
	"context"
	"fmt"
)

// RecoverOnStartup implements the Task Engine's durable-restart contract:
// every task still in PENDING when the process starts gets re-enqueued to
// its category pool, and every task still in RUNNING — which can only mean
// the previous process died mid-execution, since nothing else holds a task
// in RUNNING — is marked FAILED with the INTERRUPTED error kind rather than
// silently forgotten. INTERRUPTED is not a distinct Task status; the status
// enum is exactly {PENDING, RUNNING, COMPLETED, FAILED, CANCELLED}.
//
// Must be called once, after RegisterHandler has been called for every
// task type the process expects to recover, and before the process starts
// accepting new submissions.
func (e *Engine) RecoverOnStartup(ctx context.Context) error {
	running, err := e.db.ListTasksByStatus(ctx, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to list running tasks for recovery: %w", err)
	}
	for _, r := range running {
		if err := e.db.MarkTaskFailed(ctx, r.ID, StatusFailed, string(KindInterrupted), "process restarted while task was running"); err != nil {
			e.logger.Errorf("failed to mark interrupted task %s: %v", r.ID, err)
		}
	}

	pending, err := e.db.ListTasksByStatus(ctx, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending tasks for recovery: %w", err)
	}
	for _, r := range pending {
		taskType := Type(r.Type)
		handler, ok := e.handlers[taskType]
		if !ok {
			e.logger.Warnf("no handler registered for recovered task %s of type %s; leaving pending", r.ID, taskType)
			continue
		}
		category := Category(r.Category)
		cp, ok := e.pools[category]
		if !ok {
			e.logger.Warnf("no pool for recovered task %s category %s; leaving pending", r.ID, category)
			continue
		}
		e.logger.Infof("recovering pending task %s (%s)", r.ID, taskType)
		e.dispatch(r.ID, taskType, category, handler, r.Payload, cp.timeout)
	}

	return nil
}
