package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/retaildata/noosengine/pkg/common/workers"
)

// poolTask adapts one Task Engine submission to the workers.Task interface
// the underlying bounded pool expects.
type poolTask struct {
	id      string
	run     func(ctx context.Context) (interface{}, error)
}

func (t *poolTask) ID() string { return t.id }

func (t *poolTask) Execute(ctx context.Context) (interface{}, error) {
	return t.run(ctx)
}

// categoryPool is one bounded worker pool plus its configured wall-clock
// budget and admission capacity for a single task category.
type categoryPool struct {
	pool     *workers.Pool
	capacity int
	timeout  time.Duration
}

func newCategoryPool(workerCount, bufferSize, capacity int, timeout time.Duration) (*categoryPool, error) {
	p := workers.NewPool(workers.Config{
		WorkerCount:     workerCount,
		BufferSize:      bufferSize,
		ShutdownTimeout: 30 * time.Second,
	})
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	return &categoryPool{pool: p, capacity: capacity, timeout: timeout}, nil
}

func (c *categoryPool) submit(ctx context.Context, id string, run func(ctx context.Context) (interface{}, error)) error {
	return c.pool.SubmitBlocking(ctx, &poolTask{id: id, run: run})
}

func (c *categoryPool) shutdown() {
	_ = c.pool.Shutdown()
}
