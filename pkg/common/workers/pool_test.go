package workers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	id      string
	counter *int64
	err     error
}

func (t *countingTask) ID() string { return t.id }

func (t *countingTask) Execute(ctx context.Context) (interface{}, error) {
	atomic.AddInt64(t.counter, 1)
	return nil, t.err
}

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 2, BufferSize: 4})
	require.NoError(t, pool.Start())

	var ran int64
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.SubmitBlocking(context.Background(), &countingTask{
			id:      fmt.Sprintf("t-%d", i),
			counter: &ran,
		}))
	}
	require.NoError(t, pool.Shutdown())

	assert.Equal(t, int64(10), atomic.LoadInt64(&ran))
	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPoolCountsFailures(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 1, BufferSize: 2})
	require.NoError(t, pool.Start())

	var ran int64
	require.NoError(t, pool.Submit(&countingTask{id: "ok", counter: &ran}))
	require.NoError(t, pool.Submit(&countingTask{id: "bad", counter: &ran, err: fmt.Errorf("boom")}))
	require.NoError(t, pool.Shutdown())

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPoolLifecycleGuards(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 1})

	err := pool.Submit(&countingTask{id: "early", counter: new(int64)})
	assert.Error(t, err, "submit before Start must fail")

	require.NoError(t, pool.Start())
	assert.Error(t, pool.Start(), "double Start must fail")

	require.NoError(t, pool.Shutdown())
	assert.NoError(t, pool.Shutdown(), "Shutdown is idempotent")

	err = pool.Submit(&countingTask{id: "late", counter: new(int64)})
	assert.Error(t, err, "submit after Shutdown must fail")
}

type slowTask struct {
	id      string
	started chan struct{}
	block   chan struct{}
}

func (t *slowTask) ID() string { return t.id }

func (t *slowTask) Execute(ctx context.Context) (interface{}, error) {
	close(t.started)
	select {
	case <-t.block:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSubmitBlockingHonorsCallerContext(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 1, BufferSize: 1})
	require.NoError(t, pool.Start())
	defer pool.Shutdown()

	running := &slowTask{id: "running", started: make(chan struct{}), block: make(chan struct{})}
	require.NoError(t, pool.SubmitBlocking(context.Background(), running))
	<-running.started

	// Fill the single queue slot, then a third submission must wait and
	// give up when its context expires.
	queued := &slowTask{id: "queued", started: make(chan struct{}), block: running.block}
	require.NoError(t, pool.SubmitBlocking(context.Background(), queued))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.SubmitBlocking(ctx, &countingTask{id: "overflow", counter: new(int64)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(running.block)
}
