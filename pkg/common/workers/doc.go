// Package workers provides the bounded worker pool the Task Engine's
// per-category pools are built on.
//
// Pool is a fixed-size goroutine pool fed by a buffered submission
// channel, with a small Task interface (ID + Execute) and running
// statistics. The Task Engine (pkg/tasks) wraps one Pool per category —
// upload, download, compute — each sized from configuration; the pool's
// queue depth doubles as the category's admission bound.
//
// # Lifecycle
//
//	pool := workers.NewPool(workers.Config{
//		WorkerCount: 4,
//		BufferSize:  8,
//	})
//	if err := pool.Start(); err != nil {
//		return err
//	}
//	defer pool.Shutdown()
//
// SubmitBlocking waits for a queue slot until its context is cancelled;
// Submit is the fail-fast variant. The Task Engine uses SubmitBlocking
// so that admission control (not the pool) decides whether a submission
// is accepted at all.
//
// # Concurrency
//
// Start and Shutdown bracket the pool's lifetime; Shutdown drains
// in-flight work up to its configured timeout before cancelling the
// pool context. Task.Execute must observe ctx cancellation itself —
// the pool does not interrupt a running task, it only stops handing out
// new ones and waits.
package workers
