package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// progressSink clamps and coalesces progress updates from a running
// handler before they reach durable storage: a handler that calls
// progress() thousands of times per second (e.g. once per ingested row)
// must not turn into thousands of UPDATE statements.
type progressSink struct {
	db         *postgres.Database
	taskID     string
	flushPct   float64
	flushEvery time.Duration

	mu       sync.Mutex
	lastPct  float64
	lastSent time.Time
	lastMsg  string
}

func newProgressSink(db *postgres.Database, taskID string, flushPct float64, flushEvery time.Duration) *progressSink {
	if flushPct <= 0 {
		flushPct = 5.0
	}
	if flushEvery <= 0 {
		flushEvery = 2 * time.Second
	}
	return &progressSink{db: db, taskID: taskID, flushPct: flushPct, flushEvery: flushEvery}
}

// report clamps pct into [lastPct, 100] — progress never moves backward —
// and only issues a durable write once the change reaches flushPct,
// flushEvery has elapsed since the last write, or the message differs
// from the last one written, whichever comes first.
func (s *progressSink) report(pct float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pct = s.clamp(pct)

	delta := pct - s.lastPct
	elapsed := time.Since(s.lastSent)
	if delta < s.flushPct && elapsed < s.flushEvery && message == s.lastMsg {
		return
	}

	s.lastPct = pct
	s.lastMsg = message
	s.lastSent = time.Now()

	_ = s.db.UpdateTaskProgress(context.Background(), s.taskID, pct, message)
}

// clamp bounds pct to [lastPct, 100]; callers hold s.mu.
func (s *progressSink) clamp(pct float64) float64 {
	if pct < s.lastPct {
		pct = s.lastPct
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// currentPct returns the last reported percentage under lock.
func (s *progressSink) currentPct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPct
}

// flushFinal forces a final write regardless of the coalescing window, so
// the last progress update before a terminal transition is never dropped.
func (s *progressSink) flushFinal(pct float64, message string) {
	s.mu.Lock()
	s.lastPct = pct
	s.lastMsg = message
	s.lastSent = time.Now()
	s.mu.Unlock()
	_ = s.db.UpdateTaskProgress(context.Background(), s.taskID, pct, message)
}
