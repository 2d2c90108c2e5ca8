package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressSink_ClampsBackwardMovement(t *testing.T) {
	s := newProgressSink(nil, "task-1", 5, time.Hour)
	s.lastPct = 50

	s.mu.Lock()
	pct := s.clamp(30.0)
	s.mu.Unlock()

	assert.Equal(t, 50.0, pct)
}

func TestProgressSink_Defaults(t *testing.T) {
	s := newProgressSink(nil, "task-1", 0, 0)
	assert.Equal(t, 5.0, s.flushPct)
	assert.Equal(t, 2*time.Second, s.flushEvery)
}

func TestProgressSink_CurrentPct(t *testing.T) {
	s := newProgressSink(nil, "task-1", 5, time.Hour)
	s.mu.Lock()
	s.lastPct = 77
	s.mu.Unlock()
	assert.Equal(t, 77.0, s.currentPct())
}
