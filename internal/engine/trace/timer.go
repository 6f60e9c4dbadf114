package trace

import (
	"sync"
	"time"
)

// Timer supplies event timestamps.
type Timer interface {
	Now() time.Time
}

type wallTimer struct{}

func (wallTimer) Now() time.Time { return time.Now() }

// WallTimer reads the system clock.
var WallTimer Timer = wallTimer{}

// ManualTimer only moves when told to.
type ManualTimer struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualTimer(start time.Time) *ManualTimer {
	return &ManualTimer{now: start}
}

func (m *ManualTimer) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualTimer) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
