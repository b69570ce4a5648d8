package sync

import (
	"sync"
	"time"
)

// Tracker holds the per-account watermark state: the last successful sync
// time and whether a fetch is currently in flight. Both live under one mutex
// so the busy check and the flag flip are a single atomic step.
type Tracker struct {
	mu           sync.Mutex
	lastSyncTime time.Time
	isSyncing    bool
}

func NewTracker(initial time.Time) *Tracker {
	return &Tracker{lastSyncTime: initial}
}

// LastSyncTime returns the current watermark.
func (t *Tracker) LastSyncTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSyncTime
}

// TryBegin claims the single-flight guard. It returns false when a fetch is
// already in flight; the caller must skip the attempt without touching the
// watermark.
func (t *Tracker) TryBegin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isSyncing {
		return false
	}
	t.isSyncing = true
	return true
}

// End releases the guard. Must be called on every path out of an attempt
// that claimed it, success or failure.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isSyncing = false
}

// Advance moves the watermark forward. Moves backwards are ignored, so the
// watermark is non-decreasing for the lifetime of the tracker.
func (t *Tracker) Advance(to time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if to.After(t.lastSyncTime) {
		t.lastSyncTime = to
	}
}

// IsSyncing reports whether a fetch is currently in flight.
func (t *Tracker) IsSyncing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isSyncing
}
