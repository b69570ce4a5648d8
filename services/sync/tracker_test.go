package sync

import (
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_AdvanceNeverDecreases(t *testing.T) {
	// Arrange
	t0 := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	tracker := NewTracker(t0)

	// Act & Assert
	tracker.Advance(t0.Add(5 * time.Second))
	assert.Equal(t, t0.Add(5*time.Second), tracker.LastSyncTime())

	tracker.Advance(t0.Add(2 * time.Second))
	assert.Equal(t, t0.Add(5*time.Second), tracker.LastSyncTime(), "backwards move must be ignored")

	tracker.Advance(t0.Add(5 * time.Second))
	assert.Equal(t, t0.Add(5*time.Second), tracker.LastSyncTime(), "equal time is a no-op")
}

func TestTracker_TryBeginSingleFlight(t *testing.T) {
	// Arrange
	tracker := NewTracker(time.Now())

	// Act: many goroutines race for the guard at once
	var wg gosync.WaitGroup
	var mu gosync.Mutex
	claimed := 0
	start := make(chan struct{})

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if tracker.TryBegin() {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	// Assert
	assert.Equal(t, 1, claimed, "exactly one claimant wins the guard")
	assert.True(t, tracker.IsSyncing())

	tracker.End()
	assert.True(t, tracker.TryBegin(), "guard reusable after End")
}
