// Package progressui renders transfer progress to the terminal: one
// Tracker counts chunks transmitted-and-acknowledged on the Sender
// side, or chunks committed on the Receiver side. A visual channel has
// exactly one peer, so there's only ever one Tracker in play at a
// time.
package progressui

import (
	"sync"
	"time"
)

// Tracker accumulates progress for one file transfer.
type Tracker struct {
	mu sync.RWMutex

	FileName    string
	FileSize    uint64
	TotalChunks uint64

	doneChunks uint64
	doneBytes  uint64

	startTime time.Time
	endTime   time.Time

	lastBytes uint64
	lastTime  time.Time
	speed     float64 // bytes/sec
}

// NewTracker creates a Tracker for a transfer of the given size.
func NewTracker(fileName string, fileSize, totalChunks uint64) *Tracker {
	now := time.Now()
	return &Tracker{
		FileName:    fileName,
		FileSize:    fileSize,
		TotalChunks: totalChunks,
		startTime:   now,
		lastTime:    now,
	}
}

// Advance records that one more chunk of chunkBytes has completed
// (transmitted+acked, or committed, depending on who owns this
// Tracker).
func (t *Tracker) Advance(chunkBytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doneChunks++
	t.doneBytes += chunkBytes
}

// UpdateSpeed recomputes the rolling bytes/sec figure. Call this on a
// timer from the renderer, not from the protocol hot path.
func (t *Tracker) UpdateSpeed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastTime).Seconds()
	if elapsed >= 0.5 {
		diff := t.doneBytes - t.lastBytes
		if elapsed > 0 {
			t.speed = float64(diff) / elapsed
		}
		t.lastBytes = t.doneBytes
		t.lastTime = now
	}
	return t.speed
}

// Snapshot is a point-in-time read of progress, safe to pass around.
type Snapshot struct {
	FileName    string
	DoneChunks  uint64
	TotalChunks uint64
	DoneBytes   uint64
	FileSize    uint64
	Speed       float64
	Elapsed     time.Duration
}

// Snapshot returns the current progress state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := time.Since(t.startTime)
	if !t.endTime.IsZero() {
		elapsed = t.endTime.Sub(t.startTime)
	}

	return Snapshot{
		FileName:    t.FileName,
		DoneChunks:  t.doneChunks,
		TotalChunks: t.TotalChunks,
		DoneBytes:   t.doneBytes,
		FileSize:    t.FileSize,
		Speed:       t.speed,
		Elapsed:     elapsed,
	}
}

// MarkDone stamps the end time so Snapshot().Elapsed stops advancing.
func (t *Tracker) MarkDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endTime = time.Now()
}

// IsComplete reports whether every declared chunk has completed.
func (t *Tracker) IsComplete() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.TotalChunks > 0 && t.doneChunks >= t.TotalChunks
}
