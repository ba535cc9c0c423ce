// Package monitor logs runtime and throughput figures for one transfer
// session. A visual-channel process only ever drives a single Sender
// or Receiver at a time, so there's no process-wide aggregate worth
// keeping — each session owns its own Metrics instead of updating
// shared counters on a singleton.
package monitor

import (
	"runtime"
	"time"

	"qrxfer/pkg/logger"
)

// Metrics times and logs throughput for one Sender or Receiver
// session. It is not safe for concurrent use; a session has exactly
// one transfer in flight, so it needs no locking.
type Metrics struct {
	started time.Time
}

// New returns a Metrics ready to time a session.
func New() *Metrics {
	return &Metrics{}
}

// Start marks the moment the session began moving bytes.
func (m *Metrics) Start() {
	m.started = time.Now()
}

// Record logs the completion of the session's transfer: total bytes
// moved, elapsed time since Start, the resulting throughput, and the
// runtime's current goroutine count and heap size.
func (m *Metrics) Record(bytes int64) {
	duration := time.Since(m.started).Seconds()
	var speed float64
	if duration > 0 {
		speed = float64(bytes) / duration / 1024 / 1024
	}

	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)

	logger.Sugar.Infof("[Metrics] Size=%dMB | Duration=%.2fs | Speed=%.2fMB/s | Goroutines=%d | HeapAlloc=%dMB",
		bytes/1024/1024, duration, speed,
		runtime.NumGoroutine(), rt.HeapAlloc/1024/1024,
	)
}
