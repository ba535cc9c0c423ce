package progressui

import (
	"fmt"
	"strings"
	"time"
)

// ANSI color codes for the terminal progress bar.
const (
	reset = "\033[0m"
	green = "\033[32m"
	cyan  = "\033[36m"
	blue  = "\033[34m"
	red   = "\033[31m"
)

// Renderer draws a Tracker's progress to the terminal on a fixed
// interval until Stop is called.
type Renderer struct {
	tracker   *Tracker
	stop      chan struct{}
	useColors bool
	width     int
}

// NewRenderer creates a Renderer for tracker.
func NewRenderer(tracker *Tracker, useColors bool) *Renderer {
	return &Renderer{
		tracker:   tracker,
		stop:      make(chan struct{}),
		useColors: useColors,
		width:     40,
	}
}

// Start runs the render loop until Stop is called. Meant to be run in
// its own goroutine.
func (r *Renderer) Start() {
	r.render()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tracker.UpdateSpeed()
			r.render()
		case <-r.stop:
			return
		}
	}
}

// Stop signals the render loop to exit.
func (r *Renderer) Stop() {
	close(r.stop)
}

// StopAndFinal stops the render loop and prints a final summary line.
func (r *Renderer) StopAndFinal() {
	r.Stop()
	snap := r.tracker.Snapshot()
	fmt.Print("\r\033[K")
	if snap.DoneChunks >= snap.TotalChunks && snap.TotalChunks > 0 || snap.FileSize == 0 {
		r.renderFinal(snap)
	} else {
		r.renderError(snap)
	}
}

func (r *Renderer) render() {
	snap := r.tracker.Snapshot()
	percent := 0.0
	if snap.FileSize > 0 {
		percent = float64(snap.DoneBytes) / float64(snap.FileSize) * 100
	} else if snap.TotalChunks == 0 {
		percent = 100
	}

	filled := int(float64(r.width) * percent / 100)
	if filled > r.width {
		filled = r.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", r.width-filled)

	line := fmt.Sprintf("\r[%s] [%s] %.1f%% (%d/%d chunks) | %s/s",
		snap.FileName, r.colorize(bar, green), percent, snap.DoneChunks, snap.TotalChunks,
		formatBytes(snap.Speed))
	fmt.Print(line)
}

func (r *Renderer) renderFinal(snap Snapshot) {
	bar := strings.Repeat("█", r.width)
	fmt.Printf("[%s] [%s] 100%% (%d/%d chunks) | done in %s\n",
		snap.FileName, r.colorize(bar, green), snap.TotalChunks, snap.TotalChunks, formatDuration(snap.Elapsed))
}

func (r *Renderer) renderError(snap Snapshot) {
	fmt.Printf("[%s] [%s] %d/%d chunks | transfer did not complete\n",
		snap.FileName, r.colorize("✗", red), snap.DoneChunks, snap.TotalChunks)
}

func (r *Renderer) colorize(s, color string) string {
	if !r.useColors {
		return s
	}
	return color + s + reset
}

func formatBytes(bytesPerSec float64) string {
	const unit = 1024
	if bytesPerSec < unit {
		return fmt.Sprintf("%.1f B", bytesPerSec)
	}
	div, exp := float64(unit), 0
	for n := bytesPerSec / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", bytesPerSec/div, "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	mins := d / time.Minute
	secs := (d % time.Minute) / time.Second
	return fmt.Sprintf("%dm%ds", mins, secs)
}
