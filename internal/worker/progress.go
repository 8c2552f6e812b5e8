package worker

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress renders a terminal progress bar for tile downloads.
type Progress struct {
	startTime time.Time
	bar       *progressbar.ProgressBar
	output    io.Writer
	total     int
	completed int
	failed    int
	mu        sync.Mutex
	enabled   bool
}

// NewProgress creates a progress tracker writing to stderr.
func NewProgress(total int, enabled bool) *Progress {
	return newProgress(total, enabled, os.Stderr)
}

func newProgress(total int, enabled bool, w io.Writer) *Progress {
	p := &Progress{
		startTime: time.Now(),
		output:    w,
		total:     total,
		enabled:   enabled,
	}
	if enabled {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("tiles"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	return p
}

// Update records the completion of a tile.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed = completed
	p.total = total
	p.failed = failed
	if p.bar != nil {
		if failed > 0 {
			p.bar.Describe(fmt.Sprintf("tiles (%d failed)", failed))
		}
		p.bar.Set(completed) // nolint:errcheck
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Done completes the bar and ends the line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Finish() // nolint:errcheck
		fmt.Fprintln(p.output)
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.Lock()
	completed, total, failed := p.completed, p.total, p.failed
	p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}

	return fmt.Sprintf("Loaded %d/%d tiles (%d failed) in %s (%.1f tiles/sec)",
		completed-failed, total, failed, formatDuration(elapsed), rate)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
