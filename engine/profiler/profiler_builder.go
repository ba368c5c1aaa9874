package profiler

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a report is logged.
//
// Parameters:
//   - d: the interval; non-positive values are ignored
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces time.Now as the profiler's time source.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the entry reports are logged through.
//
// Parameters:
//   - entry: the log entry
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(entry *log.Entry) ProfilerBuilderOption {
	return func(p *Profiler) {
		if entry != nil {
			p.logger = entry
		}
	}
}
