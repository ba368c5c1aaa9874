package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig sets the configuration the frame stages run with.
//
// Parameters:
//   - cfg: the configuration; it must validate
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithScene sets the scene the engine renders.
//
// Parameters:
//   - s: the Scene to render
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithWorkers overrides the configured worker count.
// Values <= 0 keep the configuration's count.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = n
	}
}

// WithProfiler enables profiling through the given profiler.
// A nil profiler enables profiling with a default one.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
		e.profilingEnabled = true
	}
}

// WithTargetAllocator sets the render-target allocator shadows are placed in.
//
// Parameters:
//   - a: the allocator
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTargetAllocator(a target.Allocator) EngineBuilderOption {
	return func(e *engine) {
		if a != nil {
			e.alloc = a
		}
	}
}

// WithClock replaces time.Now as the source of frame times.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithClock(now func() time.Time) EngineBuilderOption {
	return func(e *engine) {
		if now != nil {
			e.clock = now
		}
	}
}
