package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/shadow"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoViews is returned by RenderFrame when no view is passed.
	ErrNoViews = errors.New("engine: no views")

	// ErrNilView is returned by RenderFrame for a nil entry in the view list.
	ErrNilView = errors.New("engine: nil view")

	// ErrClosed is returned by RenderFrame after Close.
	ErrClosed = errors.New("engine: closed")
)

// FrameResult is everything one RenderFrame produced.
type FrameResult struct {
	// Frame counts rendered frames, starting at 1.
	Frame uint64
	// Views are the frame's views with their visibility outputs filled in.
	Views   []*visibility.View
	Shadows *shadow.FrameShadows
	// Duration is the wall time of the frame.
	Duration time.Duration
}

// Sample reduces the frame to the profiler's counters.
//
// Returns:
//   - profiler.FrameSample: the sample
func (r *FrameResult) Sample() profiler.FrameSample {
	s := profiler.FrameSample{Views: len(r.Views)}
	for _, v := range r.Views {
		s.Visible += v.Stats.Visible
		s.Occluded += v.Stats.Occluded
		s.Fading += v.Stats.Fading
		s.VisibilityTime += v.Stats.ComputeDuration
	}
	if r.Shadows != nil {
		st := r.Shadows.Stats
		s.ShadowsCreated = st.WholeSceneShadows + st.Cascades + st.PerObjectShadows + st.PreShadows
		s.ShadowsCached = st.CachedPreShadows + st.CachedShadowMaps
		s.ShadowsDropped = st.Degenerate + st.FailedAllocations
		s.Atlases = st.Atlases
		s.ShadowSetupTime = st.SetupDuration
	}
	return s
}

// engine implements the Engine interface.
// Runs the frame stages over one scene on a shared worker pool.
type engine struct {
	mu sync.Mutex

	cfg      config.Config
	workers  int
	scene    scene.Scene
	runner   packet.Runner
	alloc    target.Allocator
	shadows  shadow.Setup
	logger   *log.Entry
	clock    func() time.Time
	start    time.Time
	closed   bool
	frame    uint64
	states   map[int]*visibility.ViewState
	profiler *profiler.Profiler

	profilingEnabled bool
}

// Engine is the main entry point. It owns the worker pool, the render-target allocator
// and the shadow caches, and renders frames of one scene.
type Engine interface {
	// Config returns the configuration the engine runs with.
	//
	// Returns:
	//   - config.Config: the configuration
	Config() config.Config

	// Scene returns the scene the engine renders.
	//
	// Returns:
	//   - scene.Scene: the scene
	Scene() scene.Scene

	// Allocator returns the render-target allocator shadows are placed in.
	//
	// Returns:
	//   - target.Allocator: the allocator
	Allocator() target.Allocator

	// Now returns the seconds elapsed on the engine clock since construction.
	// Views created for a frame should carry this time.
	//
	// Returns:
	//   - float64: the time in seconds
	Now() float64

	// ViewState returns the persistent view state registered under key, creating it on
	// first use. Views of one viewport must share a state across frames.
	//
	// Parameters:
	//   - key: the viewport key
	//
	// Returns:
	//   - *visibility.ViewState: the state
	ViewState(key int) *visibility.ViewState

	// RenderFrame computes visibility for every view and then the frame's shadows.
	// The scene is read-locked for the whole call.
	//
	// Parameters:
	//   - views: the frame's views
	//
	// Returns:
	//   - *FrameResult: the frame's outputs
	//   - error: ErrNoViews, ErrNilView or ErrClosed
	RenderFrame(views []*visibility.View) (*FrameResult, error)

	// EnableProfiler enables the periodic statistics log.
	EnableProfiler()

	// DisableProfiler disables the periodic statistics log.
	DisableProfiler()

	// Profiler returns the engine's profiler.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// Close releases cached shadow targets and stops the worker pool.
	// Safe to call multiple times.
	Close()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// A scene is required; the configuration must validate.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		cfg:    config.Default(),
		logger: log.WithField("component", "engine"),
		clock:  time.Now,
		states: make(map[int]*visibility.ViewState),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.scene == nil {
		panic("engine: NewEngine requires a scene")
	}
	if e.workers > 0 {
		e.cfg.Workers = e.workers
	}
	if err := e.cfg.Validate(); err != nil {
		panic(fmt.Sprintf("engine: %v", err))
	}

	e.start = e.clock()
	e.runner = packet.NewRunner(e.cfg.Workers)
	if e.alloc == nil {
		e.alloc = target.NewPool()
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithClock(e.clock))
	}
	e.shadows = shadow.NewSetup(
		shadow.WithConfig(e.cfg),
		shadow.WithRunner(e.runner),
		shadow.WithAllocator(e.alloc),
	)
	e.shadows.Attach(e.scene)

	e.logger.WithFields(log.Fields{"scene": e.scene.Name(), "workers": e.runner.Workers()}).Debug("engine created")
	return e
}

func (e *engine) Config() config.Config {
	return e.cfg
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Allocator() target.Allocator {
	return e.alloc
}

func (e *engine) Now() float64 {
	return e.clock().Sub(e.start).Seconds()
}

func (e *engine) ViewState(key int) *visibility.ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[key]
	if !ok {
		s = visibility.NewViewState(visibility.WithRandomSeed(e.cfg.OcclusionRandomSeed + int64(key)))
		e.states[key] = s
	}
	return s
}

func (e *engine) RenderFrame(views []*visibility.View) (*FrameResult, error) {
	if len(views) == 0 {
		return nil, ErrNoViews
	}
	for i, v := range views {
		if v == nil {
			return nil, fmt.Errorf("render frame: view %d: %w", i, ErrNilView)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	start := time.Now()

	// Transient targets of the previous frame stay reserved until its consumer is done
	// with them, which is when the next frame starts.
	if e.frame > 0 {
		e.alloc.EndFrame()
	}
	e.frame++

	e.scene.BeginFrame()
	ctx := visibility.Context{
		Scene:  e.scene,
		Config: e.cfg,
		Runner: e.runner,
	}
	for _, v := range views {
		visibility.Compute(ctx, v)
	}
	shadows := e.shadows.InitDynamicShadows(e.scene, views)
	e.scene.EndFrame()

	r := &FrameResult{
		Frame:    e.frame,
		Views:    views,
		Shadows:  shadows,
		Duration: time.Since(start),
	}
	if e.profilingEnabled {
		sample := r.Sample()
		sample.TargetBytesInUse = e.alloc.BytesInUse()
		e.profiler.Tick(sample)
	}
	e.logger.WithFields(log.Fields{"frame": r.Frame, "views": len(views), "duration": r.Duration}).Trace("frame rendered")
	return r, nil
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.shadows.Release()
	e.alloc.EndFrame()
	e.runner.Close()
	e.logger.WithField("frames", e.frame).Debug("engine closed")
}
