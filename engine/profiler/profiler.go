package profiler

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// FrameSample is what one rendered frame contributes to the profile.
type FrameSample struct {
	Views            int
	Visible          int
	Occluded         int
	Fading           int
	ShadowsCreated   int
	ShadowsCached    int
	ShadowsDropped   int
	Atlases          int
	VisibilityTime   time.Duration
	ShadowSetupTime  time.Duration
	TargetBytesInUse uint64
}

// Report aggregates the frames of one interval. Counters are per-frame averages.
type Report struct {
	Frames          int
	FPS             float64
	Visible         float64
	Occluded        float64
	Fading          float64
	ShadowsCreated  float64
	ShadowsCached   float64
	ShadowsDropped  float64
	Atlases         float64
	VisibilityTime  time.Duration
	ShadowSetupTime time.Duration
	TargetMB        float64
	HeapMB          float64
	AllocRateMB     float64
	GCCount         uint32
	LastPauseUs     uint64
	MaxPauseUs      uint64
}

// Profiler aggregates culling and shadow statistics and logs them at a fixed interval.
type Profiler struct {
	now            func() time.Time
	logger         *log.Entry
	updateInterval time.Duration

	lastTime time.Time
	sum      FrameSample
	frames   int
	last     Report

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		logger:         log.WithField("component", "profiler"),
		updateInterval: time.Second,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one frame and logs the interval's report once the interval has elapsed.
//
// Parameters:
//   - s: the frame's statistics
//
// Returns:
//   - bool: true if a report was logged this tick
func (p *Profiler) Tick(s FrameSample) bool {
	p.frames++
	p.sum.Visible += s.Visible
	p.sum.Occluded += s.Occluded
	p.sum.Fading += s.Fading
	p.sum.ShadowsCreated += s.ShadowsCreated
	p.sum.ShadowsCached += s.ShadowsCached
	p.sum.ShadowsDropped += s.ShadowsDropped
	p.sum.Atlases += s.Atlases
	p.sum.VisibilityTime += s.VisibilityTime
	p.sum.ShadowSetupTime += s.ShadowSetupTime
	p.sum.TargetBytesInUse = s.TargetBytesInUse

	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	n := float64(p.frames)
	r := Report{
		Frames:          p.frames,
		Visible:         float64(p.sum.Visible) / n,
		Occluded:        float64(p.sum.Occluded) / n,
		Fading:          float64(p.sum.Fading) / n,
		ShadowsCreated:  float64(p.sum.ShadowsCreated) / n,
		ShadowsCached:   float64(p.sum.ShadowsCached) / n,
		ShadowsDropped:  float64(p.sum.ShadowsDropped) / n,
		Atlases:         float64(p.sum.Atlases) / n,
		VisibilityTime:  p.sum.VisibilityTime / time.Duration(p.frames),
		ShadowSetupTime: p.sum.ShadowSetupTime / time.Duration(p.frames),
		TargetMB:        float64(p.sum.TargetBytesInUse) / 1024 / 1024,
	}
	if elapsed > 0 {
		r.FPS = n / elapsed.Seconds()
	}
	p.readMemory(&r, elapsed)

	p.logger.WithFields(log.Fields{
		"fps":            r.FPS,
		"visible":        r.Visible,
		"occluded":       r.Occluded,
		"fading":         r.Fading,
		"shadows":        r.ShadowsCreated,
		"cachedShadows":  r.ShadowsCached,
		"droppedShadows": r.ShadowsDropped,
		"atlases":        r.Atlases,
		"visibilityTime": r.VisibilityTime,
		"shadowTime":     r.ShadowSetupTime,
		"targetsMB":      r.TargetMB,
		"heapMB":         r.HeapMB,
		"allocRateMB":    r.AllocRateMB,
		"gc":             r.GCCount,
		"gcPauseLastUs":  r.LastPauseUs,
		"gcPauseMaxUs":   r.MaxPauseUs,
	}).Info("frame statistics")

	p.last = r
	p.frames = 0
	p.sum = FrameSample{}
	p.lastTime = current
	return true
}

// Last returns the most recently logged report.
//
// Returns:
//   - Report: the report, zero before the first interval elapsed
func (p *Profiler) Last() Report {
	return p.last
}

// readMemory fills the heap and GC figures of r.
func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	if elapsed > 0 {
		r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	}

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
