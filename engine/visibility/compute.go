// Package visibility decides, per view and frame, which primitives are visible and which
// of their draw batches are submitted.
//
// Compute runs the stages in order: frustum and distance cull, fade state update,
// occlusion cull, explicit overrides, then relevance and LOD selection. Each stage only
// narrows the visible set, except that fading-out primitives are kept visible until their
// fade completes.
package visibility

import (
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	log "github.com/sirupsen/logrus"
)

var defaultLogger = log.WithField("component", "visibility")

// Context is what the stages read besides the view. Scene must be inside a
// BeginFrame/EndFrame bracket for the whole call.
type Context struct {
	Scene  scene.Scene
	Config config.Config
	// Runner executes packets. Nil runs them inline.
	Runner packet.Runner
	Logger *log.Entry
}

// FrameStats counts what each stage did to one view.
type FrameStats struct {
	Primitives      int
	DistanceCulled  int
	FrustumCulled   int
	CustomCulled    int
	Fading          int
	Occluded        int
	QueriesIssued   int
	OverrideCulled  int
	Visible         int
	VisibleBatches  int
	FailedPackets   int
	ComputeDuration time.Duration
}

// Compute runs the visibility pipeline for one view.
//
// Parameters:
//   - ctx: the scene, configuration and packet runner
//   - v: the view; its outputs are overwritten
//
// Returns:
//   - FrameStats: counters of the pass, also stored in v.Stats
func Compute(ctx Context, v *View) FrameStats {
	start := time.Now()
	if v.State != nil {
		v.State.beginFrame()
	}

	FrustumCull(ctx, v)
	UpdatePrimitiveFading(ctx, v)
	OcclusionCull(ctx, v)
	ApplyOverrides(ctx, v)
	ComputeRelevance(ctx, v)

	if v.State != nil {
		v.State.endFrame(v)
	}
	v.Stats.Visible = v.PrimitiveVisibility.Count()
	v.Stats.ComputeDuration = time.Since(start)

	ctx.logger().WithFields(log.Fields{
		"view":      v.ID,
		"visible":   v.Stats.Visible,
		"primitive": v.Stats.Primitives,
		"occluded":  v.Stats.Occluded,
		"fading":    v.Stats.Fading,
	}).Trace("view visibility computed")
	return v.Stats
}

func (c Context) logger() *log.Entry {
	if c.Logger != nil {
		return c.Logger
	}
	return defaultLogger
}

// run executes packets and records failures. Packet outputs of a failed packet are
// whatever it wrote before panicking.
func (c Context) run(v *View, count int, fn func(int)) {
	var err error
	if c.Runner == nil {
		err = packet.NewRunner(1).Run(count, fn)
	} else {
		err = c.Runner.Run(count, fn)
	}
	if err != nil {
		v.Stats.FailedPackets++
		c.logger().WithError(err).WithField("view", v.ID).Warn("visibility packet failed")
	}
}
