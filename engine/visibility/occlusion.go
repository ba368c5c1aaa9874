package visibility

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type newHistory struct {
	key  occlusionKey
	hist *occlusionHistory
}

type queryToAdd struct {
	hist           *occlusionHistory
	origin, extent mgl32.Vec3
	grouped        bool
}

type subResult struct {
	id       primitive.ComponentID
	occluded []bool
}

// occlusionPacket is the private output of one packet, applied by the finalize step.
type occlusionPacket struct {
	inserts  []newHistory
	queries  []queryToAdd
	hzb      []queryToAdd
	releases []QueryHandle
	subs     []subResult
	occluded int
}

type occlusionPass struct {
	ctx     Context
	v       *View
	st      *ViewState
	hzbMode bool
	now     float64
	slot    int
	buffers int
	// invPixels converts a pixel count to a fraction of the view.
	invPixels float32
}

// OcclusionCull removes primitives that previous frames' occlusion results, or the
// hierarchical depth test, report as hidden, and issues this frame's tests.
//
// Primitives without history are visible with an indefinite state so they are queried.
// Failed reads count as visible. Primitives occluded last frame use grouped queries when
// they allow approximate occlusion; definitely unoccluded ones are re-queried at random.
// Boxes crossing the near plane are never tested and count as definitely unoccluded.
// A primitive with sub-primitive queries is culled only when every subquery is occluded.
//
// The stage is skipped when occlusion is disabled, the view has no state, or the state
// has no backend for the configured mode.
//
// Parameters:
//   - ctx: the pass context
//   - v: the view
func OcclusionCull(ctx Context, v *View) {
	st := v.State
	cfg := ctx.Config
	if !cfg.AllowOcclusionQueries || v.DisableOcclusion || st == nil {
		return
	}
	if (cfg.HZBOcclusion && st.hzb == nil) || (!cfg.HZBOcclusion && st.backend == nil) {
		return
	}

	pass := occlusionPass{
		ctx:       ctx,
		v:         v,
		st:        st,
		hzbMode:   cfg.HZBOcclusion,
		now:       v.Time,
		buffers:   max(cfg.NumBufferedFrames, 1),
		invPixels: 1 / float32(max(v.ViewportWidth*v.ViewportHeight, 1)),
	}
	pass.slot = int(st.frame % uint64(pass.buffers))

	numPackets, wordRange := packet.Split(v.PrimitiveVisibility.NumWords(), cfg.FrustumCullWordsPerTask)
	outs := make([]occlusionPacket, numPackets)
	ctx.run(v, numPackets, func(p int) {
		first, last := wordRange(p)
		pass.cullRange(p, first, last, &outs[p])
	})
	pass.finalize(outs)

	probablyVisible := float64(cfg.PrimitiveProbablyVisibleTime)
	st.TrimOcclusionHistory(pass.now, pass.now-probablyVisible, pass.now)
}

func (o *occlusionPass) cullRange(packetIndex, firstWord, lastWord int, out *occlusionPacket) {
	s := o.ctx.Scene
	cfg := o.ctx.Config
	v := o.v
	flags := s.PrimitiveFlags()
	ids := s.PrimitiveComponentIDs()
	occBounds := s.PrimitiveOcclusionBounds()
	rng := o.st.packetRand(cfg.OcclusionRandomSeed, packetIndex)

	for i := range v.PrimitiveVisibility.InWords(firstWord, lastWord) {
		if v.PrimitiveDefinitelyUnoccluded.Get(i) {
			continue
		}
		f := flags[i]
		canBeOccluded := f.Has(primitive.FlagCanBeOccluded) && !f.Has(primitive.FlagSelected)

		var subBounds []common.BoxSphereBounds
		hasSubs := f.Has(primitive.FlagHasSubprimitiveQueries) && cfg.AllowSubPrimitiveQueries
		if hasSubs {
			subBounds = s.Primitive(i).Proxy.OcclusionQueries()
			if len(subBounds) == 0 {
				v.PrimitiveVisibility.Set(i, false)
				continue
			}
		}
		numSubs := max(len(subBounds), 1)

		allSubsOccluded, allSubsDefinite := true, true
		var subOccluded []bool
		for sub := range numSubs {
			key := occlusionKey{id: ids[i], sub: sub}
			occluded, definite := false, false

			hist := o.st.histories[key]
			if hist == nil {
				hist = newOcclusionHistory(o.buffers)
				out.inserts = append(out.inserts, newHistory{key: key, hist: hist})
				definite = !canBeOccluded
			} else {
				if len(hist.pending) != o.buffers {
					out.releases = appendPending(out.releases, hist.pending)
					hist.pending = make([]QueryHandle, o.buffers)
				}
				if canBeOccluded {
					occluded, definite = o.readPast(hist)
				} else {
					definite = true
				}
				if past := hist.pending[o.slot]; past != 0 {
					out.releases = append(out.releases, past)
					hist.pending[o.slot] = 0
				}
			}
			hist.lastConsideredTime = o.now

			if canBeOccluded {
				bounds := occBounds[i]
				if hasSubs {
					bounds = subBounds[sub]
				}
				if o.crossesNearPlane(bounds) {
					occluded, definite = false, true
				} else if o.hzbMode {
					out.hzb = append(out.hzb, queryToAdd{hist: hist, origin: bounds.Origin, extent: bounds.Extent})
				} else {
					run, grouped := true, false
					if !hasSubs && f.Has(primitive.FlagAllowApproximateOcclusion) {
						switch {
						case occluded:
							grouped = true
						case definite:
							fraction := math32.Max(hist.lastPixelsPercentage/cfg.MaxOcclusionPixelsFraction, 1)
							run = fraction*rng.Float32() < cfg.MaxOcclusionPixelsFraction
						}
					}
					if run {
						out.queries = append(out.queries, queryToAdd{hist: hist, origin: bounds.Origin, extent: bounds.Extent, grouped: grouped})
					}
					hist.grouped = grouped
				}
			}

			if hasSubs {
				subOccluded = append(subOccluded, occluded)
				if !occluded {
					allSubsOccluded = false
					if definite {
						hist.lastVisibleTime = o.now
					}
				}
				if occluded || !definite {
					allSubsDefinite = false
				}
				continue
			}
			if occluded {
				v.PrimitiveVisibility.Set(i, false)
				out.occluded++
			} else if definite {
				hist.lastVisibleTime = o.now
				v.PrimitiveDefinitelyUnoccluded.Set(i, true)
			}
		}

		if hasSubs {
			out.subs = append(out.subs, subResult{id: ids[i], occluded: subOccluded})
			if allSubsOccluded {
				v.PrimitiveVisibility.Set(i, false)
				out.occluded++
			} else if allSubsDefinite {
				v.PrimitiveDefinitelyUnoccluded.Set(i, true)
			}
		}
	}
}

// readPast reads the history's result from NumBufferedFrames frames ago.
func (o *occlusionPass) readPast(hist *occlusionHistory) (occluded, definite bool) {
	if o.hzbMode {
		if !hist.hzbValid {
			return false, false
		}
		visible, ok := o.st.hzb.IsVisible(hist.hzbFrame, hist.hzbIndex)
		if !ok {
			return false, false
		}
		return !visible, true
	}

	past := hist.pending[o.slot]
	if past == 0 {
		// No query in flight: trust how recently the primitive was seen.
		occluded = hist.lastVisibleTime+float64(o.ctx.Config.PrimitiveProbablyVisibleTime) < o.now
		if occluded {
			hist.lastPixelsPercentage = 0
		} else {
			hist.lastPixelsPercentage = o.ctx.Config.MaxOcclusionPixelsFraction
		}
		return occluded, true
	}

	pixels, ok := o.st.backend.Result(past)
	if !ok {
		return false, false
	}
	occluded = pixels == 0
	if occluded {
		hist.lastPixelsPercentage = 0
	} else {
		hist.lastPixelsPercentage = float32(pixels) * o.invPixels
	}
	return occluded, !hist.grouped
}

// crossesNearPlane reports whether a box is not entirely beyond the near plane.
func (o *occlusionPass) crossesNearPlane(b common.BoxSphereBounds) bool {
	p := o.v.NearPlane
	pushOut := math32.Abs(b.Extent.X()*p.Normal.X()) + math32.Abs(b.Extent.Y()*p.Normal.Y()) + math32.Abs(b.Extent.Z()*p.Normal.Z())
	return p.PlaneDot(b.Origin) >= -pushOut
}

// finalize applies the packets' buffered outputs in packet order.
func (o *occlusionPass) finalize(outs []occlusionPacket) {
	st := o.st
	for p := range outs {
		out := &outs[p]
		for _, n := range out.inserts {
			st.histories[n.key] = n.hist
		}
		if st.backend != nil {
			for _, h := range out.releases {
				st.backend.Release(h)
			}
		}
		for _, q := range out.queries {
			h := st.backend.BatchPrimitive(q.origin, q.extent, q.grouped)
			q.hist.pending[o.slot] = h
			if h != 0 {
				o.v.Stats.QueriesIssued++
			}
		}
		for _, q := range out.hzb {
			q.hist.hzbIndex = st.hzb.AddBounds(st.frame, q.origin, q.extent)
			q.hist.hzbFrame = st.frame
			q.hist.hzbValid = true
			o.v.Stats.QueriesIssued++
		}
		if len(out.subs) > 0 && o.v.SubprimitiveOcclusion == nil {
			o.v.SubprimitiveOcclusion = make(map[primitive.ComponentID][]bool)
		}
		for _, r := range out.subs {
			o.v.SubprimitiveOcclusion[r.id] = r.occluded
		}
		o.v.Stats.Occluded += out.occluded
	}
}

func appendPending(dst []QueryHandle, pending []QueryHandle) []QueryHandle {
	for _, q := range pending {
		if q != 0 {
			dst = append(dst, q)
		}
	}
	return dst
}
