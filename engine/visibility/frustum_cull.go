package visibility

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
)

type frustumCounts struct {
	distance, frustum, custom int
}

// FrustumCull resets the view outputs and classifies every primitive by draw distance,
// the view frustum and custom visibility. Packets cover FrustumCullWordsPerTask words of
// the visibility bitmap each and write only those words.
//
// Parameters:
//   - ctx: the pass context
//   - v: the view
func FrustumCull(ctx Context, v *View) {
	s := ctx.Scene
	n := s.NumPrimitives()
	v.reset(n, s.NumDrawBatches())

	fadeRadius := ctx.Config.DistanceFadeMaxTravel
	if v.State == nil || v.DisableFadeTransitions {
		fadeRadius = 0
	}
	viewDistanceScale := ctx.Config.ViewDistanceScale
	bounds := s.PrimitiveBounds()
	flags := s.PrimitiveFlags()

	numPackets, wordRange := packet.Split(v.PrimitiveVisibility.NumWords(), ctx.Config.FrustumCullWordsPerTask)
	counts := make([]frustumCounts, numPackets)

	ctx.run(v, numPackets, func(p int) {
		first, last := wordRange(p)
		c := &counts[p]
		for w := first; w < last; w++ {
			var visBits, fadingBits, unoccludedBits uint64
			for bit := 0; bit < 64; bit++ {
				i := w<<6 | bit
				if i >= n {
					break
				}
				mask := uint64(1) << bit
				info := s.Primitive(i)
				proxy := info.Proxy
				if !proxy.Enabled() {
					continue
				}
				if v.StaticSceneOnly && proxy.Mobility().IsMovable() {
					continue
				}

				b := bounds[i]
				distSq := b.Origin.Sub(v.Origin).LenSqr()
				minDraw, maxDraw := proxy.DrawDistance()
				maxDraw *= viewDistanceScale
				if (maxDraw > 0 && distSq > common.Square(maxDraw+fadeRadius)) || distSq < common.Square(minDraw) {
					c.distance++
					continue
				}
				if !v.Frustum.IntersectSphere(b.Origin, b.SphereRadius) || !v.Frustum.IntersectBox(b.Origin, b.Extent) {
					c.frustum++
					continue
				}
				if flags[i].Has(primitive.FlagHasCustomVisibility) && !customVisible(proxy, v.ID) {
					c.custom++
					continue
				}

				if maxDraw > 0 && distSq > common.Square(maxDraw) {
					// Past the draw distance but inside the fade band: visible only while fading out.
					fadingBits |= mask
					continue
				}
				visBits |= mask
				if maxDraw > 0 && fadeRadius > 0 && distSq > common.Square(max(maxDraw-fadeRadius, 0)) {
					fadingBits |= mask
				}
				if !flags[i].Has(primitive.FlagCanBeOccluded) || flags[i].Has(primitive.FlagSelected) {
					unoccludedBits |= mask
				}
			}
			v.PrimitiveVisibility.SetWord(w, visBits)
			v.PotentiallyFading.SetWord(w, fadingBits)
			v.PrimitiveDefinitelyUnoccluded.SetWord(w, unoccludedBits)
		}
	})

	for _, c := range counts {
		v.Stats.DistanceCulled += c.distance
		v.Stats.FrustumCulled += c.frustum
		v.Stats.CustomCulled += c.custom
	}
}

// customVisible runs a custom visibility predicate. Errors and panics mean not visible.
func customVisible(proxy primitive.Proxy, viewID uint32) (visible bool) {
	defer func() {
		if rec := recover(); rec != nil {
			visible = false
			defaultLogger.WithField("primitive", proxy.Name()).
				WithError(fmt.Errorf("%v", rec)).Warn("custom visibility predicate panicked")
		}
	}()
	ok, err := proxy.IsVisible(viewID)
	if err != nil {
		defaultLogger.WithField("primitive", proxy.Name()).WithError(err).Debug("custom visibility predicate failed")
		return false
	}
	return ok
}
