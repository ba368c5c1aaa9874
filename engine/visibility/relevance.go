package visibility

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
)

// Relevance is what one view decided about one visible primitive.
type Relevance struct {
	Computed bool
	// LOD is the selected level of detail.
	LOD int
	// DitherFromLOD is the LOD being cross-faded out, or -1.
	DitherFromLOD int
	ScreenSize    float32
	// LODFactorDistSq is the squared view distance scaled by the LOD distance factor.
	LODFactorDistSq  float32
	CastsShadowDepth bool
	Drawn            bool
	Translucent      bool
}

type relevancePacket struct {
	visible, occluder, shadowDepth, fadeOut, fadeIn []uint32
	aggregates                                       Aggregates
}

// ComputeRelevance selects the LOD of every visible primitive and marks its draw batches
// in the per-batch bitmaps. Packets write the per-primitive entries they own and buffer
// batch bits, which are merged after the join.
//
// Parameters:
//   - ctx: the pass context
//   - v: the view
func ComputeRelevance(ctx Context, v *View) {
	s := ctx.Scene
	cfg := ctx.Config
	bounds := s.PrimitiveBounds()
	flags := s.PrimitiveFlags()

	invLODScale := 1 / cfg.LODDistanceScale
	lodFactor := common.Square(v.LODDistanceFactor * invLODScale)
	minCSMSq := common.Square(cfg.MinScreenRadiusForCSMDepth)
	minPrepassSq := common.Square(cfg.MinScreenRadiusForDepthPrepass)

	st := v.State
	dither := st != nil && st.hasPrevOrigin && v.ForcedLOD < 0

	numPackets, wordRange := packet.Split(v.PrimitiveVisibility.NumWords(), cfg.FrustumCullWordsPerTask)
	outs := make([]relevancePacket, numPackets)
	ctx.run(v, numPackets, func(p int) {
		first, last := wordRange(p)
		out := &outs[p]
		for i := range v.PrimitiveVisibility.InWords(first, last) {
			info := s.Primitive(i)
			b := bounds[i]
			f := flags[i]

			screenSize := common.ComputeBoundsScreenSize(b.Origin, b.SphereRadius, v.Origin, v.ScreenMultiple)
			lod := selectLOD(info.Batches, screenSize*invLODScale)
			if v.ForcedLOD >= 0 {
				lod = min(v.ForcedLOD, maxLOD(info.Batches))
			}
			from := -1
			if dither {
				prev := common.ComputeBoundsScreenSize(b.Origin, b.SphereRadius, st.prevOrigin, v.ScreenMultiple)
				if prevLOD := selectLOD(info.Batches, prev*invLODScale); prevLOD != lod {
					from = prevLOD
				}
			}

			rSq := common.Square(b.SphereRadius)
			lodFactorDistSq := b.Origin.Sub(v.Origin).LenSqr() * lodFactor
			castsDepth := f.Has(primitive.FlagCastShadow) && rSq > minCSMSq*lodFactorDistSq
			occluderSized := rSq > minPrepassSq*lodFactorDistSq

			rel := Relevance{
				Computed:         true,
				LOD:              lod,
				DitherFromLOD:    from,
				ScreenSize:       screenSize,
				LODFactorDistSq:  lodFactorDistSq,
				CastsShadowDepth: castsDepth,
			}
			for _, batch := range info.Batches {
				switch {
				case batch.LODIndex == lod:
					if batch.UseForMaterial {
						out.visible = append(out.visible, batch.ID)
						rel.Drawn = true
						out.aggregates.NumVisibleStaticMeshElements++
					}
					if batch.UseAsOccluder && occluderSized {
						out.occluder = append(out.occluder, batch.ID)
					}
					if batch.CastShadow && castsDepth {
						out.shadowDepth = append(out.shadowDepth, batch.ID)
					}
					if from >= 0 && batch.DitheredLODTransition {
						out.fadeIn = append(out.fadeIn, batch.ID)
					}
					if batch.Translucent {
						rel.Translucent = true
					}
				case from >= 0 && batch.LODIndex == from && batch.DitheredLODTransition:
					if batch.UseForMaterial {
						out.visible = append(out.visible, batch.ID)
						out.aggregates.NumVisibleStaticMeshElements++
					}
					out.fadeOut = append(out.fadeOut, batch.ID)
				}
			}

			if castsDepth && f.Has(primitive.FlagCastsDynamicShadow) {
				out.aggregates.HasDynamicShadowCasters = true
			}
			if info.Proxy.LightingChannels() != 1 {
				out.aggregates.UsesLightingChannels = true
			}
			if rel.Translucent {
				out.aggregates.HasTranslucency = true
			}
			v.Relevance[i] = rel
		}
	})

	for p := range outs {
		out := &outs[p]
		setAll(&v.StaticMeshVisibility, out.visible)
		setAll(&v.StaticMeshOccluder, out.occluder)
		setAll(&v.StaticMeshShadowDepth, out.shadowDepth)
		setAll(&v.StaticMeshFadeOut, out.fadeOut)
		setAll(&v.StaticMeshFadeIn, out.fadeIn)

		a := out.aggregates
		v.Aggregates.HasDynamicShadowCasters = v.Aggregates.HasDynamicShadowCasters || a.HasDynamicShadowCasters
		v.Aggregates.UsesLightingChannels = v.Aggregates.UsesLightingChannels || a.UsesLightingChannels
		v.Aggregates.HasTranslucency = v.Aggregates.HasTranslucency || a.HasTranslucency
		v.Aggregates.NumVisibleStaticMeshElements += a.NumVisibleStaticMeshElements
	}
	v.Stats.VisibleBatches = v.StaticMeshVisibility.Count()
}

// selectLOD returns the most detailed LOD whose screen size threshold is reached, or the
// least detailed LOD when none is.
func selectLOD(batches []primitive.DrawBatch, screenSize float32) int {
	best := -1
	for _, b := range batches {
		if b.ScreenSize <= screenSize && (best < 0 || b.LODIndex < best) {
			best = b.LODIndex
		}
	}
	if best < 0 {
		return maxLOD(batches)
	}
	return best
}

func maxLOD(batches []primitive.DrawBatch) int {
	m := 0
	for _, b := range batches {
		m = max(m, b.LODIndex)
	}
	return m
}

func setAll(b *Bitmap, ids []uint32) {
	for _, id := range ids {
		b.Set(int(id), true)
	}
}
