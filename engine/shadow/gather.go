package shadow

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// gatherPacket is one unit of caster gathering: a slice of octree nodes or a range of
// packed indices, tested against one shadow. Results stay private to the packet until
// the merge after the join.
type gatherPacket struct {
	shadow      *ProjectedShadowInfo
	nodes       []octree.NodeRef[*primitive.SceneInfo]
	first, last int
	subjects    []*primitive.SceneInfo
}

// viewCull is the per-view part of the caster screen size test.
type viewCull struct {
	origin          mgl32.Vec3
	lodFactorSq     float32
	staticSceneOnly bool
}

// gatherer holds what every packet of a frame reads.
type gatherer struct {
	flags          []primitive.Flags
	bounds         []common.BoxSphereBounds
	views          []viewCull
	minCasterSq    float32
	minCSMSq       float32
	dependentCulls map[*visibility.View]viewCull
}

// gatherShadowPrimitives finds the casters of every shadow that needs them this frame.
// With ParallelGather the octree nodes touching each shadow's caster volume are split
// into packets; otherwise the packed primitive array is split into fixed ranges. Packets
// are merged in creation order, so the subject lists do not depend on scheduling.
func (s *setupImpl) gatherShadowPrimitives(fc *frameContext) {
	var shadows []*ProjectedShadowInfo
	for _, ls := range fc.out.Lights {
		for _, p := range ls.Shadows {
			if p.needsCulling() {
				shadows = append(shadows, p)
			}
		}
		for _, p := range ls.PreShadows {
			if p.needsCulling() {
				shadows = append(shadows, p)
			}
		}
	}
	if len(shadows) == 0 {
		return
	}

	sc := fc.scene
	invLODScale := 1 / s.cfg.LODDistanceScale
	g := &gatherer{
		flags:          sc.PrimitiveFlags(),
		bounds:         sc.PrimitiveBounds(),
		minCasterSq:    common.Square(s.cfg.MinScreenRadiusForShadowCaster),
		minCSMSq:       common.Square(s.cfg.MinScreenRadiusForCSMDepth),
		dependentCulls: make(map[*visibility.View]viewCull, len(fc.views)),
	}
	for _, v := range fc.views {
		vc := viewCull{
			origin:          v.Origin,
			lodFactorSq:     common.Square(v.LODDistanceFactor * invLODScale),
			staticSceneOnly: v.StaticSceneOnly,
		}
		g.views = append(g.views, vc)
		g.dependentCulls[v] = vc
	}

	var packets []*gatherPacket
	if s.cfg.ParallelGather {
		tree := sc.Octree()
		for _, p := range shadows {
			nodes := tree.CollectNodes(p.CasterFrustum)
			count, nodeRange := packet.Split(len(nodes), s.cfg.ShadowGatherNodesPerPacket)
			for i := range count {
				first, last := nodeRange(i)
				packets = append(packets, &gatherPacket{shadow: p, nodes: nodes[first:last]})
			}
		}
	} else {
		count, primRange := packet.Split(sc.NumPrimitives(), s.cfg.ShadowGatherPrimitivesPerPacket)
		for _, p := range shadows {
			for i := range count {
				first, last := primRange(i)
				packets = append(packets, &gatherPacket{shadow: p, first: first, last: last})
			}
		}
	}

	err := s.runner.Run(len(packets), func(i int) {
		pk := packets[i]
		if pk.nodes != nil {
			for _, n := range pk.nodes {
				contained := n.FullyContained()
				for info, b := range n.Elements() {
					if g.accept(pk.shadow, info, b, g.flags[info.PackedIndex], contained) {
						pk.subjects = append(pk.subjects, info)
					}
				}
			}
			return
		}
		for idx := pk.first; idx < pk.last; idx++ {
			info := sc.Primitive(idx)
			if g.accept(pk.shadow, info, g.bounds[idx], g.flags[idx], false) {
				pk.subjects = append(pk.subjects, info)
			}
		}
	})
	if err != nil {
		fc.out.Stats.FailedPackets++
		s.logger.WithError(err).Warn("shadow gather packet failed")
	}

	for _, pk := range packets {
		pk.shadow.SubjectPrimitives = append(pk.shadow.SubjectPrimitives, pk.subjects...)
		fc.out.Stats.GatheredCasters += len(pk.subjects)
	}
	fc.out.Stats.GatherPackets += len(packets)
	s.logger.WithFields(log.Fields{"shadows": len(shadows), "packets": len(packets)}).Trace("shadow casters gathered")
}

// accept decides whether a primitive draws into a shadow. contained means the
// primitive's octree node lies inside the caster volume, so the volume test is skipped.
func (g *gatherer) accept(p *ProjectedShadowInfo, info *primitive.SceneInfo, b common.BoxSphereBounds, f primitive.Flags, contained bool) bool {
	proxy := info.Proxy
	if !proxy.Enabled() || !f.Has(primitive.FlagCastShadow) {
		return false
	}
	if p.Light.LightingChannels()&proxy.LightingChannels() == 0 {
		return false
	}

	switch {
	case p.PreShadow:
		if !f.Has(primitive.FlagCastsStaticShadow | primitive.FlagHasStaticLighting) {
			return false
		}
		if !contained && !p.CasterFrustum.IntersectBox(b.Origin, b.Extent) {
			return false
		}

	case p.DirectionalLight:
		if !f.Has(primitive.FlagCastsDynamicShadow) || !g.inCascade(p, b) {
			return false
		}
		vc := g.dependentCulls[p.DependentView]
		distSq := b.Origin.Sub(vc.origin).LenSqr()
		if common.Square(b.SphereRadius) <= g.minCSMSq*distSq*vc.lodFactorSq {
			return false
		}
		if vc.staticSceneOnly && !f.Has(primitive.FlagHasStaticLighting) {
			return false
		}

	default:
		if !f.Has(primitive.FlagCastsDynamicShadow) {
			return false
		}
		movable := proxy.Mobility().IsMovable()
		if (p.CacheMode == CacheModeStaticPrimitivesOnly && movable) || (p.CacheMode == CacheModeMovablePrimitivesOnly && !movable) {
			return false
		}
		if p.OnePassPointLight {
			if !b.Sphere().Intersects(p.ShadowBounds) {
				return false
			}
		} else if !contained && !p.CasterFrustum.IntersectBox(b.Origin, b.Extent) {
			return false
		}
		if !g.largeEnough(b) {
			return false
		}
	}
	return p.Light.AffectsBounds(b)
}

// inCascade tests a primitive against the cylinder swept by the cascade sphere along the
// light direction, capped on the far side by the sphere, then against the cascade hull.
func (g *gatherer) inCascade(p *ProjectedShadowInfo, b common.BoxSphereBounds) bool {
	dir := p.Initializer.FaceDirection
	toCenter := p.ShadowBounds.Center.Sub(b.Origin)
	proj := toCenter.Dot(dir)
	distFromAxisSq := toCenter.Sub(dir.Mul(proj)).LenSqr()
	combined := p.ShadowBounds.Radius + b.SphereRadius
	if distFromAxisSq >= combined*combined {
		return false
	}
	if proj < 0 && toCenter.LenSqr() > combined*combined {
		return false
	}
	return p.Cascade == nil || p.Cascade.ShadowBoundsAccurate.IntersectBox(b.Origin, b.Extent)
}

// largeEnough reports whether a caster covers enough of at least one view to be drawn.
func (g *gatherer) largeEnough(b common.BoxSphereBounds) bool {
	rSq := common.Square(b.SphereRadius)
	for _, vc := range g.views {
		if rSq > g.minCasterSq*b.Origin.Sub(vc.origin).LenSqr()*vc.lodFactorSq {
			return true
		}
	}
	return len(g.views) == 0
}
