package shadow

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/chewxy/math32"
	log "github.com/sirupsen/logrus"
)

// setupInteractionShadows creates the per-object shadow and preshadow of one shadow group
// lit by a stationary light. Groups whose parent has static lighting are shadowed by the
// light's precomputed shadowing instead.
func (s *setupImpl) setupInteractionShadows(fc *frameContext, ls *LightShadows, g *shadowGroup, cascades []*ProjectedShadowInfo) {
	l := ls.Light
	parentFlags := g.parent.Proxy.Flags()
	if parentFlags.Has(primitive.FlagHasStaticLighting) {
		return
	}
	if l.LightingChannels()&g.parent.Proxy.LightingChannels() == 0 || !l.AffectsBounds(g.bounds) {
		return
	}
	s.createPerObjectProjectedShadow(fc, ls, g, cascades)
}

func (s *setupImpl) createPerObjectProjectedShadow(fc *frameContext, ls *LightShadows, g *shadowGroup, cascades []*ProjectedShadowInfo) {
	l := ls.Light
	cfg := s.cfg
	original := g.bounds

	subjectVisible := false
	for _, v := range fc.views {
		for _, c := range g.children {
			if v.IsVisible(c.PackedIndex) {
				subjectVisible = true
				break
			}
		}
	}

	fadeAlphas := make([]float32, len(fc.views))
	preAlphas := make([]float32, len(fc.views))
	var maxUnclamped, maxFade, maxPre, maxScreenPercent float32
	for i, v := range fc.views {
		dist := math32.Max(original.Origin.Sub(v.Origin).Len(), 1)
		maxScreenPercent = max(maxScreenPercent, v.ScreenMultiple*original.SphereRadius/dist)

		unclamped := v.PixelScreenRadius(original.Origin, original.SphereRadius) * cfg.ShadowTexelsPerPixel
		maxUnclamped = max(maxUnclamped, unclamped)
		fadeAlphas[i] = CalculateShadowFadeAlpha(unclamped, cfg.ShadowFadeResolution, cfg.MinShadowResolution, cfg.ShadowFadeExponent)
		preAlphas[i] = CalculateShadowFadeAlpha(unclamped*cfg.PreShadowResolutionFactor, cfg.PreShadowFadeResolution, cfg.MinPreShadowResolution, cfg.ShadowFadeExponent)
		maxFade = max(maxFade, fadeAlphas[i])
		maxPre = max(maxPre, preAlphas[i])
	}

	maxRes := min(cfg.MaxShadowResolution, cfg.ShadowBufferResolution) - 2*cfg.ShadowBorder
	scale := l.ShadowResolutionScale()
	desired := maxUnclamped
	if scale > 1 {
		desired *= scale
	}
	clamped := math32.Min(desired, float32(maxRes))
	if scale <= 1 {
		clamped *= scale
	}
	maxDesired := uint32(math32.Max(clamped, float32(min(cfg.MinShadowResolution, cfg.ShadowBufferResolution-2*cfg.ShadowBorder))))

	parentFlags := g.parent.Proxy.Flags()
	renderPreShadow := cfg.AllowPreshadows && subjectVisible &&
		!(parentFlags.Has(primitive.FlagUseSingleSampleShadowFromStationaryLights) && l.Type() == light.LightTypeDirectional)

	bounds := original
	if renderPreShadow && cfg.CachePreshadows {
		grow := original.Extent.Mul(cfg.PreshadowExpandFraction)
		bounds.SphereRadius += grow.Len()
		bounds.Extent = bounds.Extent.Add(grow)
	}

	if !(maxFade > MinFadeAlpha || (renderPreShadow && maxPre > MinFadeAlpha)) {
		return
	}
	init, ok := light.PerObjectInitializer(l, bounds)
	if !ok {
		fc.out.Stats.Degenerate++
		s.logger.WithFields(log.Fields{"light": l.ID(), "primitive": g.parent.ComponentID}).Trace("degenerate per-object shadow skipped")
		return
	}
	key := fadeKey{primitive: g.parent.ComponentID, light: l.ID()}

	if cfg.AllowPerObjectShadows && maxFade > MinFadeAlpha {
		p := newShadowInfo(l)
		p.PerObjectOpaque = true
		p.PrimitiveID = g.parent.ComponentID
		p.OriginalBounds = original
		p.MaxScreenPercent = maxScreenPercent
		size := RoundResolution(maxDesired, maxRes)
		p.setupProjection(init, size, size, cfg.ShadowBorder)
		p.FadeAlphas = s.smoothFadeAlphas(key, fadeAlphas, fc.dt)
		p.SubjectPrimitives = append(p.SubjectPrimitives, g.children...)
		ls.Shadows = append(ls.Shadows, p)
		fc.out.Stats.PerObjectShadows++
	}

	if !renderPreShadow || maxPre <= MinFadeAlpha || insideCascades(original, cascades) {
		return
	}
	size := common.RoundDownToPowerOfTwo(uint32(float32(maxDesired) * cfg.PreShadowResolutionFactor))
	p := s.getCachedPreshadow(g.parent.ComponentID, l.ID(), original, size)
	if p != nil {
		p.DepthsCached = true
	} else {
		p = newShadowInfo(l)
		p.PreShadow = true
		p.PrimitiveID = g.parent.ComponentID
		p.OriginalBounds = original
		p.setupProjection(init, size, size, cfg.ShadowBorder)
	}
	p.MaxScreenPercent = maxScreenPercent
	p.FadeAlphas = preAlphas
	p.ReceiverPrimitives = p.ReceiverPrimitives[:0]
	for _, c := range g.children {
		for _, v := range fc.views {
			if v.IsVisible(c.PackedIndex) {
				p.ReceiverPrimitives = append(p.ReceiverPrimitives, c)
				break
			}
		}
	}
	ls.PreShadows = append(ls.PreShadows, p)
	fc.out.PreShadows = append(fc.out.PreShadows, p)
	fc.out.Stats.PreShadows++
}

// insideCascades reports whether a subject lies entirely inside one of its light's
// cascades, which already shadow it from the static world.
func insideCascades(bounds common.BoxSphereBounds, cascades []*ProjectedShadowInfo) bool {
	for _, c := range cascades {
		reach := math32.Max(c.ShadowBounds.Radius-bounds.SphereRadius, 0)
		if bounds.Origin.Sub(c.ShadowBounds.Center).LenSqr() < reach*reach {
			return true
		}
	}
	return false
}
