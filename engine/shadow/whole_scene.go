package shadow

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/chewxy/math32"
	log "github.com/sirupsen/logrus"
)

// createWholeSceneProjectedShadow creates the shadow covering a point or spot light's
// whole influence, split by cache mode when the light's depths are cached.
func (s *setupImpl) createWholeSceneProjectedShadow(fc *frameContext, ls *LightShadows) {
	l := ls.Light
	inits := light.WholeSceneInitializers(l)
	if len(inits) == 0 {
		return
	}
	onePass := inits[0].OnePassPointLight
	border := s.cfg.ShadowBorder
	if onePass {
		border = 0
	}
	texelsPerPixel := s.cfg.ShadowTexelsPerPixel
	if l.Type() == light.LightTypeSpot {
		texelsPerPixel = s.cfg.ShadowTexelsPerPixelSpotlight
	}

	sphere := l.BoundingSphere()
	minRes := min(s.cfg.MinShadowResolution, s.cfg.ShadowBufferResolution-2*border)
	fadeAlphas := make([]float32, len(fc.views))
	var maxDesired, maxFade float32
	for i, v := range fc.views {
		unclamped := v.PixelScreenRadius(sphere.Center, sphere.Radius) * texelsPerPixel
		fadeAlphas[i] = CalculateShadowFadeAlpha(unclamped, s.cfg.ShadowFadeResolution, s.cfg.MinShadowResolution, s.cfg.ShadowFadeExponent)
		maxFade = max(maxFade, fadeAlphas[i])
		maxDesired = max(maxDesired, unclamped, float32(minRes))
	}
	if maxFade <= MinFadeAlpha {
		return
	}

	maxRes := min(s.cfg.MaxShadowResolution, s.cfg.ShadowBufferResolution)
	desired := uint32(math32.Min(maxDesired*l.ShadowResolutionScale(), float32(maxRes)))
	size := wholeSceneResolution(desired, maxRes, border)

	faces := uint32(1)
	if onePass {
		faces = uint32(len(inits))
	}
	modes := s.computeWholeSceneShadowCacheModes(l, inits[0].ProjectedShadowInitializer, size, size, faces, fc.now)

	for _, mode := range modes {
		p := newShadowInfo(l)
		p.WholeScene = true
		p.CacheMode = mode
		p.FadeAlphas = fadeAlphas
		if onePass {
			p.setupOnePass(inits, size)
		} else {
			p.setupProjection(inits[0].ProjectedShadowInitializer, size, size, border)
		}
		ls.Shadows = append(ls.Shadows, p)
		fc.out.Stats.WholeSceneShadows++
	}
}

// addViewDependentWholeSceneShadows creates the cascades of a directional light for every
// perspective view. Each cascade only fades in for the view it was fitted to.
func (s *setupImpl) addViewDependentWholeSceneShadows(fc *frameContext, ls *LightShadows) []*ProjectedShadowInfo {
	l := ls.Light
	settings := l.CascadeSettings().Merge(s.cfg.CascadeSettings())
	border := s.cfg.ShadowBorder
	res := min(s.cfg.MaxShadowResolution, s.cfg.ShadowBufferResolution) - 2*border

	var out []*ProjectedShadowInfo
	for vi, v := range fc.views {
		cv, ok := v.CascadeView()
		if !ok {
			continue
		}
		for index := range settings.NumCascades() {
			init, ok := light.ViewDependentWholeSceneInitializer(l, cv, index, settings)
			if !ok || init.Cascade.Bounds.Radius <= 0 {
				fc.out.Stats.Degenerate++
				continue
			}
			p := newShadowInfo(l)
			p.WholeScene = true
			p.DirectionalLight = true
			p.DependentView = v
			p.SplitIndex = index
			p.Cascade = init.Cascade
			p.setupProjection(init.SnapToTexels(res), res, res, border)
			p.ShadowBounds = init.Cascade.Bounds
			p.FadeAlphas = make([]float32, len(fc.views))
			p.FadeAlphas[vi] = 1

			ls.Shadows = append(ls.Shadows, p)
			out = append(out, p)
			fc.out.Stats.Cascades++
		}
	}
	return out
}

// finishWholeSceneShadows applies what gathering found to the whole-scene cache. A
// static-only shadow without casters is dropped, and a movable-only shadow with nothing
// to draw over an empty cached map is not visible.
func (s *setupImpl) finishWholeSceneShadows(fc *frameContext) {
	for _, ls := range fc.out.Lights {
		entry := s.shadowMaps[ls.Light.ID()]
		kept := ls.Shadows[:0]
		for _, p := range ls.Shadows {
			switch p.CacheMode {
			case CacheModeStaticPrimitivesOnly:
				if entry != nil {
					entry.hasPrimitives = p.HasSubjects()
				}
				if !p.HasSubjects() {
					continue
				}
			case CacheModeMovablePrimitivesOnly:
				if !p.HasSubjects() && (entry == nil || !entry.hasPrimitives) {
					s.logger.WithFields(log.Fields{"light": p.LightID}).Trace("movable-only shadow has nothing to draw")
					continue
				}
			}
			kept = append(kept, p)
		}
		clear(ls.Shadows[len(kept):])
		ls.Shadows = kept
	}
}
