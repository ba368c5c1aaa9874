package shadow

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	log "github.com/sirupsen/logrus"
)

// maxCascadeAtlasSize is the size of the layouts the cascades of one light are packed into.
const maxCascadeAtlasSize = 8192

// allocateShadowDepthTargets places every shadow of the frame in a render target.
// Cascades of a light share atlases of their own, per-object shadows and uncached whole-scene
// shadows are packed into shadow-buffer-sized atlases, and cached or cube shadows get
// targets of their own.
func (s *setupImpl) allocateShadowDepthTargets(fc *frameContext) {
	var perObject []*ProjectedShadowInfo
	for _, ls := range fc.out.Lights {
		var cascades []*ProjectedShadowInfo
		entry := s.shadowMaps[ls.Light.ID()]

		for _, p := range append(slices.Clone(ls.Shadows), ls.PreShadows...) {
			switch {
			case p.AllocatedInPreshadowCache:
			case p.DirectionalLight && p.WholeScene:
				cascades = append(cascades, p)
			case p.CacheMode == CacheModeMovablePrimitivesOnly && !p.HasSubjects() && entry != nil && entry.target != nil:
				// Nothing movable to draw; the cached static depths are used as they are.
				p.Target = entry.target
				p.X, p.Y = 0, 0
				p.Allocated = true
			case p.OnePassPointLight:
				s.allocateCube(fc, p, entry)
			case p.CacheMode == CacheModeStaticPrimitivesOnly:
				s.allocateCached(fc, p, entry)
			default:
				perObject = append(perObject, p)
			}
		}
		if len(cascades) > 0 {
			s.allocateCascades(fc, cascades)
		}
	}
	s.allocatePerObject(fc, perObject)
}

// allocateCascades packs the cascades of one light into as few atlases as fit. A cascade
// that does not fit the open layout starts a fresh one, sized up when the cascade alone is
// larger than maxCascadeAtlasSize.
func (s *setupImpl) allocateCascades(fc *frameContext, cascades []*ProjectedShadowInfo) {
	var atlases []*Atlas
	var current *Atlas
	for _, p := range cascades {
		if current != nil {
			if x, y, ok := current.layout.AddElement(p.AtlasWidth(), p.AtlasHeight()); ok {
				p.X, p.Y = x, y
				current.Shadows = append(current.Shadows, p)
				continue
			}
		}
		size := atlasSizeFor(maxCascadeAtlasSize, p)
		layout := NewTextureLayout(size, size)
		x, y, ok := layout.AddElement(p.AtlasWidth(), p.AtlasHeight())
		if !ok {
			fc.out.Stats.FailedAllocations++
			continue
		}
		p.X, p.Y = x, y
		current = &Atlas{layout: layout, Shadows: []*ProjectedShadowInfo{p}}
		atlases = append(atlases, current)
	}
	if len(atlases) > 1 {
		s.logger.WithFields(log.Fields{"light": cascades[0].LightID, "atlases": len(atlases)}).Debug("cascades overflowed into extra atlases")
	}

	for i, a := range atlases {
		t, err := s.alloc.FindFree(common.RenderTargetDesc{
			Name:   fmt.Sprintf("CascadedShadowDepth%d_%d", cascades[0].LightID, i),
			Width:  a.layout.SizeX(),
			Height: a.layout.SizeY(),
			Format: common.ShadowDepthFormat,
		})
		if err != nil {
			s.allocationFailed(fc, err, a.Shadows...)
			continue
		}
		a.Target = t
		a.Desc = t.Desc()
		for _, p := range a.Shadows {
			p.Target = t
			p.Allocated = true
		}
		fc.out.CascadeAtlases = append(fc.out.CascadeAtlases, a)
		fc.out.Stats.Atlases++
	}
}

// atlasSizeFor returns size, or the next power of two that holds p when p is larger.
func atlasSizeFor(size uint32, p *ProjectedShadowInfo) uint32 {
	need := max(p.AtlasWidth(), p.AtlasHeight())
	if need <= size {
		return size
	}
	return 1 << common.CeilLogTwo(need)
}

func (s *setupImpl) allocatePerObject(fc *frameContext, shadows []*ProjectedShadowInfo) {
	if len(shadows) == 0 {
		return
	}
	slices.SortStableFunc(shadows, func(a, b *ProjectedShadowInfo) int {
		return cmp.Compare(b.ResolutionX, a.ResolutionX)
	})
	var atlases []*Atlas
	var current *Atlas
	for _, p := range shadows {
		if current != nil {
			if x, y, ok := current.layout.AddElement(p.AtlasWidth(), p.AtlasHeight()); ok {
				p.X, p.Y = x, y
				current.Shadows = append(current.Shadows, p)
				continue
			}
		}
		size := atlasSizeFor(s.cfg.ShadowBufferResolution, p)
		if size > s.cfg.ShadowBufferResolution {
			s.logger.WithFields(log.Fields{"shadow": p.String(), "size": size}).Debug("shadow larger than the shadow buffer gets its own atlas")
		}
		layout := NewTextureLayout(size, size)
		x, y, ok := layout.AddElement(p.AtlasWidth(), p.AtlasHeight())
		if !ok {
			fc.out.Stats.FailedAllocations++
			continue
		}
		p.X, p.Y = x, y
		current = &Atlas{layout: layout, Shadows: []*ProjectedShadowInfo{p}, Desc: common.RenderTargetDesc{Width: size, Height: size}}
		atlases = append(atlases, current)
	}

	for i, a := range atlases {
		t, err := s.alloc.FindFree(common.RenderTargetDesc{
			Name:   fmt.Sprintf("ShadowDepthAtlas%d", i),
			Width:  a.Desc.Width,
			Height: a.Desc.Height,
			Format: common.ShadowDepthFormat,
		})
		if err != nil {
			s.allocationFailed(fc, err, a.Shadows...)
			continue
		}
		a.Target = t
		a.Desc = t.Desc()
		for _, p := range a.Shadows {
			p.Target = t
			p.Allocated = true
		}
		fc.out.PerObjectAtlases = append(fc.out.PerObjectAtlases, a)
		fc.out.Stats.Atlases++
	}
}

// allocateCube gives a one-pass point light shadow a cube target. The static-only
// shadow's cube is persistent and kept in the cache entry.
func (s *setupImpl) allocateCube(fc *frameContext, p *ProjectedShadowInfo, entry *cachedShadowMap) {
	desc := common.RenderTargetDesc{
		Name:   fmt.Sprintf("CubeShadowDepth%d", p.LightID),
		Width:  p.ResolutionX,
		Height: p.ResolutionY,
		Format: common.CubeShadowDepthFormat,
		Faces:  uint32(len(p.FaceMatrices)),
	}
	if p.CacheMode == CacheModeStaticPrimitivesOnly {
		s.allocateCachedDesc(fc, p, entry, desc)
		return
	}
	t, err := s.alloc.FindFree(desc)
	if err != nil {
		s.allocationFailed(fc, err, p)
		return
	}
	p.Target = t
	p.X, p.Y = 0, 0
	p.Allocated = true
}

// allocateCached gives a static-only spot light shadow its own persistent target.
func (s *setupImpl) allocateCached(fc *frameContext, p *ProjectedShadowInfo, entry *cachedShadowMap) {
	s.allocateCachedDesc(fc, p, entry, common.RenderTargetDesc{
		Name:   fmt.Sprintf("CachedShadowDepth%d", p.LightID),
		Width:  p.AtlasWidth(),
		Height: p.AtlasHeight(),
		Format: common.ShadowDepthFormat,
	})
}

// allocateCachedDesc reserves a persistent target for a static-only shadow. When the
// allocator is out of budget the cache entry is dropped and the shadow falls back to a
// transient target, drawing every caster.
func (s *setupImpl) allocateCachedDesc(fc *frameContext, p *ProjectedShadowInfo, entry *cachedShadowMap, desc common.RenderTargetDesc) {
	desc.Persistent = true
	t, err := s.alloc.FindFree(desc)
	if err == nil && entry != nil {
		entry.target = t
		p.Target = t
		p.X, p.Y = 0, 0
		p.Allocated = true
		return
	}
	if t != nil {
		s.alloc.Release(t)
	}
	if err != nil && !errors.Is(err, target.ErrBudgetExceeded) {
		s.allocationFailed(fc, err, p)
		return
	}

	s.logger.WithFields(log.Fields{"light": p.LightID}).Debug("whole-scene shadow cache dropped")
	s.dropShadowMap(p.LightID)
	p.CacheMode = CacheModeUncached
	desc.Persistent = false
	if t, err = s.alloc.FindFree(desc); err != nil {
		s.allocationFailed(fc, err, p)
		return
	}
	p.Target = t
	p.X, p.Y = 0, 0
	p.Allocated = true
}

func (s *setupImpl) allocationFailed(fc *frameContext, err error, shadows ...*ProjectedShadowInfo) {
	fc.out.Stats.FailedAllocations += len(shadows)
	for _, p := range shadows {
		p.Allocated = false
		p.Target = nil
	}
	s.logger.WithError(err).WithField("shadows", len(shadows)).Warn("shadow depth target allocation failed")
}
