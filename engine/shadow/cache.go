package shadow

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	"github.com/charmbracelet/harmonica"
	"github.com/chewxy/math32"
	log "github.com/sirupsen/logrus"
)

// preshadowCacheTolerance is the fraction of a cached preshadow's radius a subject may
// move before the cached depths are considered stale.
const preshadowCacheTolerance = 0.04

// preshadowCache is the persistent texture preshadows stay in while they keep being used.
type preshadowCache struct {
	layout  *TextureLayout
	target  target.Target
	entries []*ProjectedShadowInfo
}

// removeIf evicts the entries matching drop and frees their space.
func (c *preshadowCache) removeIf(drop func(*ProjectedShadowInfo) bool) {
	kept := c.entries[:0]
	for _, p := range c.entries {
		if drop(p) {
			c.evict(p)
			continue
		}
		kept = append(kept, p)
	}
	clear(c.entries[len(kept):])
	c.entries = kept
}

func (c *preshadowCache) evict(p *ProjectedShadowInfo) {
	if c.layout != nil {
		c.layout.RemoveElement(p.X, p.Y, p.AtlasWidth(), p.AtlasHeight())
	}
	p.AllocatedInPreshadowCache = false
	p.Allocated = false
	p.DepthsCached = false
}

func (c *preshadowCache) release(alloc target.Allocator) {
	c.removeIf(func(*ProjectedShadowInfo) bool { return true })
	if c.target != nil {
		alloc.Release(c.target)
		c.target = nil
	}
	c.layout = nil
}

// getCachedPreshadow returns the cached preshadow of a (primitive, light) interaction
// whose depths still cover the subject at the requested resolution.
func (s *setupImpl) getCachedPreshadow(primitiveID primitive.ComponentID, lightID uint64, bounds common.BoxSphereBounds, resolution uint32) *ProjectedShadowInfo {
	if !s.cfg.CachePreshadows {
		return nil
	}
	query := bounds.Sphere()
	for _, p := range s.preshadows.entries {
		if p.PrimitiveID == primitiveID && p.LightID == lightID &&
			query.IsInside(p.ShadowBounds, p.ShadowBounds.Radius*preshadowCacheTolerance) &&
			p.ResolutionX == resolution && p.Allocated {
			return p
		}
	}
	return nil
}

// updatePreshadowCache evicts cached preshadows not used this frame and packs this
// frame's uncached preshadows, largest first, into the free space.
func (s *setupImpl) updatePreshadowCache(fc *frameContext) {
	c := &s.preshadows
	if !s.cfg.CachePreshadows || !s.cfg.AllowPreshadows {
		c.release(s.alloc)
		return
	}
	res := s.cfg.PreshadowCacheResolution
	if c.layout == nil {
		c.layout = NewTextureLayout(res, res)
	}

	c.removeIf(func(p *ProjectedShadowInfo) bool {
		return !slices.Contains(fc.out.PreShadows, p)
	})

	var uncached []*ProjectedShadowInfo
	for _, p := range fc.out.PreShadows {
		if !p.AllocatedInPreshadowCache {
			uncached = append(uncached, p)
		}
	}
	slices.SortStableFunc(uncached, func(a, b *ProjectedShadowInfo) int {
		return int(int64(b.AtlasWidth())*int64(b.AtlasHeight()) - int64(a.AtlasWidth())*int64(a.AtlasHeight()))
	})
	for _, p := range uncached {
		x, y, ok := c.layout.AddElement(p.AtlasWidth(), p.AtlasHeight())
		if !ok {
			continue
		}
		p.X, p.Y = x, y
		p.AllocatedInPreshadowCache = true
		p.Allocated = true
		c.entries = append(c.entries, p)
	}

	if len(c.entries) == 0 {
		return
	}
	if c.target == nil {
		t, err := s.alloc.FindFree(common.RenderTargetDesc{
			Name:       "PreshadowCache",
			Width:      res,
			Height:     res,
			Format:     common.PreshadowCacheFormat,
			Persistent: true,
		})
		if err != nil {
			s.logger.WithError(err).Warn("preshadow cache target unavailable, preshadows fall back to the atlas")
			c.removeIf(func(*ProjectedShadowInfo) bool { return true })
			return
		}
		c.target = t
	}
	fc.out.PreshadowCache = &Atlas{Desc: c.target.Desc(), Target: c.target, layout: c.layout}
	for _, p := range c.entries {
		p.Target = c.target
		fc.out.PreshadowCache.Shadows = append(fc.out.PreshadowCache.Shadows, p)
		if p.DepthsCached {
			fc.out.Stats.CachedPreShadows++
		}
	}
}

// cachedShadowMap is the persistent depth of a non-movable light's whole-scene shadow.
type cachedShadowMap struct {
	initializer   light.ProjectedShadowInitializer
	target        target.Target
	sizeX, sizeY  uint32
	faces         uint32
	hasPrimitives bool
	lastUsed      float64
}

// computeWholeSceneShadowCacheModes decides how a whole-scene shadow uses the cache and
// updates the light's entry. A valid entry with a map of the same size only needs the
// movable casters. Otherwise the static casters are redrawn into a new cached map, after
// evicting least recently used entries to make room; the shadow is uncached only when the
// cache stays over budget.
func (s *setupImpl) computeWholeSceneShadowCacheModes(l light.Light, init light.ProjectedShadowInitializer, sizeX, sizeY, faces uint32, now float64) []CacheMode {
	id := l.ID()
	if !s.cfg.CacheWholeSceneShadows || l.Mobility().IsMovable() {
		s.dropShadowMap(id)
		return []CacheMode{CacheModeUncached}
	}

	entry, ok := s.shadowMaps[id]
	if ok && sameInitializer(entry.initializer, init) && entry.target != nil &&
		entry.sizeX == sizeX && entry.sizeY == sizeY && entry.faces == faces {
		entry.lastUsed = now
		return []CacheMode{CacheModeMovablePrimitivesOnly}
	}
	if ok {
		s.releaseShadowMapTarget(entry)
	}

	modes := []CacheMode{CacheModeUncached}
	if s.makeShadowMapRoom(id, shadowMapDesc(sizeX, sizeY, faces).SizeInBytes(), now) {
		modes = []CacheMode{CacheModeStaticPrimitivesOnly, CacheModeMovablePrimitivesOnly}
	}
	if !ok {
		if modes[0] == CacheModeUncached {
			return modes
		}
		entry = &cachedShadowMap{}
		s.shadowMaps[id] = entry
	}
	entry.initializer = init
	entry.sizeX, entry.sizeY, entry.faces = sizeX, sizeY, faces
	entry.lastUsed = now
	return modes
}

// shadowMapDesc is the target a cached whole-scene shadow of the given size occupies.
func shadowMapDesc(sizeX, sizeY, faces uint32) common.RenderTargetDesc {
	format := common.ShadowDepthFormat
	if faces > 1 {
		format = common.CubeShadowDepthFormat
	}
	return common.RenderTargetDesc{Width: sizeX, Height: sizeY, Faces: faces, Format: format}
}

// makeShadowMapRoom evicts the least recently used cached maps until need more bytes fit
// the budget. Maps of the requesting light and maps already used this frame are kept.
// It reports whether the cache is under budget afterwards, which admits one more map.
func (s *setupImpl) makeShadowMapRoom(requester uint64, need uint64, now float64) bool {
	budget := s.cfg.WholeSceneShadowCacheBytes()
	for s.shadowMapBytes()+need > budget {
		victim, found := uint64(0), false
		for id, e := range s.shadowMaps {
			if id == requester || e.target == nil || e.lastUsed >= now {
				continue
			}
			if v := s.shadowMaps[victim]; !found || e.lastUsed < v.lastUsed || (e.lastUsed == v.lastUsed && id < victim) {
				victim, found = id, true
			}
		}
		if !found {
			break
		}
		s.logger.WithFields(log.Fields{"light": victim, "requester": requester}).Debug("cached shadow map evicted")
		s.dropShadowMap(victim)
	}
	return s.shadowMapBytes() < budget
}

// sameInitializer reports whether two projections render the same depths.
func sameInitializer(a, b light.ProjectedShadowInitializer) bool {
	const eps = 1e-3
	return a.Orthographic == b.Orthographic &&
		a.Eye.ApproxEqualThreshold(b.Eye, eps) &&
		a.FaceDirection.ApproxEqualThreshold(b.FaceDirection, eps) &&
		math32.Abs(a.FieldOfView-b.FieldOfView) < eps &&
		math32.Abs(a.HalfWidth-b.HalfWidth) < eps &&
		math32.Abs(a.MaxSubjectZ-b.MaxSubjectZ) < eps
}

func (s *setupImpl) shadowMapBytes() uint64 {
	var total uint64
	for _, e := range s.shadowMaps {
		if e.target != nil {
			total += e.target.SizeInBytes()
		}
	}
	return total
}

func (s *setupImpl) releaseShadowMapTarget(e *cachedShadowMap) {
	if e.target != nil {
		s.alloc.Release(e.target)
		e.target = nil
	}
	e.hasPrimitives = false
}

func (s *setupImpl) dropShadowMap(lightID uint64) {
	if e, ok := s.shadowMaps[lightID]; ok {
		s.releaseShadowMapTarget(e)
		delete(s.shadowMaps, lightID)
	}
}

// expireShadowMaps drops cache entries that no frame has used for CachedShadowMapTimeout.
func (s *setupImpl) expireShadowMaps(now float64) {
	timeout := float64(s.cfg.CachedShadowMapTimeout)
	for id, e := range s.shadowMaps {
		if now-e.lastUsed > timeout {
			s.logger.WithFields(log.Fields{"light": id, "idle": now - e.lastUsed}).Debug("cached shadow map expired")
			s.dropShadowMap(id)
		}
	}
}

type fadeKey struct {
	primitive primitive.ComponentID
	light     uint64
}

// fadeSpring smooths the per-view fade alphas of one per-object shadow across frames.
type fadeSpring struct {
	pos, vel []float64
	frame    uint64
}

// smoothFadeAlphas moves the shadow's previous alphas towards this frame's on a
// critically damped spring, so shadows ease in and out as objects change size on screen.
func (s *setupImpl) smoothFadeAlphas(key fadeKey, alphas []float32, dt float64) []float32 {
	if !s.cfg.SmoothShadowFade {
		return alphas
	}
	st, ok := s.springs[key]
	if !ok || len(st.pos) != len(alphas) {
		st = &fadeSpring{pos: make([]float64, len(alphas)), vel: make([]float64, len(alphas))}
		for i, a := range alphas {
			st.pos[i] = float64(a)
		}
		s.springs[key] = st
	}
	st.frame = s.frame

	spring := harmonica.NewSpring(dt, s.cfg.ShadowFadeSpringFrequency, s.cfg.ShadowFadeSpringDamping)
	out := make([]float32, len(alphas))
	for i, a := range alphas {
		st.pos[i], st.vel[i] = spring.Update(st.pos[i], st.vel[i], float64(a))
		out[i] = common.Clamp(float32(st.pos[i]), 0, 1)
	}
	return out
}

// trimSprings forgets springs of shadows that were not created this frame.
func (s *setupImpl) trimSprings() {
	for k, st := range s.springs {
		if st.frame != s.frame {
			delete(s.springs, k)
		}
	}
}
