package shadow

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	log "github.com/sirupsen/logrus"
)

// Setup owns the shadow caches that live across frames and builds each frame's shadows.
type Setup interface {
	// InitDynamicShadows creates, gathers and allocates the shadows of a frame.
	// The scene must be inside a BeginFrame/EndFrame bracket and visibility must already
	// have been computed for every view.
	//
	// Parameters:
	//   - s: the scene
	//   - views: the frame's views, in the order their fade alphas are reported
	//
	// Returns:
	//   - *FrameShadows: the frame's shadows
	InitDynamicShadows(s scene.Scene, views []*visibility.View) *FrameShadows

	// Attach registers removal listeners so removed primitives and lights drop their
	// cached shadows.
	//
	// Parameters:
	//   - s: the scene to follow
	Attach(s scene.Scene)

	// ForgetPrimitive drops every cached shadow that references a primitive.
	//
	// Parameters:
	//   - id: the removed primitive
	ForgetPrimitive(id primitive.ComponentID)

	// ForgetLight drops every cached shadow of a light.
	//
	// Parameters:
	//   - lightID: the removed light
	ForgetLight(lightID uint64)

	// NumCachedPreshadows returns the number of preshadows held in the preshadow cache.
	//
	// Returns:
	//   - int: the count
	NumCachedPreshadows() int

	// NumCachedShadowMaps returns the number of whole-scene cache entries.
	//
	// Returns:
	//   - int: the count
	NumCachedShadowMaps() int

	// Release returns every persistent target to the allocator and clears the caches.
	Release()
}

type setupImpl struct {
	mu     sync.Mutex
	cfg    config.Config
	runner packet.Runner
	alloc  target.Allocator
	logger *log.Entry

	preshadows preshadowCache
	shadowMaps map[uint64]*cachedShadowMap
	springs    map[fadeKey]*fadeSpring

	lastTime float64
	frame    uint64
}

var _ Setup = &setupImpl{}

// NewSetup creates a Setup with the given options.
//
// Parameters:
//   - options: functional options to configure the setup
//
// Returns:
//   - Setup: the shadow setup
func NewSetup(options ...SetupBuilderOption) Setup {
	s := &setupImpl{
		cfg:        config.Default(),
		shadowMaps: make(map[uint64]*cachedShadowMap),
		springs:    make(map[fadeKey]*fadeSpring),
		logger:     log.WithFields(log.Fields{"component": "shadow"}),
	}
	for _, option := range options {
		option(s)
	}
	if s.runner == nil {
		s.runner = packet.NewRunner(1)
	}
	if s.alloc == nil {
		s.alloc = target.NewPool()
	}
	return s
}

// frameContext is what the setup stages share during one InitDynamicShadows call.
type frameContext struct {
	scene  scene.Scene
	views  []*visibility.View
	now    float64
	dt     float64
	out    *FrameShadows
	groups []*shadowGroup
}

func (s *setupImpl) InitDynamicShadows(sc scene.Scene, views []*visibility.View) *FrameShadows {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	fc := &frameContext{scene: sc, views: views, out: &FrameShadows{}}
	for _, v := range views {
		fc.now = max(fc.now, v.Time)
	}
	fc.dt = fc.now - s.lastTime
	if s.frame == 0 || fc.dt <= 0 {
		fc.dt = 1.0 / 60
	}
	s.expireShadowMaps(fc.now)

	if len(views) > 0 {
		for _, l := range sc.FrameLights() {
			if !l.Enabled() || !l.CastsShadows() {
				continue
			}
			ls := &LightShadows{Light: l}
			fc.out.Lights = append(fc.out.Lights, ls)

			var cascades []*ProjectedShadowInfo
			switch l.Type() {
			case light.LightTypeDirectional:
				cascades = s.addViewDependentWholeSceneShadows(fc, ls)
			default:
				s.createWholeSceneProjectedShadow(fc, ls)
			}

			if l.Mobility() == common.MobilityStationary && (s.cfg.AllowPerObjectShadows || s.cfg.AllowPreshadows) {
				if fc.groups == nil {
					fc.groups = buildShadowGroups(sc)
				}
				for _, g := range fc.groups {
					s.setupInteractionShadows(fc, ls, g, cascades)
				}
			}
		}
	}

	s.updatePreshadowCache(fc)
	s.gatherShadowPrimitives(fc)
	s.finishWholeSceneShadows(fc)
	s.allocateShadowDepthTargets(fc)
	s.trimSprings()

	s.lastTime = fc.now
	s.frame++

	st := &fc.out.Stats
	st.CachedShadowMaps = len(s.shadowMaps)
	st.ShadowCacheBytes = s.shadowMapBytes()
	st.PreshadowCacheUsed = len(s.preshadows.entries)
	st.SetupDuration = time.Since(start)
	s.logger.WithFields(log.Fields{
		"lights":     len(fc.out.Lights),
		"cascades":   st.Cascades,
		"wholeScene": st.WholeSceneShadows,
		"perObject":  st.PerObjectShadows,
		"preshadows": st.PreShadows,
		"casters":    st.GatheredCasters,
	}).Trace("shadows set up")
	return fc.out
}

func (s *setupImpl) Attach(sc scene.Scene) {
	sc.OnPrimitiveRemoved(s.ForgetPrimitive)
	sc.OnLightRemoved(s.ForgetLight)
}

func (s *setupImpl) ForgetPrimitive(id primitive.ComponentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preshadows.removeIf(func(p *ProjectedShadowInfo) bool {
		if p.PrimitiveID == id {
			return true
		}
		for _, info := range p.SubjectPrimitives {
			if info.ComponentID == id {
				return true
			}
		}
		return false
	})
	for k := range s.springs {
		if k.primitive == id {
			delete(s.springs, k)
		}
	}
}

func (s *setupImpl) ForgetLight(lightID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preshadows.removeIf(func(p *ProjectedShadowInfo) bool {
		return p.LightID == lightID
	})
	s.dropShadowMap(lightID)
	for k := range s.springs {
		if k.light == lightID {
			delete(s.springs, k)
		}
	}
}

func (s *setupImpl) NumCachedPreshadows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.preshadows.entries)
}

func (s *setupImpl) NumCachedShadowMaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shadowMaps)
}

func (s *setupImpl) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preshadows.release(s.alloc)
	for id := range s.shadowMaps {
		s.dropShadowMap(id)
	}
	clear(s.springs)
}

// shadowGroup is a shadow parent and the primitives that join its per-object shadow.
type shadowGroup struct {
	parent   *primitive.SceneInfo
	children []*primitive.SceneInfo
	// bounds encloses the children that cast dynamic shadows.
	bounds common.BoxSphereBounds
}

// buildShadowGroups groups the scene's shadow-casting primitives by shadow parent, in
// order of first appearance. A parent that is not registered leaves the child on its own.
func buildShadowGroups(sc scene.Scene) []*shadowGroup {
	flags := sc.PrimitiveFlags()
	bounds := sc.PrimitiveBounds()
	byParent := make(map[primitive.ComponentID]*shadowGroup)
	var groups []*shadowGroup

	for i := range sc.NumPrimitives() {
		info := sc.Primitive(i)
		if !info.Proxy.Enabled() || !flags[i].Has(primitive.FlagCastShadow|primitive.FlagCastsDynamicShadow) {
			continue
		}
		parent := info
		if pid := info.Proxy.ShadowGroup(); pid != primitive.InvalidComponentID {
			if p, ok := sc.PrimitiveByID(pid); ok {
				parent = p
			}
		}
		g, ok := byParent[parent.ComponentID]
		if !ok {
			g = &shadowGroup{parent: parent, bounds: bounds[i]}
			byParent[parent.ComponentID] = g
			groups = append(groups, g)
		} else {
			g.bounds = g.bounds.Union(bounds[i])
		}
		g.children = append(g.children, info)
	}
	return groups
}
