package shadow

import (
	"fmt"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func testConfig(opts ...config.ConfigOption) config.Config {
	return config.Default(append([]config.ConfigOption{config.WithWorkers(1)}, opts...)...)
}

// viewAt returns a 90 degree square view at eye looking along -Z.
func viewAt(eye mgl32.Vec3, seconds float64) *visibility.View {
	viewM := common.LookAt(eye, eye.Add(mgl32.Vec3{0, 0, -1}), mgl32.Vec3{0, 1, 0})
	proj := common.PerspectiveZO(mgl32.DegToRad(90), 1, 1, 10000)
	return visibility.NewView(1, viewM, proj, visibility.WithTime(seconds))
}

func newScene(lights []light.Light, prims ...primitive.Proxy) (scene.Scene, []primitive.ComponentID) {
	s := scene.NewScene("shadow", scene.WithWorldExtent(mgl32.Vec3{}, 4096))
	ids := make([]primitive.ComponentID, len(prims))
	for i, p := range prims {
		ids[i] = s.AddPrimitive(p)
	}
	for _, l := range lights {
		s.AddLight(l)
	}
	return s, ids
}

// renderFrame runs visibility for the view and then shadow setup, as the engine does.
func renderFrame(s scene.Scene, cfg config.Config, setup Setup, v *visibility.View) *FrameShadows {
	s.BeginFrame()
	defer s.EndFrame()
	visibility.Compute(visibility.Context{Scene: s, Config: cfg}, v)
	return setup.InitDynamicShadows(s, []*visibility.View{v})
}

func subjectIDs(p *ProjectedShadowInfo) []primitive.ComponentID {
	var out []primitive.ComponentID
	for _, info := range p.SubjectPrimitives {
		out = append(out, info.ComponentID)
	}
	slices.Sort(out)
	return out
}

func TestCalculateShadowFadeAlpha(t *testing.T) {
	tests := []struct {
		name       string
		resolution float32
		fade, min  uint32
		want       float32
	}{
		{"above fade", 100, 64, 32, 1},
		{"at fade", 64, 64, 32, 1},
		{"mid band", 48, 64, 32, 0.7255},
		{"just above min", 33, 64, 32, 0},
		{"at min", 32, 64, 32, 0},
		{"below min", 8, 64, 32, 0},
		{"empty band", 40, 40, 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateShadowFadeAlpha(tt.resolution, tt.fade, tt.min, 0.25)
			if math32.Abs(got-tt.want) > 1e-3 {
				t.Errorf("CalculateShadowFadeAlpha(%v, %d, %d) = %v, want %v", tt.resolution, tt.fade, tt.min, got, tt.want)
			}
		})
	}
}

func TestRoundResolution(t *testing.T) {
	tests := []struct {
		desired, max, want uint32
	}{
		{105, 2040, 64},
		{64, 2040, 32},
		{65, 2040, 64},
		{2040, 2040, 2040},
		{5000, 2040, 2040},
		{1, 2040, 1},
	}
	for _, tt := range tests {
		if got := RoundResolution(tt.desired, tt.max); got != tt.want {
			t.Errorf("RoundResolution(%d, %d) = %d, want %d", tt.desired, tt.max, got, tt.want)
		}
	}

	whole := []struct {
		desired, max, border, want uint32
	}{
		{1655, 2048, 4, 1016},
		{3000, 2048, 4, 2040},
		{700, 2048, 0, 512},
		{2, 2048, 4, 1},
	}
	for _, tt := range whole {
		if got := wholeSceneResolution(tt.desired, tt.max, tt.border); got != tt.want {
			t.Errorf("wholeSceneResolution(%d, %d, %d) = %d, want %d", tt.desired, tt.max, tt.border, got, tt.want)
		}
	}
}

func TestTextureLayout(t *testing.T) {
	l := NewTextureLayout(1024, 1024)
	type rect struct{ x, y uint32 }
	seen := map[rect]bool{}
	for i := range 4 {
		x, y, ok := l.AddElement(512, 512)
		if !ok {
			t.Fatalf("element %d did not fit", i)
		}
		if seen[rect{x, y}] {
			t.Fatalf("element %d placed over another at %d,%d", i, x, y)
		}
		seen[rect{x, y}] = true
	}
	if _, _, ok := l.AddElement(1, 1); ok {
		t.Error("full layout accepted another element")
	}
	if l.SizeX() != 1024 || l.SizeY() != 1024 || l.Len() != 4 {
		t.Errorf("size %dx%d with %d elements", l.SizeX(), l.SizeY(), l.Len())
	}

	if !l.RemoveElement(512, 512, 512, 512) {
		t.Fatal("RemoveElement() of a placed element failed")
	}
	if l.RemoveElement(512, 512, 512, 512) {
		t.Error("RemoveElement() freed the same element twice")
	}
	if x, y, ok := l.AddElement(256, 256); !ok || x != 512 || y != 512 {
		t.Errorf("AddElement() after removal = %d,%d,%v, want the freed corner", x, y, ok)
	}

	small := NewTextureLayout(2048, 2048)
	small.AddElement(300, 200)
	if small.SizeX() != 300 || small.SizeY() != 200 {
		t.Errorf("used extent = %dx%d, want 300x200", small.SizeX(), small.SizeY())
	}
	if _, _, ok := small.AddElement(4096, 16); ok {
		t.Error("oversized element accepted")
	}
}

func TestComputeWholeSceneShadowCacheModes(t *testing.T) {
	pool := target.NewPool()
	// One 1024 square depth map is 4 MiB; the budget holds one.
	cfg := testConfig(config.WithWholeSceneShadowCacheMb(3))
	s := NewSetup(WithConfig(cfg), WithAllocator(pool)).(*setupImpl)

	spot := light.NewLight(light.LightTypeSpot, light.WithID(7), light.WithMobility(common.MobilityStatic),
		light.WithPosition(0, 20, 0), light.WithRange(50))
	init := light.WholeSceneInitializers(spot)[0].ProjectedShadowInitializer
	both := []CacheMode{CacheModeStaticPrimitivesOnly, CacheModeMovablePrimitivesOnly}

	if got := s.computeWholeSceneShadowCacheModes(spot, init, 1016, 1016, 1, 0); !slices.Equal(got, both) {
		t.Fatalf("first frame modes = %v, want %v", got, both)
	}
	if got := s.computeWholeSceneShadowCacheModes(spot, init, 1016, 1016, 1, 0.1); !slices.Equal(got, both) {
		t.Errorf("modes without a rendered map = %v, want %v", got, both)
	}

	tgt, err := pool.FindFree(common.RenderTargetDesc{Width: 1024, Height: 1024, Format: common.ShadowDepthFormat, Persistent: true})
	if err != nil {
		t.Fatal(err)
	}
	s.shadowMaps[7].target = tgt
	if got := s.computeWholeSceneShadowCacheModes(spot, init, 1016, 1016, 1, 0.2); !slices.Equal(got, []CacheMode{CacheModeMovablePrimitivesOnly}) {
		t.Errorf("cached modes = %v, want movable-only", got)
	}

	other := light.NewLight(light.LightTypeSpot, light.WithID(8), light.WithMobility(common.MobilityStatic))
	otherInit := light.WholeSceneInitializers(other)[0].ProjectedShadowInitializer
	// Light 7's map was used this frame, so it cannot make room for light 8.
	if got := s.computeWholeSceneShadowCacheModes(other, otherInit, 512, 512, 1, 0.2); !slices.Equal(got, []CacheMode{CacheModeUncached}) {
		t.Errorf("over budget modes = %v, want uncached", got)
	}
	if _, ok := s.shadowMaps[8]; ok {
		t.Error("over budget light got a cache entry")
	}
	if s.shadowMaps[7].target != tgt {
		t.Error("map used this frame was evicted")
	}

	if got := s.computeWholeSceneShadowCacheModes(spot, init, 512, 512, 1, 0.3); !slices.Equal(got, both) {
		t.Errorf("resized modes = %v, want %v", got, both)
	}
	if s.shadowMaps[7].target != nil {
		t.Error("resize kept the stale map")
	}

	moving := light.NewLight(light.LightTypeSpot, light.WithID(7))
	if got := s.computeWholeSceneShadowCacheModes(moving, init, 512, 512, 1, 0.5); !slices.Equal(got, []CacheMode{CacheModeUncached}) {
		t.Errorf("movable light modes = %v, want uncached", got)
	}
	if s.NumCachedShadowMaps() != 0 {
		t.Errorf("movable light kept %d cache entries", s.NumCachedShadowMaps())
	}
}

func TestWholeSceneCacheEvictsLeastRecentlyUsed(t *testing.T) {
	spotWithID := func(id uint64) (light.Light, light.ProjectedShadowInitializer) {
		l := light.NewLight(light.LightTypeSpot, light.WithID(id), light.WithMobility(common.MobilityStatic),
			light.WithPosition(float32(id), 20, 0), light.WithRange(50))
		return l, light.WholeSceneInitializers(l)[0].ProjectedShadowInitializer
	}
	both := []CacheMode{CacheModeStaticPrimitivesOnly, CacheModeMovablePrimitivesOnly}

	// cached lists lights in order of use, each holding a 1024 wide map of height rows.
	tests := []struct {
		name     string
		budgetMb float32
		cached   []uint64
		height   uint32
		evicted  []uint64
		kept     []uint64
	}{
		{"oversized stale map", 3, []uint64{7}, 1024, []uint64{7}, nil},
		{"oldest of several", 6, []uint64{7, 9, 10}, 512, []uint64{7}, []uint64{9, 10}},
		{"two oldest", 6, []uint64{10, 9, 7}, 768, []uint64{10, 9}, []uint64{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := target.NewPool()
			s := NewSetup(WithConfig(testConfig(config.WithWholeSceneShadowCacheMb(tt.budgetMb))), WithAllocator(pool)).(*setupImpl)

			for i, id := range tt.cached {
				l, init := spotWithID(id)
				s.shadowMaps[id] = &cachedShadowMap{initializer: init, sizeX: 1024, sizeY: tt.height, faces: 1, lastUsed: float64(i)}
				tgt, err := pool.FindFree(common.RenderTargetDesc{Width: 1024, Height: tt.height, Format: common.ShadowDepthFormat, Persistent: true})
				if err != nil {
					t.Fatal(err)
				}
				s.shadowMaps[l.ID()].target = tgt
			}

			l, init := spotWithID(8)
			if got := s.computeWholeSceneShadowCacheModes(l, init, 512, 512, 1, 10); !slices.Equal(got, both) {
				t.Errorf("modes = %v, want %v", got, both)
			}
			if _, ok := s.shadowMaps[8]; !ok {
				t.Error("requesting light got no cache entry")
			}
			for _, id := range tt.evicted {
				if _, ok := s.shadowMaps[id]; ok {
					t.Errorf("light %d not evicted", id)
				}
			}
			for _, id := range tt.kept {
				if e, ok := s.shadowMaps[id]; !ok || e.target == nil {
					t.Errorf("light %d evicted", id)
				}
			}
			if limit := s.cfg.WholeSceneShadowCacheBytes(); s.shadowMapBytes()+512*512*4 > limit {
				t.Errorf("cache holds %d bytes, no room for the new map under %d", s.shadowMapBytes(), limit)
			}
		})
	}
}

// persistentBudget refuses every persistent target as over budget.
type persistentBudget struct {
	target.Allocator
}

func (a persistentBudget) FindFree(desc common.RenderTargetDesc) (target.Target, error) {
	if desc.Persistent {
		return nil, fmt.Errorf("%w: %s", target.ErrBudgetExceeded, desc.Name)
	}
	return a.Allocator.FindFree(desc)
}

func TestCachedShadowFallsBackToTransientTarget(t *testing.T) {
	s := NewSetup(WithConfig(testConfig()), WithAllocator(persistentBudget{target.NewPool()})).(*setupImpl)
	entry := &cachedShadowMap{sizeX: 1024, sizeY: 1024, faces: 1}
	s.shadowMaps[5] = entry
	fc := &frameContext{out: &FrameShadows{}}
	p := &ProjectedShadowInfo{LightID: 5, ResolutionX: 1016, ResolutionY: 1016, BorderSize: 4, CacheMode: CacheModeStaticPrimitivesOnly}

	s.allocateCached(fc, p, entry)
	if p.CacheMode != CacheModeUncached {
		t.Errorf("CacheMode = %v, want uncached", p.CacheMode)
	}
	if !p.Allocated || p.Target == nil || p.Target.Desc().Persistent {
		t.Errorf("shadow allocated %v with target %v, want a transient target", p.Allocated, p.Target)
	}
	if _, ok := s.shadowMaps[5]; ok {
		t.Error("cache entry kept after the budget failure")
	}
	if fc.out.Stats.FailedAllocations != 0 {
		t.Errorf("FailedAllocations = %d, want 0", fc.out.Stats.FailedAllocations)
	}
}

type placement struct {
	target uint64
	x, y   uint32
}

// checkPlacements fails when a shadow is unallocated or two shadows share a corner of one target.
func checkPlacements(t *testing.T, shadows []*ProjectedShadowInfo) {
	t.Helper()
	seen := map[placement]bool{}
	for i, p := range shadows {
		if !p.Allocated || p.Target == nil {
			t.Errorf("shadow %d not allocated", i)
			continue
		}
		at := placement{p.Target.ID(), p.X, p.Y}
		if seen[at] {
			t.Errorf("shadow %d placed over another at %+v", i, at)
		}
		seen[at] = true
	}
}

func TestCascadesOverflowIntoExtraAtlases(t *testing.T) {
	s := NewSetup(WithConfig(testConfig())).(*setupImpl)
	fc := &frameContext{out: &FrameShadows{}}
	// 2048 texel cascades fit sixteen to an 8192 layout.
	cascades := make([]*ProjectedShadowInfo, 18)
	for i := range cascades {
		cascades[i] = &ProjectedShadowInfo{LightID: 1, ResolutionX: 2040, ResolutionY: 2040, BorderSize: 4,
			DirectionalLight: true, WholeScene: true, SplitIndex: i}
	}

	s.allocateCascades(fc, cascades)
	checkPlacements(t, cascades)
	if len(fc.out.CascadeAtlases) != 2 {
		t.Fatalf("got %d cascade atlases, want 2", len(fc.out.CascadeAtlases))
	}
	if n := len(fc.out.CascadeAtlases[0].Shadows) + len(fc.out.CascadeAtlases[1].Shadows); n != len(cascades) {
		t.Errorf("atlases hold %d cascades, want %d", n, len(cascades))
	}
	if fc.out.Stats.FailedAllocations != 0 || fc.out.Stats.Atlases != 2 {
		t.Errorf("stats = %+v, want 2 atlases and no failures", fc.out.Stats)
	}
}

func TestPerObjectAtlasOverflow(t *testing.T) {
	tests := []struct {
		name        string
		resolutions []uint32
		atlases     []uint32
	}{
		{"one atlas", []uint32{1016, 1016, 1016, 1016}, []uint32{2048}},
		{"second atlas", []uint32{1016, 1016, 1016, 1016, 1016}, []uint32{2048, 2048}},
		{"oversized record", []uint32{1016, 3000}, []uint32{4096}},
		{"oversized records", []uint32{3000, 3000}, []uint32{4096, 4096}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSetup(WithConfig(testConfig(config.WithShadowBufferResolution(2048)))).(*setupImpl)
			fc := &frameContext{out: &FrameShadows{}}
			shadows := make([]*ProjectedShadowInfo, len(tt.resolutions))
			for i, r := range tt.resolutions {
				shadows[i] = &ProjectedShadowInfo{LightID: uint64(i + 1), ResolutionX: r, ResolutionY: r, BorderSize: 4}
			}

			s.allocatePerObject(fc, shadows)
			checkPlacements(t, shadows)
			var sizes []uint32
			for _, a := range fc.out.PerObjectAtlases {
				sizes = append(sizes, a.Desc.Width)
			}
			if !slices.Equal(sizes, tt.atlases) {
				t.Errorf("atlas sizes = %v, want %v", sizes, tt.atlases)
			}
		})
	}
}

// gatherScene is a grid of casters under a cascaded sun and a spot light.
func gatherScene() scene.Scene {
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0.2))
	spot := light.NewLight(light.LightTypeSpot,
		light.WithPosition(0, 40, -40),
		light.WithDirection(0, -1, 0),
		light.WithRange(200))
	var prims []primitive.Proxy
	for i := 0; i < 24; i++ {
		prims = append(prims, primitive.NewPrimitive(
			primitive.WithName(fmt.Sprintf("caster_%d", i)),
			primitive.WithPosition(float32(i%6)*8-20, float32(i/6)*4, -10-float32(i)*3)))
	}
	s, _ := newScene([]light.Light{sun, spot}, prims...)
	return s
}

func TestGatherOrderIndependentOfWorkers(t *testing.T) {
	gather := func(workers int) [][]primitive.ComponentID {
		cfg := testConfig(config.WithWorkers(workers), config.WithCascades(3, 2, 0.1, 2000), config.WithParallelGather(true))
		r := packet.NewRunner(workers)
		defer r.Close()
		s := gatherScene()
		fs := renderFrame(s, cfg, NewSetup(WithConfig(cfg), WithRunner(r)), viewAt(mgl32.Vec3{0, 10, 0}, 0))

		var out [][]primitive.ComponentID
		for _, ls := range fs.Lights {
			for _, p := range ls.Shadows {
				ids := []primitive.ComponentID{}
				for _, info := range p.SubjectPrimitives {
					ids = append(ids, info.ComponentID)
				}
				out = append(out, ids)
			}
		}
		return out
	}

	serial, parallel := gather(1), gather(4)
	if !slices.ContainsFunc(serial, func(ids []primitive.ComponentID) bool { return len(ids) > 1 }) {
		t.Fatal("serial gather found no shadow with several casters")
	}
	if len(serial) != len(parallel) {
		t.Fatalf("got %d shadows with 4 workers, want %d", len(parallel), len(serial))
	}
	for i := range serial {
		if !slices.Equal(serial[i], parallel[i]) {
			t.Errorf("shadow %d casters = %v with 4 workers, want %v", i, parallel[i], serial[i])
		}
	}
}

// stationaryScene is a movable subject under a stationary point light, with a static
// caster between them.
func stationaryScene() (scene.Scene, light.Light, primitive.ComponentID, primitive.ComponentID) {
	l := light.NewLight(light.LightTypePoint,
		light.WithMobility(common.MobilityStationary),
		light.WithPosition(0, 30, 0),
		light.WithRange(100),
		light.WithOnePassPointShadows(false))
	subject := primitive.NewPrimitive(primitive.WithName("subject"))
	caster := primitive.NewPrimitive(
		primitive.WithName("caster"),
		primitive.WithPosition(0, 15, 0),
		primitive.WithMobility(common.MobilityStatic),
		primitive.WithFlags(primitive.DefaultFlags|primitive.FlagHasStaticLighting))
	s, ids := newScene([]light.Light{l}, subject, caster)
	return s, l, ids[0], ids[1]
}

func TestPreshadowCacheReuse(t *testing.T) {
	cfg := testConfig()
	s, l, subjectID, casterID := stationaryScene()
	setup := NewSetup(WithConfig(cfg))

	first := renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 0, 20}, 0))
	ls := first.ForLight(l.ID())
	if ls == nil {
		t.Fatal("stationary light has no shadows")
	}
	if len(ls.Shadows) != 1 || !ls.Shadows[0].PerObjectOpaque {
		t.Fatalf("shadows = %v, want one per-object shadow", ls.Shadows)
	}
	opaque := ls.Shadows[0]
	if opaque.PrimitiveID != subjectID || opaque.ResolutionX != 64 || !opaque.Allocated {
		t.Errorf("per-object shadow = %v for %d, allocated %v", opaque, opaque.PrimitiveID, opaque.Allocated)
	}

	if len(first.PreShadows) != 1 {
		t.Fatalf("got %d preshadows, want 1", len(first.PreShadows))
	}
	pre := first.PreShadows[0]
	if pre.ResolutionX != 32 || !pre.AllocatedInPreshadowCache || !pre.Allocated || pre.DepthsCached {
		t.Errorf("first frame preshadow = %v, cached %v, allocated %v, depths cached %v",
			pre, pre.AllocatedInPreshadowCache, pre.Allocated, pre.DepthsCached)
	}
	if got := subjectIDs(pre); !slices.Equal(got, []primitive.ComponentID{casterID}) {
		t.Errorf("preshadow casters = %v, want [%d]", got, casterID)
	}
	if len(pre.ReceiverPrimitives) != 1 || pre.ReceiverPrimitives[0].ComponentID != subjectID {
		t.Errorf("preshadow receivers = %v", pre.ReceiverPrimitives)
	}
	x, y := pre.X, pre.Y

	second := renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 0, 20}, 1.0/60))
	if len(second.PreShadows) != 1 {
		t.Fatalf("second frame got %d preshadows, want 1", len(second.PreShadows))
	}
	again := second.PreShadows[0]
	if again != pre {
		t.Fatal("second frame did not reuse the cached preshadow")
	}
	if !again.DepthsCached || !again.Allocated || again.X != x || again.Y != y {
		t.Errorf("reused preshadow at %d,%d (was %d,%d), depths cached %v", again.X, again.Y, x, y, again.DepthsCached)
	}
	if second.Stats.CachedPreShadows != 1 || second.PreshadowCache == nil || again.Target != second.PreshadowCache.Target {
		t.Errorf("preshadow cache stats = %+v", second.Stats)
	}
}

func TestScenePrimitiveRemovalEvictsPreshadow(t *testing.T) {
	cfg := testConfig()
	s, _, subjectID, _ := stationaryScene()
	setup := NewSetup(WithConfig(cfg))
	setup.Attach(s)

	renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 0, 20}, 0))
	if n := setup.NumCachedPreshadows(); n != 1 {
		t.Fatalf("cached preshadows = %d, want 1", n)
	}
	if err := s.RemovePrimitive(subjectID); err != nil {
		t.Fatal(err)
	}
	if n := setup.NumCachedPreshadows(); n != 0 {
		t.Errorf("cached preshadows after removal = %d, want 0", n)
	}
}

func TestSceneLightRemovalDropsCaches(t *testing.T) {
	cfg := testConfig()
	s, l, _, _ := stationaryScene()
	setup := NewSetup(WithConfig(cfg))
	setup.Attach(s)

	renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 0, 20}, 0))
	s.RemoveLight(l)
	if n := setup.NumCachedPreshadows(); n != 0 {
		t.Errorf("cached preshadows after light removal = %d, want 0", n)
	}
}

func TestWholeSceneShadowCachedOnSecondFrame(t *testing.T) {
	tests := []struct {
		name     string
		mobility common.Mobility
		second   []CacheMode
	}{
		{"static light", common.MobilityStatic, []CacheMode{CacheModeMovablePrimitivesOnly}},
		{"movable light", common.MobilityMovable, []CacheMode{CacheModeUncached}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			spot := light.NewLight(light.LightTypeSpot,
				light.WithMobility(tt.mobility),
				light.WithPosition(0, 20, 0),
				light.WithDirection(0, -1, 0),
				light.WithRange(50))
			floor := primitive.NewPrimitive(primitive.WithMobility(common.MobilityStatic))
			s, ids := newScene([]light.Light{spot}, floor)
			setup := NewSetup(WithConfig(cfg))

			modes := func(fs *FrameShadows) []CacheMode {
				var out []CacheMode
				for _, p := range fs.ForLight(spot.ID()).Shadows {
					out = append(out, p.CacheMode)
				}
				return out
			}

			first := renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 10, 40}, 0))
			if tt.mobility == common.MobilityStatic {
				want := []CacheMode{CacheModeStaticPrimitivesOnly, CacheModeMovablePrimitivesOnly}
				if got := modes(first); !slices.Equal(got, want) {
					t.Fatalf("first frame modes = %v, want %v", got, want)
				}
				static := first.ForLight(spot.ID()).Shadows[0]
				if got := subjectIDs(static); !slices.Equal(got, ids) {
					t.Errorf("static-only casters = %v, want %v", got, ids)
				}
				if !static.Allocated || !static.Target.Desc().Persistent {
					t.Error("static-only shadow did not get a persistent target")
				}
			}

			second := renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 10, 40}, 1.0/60))
			if got := modes(second); !slices.Equal(got, tt.second) {
				t.Fatalf("second frame modes = %v, want %v", got, tt.second)
			}
			p := second.ForLight(spot.ID()).Shadows[0]
			if !p.Allocated {
				t.Error("second frame shadow not allocated")
			}
			if tt.mobility == common.MobilityStatic && p.Target != first.ForLight(spot.ID()).Shadows[0].Target {
				t.Error("movable-only shadow did not reuse the cached map")
			}
		})
	}
}

func TestCascadeGather(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		cfg := testConfig(config.WithCascades(3, 2, 0.1, 2000), config.WithParallelGather(parallel))
		sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0))
		near := primitive.NewPrimitive(primitive.WithName("near"), primitive.WithPosition(0, 0, -20))
		aside := primitive.NewPrimitive(primitive.WithName("aside"), primitive.WithPosition(50000, 0, -20))
		s, ids := newScene([]light.Light{sun}, near, aside)
		setup := NewSetup(WithConfig(cfg))

		fs := renderFrame(s, cfg, setup, viewAt(mgl32.Vec3{0, 10, 0}, 0))
		ls := fs.ForLight(sun.ID())
		if ls == nil || len(ls.Shadows) != 3 {
			t.Fatalf("parallel=%v: got %v, want 3 cascades", parallel, ls)
		}
		c0 := ls.Shadows[0]
		if c0.SplitIndex != 0 || !c0.DirectionalLight || !slices.Equal(c0.FadeAlphas, []float32{1}) {
			t.Errorf("parallel=%v: first cascade = %v, alphas %v", parallel, c0, c0.FadeAlphas)
		}
		if got := subjectIDs(c0); !slices.Equal(got, ids[:1]) {
			t.Errorf("parallel=%v: cascade 0 casters = %v, want %v", parallel, got, ids[:1])
		}
		for _, c := range ls.Shadows {
			if slices.Contains(subjectIDs(c), ids[1]) {
				t.Errorf("parallel=%v: cascade %d gathered a primitive outside its cylinder", parallel, c.SplitIndex)
			}
		}

		if len(fs.CascadeAtlases) != 1 || len(fs.CascadeAtlases[0].Shadows) != 3 {
			t.Fatalf("parallel=%v: cascade atlases = %v", parallel, fs.CascadeAtlases)
		}
		type corner struct{ x, y uint32 }
		placed := map[corner]bool{}
		for _, c := range ls.Shadows {
			if !c.Allocated || placed[corner{c.X, c.Y}] {
				t.Errorf("parallel=%v: cascade %d at %d,%d allocated %v", parallel, c.SplitIndex, c.X, c.Y, c.Allocated)
			}
			placed[corner{c.X, c.Y}] = true
		}
	}
}

func TestSmoothFadeAlphas(t *testing.T) {
	cfg := testConfig(config.WithSmoothShadowFade(true, 6, 1))
	s := NewSetup(WithConfig(cfg)).(*setupImpl)
	key := fadeKey{primitive: 1, light: 1}

	if got := s.smoothFadeAlphas(key, []float32{1}, 1.0/60); got[0] != 1 {
		t.Fatalf("first alpha = %v, want 1", got[0])
	}
	got := s.smoothFadeAlphas(key, []float32{0}, 1.0/60)
	if got[0] <= 0 || got[0] >= 1 {
		t.Errorf("alpha after one step = %v, want between 0 and 1", got[0])
	}
	for range 300 {
		got = s.smoothFadeAlphas(key, []float32{0}, 1.0/60)
	}
	if got[0] > 0.01 {
		t.Errorf("alpha after settling = %v, want about 0", got[0])
	}

	s.frame++
	s.trimSprings()
	if len(s.springs) != 0 {
		t.Error("unused spring survived trimming")
	}
}
