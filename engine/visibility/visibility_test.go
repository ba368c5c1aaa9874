package visibility

import (
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/packet"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func testConfig(opts ...config.ConfigOption) config.Config {
	c := config.Default(append([]config.ConfigOption{config.WithWorkers(1)}, opts...)...)
	c.NumBufferedFrames = 1
	return c
}

// viewAt returns a 90 degree square view at eye looking along dir.
func viewAt(eye, dir mgl32.Vec3, options ...ViewBuilderOption) *View {
	viewM := common.LookAt(eye, eye.Add(dir), mgl32.Vec3{0, 1, 0})
	proj := common.PerspectiveZO(mgl32.DegToRad(90), 1, 1, 10000)
	return NewView(1, viewM, proj, options...)
}

var forward = mgl32.Vec3{0, 0, -1}

func newScene(prims ...primitive.Proxy) (scene.Scene, []primitive.ComponentID) {
	s := scene.NewScene("visibility", scene.WithWorldExtent(mgl32.Vec3{}, 4096))
	ids := make([]primitive.ComponentID, len(prims))
	for i, p := range prims {
		ids[i] = s.AddPrimitive(p)
	}
	return s, ids
}

func compute(s scene.Scene, cfg config.Config, v *View) FrameStats {
	s.BeginFrame()
	defer s.EndFrame()
	return Compute(Context{Scene: s, Config: cfg}, v)
}

func visibleIDs(s scene.Scene, v *View) []primitive.ComponentID {
	s.BeginFrame()
	defer s.EndFrame()
	var out []primitive.ComponentID
	for i := range v.PrimitiveVisibility.All() {
		out = append(out, s.PrimitiveComponentIDs()[i])
	}
	slices.Sort(out)
	return out
}

func packedIndex(s scene.Scene, id primitive.ComponentID) int {
	s.BeginFrame()
	defer s.EndFrame()
	info, _ := s.PrimitiveByID(id)
	return info.PackedIndex
}

func TestBitmap(t *testing.T) {
	b := NewBitmap(130)
	for _, i := range []int{0, 63, 64, 129} {
		b.Set(i, true)
	}
	if got := slices.Collect(b.All()); !slices.Equal(got, []int{0, 63, 64, 129}) {
		t.Errorf("All() = %v", got)
	}
	if b.Count() != 4 || b.NumWords() != 3 {
		t.Errorf("Count() = %d, NumWords() = %d", b.Count(), b.NumWords())
	}
	b.Set(63, false)
	if b.Get(63) || !b.Get(64) || b.Get(500) {
		t.Error("Get() disagrees with Set()")
	}
	b.SetWord(2, ^uint64(0))
	if b.Count() != 4 {
		t.Errorf("SetWord() kept bits past Len: Count() = %d", b.Count())
	}
	c := b.Clone()
	c.Set(1, true)
	if b.Equal(&c) {
		t.Error("Clone() shares storage")
	}
	b.Reset(10)
	if b.Count() != 0 || b.Len() != 10 {
		t.Errorf("Reset() left Count %d Len %d", b.Count(), b.Len())
	}
}

func TestFrustumCullClearsOutside(t *testing.T) {
	s, ids := newScene(
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -50)),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, 50)),
		primitive.NewPrimitive(primitive.WithPosition(500, 0, -50)),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -50), primitive.WithEnabled(false)),
	)
	v := viewAt(mgl32.Vec3{}, forward)

	s.BeginFrame()
	FrustumCull(Context{Scene: s, Config: testConfig()}, v)
	s.EndFrame()

	if got := visibleIDs(s, v); !slices.Equal(got, []primitive.ComponentID{ids[0]}) {
		t.Errorf("visible after frustum cull = %v, want [%d]", got, ids[0])
	}
	if v.Stats.FrustumCulled != 2 {
		t.Errorf("FrustumCulled = %d, want 2", v.Stats.FrustumCulled)
	}
}

func TestDistanceCull(t *testing.T) {
	s, ids := newScene(
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -50), primitive.WithDrawDistance(0, 100)),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -200), primitive.WithDrawDistance(0, 100)),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -20), primitive.WithDrawDistance(30, 0)),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -5000)),
	)
	v := viewAt(mgl32.Vec3{}, forward)
	stats := compute(s, testConfig(), v)

	want := []primitive.ComponentID{ids[0], ids[3]}
	if got := visibleIDs(s, v); !slices.Equal(got, want) {
		t.Errorf("visible = %v, want %v", got, want)
	}
	if stats.DistanceCulled != 2 {
		t.Errorf("DistanceCulled = %d, want 2", stats.DistanceCulled)
	}

	scaled := testConfig(config.WithDistanceScales(3, 1))
	v = viewAt(mgl32.Vec3{}, forward)
	compute(s, scaled, v)
	if !v.IsVisible(packedIndex(s, ids[1])) {
		t.Error("view distance scale did not extend the draw distance")
	}
}

func TestCustomVisibilityFailsClosed(t *testing.T) {
	s, ids := newScene(
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -20), primitive.WithVisibilityFunc(func(uint32) (bool, error) {
			return true, errors.New("no data")
		})),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -30), primitive.WithVisibilityFunc(func(uint32) (bool, error) {
			panic("broken predicate")
		})),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -40), primitive.WithVisibilityFunc(func(viewID uint32) (bool, error) {
			return viewID == 1, nil
		})),
	)
	v := viewAt(mgl32.Vec3{}, forward)
	stats := compute(s, testConfig(), v)

	if got := visibleIDs(s, v); !slices.Equal(got, []primitive.ComponentID{ids[2]}) {
		t.Errorf("visible = %v, want [%d]", got, ids[2])
	}
	if stats.CustomCulled != 2 {
		t.Errorf("CustomCulled = %d, want 2", stats.CustomCulled)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	var prims []primitive.Proxy
	for x := -10; x < 10; x++ {
		for z := 1; z <= 15; z++ {
			prims = append(prims, primitive.NewPrimitive(
				primitive.WithPosition(float32(x*12), 0, float32(-z*12)),
				primitive.WithDrawDistance(0, float32(60+z*5)),
				primitive.WithDrawBatches(
					primitive.DrawBatch{LODIndex: 0, ScreenSize: 0.3, UseForMaterial: true, CastShadow: true},
					primitive.DrawBatch{LODIndex: 1, UseForMaterial: true, CastShadow: true},
				),
			))
		}
	}
	s, _ := newScene(prims...)
	cfg := testConfig(config.WithPacketSizes(1, 256, 16))

	first := viewAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0.3, 0, -1})
	compute(s, cfg, first)
	again := viewAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0.3, 0, -1})
	compute(s, cfg, again)
	compute(s, cfg, again)

	runner := packet.NewRunner(4)
	defer runner.Close()
	parallel := viewAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0.3, 0, -1})
	s.BeginFrame()
	Compute(Context{Scene: s, Config: cfg, Runner: runner}, parallel)
	s.EndFrame()

	for _, other := range []*View{again, parallel} {
		if !first.PrimitiveVisibility.Equal(&other.PrimitiveVisibility) {
			t.Error("primitive visibility differs between identical passes")
		}
		if !first.StaticMeshVisibility.Equal(&other.StaticMeshVisibility) {
			t.Error("batch visibility differs between identical passes")
		}
		if !first.StaticMeshShadowDepth.Equal(&other.StaticMeshShadowDepth) {
			t.Error("shadow depth batches differ between identical passes")
		}
	}
	if first.PrimitiveVisibility.Count() == 0 {
		t.Fatal("nothing visible; the test scene is misplaced")
	}
}

func TestFadeOutKeepsPrimitiveVisibleUntilExpiry(t *testing.T) {
	s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -90), primitive.WithDrawDistance(0, 100)))
	cfg := testConfig(config.WithFadeTime(0.25))
	cfg.DistanceFadeMaxTravel = 20
	state := NewViewState()
	idx := packedIndex(s, ids[0])

	frames := []struct {
		eyeZ        float32
		time        float64
		wantVisible bool
		wantActive  bool
	}{
		// Inside the fade band, then past the draw distance until the fade ends at 0.35.
		{0, 0.0, true, false},
		{20, 0.1, true, true},
		{20, 0.2, true, true},
		{20, 0.3, true, true},
		{20, 0.4, false, false},
		{20, 0.5, false, false},
	}
	for i, f := range frames {
		v := viewAt(mgl32.Vec3{0, 0, f.eyeZ}, forward, WithViewState(state), WithTime(f.time))
		compute(s, cfg, v)
		if got := v.IsVisible(idx); got != f.wantVisible {
			t.Errorf("frame %d: visible = %v, want %v", i, got, f.wantVisible)
		}
		if got := v.FadeUniforms[idx].Active; got != f.wantActive {
			t.Errorf("frame %d: fade active = %v, want %v", i, got, f.wantActive)
		}
	}
}

func TestFadeReversalKeepsOpacity(t *testing.T) {
	s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -90), primitive.WithDrawDistance(0, 100)))
	cfg := testConfig(config.WithFadeTime(0.25))
	cfg.DistanceFadeMaxTravel = 20
	state := NewViewState()
	idx := packedIndex(s, ids[0])

	compute(s, cfg, viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0)))
	compute(s, cfg, viewAt(mgl32.Vec3{0, 0, 20}, forward, WithViewState(state), WithTime(0.1)))
	out := viewAt(mgl32.Vec3{0, 0, 20}, forward, WithViewState(state), WithTime(0.2))
	compute(s, cfg, out)
	back := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0.2))
	compute(s, cfg, back)

	before := out.FadeUniforms[idx].Opacity(0.2)
	after := back.FadeUniforms[idx].Opacity(0.2)
	if math32.Abs(before-0.6) > 1e-4 || math32.Abs(after-before) > 1e-4 {
		t.Errorf("opacity at reversal: fading out %v, fading in %v, want both 0.6", before, after)
	}
	if back.FadeUniforms[idx].Scale <= 0 {
		t.Errorf("reversed fade scale = %v, want positive", back.FadeUniforms[idx].Scale)
	}
}

func TestOcclusion(t *testing.T) {
	approx := primitive.DefaultFlags | primitive.FlagAllowApproximateOcclusion

	t.Run("occluded after a zero-pixel result", func(t *testing.T) {
		s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 0 })
		state := NewViewState(WithOcclusionBackend(backend))
		idx := packedIndex(s, ids[0])

		v := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0))
		compute(s, testConfig(), v)
		if !v.IsVisible(idx) || v.PrimitiveDefinitelyUnoccluded.Get(idx) {
			t.Fatal("first frame without history must be visible with an indefinite state")
		}
		if backend.Batched != 1 || backend.BatchedGrouped != 0 {
			t.Fatalf("first frame batched %d queries (%d grouped), want 1 individual", backend.Batched, backend.BatchedGrouped)
		}

		v = viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0.016))
		stats := compute(s, testConfig(), v)
		if v.IsVisible(idx) || stats.Occluded != 1 {
			t.Errorf("second frame: visible %v, occluded %d", v.IsVisible(idx), stats.Occluded)
		}
		if backend.Outstanding() != 1 {
			t.Errorf("outstanding queries = %d, want 1 (read query released)", backend.Outstanding())
		}
	})

	t.Run("approximate occlusion groups occluded primitives", func(t *testing.T) {
		s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50), primitive.WithFlags(approx)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 0 })
		state := NewViewState(WithOcclusionBackend(backend))
		idx := packedIndex(s, ids[0])

		for i, tm := range []float64{0, 0.016, 0.032} {
			v := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(tm))
			compute(s, testConfig(), v)
			if i > 0 && v.IsVisible(idx) {
				t.Errorf("frame %d: occluded primitive visible", i)
			}
		}
		if backend.BatchedGrouped != 2 {
			t.Errorf("grouped queries = %d, want 2", backend.BatchedGrouped)
		}
	})

	t.Run("visible result is definite", func(t *testing.T) {
		s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 400 })
		state := NewViewState(WithOcclusionBackend(backend))
		idx := packedIndex(s, ids[0])

		compute(s, testConfig(), viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0)))
		v := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0.016))
		compute(s, testConfig(), v)
		if !v.IsVisible(idx) || !v.PrimitiveDefinitelyUnoccluded.Get(idx) {
			t.Error("primitive with visible pixels is not definitely unoccluded")
		}
	})

	t.Run("failed read counts as visible", func(t *testing.T) {
		s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 0 })
		state := NewViewState(WithOcclusionBackend(backend))
		idx := packedIndex(s, ids[0])

		compute(s, testConfig(), viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0)))
		backend.SetFailReads(true)
		v := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0.016))
		compute(s, testConfig(), v)
		if !v.IsVisible(idx) || v.PrimitiveDefinitelyUnoccluded.Get(idx) {
			t.Error("failed read must leave the primitive visible with an indefinite state")
		}
	})

	t.Run("near plane boxes are never queried", func(t *testing.T) {
		s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -1.5)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 0 })
		state := NewViewState(WithOcclusionBackend(backend))
		idx := packedIndex(s, ids[0])

		for _, tm := range []float64{0, 0.016} {
			v := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(tm))
			compute(s, testConfig(), v)
			if !v.IsVisible(idx) || !v.PrimitiveDefinitelyUnoccluded.Get(idx) {
				t.Errorf("t=%v: near plane primitive not definitely unoccluded", tm)
			}
		}
		if backend.Batched != 0 {
			t.Errorf("near plane primitive was queried %d times", backend.Batched)
		}
	})

	t.Run("non-occludable primitives skip queries", func(t *testing.T) {
		s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50),
			primitive.WithFlags(primitive.DefaultFlags&^primitive.FlagCanBeOccluded)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 0 })
		state := NewViewState(WithOcclusionBackend(backend))

		v := viewAt(mgl32.Vec3{}, forward, WithViewState(state))
		compute(s, testConfig(), v)
		if idx := packedIndex(s, ids[0]); !v.PrimitiveDefinitelyUnoccluded.Get(idx) || backend.Batched != 0 {
			t.Errorf("definitely unoccluded %v, queries %d", v.PrimitiveDefinitelyUnoccluded.Get(idx), backend.Batched)
		}
	})

	t.Run("subqueries cull only when all are occluded", func(t *testing.T) {
		halves := []common.BoxSphereBounds{
			common.NewBoxSphereBoundsFromBox(common.Box{Origin: mgl32.Vec3{-0.5, 0, 0}, Extent: mgl32.Vec3{0.5, 1, 1}}),
			common.NewBoxSphereBoundsFromBox(common.Box{Origin: mgl32.Vec3{0.5, 0, 0}, Extent: mgl32.Vec3{0.5, 1, 1}}),
		}
		for _, tc := range []struct {
			name        string
			leftOnly    bool
			wantVisible bool
			wantSubs    []bool
		}{
			{"one hidden", true, true, []bool{true, false}},
			{"all hidden", false, false, []bool{true, true}},
		} {
			t.Run(tc.name, func(t *testing.T) {
				s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50), primitive.WithOcclusionQueries(halves...)))
				backend := NewFuncOcclusionBackend(func(origin, _ mgl32.Vec3) uint64 {
					if tc.leftOnly && origin.X() > 0 {
						return 50
					}
					return 0
				})
				state := NewViewState(WithOcclusionBackend(backend))

				compute(s, testConfig(), viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0)))
				if backend.Batched != 2 {
					t.Fatalf("batched %d subqueries, want 2", backend.Batched)
				}
				v := viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0.016))
				compute(s, testConfig(), v)
				if got := v.IsVisible(packedIndex(s, ids[0])); got != tc.wantVisible {
					t.Errorf("visible = %v, want %v", got, tc.wantVisible)
				}
				if got := v.SubprimitiveOcclusion[ids[0]]; !slices.Equal(got, tc.wantSubs) {
					t.Errorf("subquery occlusion = %v, want %v", got, tc.wantSubs)
				}
			})
		}
	})

	t.Run("history is trimmed once unseen", func(t *testing.T) {
		s, _ := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -50)))
		backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 10 })
		state := NewViewState(WithOcclusionBackend(backend))

		compute(s, testConfig(), viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0)))
		if state.NumOcclusionHistories() != 1 || backend.Outstanding() != 1 {
			t.Fatalf("histories %d, outstanding %d after first frame", state.NumOcclusionHistories(), backend.Outstanding())
		}
		compute(s, testConfig(), viewAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, WithViewState(state), WithTime(10)))
		if state.NumOcclusionHistories() != 0 || backend.Outstanding() != 0 {
			t.Errorf("histories %d, outstanding %d after looking away", state.NumOcclusionHistories(), backend.Outstanding())
		}
	})

	t.Run("same seed gives the same requeries", func(t *testing.T) {
		var prims []primitive.Proxy
		for i := range 40 {
			prims = append(prims, primitive.NewPrimitive(primitive.WithPosition(float32(i%8)*4-16, float32(i/8)*4-8, -60), primitive.WithFlags(approx)))
		}
		run := func() (int, Bitmap) {
			s, _ := newScene(prims...)
			backend := NewFuncOcclusionBackend(func(_, _ mgl32.Vec3) uint64 { return 100 })
			state := NewViewState(WithOcclusionBackend(backend), WithRandomSeed(7))
			var last *View
			for f := range 5 {
				last = viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(float64(f)*0.016))
				compute(s, testConfig(), last)
			}
			return backend.Batched, last.PrimitiveDefinitelyUnoccluded.Clone()
		}
		n1, b1 := run()
		n2, b2 := run()
		if n1 != n2 || !b1.Equal(&b2) {
			t.Errorf("identical runs diverged: %d vs %d queries", n1, n2)
		}
	})
}

func TestApplyOverrides(t *testing.T) {
	static := primitive.NewPrimitive(primitive.WithPosition(-5, 0, -50), primitive.WithMobility(common.MobilityStatic))
	noCapture := primitive.NewPrimitive(primitive.WithPosition(5, 0, -50), primitive.WithMobility(common.MobilityStatic),
		primitive.WithFlags(primitive.DefaultFlags&^primitive.FlagVisibleInReflectionCaptures))
	movable := primitive.NewPrimitive(primitive.WithPosition(0, 0, -50))
	tiny := primitive.NewPrimitive(primitive.WithPosition(0, 5, -50), primitive.WithBox(mgl32.Vec3{}, mgl32.Vec3{0.001, 0.001, 0.001}))
	s, ids := newScene(static, noCapture, movable, tiny)
	cfg := testConfig()

	tests := []struct {
		name string
		opts []ViewBuilderOption
		want []primitive.ComponentID
	}{
		{"none", nil, []primitive.ComponentID{ids[0], ids[1], ids[2], ids[3]}},
		{"hidden", []ViewBuilderOption{WithHiddenPrimitives(ids[2], ids[3])}, []primitive.ComponentID{ids[0], ids[1]}},
		{"show only", []ViewBuilderOption{WithShowOnlyPrimitives(ids[1])}, []primitive.ComponentID{ids[1]}},
		{"static scene only", []ViewBuilderOption{WithStaticSceneOnly(true)}, []primitive.ComponentID{ids[0], ids[1]}},
		{"reflection capture", []ViewBuilderOption{WithReflectionCapture(true)}, []primitive.ComponentID{ids[0]}},
		{"wireframe", []ViewBuilderOption{WithWireframe(true)}, []primitive.ComponentID{ids[0], ids[1], ids[2]}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := viewAt(mgl32.Vec3{}, forward, tc.opts...)
			compute(s, cfg, v)
			if got := visibleIDs(s, v); !slices.Equal(got, tc.want) {
				t.Errorf("visible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputeRelevanceSelectsLOD(t *testing.T) {
	batches := []primitive.DrawBatch{
		{LODIndex: 0, ScreenSize: 0.5, UseForMaterial: true, CastShadow: true},
		{LODIndex: 1, ScreenSize: 0.1, UseForMaterial: true, CastShadow: true},
	}
	tests := []struct {
		name     string
		z        float32
		forced   int
		wantLOD  int
		wantBits []int
	}{
		{"near", -2, -1, 0, []int{0}},
		{"mid", -10, -1, 1, []int{1}},
		{"beyond the last threshold", -100, -1, 1, []int{1}},
		{"forced", -2, 1, 1, []int{1}},
		{"forced past the last LOD", -2, 5, 1, []int{1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ids := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, tc.z), primitive.WithDrawBatches(batches...)))
			v := viewAt(mgl32.Vec3{}, forward, WithForcedLOD(tc.forced))
			stats := compute(s, testConfig(), v)

			rel := v.Relevance[packedIndex(s, ids[0])]
			if !rel.Computed || rel.LOD != tc.wantLOD {
				t.Errorf("relevance = %+v, want LOD %d", rel, tc.wantLOD)
			}
			if got := slices.Collect(v.StaticMeshVisibility.All()); !slices.Equal(got, tc.wantBits) {
				t.Errorf("visible batches = %v, want %v", got, tc.wantBits)
			}
			if !slices.Equal(slices.Collect(v.StaticMeshShadowDepth.All()), tc.wantBits) {
				t.Errorf("shadow depth batches = %v", slices.Collect(v.StaticMeshShadowDepth.All()))
			}
			if stats.VisibleBatches != 1 || v.Aggregates.NumVisibleStaticMeshElements != 1 {
				t.Errorf("VisibleBatches %d, NumVisibleStaticMeshElements %d", stats.VisibleBatches, v.Aggregates.NumVisibleStaticMeshElements)
			}
		})
	}
}

func TestSmallCastersSkipShadowDepth(t *testing.T) {
	s, _ := newScene(
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -5),
			primitive.WithDrawBatches(primitive.DrawBatch{UseForMaterial: true, CastShadow: true, UseAsOccluder: true})),
		primitive.NewPrimitive(primitive.WithPosition(0, 0, -50), primitive.WithBox(mgl32.Vec3{}, mgl32.Vec3{0.001, 0.001, 0.001}),
			primitive.WithDrawBatches(primitive.DrawBatch{UseForMaterial: true, CastShadow: true, UseAsOccluder: true, Translucent: true})),
	)
	v := viewAt(mgl32.Vec3{}, forward)
	compute(s, testConfig(), v)

	if got := slices.Collect(v.StaticMeshShadowDepth.All()); !slices.Equal(got, []int{0}) {
		t.Errorf("shadow depth batches = %v, want [0]", got)
	}
	if got := slices.Collect(v.StaticMeshOccluder.All()); !slices.Equal(got, []int{0}) {
		t.Errorf("occluder batches = %v, want [0]", got)
	}
	if v.StaticMeshVisibility.Count() != 2 {
		t.Errorf("visible batches = %d, want 2", v.StaticMeshVisibility.Count())
	}
	if !v.Aggregates.HasDynamicShadowCasters || !v.Aggregates.HasTranslucency {
		t.Errorf("aggregates = %+v", v.Aggregates)
	}
}

func TestDitheredLODTransition(t *testing.T) {
	s, _ := newScene(primitive.NewPrimitive(primitive.WithPosition(0, 0, -2), primitive.WithDrawBatches(
		primitive.DrawBatch{LODIndex: 0, ScreenSize: 0.5, UseForMaterial: true, DitheredLODTransition: true},
		primitive.DrawBatch{LODIndex: 1, ScreenSize: 0.1, UseForMaterial: true, DitheredLODTransition: true},
	)))
	state := NewViewState()
	compute(s, testConfig(), viewAt(mgl32.Vec3{}, forward, WithViewState(state), WithTime(0)))

	v := viewAt(mgl32.Vec3{0, 0, 8}, forward, WithViewState(state), WithTime(0.016))
	compute(s, testConfig(), v)
	if got := slices.Collect(v.StaticMeshFadeOut.All()); !slices.Equal(got, []int{0}) {
		t.Errorf("fade out batches = %v, want [0]", got)
	}
	if got := slices.Collect(v.StaticMeshFadeIn.All()); !slices.Equal(got, []int{1}) {
		t.Errorf("fade in batches = %v, want [1]", got)
	}
	if v.StaticMeshVisibility.Count() != 2 {
		t.Errorf("both LODs should draw during the transition, got %d batches", v.StaticMeshVisibility.Count())
	}
}

func TestCascadeView(t *testing.T) {
	v := viewAt(mgl32.Vec3{1, 2, 3}, forward)
	cv, ok := v.CascadeView()
	if !ok {
		t.Fatal("perspective view has no cascade view")
	}
	if !cv.Origin.ApproxEqualThreshold(mgl32.Vec3{1, 2, 3}, 1e-4) || !cv.Forward.ApproxEqualThreshold(forward, 1e-5) {
		t.Errorf("origin %v forward %v", cv.Origin, cv.Forward)
	}
	if math32.Abs(cv.Near-1) > 1e-3 || math32.Abs(cv.TanHalfFOVY-1) > 1e-5 {
		t.Errorf("near %v tanHalfFOVY %v", cv.Near, cv.TanHalfFOVY)
	}

	ortho := NewView(2, common.LookAt(mgl32.Vec3{}, forward, mgl32.Vec3{0, 1, 0}), common.OrthoZO(-10, 10, -10, 10, 0, 100))
	if _, ok := ortho.CascadeView(); ok {
		t.Error("orthographic view produced a cascade view")
	}
	if math32.Abs(ortho.Far-100) > 1e-3 {
		t.Errorf("ortho far = %v, want 100", ortho.Far)
	}
}
