package convex_volume

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// unitCube returns the volume |x|,|y|,|z| <= 10.
func unitCube() ConvexVolume {
	return NewConvexVolume(
		common.Plane{Normal: mgl32.Vec3{1, 0, 0}, Distance: 10},
		common.Plane{Normal: mgl32.Vec3{-1, 0, 0}, Distance: 10},
		common.Plane{Normal: mgl32.Vec3{0, 1, 0}, Distance: 10},
		common.Plane{Normal: mgl32.Vec3{0, -1, 0}, Distance: 10},
		common.Plane{Normal: mgl32.Vec3{0, 0, 1}, Distance: 10},
		common.Plane{Normal: mgl32.Vec3{0, 0, -1}, Distance: 10},
	)
}

func TestIntersectBoxWithContainment(t *testing.T) {
	v := unitCube()

	tests := []struct {
		name   string
		origin mgl32.Vec3
		extent mgl32.Vec3
		want   Intersection
	}{
		{"inside", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, FullyContained},
		{"straddling", mgl32.Vec3{9.5, 0, 0}, mgl32.Vec3{1, 1, 1}, Intersecting},
		{"outside", mgl32.Vec3{20, 0, 0}, mgl32.Vec3{1, 1, 1}, Outside},
		{"touching face counts as inside", mgl32.Vec3{11, 0, 0}, mgl32.Vec3{1, 1, 1}, Intersecting},
		{"flush inside face is contained", mgl32.Vec3{9, 0, 0}, mgl32.Vec3{1, 1, 1}, FullyContained},
		{"larger than volume", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{50, 50, 50}, Intersecting},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := v.IntersectBoxWithContainment(tc.origin, tc.extent)
			if got != tc.want {
				t.Errorf("IntersectBoxWithContainment() = %v, want %v", got, tc.want)
			}
			if (got != Outside) != v.IntersectBox(tc.origin, tc.extent) {
				t.Errorf("IntersectBox disagrees with containment result %v", got)
			}
		})
	}
}

func TestIntersectSphere(t *testing.T) {
	v := unitCube()

	tests := []struct {
		name   string
		origin mgl32.Vec3
		radius float32
		want   Intersection
	}{
		{"inside", mgl32.Vec3{0, 0, 0}, 2, FullyContained},
		{"straddling", mgl32.Vec3{0, 10, 0}, 2, Intersecting},
		{"outside", mgl32.Vec3{0, 0, -15}, 2, Outside},
		{"tangent", mgl32.Vec3{0, 0, 12}, 2, Intersecting},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.IntersectSphereWithContainment(tc.origin, tc.radius); got != tc.want {
				t.Errorf("IntersectSphereWithContainment() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmptyVolumeContainsEverything(t *testing.T) {
	var v ConvexVolume
	v.Build(nil)

	if !v.IsEmpty() {
		t.Fatal("expected empty volume")
	}
	if got := v.IntersectBoxWithContainment(mgl32.Vec3{1e6, 0, 0}, mgl32.Vec3{1, 1, 1}); got != FullyContained {
		t.Errorf("empty volume box test = %v, want fullyContained", got)
	}
	if !v.IntersectSphere(mgl32.Vec3{-1e6, 0, 0}, 1) {
		t.Error("empty volume rejected a sphere")
	}
}

func TestPermutedLayoutPadsWithLastPlane(t *testing.T) {
	tests := []struct {
		name   string
		planes int
		groups int
	}{
		{"one plane", 1, 1},
		{"four planes", 4, 1},
		{"five planes", 5, 2},
		{"six planes", 6, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			planes := unitCube().Planes[:tc.planes]
			v := NewConvexVolume(planes...)
			if v.PermutedGroups() != tc.groups {
				t.Fatalf("PermutedGroups() = %d, want %d", v.PermutedGroups(), tc.groups)
			}
			last := planes[len(planes)-1]
			g := v.permuted[len(v.permuted)-1]
			if g.w[3] != last.Distance || g.x[3] != last.Normal[0] {
				t.Errorf("padding lane = (%v, %v), want last plane %v", g.x[3], g.w[3], last)
			}
		})
	}
}

func TestPermutedMatchesLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	v := FromFrustum(common.PerspectiveZO(1.0, 1.5, 0.5, 200).Mul4(common.LookAt(mgl32.Vec3{0, 2, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})))

	for i := 0; i < 2000; i++ {
		origin := mgl32.Vec3{rng.Float32()*400 - 200, rng.Float32()*400 - 200, rng.Float32()*400 - 200}
		extent := mgl32.Vec3{rng.Float32() * 20, rng.Float32() * 20, rng.Float32() * 20}
		if v.IntersectBox(origin, extent) != v.IntersectBoxPermuted(origin, extent) {
			t.Fatalf("permuted and linear disagree for origin=%v extent=%v", origin, extent)
		}
	}
}

// Shrinking a box must never turn a non-outside result into outside, and a fully
// contained box must also be reported as intersecting the volume.
func TestContainmentMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := FromFrustum(common.PerspectiveZO(1.2, 1.0, 1, 500).Mul4(common.LookAt(mgl32.Vec3{5, 5, 5}, mgl32.Vec3{0, 0, -50}, mgl32.Vec3{0, 1, 0})))

	for i := 0; i < 2000; i++ {
		origin := mgl32.Vec3{rng.Float32()*600 - 300, rng.Float32()*600 - 300, rng.Float32()*600 - 300}
		extent := mgl32.Vec3{rng.Float32() * 50, rng.Float32() * 50, rng.Float32() * 50}

		full := v.IntersectBoxWithContainment(origin, extent)
		if full == FullyContained && !v.IntersectBox(origin, extent) {
			t.Fatalf("fully contained box reported outside: origin=%v extent=%v", origin, extent)
		}
		if full == Outside {
			continue
		}
		for _, scale := range []float32{0.75, 0.5, 0.1, 0} {
			if got := v.IntersectBoxWithContainment(origin, extent.Mul(scale)); got == Outside {
				t.Fatalf("shrinking box by %v turned %v into outside: origin=%v extent=%v", scale, full, origin, extent)
			}
			if full == FullyContained {
				if got := v.IntersectBoxWithContainment(origin, extent.Mul(scale)); got != FullyContained {
					t.Fatalf("shrinking contained box by %v gave %v", scale, got)
				}
			}
		}
	}
}

func TestFromFrustumClassifiesCameraSpace(t *testing.T) {
	view := common.LookAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	v := FromFrustum(common.PerspectiveZO(1.5708, 1, 1, 100).Mul4(view))

	tests := []struct {
		name  string
		point mgl32.Vec3
		want  bool
	}{
		{"ahead", mgl32.Vec3{0, 0, -10}, true},
		{"behind", mgl32.Vec3{0, 0, 10}, false},
		{"before near", mgl32.Vec3{0, 0, -0.5}, false},
		{"past far", mgl32.Vec3{0, 0, -150}, false},
		{"far left", mgl32.Vec3{-50, 0, -10}, false},
		{"inside edge", mgl32.Vec3{9, 9, -10}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.IntersectSphere(tc.point, 0.01); got != tc.want {
				t.Errorf("IntersectSphere(%v) = %v, want %v", tc.point, got, tc.want)
			}
		})
	}
}

func TestExcludePlanesFacing(t *testing.T) {
	v := unitCube()
	// Light travels along -Y, so casters above the cube (larger Y) must stay inside.
	swept := v.ExcludePlanesFacing(mgl32.Vec3{0, -1, 0})

	if len(swept.Planes) != 5 {
		t.Fatalf("swept volume has %d planes, want 5", len(swept.Planes))
	}
	if !swept.IntersectSphere(mgl32.Vec3{0, 500, 0}, 1) {
		t.Error("caster above the region was excluded")
	}
	if swept.IntersectSphere(mgl32.Vec3{0, -500, 0}, 1) {
		t.Error("caster below the region was included")
	}
}

func TestClipPolygon(t *testing.T) {
	v := unitCube()

	tests := []struct {
		name     string
		poly     Polygon
		wantOK   bool
		wantMaxX float32
	}{
		{
			name: "partially outside",
			poly: Polygon{Vertices: []mgl32.Vec3{{0, 0, 0}, {20, 0, 0}, {20, 5, 0}, {0, 5, 0}}},
			wantOK: true, wantMaxX: 10,
		},
		{
			name: "entirely outside",
			poly: Polygon{Vertices: []mgl32.Vec3{{30, 0, 0}, {40, 0, 0}, {40, 5, 0}}},
			wantOK: false,
		},
		{
			name: "entirely inside",
			poly: Polygon{Vertices: []mgl32.Vec3{{0, 0, 0}, {5, 0, 0}, {5, 5, 0}}},
			wantOK: true, wantMaxX: 5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := v.ClipPolygon(tc.poly)
			if ok != tc.wantOK {
				t.Fatalf("ClipPolygon ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			var maxX float32 = -1e9
			for _, p := range got.Vertices {
				if p[0] > maxX {
					maxX = p[0]
				}
			}
			if diff := maxX - tc.wantMaxX; diff > 1e-4 || diff < -1e-4 {
				t.Errorf("max x after clip = %v, want %v", maxX, tc.wantMaxX)
			}
		})
	}
}
