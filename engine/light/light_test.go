package light

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func approx(a, b, tol float32) bool {
	return math32.Abs(a-b) <= tol
}

// forwardView looks down -Z from the origin with a 90 degree field of view.
func forwardView(near float32) CascadeView {
	return CascadeView{
		Forward:     mgl32.Vec3{0, 0, -1},
		Right:       mgl32.Vec3{1, 0, 0},
		Up:          mgl32.Vec3{0, 1, 0},
		TanHalfFOVX: 1,
		TanHalfFOVY: 1,
		Near:        near,
	}
}

func TestCascadeSplitsThreeCascades(t *testing.T) {
	got := CascadeSplits(10, 2000, 3, 2)
	want := []float32{10, 10 + 1990.0/7, 10 + 3*1990.0/7, 2000}
	if len(got) != len(want) {
		t.Fatalf("CascadeSplits() returned %d splits, want %d", len(got), len(want))
	}
	for i := range want {
		if !approx(got[i], want[i], 1e-3) {
			t.Errorf("split %d = %v, want %v", i, got[i], want[i])
		}
	}
	if got[3] != 2000 {
		t.Errorf("last split = %v, want exactly 2000", got[3])
	}
}

func TestComputeAccumulatedScale(t *testing.T) {
	tests := []struct {
		name     string
		exponent float32
		index    int
		count    int
		want     float32
	}{
		{"first split is zero", 2, 0, 3, 0},
		{"negative index", 2, -1, 3, 0},
		{"linear", 1, 2, 4, 0.5},
		{"exponential", 2, 2, 3, 3.0 / 7},
		{"end", 3, 4, 4, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeAccumulatedScale(tc.exponent, tc.index, tc.count); !approx(got, tc.want, 1e-6) {
				t.Errorf("ComputeAccumulatedScale() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCascadeFadeRegions(t *testing.T) {
	settings := CascadeSettings{Count: 3, DistributionExponent: 2, TransitionFraction: 0.1, MaxDistance: 2000}
	view := forwardView(10)

	var prev ShadowCascade
	for i := 0; i < 3; i++ {
		c, ok := settings.Cascade(view, i)
		if !ok {
			t.Fatalf("Cascade(%d) failed", i)
		}
		if i > 0 {
			if c.SplitNear <= prev.SplitNear {
				t.Errorf("cascade %d near %v does not follow %v", i, c.SplitNear, prev.SplitNear)
			}
			if !approx(c.SplitNearFadeRegion, prev.SplitFarFadeRegion, 1e-3) {
				t.Errorf("cascade %d near fade %v, want previous far fade %v", i, c.SplitNearFadeRegion, prev.SplitFarFadeRegion)
			}
			if c.SplitNear >= prev.SplitFar {
				t.Errorf("cascade %d leaves a gap after cascade %d", i, i-1)
			}
		}
		prev = c
	}

	last, _ := settings.Cascade(view, 2)
	if last.SplitFar != 2000 || last.SplitFarFadeRegion != 0 || last.FadePlaneLength != 0 {
		t.Errorf("last cascade = far %v fade %v/%v, want 2000 without fade", last.SplitFar, last.SplitFarFadeRegion, last.FadePlaneLength)
	}

	first, _ := settings.Cascade(view, 0)
	wantFade := (1990.0 / 7) * 0.1
	if !approx(first.FadePlaneLength, float32(wantFade), 1e-2) || !approx(first.FadePlaneOffset, 10+1990.0/7, 1e-2) {
		t.Errorf("first cascade fade plane = %v+%v", first.FadePlaneOffset, first.FadePlaneLength)
	}

	if _, ok := settings.Cascade(view, 3); ok {
		t.Error("Cascade(3) succeeded with 3 cascades")
	}
}

func TestFarCascades(t *testing.T) {
	settings := CascadeSettings{Count: 2, DistributionExponent: 2, TransitionFraction: 0.1, MaxDistance: 500, FarCount: 2, FarDistance: 5000}
	if got := settings.NumCascades(); got != 4 {
		t.Fatalf("NumCascades() = %d, want 4", got)
	}

	view := forwardView(1)
	c, ok := settings.Cascade(view, 2)
	if !ok || !c.Far || c.SplitNear != 500 {
		t.Errorf("first far cascade = %+v, want far starting at 500", c)
	}
	last, _ := settings.Cascade(view, 3)
	if last.SplitFar != 5000 {
		t.Errorf("last far cascade ends at %v, want 5000", last.SplitFar)
	}

	settings.FarDistance = 100
	if got := settings.NumCascades(); got != 2 {
		t.Errorf("NumCascades() with far distance inside max = %d, want 2", got)
	}
}

func TestCascadesCoverViewFrustum(t *testing.T) {
	settings := CascadeSettings{Count: 3, DistributionExponent: 2, TransitionFraction: 0.1, MaxDistance: 2000}
	view := forwardView(10)

	cascades := make([]ShadowCascade, 0, 3)
	for i := 0; i < settings.NumCascades(); i++ {
		c, _ := settings.Cascade(view, i)
		cascades = append(cascades, c)
	}

	rng := rand.New(rand.NewSource(3))
	for n := 0; n < 2000; n++ {
		z := 10 + rng.Float32()*1990
		p := mgl32.Vec3{(rng.Float32()*2 - 1) * z, (rng.Float32()*2 - 1) * z, -z}

		covered := false
		for _, c := range cascades {
			if z < c.SplitNear || z > c.SplitFar {
				continue
			}
			if p.Sub(c.Bounds.Center).Len() <= c.Bounds.Radius*1.0001 && c.ShadowBoundsAccurate.IntersectSphere(p, 0.01) {
				covered = true
				break
			}
		}
		if !covered {
			t.Fatalf("point %v at depth %v is not covered by any cascade", p, z)
		}
	}
}

func TestShadowSplitBoundsEnclosesCorners(t *testing.T) {
	view := forwardView(1)
	view.TanHalfFOVX = 1.5
	for _, r := range [][2]float32{{1, 10}, {10, 11}, {100, 5000}} {
		s := ShadowSplitBounds(view, r[0], r[1])
		for _, p := range subFrustumCorners(view, r[0], r[1]) {
			if d := p.Sub(s.Center).Len(); d > s.Radius*1.0001 {
				t.Errorf("split [%v, %v]: corner %v lies %v from center, radius %v", r[0], r[1], p, d, s.Radius)
			}
		}
		if z := -s.Center.Z(); z < r[0] || z > r[1] {
			t.Errorf("split [%v, %v]: center depth %v outside slice", r[0], r[1], z)
		}
	}
}

func TestAffectsBounds(t *testing.T) {
	point := NewLight(LightTypePoint, WithPosition(0, 0, 0), WithRange(10))
	spot := NewLight(LightTypeSpot, WithPosition(0, 0, 0), WithDirection(0, 0, -1), WithRange(20), WithSpotCone(10, 20))
	sun := NewLight(LightTypeDirectional)

	unit := func(x, y, z float32) common.BoxSphereBounds {
		return common.BoxSphereBounds{Origin: mgl32.Vec3{x, y, z}, Extent: mgl32.Vec3{1, 1, 1}, SphereRadius: math32.Sqrt(3)}
	}

	tests := []struct {
		name   string
		light  Light
		bounds common.BoxSphereBounds
		want   bool
	}{
		{"point in range", point, unit(5, 0, 0), true},
		{"point box corner in range", point, unit(10.5, 0, 0), true},
		{"point out of range", point, unit(30, 0, 0), false},
		{"spot on axis", spot, unit(0, 0, -10), true},
		{"spot behind", spot, unit(0, 0, 10), false},
		{"spot outside cone", spot, unit(15, 0, -5), false},
		{"spot beyond range", spot, unit(0, 0, -40), false},
		{"spot around apex", spot, unit(0, 0, 0), true},
		{"directional anywhere", sun, unit(1e5, 0, 0), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.light.AffectsBounds(tc.bounds); got != tc.want {
				t.Errorf("AffectsBounds() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWholeSceneInitializers(t *testing.T) {
	tests := []struct {
		name  string
		light Light
		want  int
	}{
		{"one pass point", NewLight(LightTypePoint, WithRange(10)), 6},
		{"point without cube", NewLight(LightTypePoint, WithRange(10), WithOnePassPointShadows(false)), 0},
		{"spot", NewLight(LightTypeSpot, WithRange(10), WithSpotCone(20, 35)), 1},
		{"directional is view dependent", NewLight(LightTypeDirectional), 0},
		{"zero range", NewLight(LightTypeSpot, WithRange(0)), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WholeSceneInitializers(tc.light)
			if len(got) != tc.want {
				t.Fatalf("WholeSceneInitializers() returned %d, want %d", len(got), tc.want)
			}
			for i, init := range got {
				if init.OnePassPointLight && init.CubeFace != i {
					t.Errorf("face %d has CubeFace %d", i, init.CubeFace)
				}
			}
		})
	}

	spot := WholeSceneInitializers(NewLight(LightTypeSpot, WithRange(10), WithSpotCone(20, 35)))[0]
	if !approx(spot.FieldOfView, mgl32.DegToRad(70), 1e-3) {
		t.Errorf("spot field of view = %v, want 70 degrees", mgl32.RadToDeg(spot.FieldOfView))
	}
}

func TestPerObjectInitializer(t *testing.T) {
	spot := NewLight(LightTypeSpot, WithPosition(0, 0, 0), WithDirection(0, 0, -1), WithRange(100))

	t.Run("subject encloses light", func(t *testing.T) {
		b := common.BoxSphereBounds{Origin: mgl32.Vec3{0, 0, -1}, Extent: mgl32.Vec3{2, 2, 2}, SphereRadius: 3}
		if _, ok := PerObjectInitializer(spot, b); ok {
			t.Error("PerObjectInitializer() succeeded with the light inside the subject")
		}
	})

	t.Run("zero radius", func(t *testing.T) {
		b := common.BoxSphereBounds{Origin: mgl32.Vec3{0, 0, -10}}
		if _, ok := PerObjectInitializer(spot, b); ok {
			t.Error("PerObjectInitializer() succeeded with a point subject")
		}
	})

	t.Run("perspective fit", func(t *testing.T) {
		b := common.BoxSphereBounds{Origin: mgl32.Vec3{0, 0, -20}, Extent: mgl32.Vec3{1, 1, 1}, SphereRadius: 2}
		init, ok := PerObjectInitializer(spot, b)
		if !ok {
			t.Fatal("PerObjectInitializer() failed")
		}
		if want := 2 * math32.Asin(2.0/20); !approx(init.FieldOfView, want, 1e-5) {
			t.Errorf("FieldOfView = %v, want %v", init.FieldOfView, want)
		}
		clip := init.SubjectMatrix().Mul4x1(b.Origin.Vec4(1))
		ndc := clip.Vec3().Mul(1 / clip.W())
		if math32.Abs(ndc.X()) > 1 || math32.Abs(ndc.Y()) > 1 || ndc.Z() < 0 || ndc.Z() > 1 {
			t.Errorf("subject center projects to %v, outside the clip volume", ndc)
		}
	})

	t.Run("directional is orthographic", func(t *testing.T) {
		sun := NewLight(LightTypeDirectional, WithDirection(0, -1, 0))
		b := common.BoxSphereBounds{Origin: mgl32.Vec3{5, 0, 5}, Extent: mgl32.Vec3{1, 1, 1}, SphereRadius: 2}
		init, ok := PerObjectInitializer(sun, b)
		if !ok || !init.Orthographic || init.HalfWidth != 2 {
			t.Errorf("PerObjectInitializer() = %+v, %v", init, ok)
		}
	})
}

func TestSnapToTexels(t *testing.T) {
	base := ProjectedShadowInitializer{
		Eye:           mgl32.Vec3{3.3, 0, 7.9},
		FaceDirection: mgl32.Vec3{0, -1, 0},
		Orthographic:  true,
		HalfWidth:     64,
	}
	const resolution = 512
	step := float32(2 * 64 * ShadowSnapTexels / resolution)

	a := base.SnapToTexels(resolution)
	if d := a.Eye.Sub(base.Eye).Len(); d > step*math32.Sqrt2 {
		t.Errorf("snap moved eye by %v, more than one step %v", d, step)
	}

	nudged := base
	nudged.Eye = base.Eye.Add(mgl32.Vec3{0.01, 0, 0.01})
	b := nudged.SnapToTexels(resolution)
	if !a.Eye.ApproxEqualThreshold(b.Eye, 1e-4) {
		t.Errorf("nearby eyes snapped to %v and %v", a.Eye, b.Eye)
	}

	persp := base
	persp.Orthographic = false
	if got := persp.SnapToTexels(resolution); got.Eye != persp.Eye {
		t.Error("perspective initializer was snapped")
	}
}
