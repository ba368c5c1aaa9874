package light

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/convex_volume"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CascadeSettings is the split policy of a directional light's cascaded shadow.
type CascadeSettings struct {
	// Count is the number of near cascades between the view near plane and MaxDistance.
	Count int
	// DistributionExponent scales each split range relative to the previous one.
	DistributionExponent float32
	// TransitionFraction is the fraction of a cascade's depth range appended to its far
	// edge to blend into the next cascade.
	TransitionFraction float32
	// MaxDistance is the far edge of the last near cascade.
	MaxDistance float32
	// FarCount is the number of extra cascades between MaxDistance and FarDistance.
	FarCount int
	// FarDistance is the far edge of the last far cascade.
	FarDistance float32
}

// Merge returns s with every zero field replaced by the matching field of defaults.
//
// Parameters:
//   - defaults: the fallback settings
//
// Returns:
//   - CascadeSettings: the merged settings
func (s CascadeSettings) Merge(defaults CascadeSettings) CascadeSettings {
	if s.Count <= 0 {
		s.Count = defaults.Count
	}
	if s.DistributionExponent <= 0 {
		s.DistributionExponent = defaults.DistributionExponent
	}
	if s.TransitionFraction <= 0 {
		s.TransitionFraction = defaults.TransitionFraction
	}
	if s.MaxDistance <= 0 {
		s.MaxDistance = defaults.MaxDistance
	}
	if s.FarCount <= 0 {
		s.FarCount = defaults.FarCount
	}
	if s.FarDistance <= 0 {
		s.FarDistance = defaults.FarDistance
	}
	return s
}

// NumCascades returns the total number of cascades, near and far.
// Far cascades only exist when FarDistance lies beyond MaxDistance.
func (s CascadeSettings) NumCascades() int {
	n := max(s.Count, 0)
	if s.FarCount > 0 && s.FarDistance > s.MaxDistance {
		n += s.FarCount
	}
	return n
}

// ShadowCascade describes one depth slice of a directional light's view-dependent shadow.
type ShadowCascade struct {
	// Index is the split index, 0 being nearest the view.
	Index int
	// Far marks cascades beyond the near cascade range.
	Far bool
	// SplitNear and SplitFar bound the slice in view depth. SplitFar includes the fade region.
	SplitNear float32
	SplitFar  float32
	// SplitNearFadeRegion is the overlap with the previous cascade's fade region.
	SplitNearFadeRegion float32
	// SplitFarFadeRegion is the blend band appended to the far edge.
	SplitFarFadeRegion float32
	// FadePlaneOffset is the depth where the blend into the next cascade starts.
	FadePlaneOffset float32
	// FadePlaneLength is the depth of the blend band.
	FadePlaneLength float32
	// Bounds is the sphere enclosing the view sub-frustum of the slice.
	Bounds common.Sphere
	// ShadowBoundsAccurate is the convex hull of the view sub-frustum of the slice.
	ShadowBoundsAccurate convex_volume.ConvexVolume
}

// CascadeView carries the parts of a perspective view that cascade fitting needs.
type CascadeView struct {
	Origin      mgl32.Vec3
	Forward     mgl32.Vec3
	Right       mgl32.Vec3
	Up          mgl32.Vec3
	TanHalfFOVX float32
	TanHalfFOVY float32
	Near        float32
}

// ComputeAccumulatedScale returns the fraction of the total cascade range covered by
// the cascades before index, when each cascade is exponent times deeper than the previous.
//
// Parameters:
//   - exponent: the distribution exponent
//   - index: the split index
//   - count: the number of cascades
//
// Returns:
//   - float32: the accumulated fraction in [0, 1]
func ComputeAccumulatedScale(exponent float32, index, count int) float32 {
	if index <= 0 || count <= 0 {
		return 0
	}

	var current float32 = 1
	var total, accumulated float32
	for i := 0; i < count; i++ {
		if i < index {
			accumulated += current
		}
		total += current
		current *= exponent
	}
	return accumulated / total
}

// CascadeSplits returns count+1 split distances distributed exponentially between near
// and far. The first entry is near and the last is exactly far.
//
// Parameters:
//   - near: the first split distance
//   - far: the last split distance
//   - count: the number of ranges
//   - exponent: the distribution exponent
//
// Returns:
//   - []float32: the split distances
func CascadeSplits(near, far float32, count int, exponent float32) []float32 {
	if count < 1 {
		return []float32{near, far}
	}
	splits := make([]float32, count+1)
	for i := 0; i <= count; i++ {
		splits[i] = near + ComputeAccumulatedScale(exponent, i, count)*(far-near)
	}
	splits[count] = far
	return splits
}

// SplitDistance returns the view depth of split boundary index for the given view near plane.
//
// Parameters:
//   - near: the view near plane distance
//   - index: the split boundary, 0 being the near plane
//
// Returns:
//   - float32: the split depth
func (s CascadeSettings) SplitDistance(near float32, index int) float32 {
	maxDistance := math32.Max(s.MaxDistance, near+1)
	if index <= 0 {
		return near
	}
	if index <= s.Count {
		return near + ComputeAccumulatedScale(s.DistributionExponent, index, s.Count)*(maxDistance-near)
	}
	farIndex := min(index-s.Count, s.FarCount)
	return maxDistance + ComputeAccumulatedScale(s.DistributionExponent, farIndex, s.FarCount)*(s.FarDistance-maxDistance)
}

// Cascade builds the slice description for split index, including its fade region.
//
// Parameters:
//   - view: the dependent view
//   - index: the split index
//
// Returns:
//   - ShadowCascade: the cascade
//   - bool: false if index is out of range
func (s CascadeSettings) Cascade(view CascadeView, index int) (ShadowCascade, bool) {
	total := s.NumCascades()
	if index < 0 || index >= total {
		return ShadowCascade{}, false
	}

	splitNear := s.SplitDistance(view.Near, index)
	splitFar := s.SplitDistance(view.Near, index+1)
	fadeExtension := (splitFar - splitNear) * s.TransitionFraction

	c := ShadowCascade{
		Index:           index,
		Far:             index >= s.Count,
		SplitNear:       splitNear,
		FadePlaneOffset: splitFar,
	}
	if index > 0 {
		prevNear := s.SplitDistance(view.Near, index-1)
		c.SplitNearFadeRegion = (splitNear - prevNear) * s.TransitionFraction
	}
	if index < total-1 {
		splitFar += fadeExtension
		c.SplitFarFadeRegion = fadeExtension
		c.FadePlaneLength = fadeExtension
	}
	c.SplitFar = splitFar
	c.Bounds = ShadowSplitBounds(view, splitNear, splitFar)
	c.ShadowBoundsAccurate = subFrustumHull(view, splitNear, splitFar)
	return c, true
}

// ShadowSplitBounds returns the sphere enclosing the view sub-frustum between near and far.
// The center is placed on the view axis where it balances the near and far corner
// distances, which yields the smallest sphere through both corner rings.
//
// Parameters:
//   - view: the view
//   - near: the slice near depth
//   - far: the slice far depth
//
// Returns:
//   - common.Sphere: the bounding sphere
func ShadowSplitBounds(view CascadeView, near, far float32) common.Sphere {
	length := far - near
	nearDiagSq := common.Square(view.TanHalfFOVX*near) + common.Square(view.TanHalfFOVY*near)
	farDiagSq := common.Square(view.TanHalfFOVX*far) + common.Square(view.TanHalfFOVY*far)

	var offset float32
	if length > 0 {
		offset = length*0.5 + (nearDiagSq-farDiagSq)/(2*length)
	}
	centerZ := far - common.Clamp(offset, 0, length)
	center := view.Origin.Add(view.Forward.Mul(centerZ))

	var radiusSq float32
	for _, p := range subFrustumCorners(view, near, far) {
		radiusSq = math32.Max(radiusSq, p.Sub(center).LenSqr())
	}
	return common.Sphere{Center: center, Radius: math32.Sqrt(radiusSq)}
}

// subFrustumCorners returns the near ring then the far ring of the view sub-frustum.
func subFrustumCorners(view CascadeView, near, far float32) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	i := 0
	for _, z := range [2]float32{near, far} {
		c := view.Origin.Add(view.Forward.Mul(z))
		for _, sy := range [2]float32{-1, 1} {
			for _, sx := range [2]float32{-1, 1} {
				out[i] = c.Add(view.Right.Mul(sx * view.TanHalfFOVX * z)).Add(view.Up.Mul(sy * view.TanHalfFOVY * z))
				i++
			}
		}
	}
	return out
}

// subFrustumHull builds the six outward planes of the view sub-frustum.
func subFrustumHull(view CascadeView, near, far float32) convex_volume.ConvexVolume {
	corners := subFrustumCorners(view, near, far)
	var centroid mgl32.Vec3
	for _, p := range corners {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1.0 / 8)

	// Corner order per ring: (-x,-y), (+x,-y), (-x,+y), (+x,+y).
	faces := [6][3]int{
		{0, 1, 2}, // near
		{4, 5, 6}, // far
		{0, 2, 4}, // left
		{1, 3, 5}, // right
		{0, 1, 4}, // bottom
		{2, 3, 6}, // top
	}
	planes := make([]common.Plane, 0, 6)
	for _, f := range faces {
		if p, ok := planeThrough(corners[f[0]], corners[f[1]], corners[f[2]], centroid); ok {
			planes = append(planes, p)
		}
	}
	return convex_volume.NewConvexVolume(planes...)
}

// planeThrough builds the plane through a, b, c oriented so inside is on the negative side.
func planeThrough(a, b, c, inside mgl32.Vec3) (common.Plane, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.LenSqr() < common.Delta*common.Delta {
		return common.Plane{}, false
	}
	p := common.NewPlaneFromPoint(n, a)
	if p.PlaneDot(inside) > 0 {
		p = p.Flip()
	}
	return p, true
}
