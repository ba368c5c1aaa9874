package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Box is an axis-aligned bounding box expressed as a center and half-size.
type Box struct {
	// Origin is the center of the box in world space.
	Origin mgl32.Vec3
	// Extent is the half-size of the box along each axis. Components are never negative.
	Extent mgl32.Vec3
}

// NewBoxFromMinMax builds a Box from its minimum and maximum corners.
//
// Parameters:
//   - lo: the minimum corner
//   - hi: the maximum corner
//
// Returns:
//   - Box: the box spanning [lo, hi]
func NewBoxFromMinMax(lo, hi mgl32.Vec3) Box {
	return Box{
		Origin: lo.Add(hi).Mul(0.5),
		Extent: AbsVec3(hi.Sub(lo).Mul(0.5)),
	}
}

// Min returns the minimum corner of the box.
func (b Box) Min() mgl32.Vec3 {
	return b.Origin.Sub(b.Extent)
}

// Max returns the maximum corner of the box.
func (b Box) Max() mgl32.Vec3 {
	return b.Origin.Add(b.Extent)
}

// Intersects reports whether two boxes overlap. Touching faces count as overlap.
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - bool: true if the boxes share at least one point
func (b Box) Intersects(o Box) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(b.Origin[i]-o.Origin[i]) > b.Extent[i]+o.Extent[i] {
			return false
		}
	}
	return true
}

// Contains reports whether o lies entirely inside b. Shared faces count as inside.
//
// Parameters:
//   - o: the box to test
//
// Returns:
//   - bool: true if every point of o is inside b
func (b Box) Contains(o Box) bool {
	for i := 0; i < 3; i++ {
		if o.Origin[i]-o.Extent[i] < b.Origin[i]-b.Extent[i] || o.Origin[i]+o.Extent[i] > b.Origin[i]+b.Extent[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies inside the box.
func (b Box) ContainsPoint(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(p[i]-b.Origin[i]) > b.Extent[i] {
			return false
		}
	}
	return true
}

// ExpandBy grows the box by amount along every axis.
func (b Box) ExpandBy(amount float32) Box {
	return Box{Origin: b.Origin, Extent: b.Extent.Add(mgl32.Vec3{amount, amount, amount})}
}

// IsDegenerate reports whether the box has zero volume or contains non-finite values.
func (b Box) IsDegenerate() bool {
	for i := 0; i < 3; i++ {
		if !(b.Extent[i] > 0) || math32.IsInf(b.Extent[i], 0) || math32.IsNaN(b.Origin[i]) || math32.IsInf(b.Origin[i], 0) {
			return true
		}
	}
	return false
}

// TransformBy returns the axis-aligned box enclosing b after transformation by m.
// Uses the absolute-value matrix method so the result stays tight for rotations.
//
// Parameters:
//   - m: an affine transform (column-major)
//
// Returns:
//   - Box: the transformed, re-aligned box
func (b Box) TransformBy(m mgl32.Mat4) Box {
	origin := m.Mul4x1(b.Origin.Vec4(1)).Vec3()
	var extent mgl32.Vec3
	for row := 0; row < 3; row++ {
		extent[row] = math32.Abs(m.At(row, 0))*b.Extent[0] +
			math32.Abs(m.At(row, 1))*b.Extent[1] +
			math32.Abs(m.At(row, 2))*b.Extent[2]
	}
	return Box{Origin: origin, Extent: extent}
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Intersects reports whether the two spheres overlap.
func (s Sphere) Intersects(o Sphere) bool {
	r := s.Radius + o.Radius
	return s.Center.Sub(o.Center).LenSqr() <= r*r
}

// IsInside reports whether s lies inside o, allowing o to be grown by tolerance.
//
// Parameters:
//   - o: the enclosing sphere candidate
//   - tolerance: extra radius granted to o
//
// Returns:
//   - bool: true if s fits inside the grown o
func (s Sphere) IsInside(o Sphere, tolerance float32) bool {
	slack := o.Radius + tolerance - s.Radius
	if slack < 0 {
		return false
	}
	return s.Center.Sub(o.Center).LenSqr() <= slack*slack
}

// BoxSphereBounds carries both a box and a sphere sharing one origin.
// Primitives publish this so culling can run the cheap sphere test before the box test.
type BoxSphereBounds struct {
	Origin       mgl32.Vec3
	Extent       mgl32.Vec3
	SphereRadius float32
}

// NewBoxSphereBoundsFromBox builds bounds whose sphere circumscribes the box.
//
// Parameters:
//   - b: the source box
//
// Returns:
//   - BoxSphereBounds: the combined bounds
func NewBoxSphereBoundsFromBox(b Box) BoxSphereBounds {
	return BoxSphereBounds{Origin: b.Origin, Extent: b.Extent, SphereRadius: b.Extent.Len()}
}

// Box returns the box part of the bounds.
func (b BoxSphereBounds) Box() Box {
	return Box{Origin: b.Origin, Extent: b.Extent}
}

// Sphere returns the sphere part of the bounds.
func (b BoxSphereBounds) Sphere() Sphere {
	return Sphere{Center: b.Origin, Radius: b.SphereRadius}
}

// Union returns bounds enclosing both b and o.
func (b BoxSphereBounds) Union(o BoxSphereBounds) BoxSphereBounds {
	box := NewBoxFromMinMax(MinVec3(b.Box().Min(), o.Box().Min()), MaxVec3(b.Box().Max(), o.Box().Max()))
	radius := math32.Max(
		box.Origin.Sub(b.Origin).Len()+b.SphereRadius,
		box.Origin.Sub(o.Origin).Len()+o.SphereRadius,
	)
	return BoxSphereBounds{Origin: box.Origin, Extent: box.Extent, SphereRadius: math32.Min(radius, box.Extent.Len())}
}

// TransformBy transforms the bounds by an affine matrix.
// The sphere radius is scaled by the largest axis scale of m.
func (b BoxSphereBounds) TransformBy(m mgl32.Mat4) BoxSphereBounds {
	box := b.Box().TransformBy(m)
	return BoxSphereBounds{
		Origin:       box.Origin,
		Extent:       box.Extent,
		SphereRadius: math32.Min(b.SphereRadius*mgl32.ExtractMaxScale(m), box.Extent.Len()),
	}
}
