package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is a half-space boundary stored as an outward normal and a distance from the origin.
// PlaneDot(p) = Normal·p - Distance; positive values lie outside the half-space.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// NewPlaneFromPoint builds a plane with the given outward normal passing through point.
//
// Parameters:
//   - normal: the outward normal (normalized by this call)
//   - point: any point on the plane
//
// Returns:
//   - Plane: the plane
func NewPlaneFromPoint(normal, point mgl32.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Distance: n.Dot(point)}
}

// PlaneDot returns the signed distance from p to the plane. Positive is outside.
func (p Plane) PlaneDot(v mgl32.Vec3) float32 {
	return p.Normal.Dot(v) - p.Distance
}

// Flip returns the plane facing the opposite direction.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), Distance: -p.Distance}
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that the positive half-space is outside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix using the WebGPU clip
// convention (depth in [0, 1]). Uses the Gribb/Hartmann method for plane extraction,
// then flips each plane so the normal points away from the frustum interior.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized, outward-facing planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum

	r0 := viewProj.Row(0)
	r1 := viewProj.Row(1)
	r2 := viewProj.Row(2)
	r3 := viewProj.Row(3)

	// Inward-facing planes (a, b, c, d) with ax + by + cz + d >= 0 inside.
	inward := [6]mgl32.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r2,         // near: z_clip >= 0
		r3.Sub(r2), // far: z_clip <= w_clip
	}

	for i, p := range inward {
		n := mgl32.Vec3{p[0], p[1], p[2]}
		length := n.Len()
		if length > 0 {
			n = n.Mul(1 / length)
			p[3] /= length
		}
		// Flip to outward: -n·x - d > 0 outside => Normal = -n, Distance = d.
		f.Planes[i] = Plane{Normal: n.Mul(-1), Distance: p[3]}
	}

	return f
}

// Corners returns the eight world-space corners of the frustum described by the
// inverse of a [0, 1]-depth view-projection matrix, near corners first.
//
// Parameters:
//   - invViewProj: inverse of the view-projection matrix
//
// Returns:
//   - [8]mgl32.Vec3: corners ordered (x, y) = (-1,-1), (1,-1), (-1,1), (1,1) at near then far
func Corners(invViewProj mgl32.Mat4) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	i := 0
	for _, z := range [2]float32{0, 1} {
		for _, y := range [2]float32{-1, 1} {
			for _, x := range [2]float32{-1, 1} {
				p := invViewProj.Mul4x1(mgl32.Vec4{x, y, z, 1})
				out[i] = p.Vec3().Mul(1 / p.W())
				i++
			}
		}
	}
	return out
}
