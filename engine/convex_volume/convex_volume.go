package convex_volume

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Intersection classifies a bounding volume against a convex volume.
type Intersection int

const (
	// Outside means the volume lies entirely outside at least one plane.
	Outside Intersection = iota

	// Intersecting means the volume is not outside any plane but straddles at least one.
	Intersecting

	// FullyContained means the volume lies inside every plane.
	FullyContained
)

// String returns a readable name for the intersection result.
func (i Intersection) String() string {
	switch i {
	case Outside:
		return "outside"
	case Intersecting:
		return "intersecting"
	case FullyContained:
		return "fullyContained"
	default:
		return "unknown"
	}
}

// permutedGroup holds four planes laid out component-major so one pass over the
// group evaluates all four plane equations together.
type permutedGroup struct {
	x, y, z, w [4]float32
}

// ConvexVolume is the intersection of a set of half-spaces. Each plane's normal points
// away from the region, so PlaneDot > 0 is outside. An empty plane set is unbounded.
//
// ConvexVolume is a plain value. Copies share the plane slices, so callers that mutate
// Planes must call Build again afterwards to refresh the permuted layout.
type ConvexVolume struct {
	// Planes are the half-space boundaries in insertion order.
	Planes []common.Plane
	// permuted is the 4-wide layout built from Planes, padded with the last plane.
	permuted []permutedGroup
}

// NewConvexVolume builds a convex volume from a plane list.
//
// Parameters:
//   - planes: outward-facing planes; may be empty
//
// Returns:
//   - ConvexVolume: the built volume
func NewConvexVolume(planes ...common.Plane) ConvexVolume {
	var v ConvexVolume
	v.Build(planes)
	return v
}

// FromFrustum builds the six-plane view volume of a [0, 1]-depth view-projection matrix.
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - ConvexVolume: the frustum volume
func FromFrustum(viewProj mgl32.Mat4) ConvexVolume {
	f := common.ExtractFrustumFromMatrix(viewProj)
	return NewConvexVolume(f.Planes[:]...)
}

// Build stores planes and rebuilds the permuted layout.
//
// Parameters:
//   - planes: outward-facing planes; the slice is copied
func (v *ConvexVolume) Build(planes []common.Plane) {
	v.Planes = append(v.Planes[:0:0], planes...)
	v.permuted = nil
	if len(v.Planes) == 0 {
		return
	}

	last := v.Planes[len(v.Planes)-1]
	groups := (len(v.Planes) + 3) / 4
	v.permuted = make([]permutedGroup, groups)
	for g := 0; g < groups; g++ {
		for lane := 0; lane < 4; lane++ {
			p := last
			if i := g*4 + lane; i < len(v.Planes) {
				p = v.Planes[i]
			}
			v.permuted[g].x[lane] = p.Normal[0]
			v.permuted[g].y[lane] = p.Normal[1]
			v.permuted[g].z[lane] = p.Normal[2]
			v.permuted[g].w[lane] = p.Distance
		}
	}
}

// PermutedGroups returns the number of 4-plane groups in the permuted layout.
func (v ConvexVolume) PermutedGroups() int {
	return len(v.permuted)
}

// IsEmpty reports whether the volume has no planes and therefore contains everything.
func (v ConvexVolume) IsEmpty() bool {
	return len(v.Planes) == 0
}

// IntersectBox reports whether the box is inside or straddling the volume.
//
// Parameters:
//   - origin: the box center
//   - extent: the box half-size
//
// Returns:
//   - bool: false only if the box is entirely outside some plane
func (v ConvexVolume) IntersectBox(origin, extent mgl32.Vec3) bool {
	for _, p := range v.Planes {
		pushOut := boxPushOut(p.Normal, extent)
		if p.PlaneDot(origin) > pushOut {
			return false
		}
	}
	return true
}

// IntersectBoxWithContainment classifies a box against the volume.
//
// Parameters:
//   - origin: the box center
//   - extent: the box half-size
//
// Returns:
//   - Intersection: Outside, Intersecting, or FullyContained
func (v ConvexVolume) IntersectBoxWithContainment(origin, extent mgl32.Vec3) Intersection {
	result := FullyContained
	for _, p := range v.Planes {
		pushOut := boxPushOut(p.Normal, extent)
		dist := p.PlaneDot(origin)
		if dist > pushOut {
			return Outside
		}
		if dist > -pushOut {
			result = Intersecting
		}
	}
	return result
}

// IntersectBoxPermuted is IntersectBox evaluated over the permuted 4-wide layout.
// It returns the same answer as IntersectBox for every input.
func (v ConvexVolume) IntersectBoxPermuted(origin, extent mgl32.Vec3) bool {
	for i := range v.permuted {
		g := &v.permuted[i]
		for lane := 0; lane < 4; lane++ {
			dist := origin[0]*g.x[lane] + origin[1]*g.y[lane] + origin[2]*g.z[lane] - g.w[lane]
			pushOut := math32.Abs(extent[0]*g.x[lane]) + math32.Abs(extent[1]*g.y[lane]) + math32.Abs(extent[2]*g.z[lane])
			if dist > pushOut {
				return false
			}
		}
	}
	return true
}

// IntersectSphere reports whether the sphere is inside or straddling the volume.
//
// Parameters:
//   - origin: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only if the sphere is entirely outside some plane
func (v ConvexVolume) IntersectSphere(origin mgl32.Vec3, radius float32) bool {
	for _, p := range v.Planes {
		if p.PlaneDot(origin) > radius {
			return false
		}
	}
	return true
}

// IntersectSphereWithContainment classifies a sphere against the volume.
//
// Parameters:
//   - origin: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - Intersection: Outside, Intersecting, or FullyContained
func (v ConvexVolume) IntersectSphereWithContainment(origin mgl32.Vec3, radius float32) Intersection {
	result := FullyContained
	for _, p := range v.Planes {
		dist := p.PlaneDot(origin)
		if dist > radius {
			return Outside
		}
		if dist > -radius {
			result = Intersecting
		}
	}
	return result
}

// IntersectBounds runs the sphere test then the box test on combined bounds.
func (v ConvexVolume) IntersectBounds(b common.BoxSphereBounds) bool {
	return v.IntersectSphere(b.Origin, b.SphereRadius) && v.IntersectBox(b.Origin, b.Extent)
}

// ExcludePlanesFacing returns a copy of the volume without the planes that would clip
// geometry swept from inside the volume along -dir. The result contains everything that
// can cast onto the original region when light travels along dir.
//
// Parameters:
//   - dir: the direction light travels (need not be normalized)
//
// Returns:
//   - ConvexVolume: the swept volume
func (v ConvexVolume) ExcludePlanesFacing(dir mgl32.Vec3) ConvexVolume {
	kept := make([]common.Plane, 0, len(v.Planes))
	for _, p := range v.Planes {
		// Moving a point by -t*dir changes PlaneDot by -t*(n·dir); planes with n·dir < 0
		// would push swept casters outside.
		if p.Normal.Dot(dir) >= 0 {
			kept = append(kept, p)
		}
	}
	return NewConvexVolume(kept...)
}

// boxPushOut projects a box extent onto a plane normal.
func boxPushOut(normal, extent mgl32.Vec3) float32 {
	return math32.Abs(extent[0]*normal[0]) + math32.Abs(extent[1]*normal[1]) + math32.Abs(extent[2]*normal[2])
}
