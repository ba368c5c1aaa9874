package light

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func (l *lightImpl) BoundingSphere() common.Sphere {
	switch l.lightType {
	case LightTypePoint:
		return common.Sphere{Center: l.position, Radius: l.lightRange}
	case LightTypeSpot:
		// Tightest sphere around the cone: wide cones are capped by the base disc,
		// narrow ones by the sphere through the apex and the base rim.
		cosHalf := l.outerCone
		if cosHalf < 0.707 {
			sinHalf := math32.Sqrt(math32.Max(1-cosHalf*cosHalf, 0))
			return common.Sphere{
				Center: l.position.Add(l.direction.Mul(l.lightRange * cosHalf)),
				Radius: l.lightRange * sinHalf,
			}
		}
		r := l.lightRange / (2 * cosHalf)
		return common.Sphere{Center: l.position.Add(l.direction.Mul(r)), Radius: r}
	default:
		return common.Sphere{}
	}
}

func (l *lightImpl) AffectsBounds(bounds common.BoxSphereBounds) bool {
	switch l.lightType {
	case LightTypeDirectional:
		return true
	case LightTypePoint:
		return l.rangeOverlaps(bounds)
	case LightTypeSpot:
		if !l.rangeOverlaps(bounds) {
			return false
		}
		return coneOverlapsSphere(l.position, l.direction, l.outerCone, bounds.Origin, bounds.SphereRadius)
	default:
		return false
	}
}

// rangeOverlaps tests the light's range sphere against the bounds' box.
func (l *lightImpl) rangeOverlaps(bounds common.BoxSphereBounds) bool {
	box := bounds.Box()
	lo, hi := box.Min(), box.Max()
	var distSq float32
	for i := 0; i < 3; i++ {
		switch {
		case l.position[i] < lo[i]:
			distSq += common.Square(lo[i] - l.position[i])
		case l.position[i] > hi[i]:
			distSq += common.Square(l.position[i] - hi[i])
		}
	}
	return distSq <= l.lightRange*l.lightRange
}

// coneOverlapsSphere tests a sphere against an infinite cone by shifting the apex back so
// the cone grows by the sphere radius, then handling spheres around the apex separately.
func coneOverlapsSphere(apex, axis mgl32.Vec3, cosHalf float32, center mgl32.Vec3, radius float32) bool {
	sinHalf := math32.Sqrt(math32.Max(1-cosHalf*cosHalf, 0))
	if sinHalf < common.Delta {
		return false
	}

	u := apex.Sub(axis.Mul(radius / sinHalf))
	d := center.Sub(u)
	dSq := d.LenSqr()
	e := axis.Dot(d)
	if !(e > 0 && e*e >= dSq*cosHalf*cosHalf) {
		return false
	}

	d = center.Sub(apex)
	dSq = d.LenSqr()
	e = -axis.Dot(d)
	if e > 0 && e*e >= dSq*sinHalf*sinHalf {
		return dSq <= radius*radius
	}
	return true
}
