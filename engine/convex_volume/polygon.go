package convex_volume

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Polygon is a planar, convex polygon given by its vertices in winding order.
type Polygon struct {
	Vertices []mgl32.Vec3
}

// ClipPolygon clips the polygon successively against every plane of the volume.
// Only used by debug tooling; the per-frame path never clips.
//
// Parameters:
//   - poly: the polygon to clip
//
// Returns:
//   - Polygon: the clipped polygon
//   - bool: false if nothing of the polygon survives
func (v ConvexVolume) ClipPolygon(poly Polygon) (Polygon, bool) {
	out := Polygon{Vertices: append([]mgl32.Vec3(nil), poly.Vertices...)}
	for _, p := range v.Planes {
		var ok bool
		out, ok = clipAgainstPlane(out, p)
		if !ok {
			return Polygon{}, false
		}
	}
	return out, len(out.Vertices) >= 3
}

// clipAgainstPlane keeps the part of poly on the inside (PlaneDot <= 0) of p.
func clipAgainstPlane(poly Polygon, p common.Plane) (Polygon, bool) {
	n := len(poly.Vertices)
	if n < 3 {
		return Polygon{}, false
	}

	clipped := make([]mgl32.Vec3, 0, n+2)
	prev := poly.Vertices[n-1]
	prevDist := p.PlaneDot(prev)
	for _, cur := range poly.Vertices {
		curDist := p.PlaneDot(cur)
		prevIn := prevDist <= 0
		curIn := curDist <= 0
		if curIn != prevIn {
			t := prevDist / (prevDist - curDist)
			clipped = append(clipped, prev.Add(cur.Sub(prev).Mul(t)))
		}
		if curIn {
			clipped = append(clipped, cur)
		}
		prev, prevDist = cur, curDist
	}

	if len(clipped) < 3 {
		return Polygon{}, false
	}
	return Polygon{Vertices: clipped}, true
}
