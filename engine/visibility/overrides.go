package visibility

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
)

// ApplyOverrides removes primitives excluded by the view's explicit settings: the hidden
// and show-only sets, wireframe small-object culling, static-scene-only views and
// reflection captures.
//
// Parameters:
//   - ctx: the pass context
//   - v: the view
func ApplyOverrides(ctx Context, v *View) {
	if len(v.Hidden) == 0 && v.ShowOnly == nil && !v.Wireframe && !v.StaticSceneOnly && !v.ReflectionCapture {
		return
	}
	s := ctx.Scene
	ids := s.PrimitiveComponentIDs()
	flags := s.PrimitiveFlags()
	bounds := s.PrimitiveBounds()

	for i := range v.PrimitiveVisibility.All() {
		if overridden(ctx, v, i, ids[i], flags[i], bounds[i].Origin, bounds[i].SphereRadius) {
			v.PrimitiveVisibility.Set(i, false)
			v.PrimitiveDefinitelyUnoccluded.Set(i, false)
			v.Stats.OverrideCulled++
		}
	}
}

func overridden(ctx Context, v *View, i int, id primitive.ComponentID, f primitive.Flags, origin mgl32.Vec3, radius float32) bool {
	if _, hidden := v.Hidden[id]; hidden {
		return true
	}
	if v.ShowOnly != nil {
		if _, shown := v.ShowOnly[id]; !shown {
			return true
		}
	}
	if v.Wireframe && v.PixelScreenRadius(origin, radius) < ctx.Config.WireframeCullThreshold {
		return true
	}
	if v.StaticSceneOnly && ctx.Scene.Primitive(i).Proxy.Mobility().IsMovable() {
		return true
	}
	if v.ReflectionCapture && !f.Has(primitive.FlagVisibleInReflectionCaptures) {
		return true
	}
	return false
}
