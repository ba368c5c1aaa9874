package visibility

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
)

// ViewBuilderOption is a function that configures a View during construction.
type ViewBuilderOption func(*View)

// WithViewState is an option builder that attaches persistent viewport state.
//
// Parameters:
//   - s: the state, shared by every frame of the viewport
//
// Returns:
//   - ViewBuilderOption: a function that applies the state option to a View
func WithViewState(s *ViewState) ViewBuilderOption {
	return func(v *View) {
		v.State = s
	}
}

// WithTime is an option builder that sets the frame's real time.
//
// Parameters:
//   - seconds: the time in seconds
//
// Returns:
//   - ViewBuilderOption: a function that applies the time option to a View
func WithTime(seconds float64) ViewBuilderOption {
	return func(v *View) {
		v.Time = seconds
	}
}

// WithViewport is an option builder that sets the render size in pixels.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - ViewBuilderOption: a function that applies the viewport option to a View
func WithViewport(width, height int) ViewBuilderOption {
	return func(v *View) {
		v.ViewportWidth = max(width, 1)
		v.ViewportHeight = max(height, 1)
	}
}

// WithHiddenPrimitives is an option builder that hides primitives from the view.
//
// Parameters:
//   - ids: the primitives to hide
//
// Returns:
//   - ViewBuilderOption: a function that applies the hidden set to a View
func WithHiddenPrimitives(ids ...primitive.ComponentID) ViewBuilderOption {
	return func(v *View) {
		if v.Hidden == nil {
			v.Hidden = make(map[primitive.ComponentID]struct{}, len(ids))
		}
		for _, id := range ids {
			v.Hidden[id] = struct{}{}
		}
	}
}

// WithShowOnlyPrimitives is an option builder that restricts the view to the given primitives.
//
// Parameters:
//   - ids: the only primitives that may be visible
//
// Returns:
//   - ViewBuilderOption: a function that applies the show-only set to a View
func WithShowOnlyPrimitives(ids ...primitive.ComponentID) ViewBuilderOption {
	return func(v *View) {
		if v.ShowOnly == nil {
			v.ShowOnly = make(map[primitive.ComponentID]struct{}, len(ids))
		}
		for _, id := range ids {
			v.ShowOnly[id] = struct{}{}
		}
	}
}

// WithWireframe is an option builder that enables wireframe small-object culling.
func WithWireframe(enabled bool) ViewBuilderOption {
	return func(v *View) {
		v.Wireframe = enabled
	}
}

// WithStaticSceneOnly is an option builder that drops movable primitives from the view.
func WithStaticSceneOnly(enabled bool) ViewBuilderOption {
	return func(v *View) {
		v.StaticSceneOnly = enabled
	}
}

// WithReflectionCapture is an option builder that marks the view as a reflection capture.
// Captures also only see the static scene.
func WithReflectionCapture(enabled bool) ViewBuilderOption {
	return func(v *View) {
		v.ReflectionCapture = enabled
		if enabled {
			v.StaticSceneOnly = true
		}
	}
}

// WithForcedLOD is an option builder that selects the same LOD for every primitive.
//
// Parameters:
//   - lod: the LOD index, or a negative value for automatic selection
//
// Returns:
//   - ViewBuilderOption: a function that applies the forced LOD to a View
func WithForcedLOD(lod int) ViewBuilderOption {
	return func(v *View) {
		v.ForcedLOD = lod
	}
}

// WithOcclusionDisabled is an option builder that skips the occlusion stage.
func WithOcclusionDisabled(disabled bool) ViewBuilderOption {
	return func(v *View) {
		v.DisableOcclusion = disabled
	}
}

// WithFadeTransitionsDisabled is an option builder that suppresses distance fades, e.g.
// on camera cuts.
func WithFadeTransitionsDisabled(disabled bool) ViewBuilderOption {
	return func(v *View) {
		v.DisableFadeTransitions = disabled
	}
}

// WithLODDistanceFactor is an option builder that scales LOD and screen-size distances,
// usually to compensate for field of view.
//
// Parameters:
//   - factor: the distance factor
//
// Returns:
//   - ViewBuilderOption: a function that applies the factor to a View
func WithLODDistanceFactor(factor float32) ViewBuilderOption {
	return func(v *View) {
		v.LODDistanceFactor = factor
	}
}
