package primitive

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// PrimitiveBuilderOption is a functional option for configuring a primitive during construction.
type PrimitiveBuilderOption func(*primitiveImpl)

// WithName sets the debug label of the primitive.
//
// Parameters:
//   - name: the label
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the name
func WithName(name string) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.name = name
	}
}

// WithEnabled sets whether the primitive takes part in rendering.
//
// Parameters:
//   - enabled: true to render the primitive
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the enabled state
func WithEnabled(enabled bool) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.enabled.Store(enabled)
	}
}

// WithLocalBounds sets the bounds of the primitive before its transform is applied.
//
// Parameters:
//   - bounds: the local bounds
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the bounds
func WithLocalBounds(bounds common.BoxSphereBounds) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.localBounds = bounds
	}
}

// WithBox sets the local bounds to a box with the given center and half extent.
//
// Parameters:
//   - origin: the box center
//   - extent: the box half extent
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the bounds
func WithBox(origin, extent mgl32.Vec3) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.localBounds = common.NewBoxSphereBoundsFromBox(common.Box{Origin: origin, Extent: extent})
	}
}

// WithLocalToWorld sets the primitive transform.
//
// Parameters:
//   - m: the transform
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the transform
func WithLocalToWorld(m mgl32.Mat4) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.localToWorld = m
	}
}

// WithPosition sets the primitive transform to a translation.
//
// Parameters:
//   - x, y, z: the world position
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the transform
func WithPosition(x, y, z float32) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.localToWorld = mgl32.Translate3D(x, y, z)
	}
}

// WithDrawBatches sets the draw submissions of the primitive. Batch IDs are reassigned
// by the scene.
//
// Parameters:
//   - batches: the draw batches ordered by LOD
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the batches
func WithDrawBatches(batches ...DrawBatch) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.batches = append(p.batches[:0], batches...)
	}
}

// WithFlags replaces the capability flags of the primitive.
//
// Parameters:
//   - flags: the flags
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the flags
func WithFlags(flags Flags) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.flags = flags
	}
}

// WithMobility sets whether the primitive may move.
//
// Parameters:
//   - m: the mobility
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the mobility
func WithMobility(m common.Mobility) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.mobility = m
	}
}

// WithDrawDistance sets the distance range in which the primitive is drawn.
// A max of 0 disables the far limit.
//
// Parameters:
//   - minDistance: the minimum draw distance
//   - maxDistance: the maximum draw distance
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the draw distances
func WithDrawDistance(minDistance, maxDistance float32) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.minDrawDistance = minDistance
		p.maxDrawDistance = maxDistance
	}
}

// WithLightingChannels sets the channel mask of the primitive.
//
// Parameters:
//   - mask: the lighting channel mask
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the mask
func WithLightingChannels(mask uint8) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.lightingChannels = mask
	}
}

// WithOcclusionQueries sets local-space sub-primitive occlusion bounds and enables
// FlagHasSubprimitiveQueries.
//
// Parameters:
//   - queries: the local query bounds
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the queries
func WithOcclusionQueries(queries ...common.BoxSphereBounds) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.subQueries = append(p.subQueries[:0], queries...)
		if len(queries) > 0 {
			p.flags |= FlagHasSubprimitiveQueries
		}
	}
}

// WithVisibilityFunc sets a custom visibility predicate and enables FlagHasCustomVisibility.
//
// Parameters:
//   - fn: the predicate
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the predicate
func WithVisibilityFunc(fn VisibilityFunc) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.visibleFn = fn
		if fn != nil {
			p.flags |= FlagHasCustomVisibility
		}
	}
}

// WithShadowGroup makes the primitive cast its per-object shadow as part of parent's group.
//
// Parameters:
//   - parent: the group parent
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the shadow group
func WithShadowGroup(parent ComponentID) PrimitiveBuilderOption {
	return func(p *primitiveImpl) {
		p.shadowGroup = parent
	}
}
