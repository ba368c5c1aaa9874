package scene

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithWorldExtent sets the cube the scene's octree covers. Primitives outside it are still
// accepted but are stored at the octree root.
//
// Parameters:
//   - origin: the center of the world cube
//   - extent: the half-size of the world cube (must be > 0)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorldExtent(origin mgl32.Vec3, extent float32) SceneBuilderOption {
	return func(s *scene) {
		s.worldOrigin = origin
		s.worldExtent = extent
	}
}

// WithOctreeOptions forwards options to the scene's octree. The element ID setter is
// always installed by the scene.
//
// Parameters:
//   - opts: the octree options
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOctreeOptions(opts ...octree.OctreeBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.octreeOpts = append(s.octreeOpts, opts...)
	}
}

// WithPrimitives adds initial primitives to the scene. IDs are assigned in order.
//
// Parameters:
//   - proxies: the primitives to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPrimitives(proxies ...primitive.Proxy) SceneBuilderOption {
	return func(s *scene) {
		s.pendingPrimitives = append(s.pendingPrimitives, proxies...)
	}
}

// WithLights adds initial lights to the scene.
// Lights without IDs will be assigned new IDs.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.pendingLights = append(s.pendingLights, lights...)
	}
}
