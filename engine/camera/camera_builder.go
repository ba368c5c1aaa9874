package camera

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraBuilderOption func(*cameraImpl)

// WithID sets the identifier the camera's views carry.
//
// Parameters:
//   - id: the view identifier
//
// Returns:
//   - CameraBuilderOption: a function that sets the identifier
func WithID(id uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.id = id
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = mgl32.Vec3{x, y, z}
	}
}

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithViewport sets the viewport size in pixels. The aspect ratio follows it.
//
// Parameters:
//   - width, height: viewport size
//
// Returns:
//   - CameraBuilderOption: a function that sets the viewport
func WithViewport(width, height int) CameraBuilderOption {
	return func(c *cameraImpl) {
		if width <= 0 || height <= 0 {
			return
		}
		c.width, c.height = width, height
		c.aspect = float32(width) / float32(height)
	}
}

// WithClipPlanes sets the near and far clipping plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the clip planes
func WithClipPlanes(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithController attaches a controller to the camera.
// After all options are applied, the camera recomputes its matrices from the controller's state.
//
// Parameters:
//   - ctrl: the controller to attach
//
// Returns:
//   - CameraBuilderOption: functional option to set the controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}

// WithViewState attaches persistent per-view state to the views the camera creates.
//
// Parameters:
//   - state: the view state
//
// Returns:
//   - CameraBuilderOption: functional option to set the view state
func WithViewState(state *visibility.ViewState) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.viewState = state
	}
}
