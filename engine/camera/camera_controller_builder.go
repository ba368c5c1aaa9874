package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithRadius sets the starting distance between the camera and its pivot.
// NewOrbitController clamps it to the radius bounds.
//
// Parameters:
//   - radius: the distance
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the starting angle around the pivot's Y axis, in radians from +Z.
//
// Parameters:
//   - azimuth: the angle
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the starting angle above the pivot's horizontal plane, in radians.
//
// Parameters:
//   - elevation: the angle
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithElevation(elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the pivot the camera orbits and looks at.
//
// Parameters:
//   - x, y, z: the pivot in world space
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithTarget(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = mgl32.Vec3{x, y, z}
	}
}

// WithRadiusBounds limits how close and how far Zoom and SetRadius may move the camera.
// Reversed bounds are swapped; a non-positive lower bound is ignored.
//
// Parameters:
//   - lo, hi: the closest and farthest distance
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithRadiusBounds(lo, hi float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo > 0 {
			cc.minRadius = lo
		}
		cc.maxRadius = hi
	}
}

// WithElevationBounds limits the elevation Orbit and SetElevation may reach.
// Reversed bounds are swapped.
//
// Parameters:
//   - lo, hi: the lowest and highest angle in radians
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithElevationBounds(lo, hi float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if lo > hi {
			lo, hi = hi, lo
		}
		cc.minElevation, cc.maxElevation = lo, hi
	}
}

// WithZoomSpeed sets the distance one unit of Zoom input moves the camera.
// Non-positive speeds are ignored.
//
// Parameters:
//   - speed: world units per zoom unit
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if speed > 0 {
			cc.zoomSpeed = speed
		}
	}
}
