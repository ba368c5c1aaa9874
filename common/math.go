package common

import (
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Delta is the tolerance below which a homogeneous W is treated as zero.
const Delta float32 = 0.00001

// HalfWorldMax bounds any coordinate the culling core will reason about.
const HalfWorldMax float32 = 1048576.0

// PerspectiveZO creates a right-handed perspective projection matrix that maps
// view-space depth into the WebGPU clip range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix (column-major)
func PerspectiveZO(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// OrthoZO creates a right-handed orthographic projection matrix with depth in [0, 1].
//
// Parameters:
//   - left, right, bottom, top: view-volume bounds on the x and y axes
//   - near, far: view-volume depth bounds (distances along -Z)
//
// Returns:
//   - mgl32.Mat4: the projection matrix (column-major)
func OrthoZO(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	var out mgl32.Mat4
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = near / (near - far)
	out[15] = 1
	return out
}

// LookAt creates a view matrix that positions and orients the camera.
// When forward and up are parallel a fallback up axis is chosen so the basis stays valid.
//
// Parameters:
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation
//
// Returns:
//   - mgl32.Mat4: the view matrix (column-major)
func LookAt(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	forward := center.Sub(eye)
	if forward.LenSqr() == 0 {
		forward = mgl32.Vec3{0, 0, -1}
	}
	if forward.Normalize().Cross(up.Normalize()).LenSqr() < 1e-8 {
		up = PerpendicularAxis(forward)
	}
	return mgl32.LookAtV(eye, center, up)
}

// PerpendicularAxis returns a unit axis that is not parallel to v.
func PerpendicularAxis(v mgl32.Vec3) mgl32.Vec3 {
	if math32.Abs(v.Normalize().Y()) < 0.99 {
		return mgl32.Vec3{0, 1, 0}
	}
	return mgl32.Vec3{1, 0, 0}
}

// AbsVec3 returns the component-wise absolute value of v.
func AbsVec3(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{math32.Abs(v[0]), math32.Abs(v[1]), math32.Abs(v[2])}
}

// MinVec3 returns the component-wise minimum of a and b.
func MinVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{math32.Min(a[0], b[0]), math32.Min(a[1], b[1]), math32.Min(a[2], b[2])}
}

// MaxVec3 returns the component-wise maximum of a and b.
func MaxVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{math32.Max(a[0], b[0]), math32.Max(a[1], b[1]), math32.Max(a[2], b[2])}
}

// Square returns x*x.
func Square(x float32) float32 {
	return x * x
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	return math32.Min(math32.Max(x, lo), hi)
}

// CeilLogTwo returns ceil(log2(x)) for x > 0 and 0 for x <= 1.
//
// Parameters:
//   - x: the value
//
// Returns:
//   - int: the smallest n with 1<<n >= x
func CeilLogTwo(x uint32) int {
	if x <= 1 {
		return 0
	}
	return bits.Len32(x - 1)
}

// RoundDownToPowerOfTwo returns the largest power of two strictly below x, using the
// 1 << (CeilLogTwo(x) - 1) form so exact powers of two halve. Values below 2 yield 1.
//
// Parameters:
//   - x: the value to round
//
// Returns:
//   - uint32: the rounded value
func RoundDownToPowerOfTwo(x uint32) uint32 {
	n := CeilLogTwo(x)
	if n < 1 {
		return 1
	}
	return 1 << (n - 1)
}

// ComputeBoundsScreenSize returns the projected screen radius fraction of a sphere
// as seen from viewOrigin, given the projection's screen multiple.
//
// Parameters:
//   - origin: sphere center
//   - radius: sphere radius
//   - viewOrigin: the view position
//   - screenMultiple: max(0.5*proj[0][0], 0.5*proj[1][1])
//
// Returns:
//   - float32: screen size, 1 roughly meaning the sphere fills the screen
func ComputeBoundsScreenSize(origin mgl32.Vec3, radius float32, viewOrigin mgl32.Vec3, screenMultiple float32) float32 {
	dist := origin.Sub(viewOrigin).Len()
	return 2.0 * screenMultiple * radius / math32.Max(dist, 1.0)
}
