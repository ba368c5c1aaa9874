package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	id uint32
	up mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	width, height int

	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4

	controller CameraController
	viewState  *visibility.ViewState
}

// Camera holds perspective settings and turns an attached CameraController's position
// into the view a frame is culled for.
type Camera interface {
	// ID returns the identifier the camera's views carry.
	//
	// Returns:
	//   - uint32: the view identifier
	ID() uint32

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the current world to view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix with depth in [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// Controller returns the attached CameraController, or nil.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// ViewState returns the persistent per-view state attached to the camera, or nil.
	//
	// Returns:
	//   - *visibility.ViewState: the view state or nil
	ViewState() *visibility.ViewState

	// Update reads position and target from the controller and recomputes the matrices.
	// Does nothing without a controller.
	Update()

	// SetAspect sets the aspect ratio and recomputes the projection.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetViewport sets the viewport size views are created with. The aspect ratio follows it.
	//
	// Parameters:
	//   - width, height: viewport size in pixels
	SetViewport(width, height int)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// SetViewState attaches persistent per-view state, enabling fading and occlusion history.
	//
	// Parameters:
	//   - state: the view state, or nil to detach
	SetViewState(state *visibility.ViewState)

	// View creates the visibility view for the camera's current matrices.
	//
	// Parameters:
	//   - seconds: the frame time the view is evaluated at
	//   - options: extra view options, applied after the camera's own
	//
	// Returns:
	//   - *visibility.View: the view
	View(seconds float64, options ...visibility.ViewBuilderOption) *visibility.View
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
// A controller must be attached via SetController or WithController option
// before position/target data is available.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:               &sync.Mutex{},
		up:               mgl32.Vec3{0, 1, 0},
		fov:              mgl32.DegToRad(60),
		aspect:           16.0 / 9.0,
		near:             1,
		far:              100000,
		width:            1920,
		height:           1080,
		viewMatrix:       mgl32.Ident4(),
		projectionMatrix: mgl32.Ident4(),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) ID() uint32 {
	return c.id
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) ViewState() *visibility.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewState
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetViewport(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	c.width, c.height = width, height
	c.aspect = float32(width) / float32(height)
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

func (c *cameraImpl) SetViewState(state *visibility.ViewState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewState = state
}

func (c *cameraImpl) View(seconds float64, options ...visibility.ViewBuilderOption) *visibility.View {
	c.mu.Lock()
	opts := []visibility.ViewBuilderOption{
		visibility.WithTime(seconds),
		visibility.WithViewport(c.width, c.height),
	}
	if c.viewState != nil {
		opts = append(opts, visibility.WithViewState(c.viewState))
	}
	viewM, proj := c.viewMatrix, c.projectionMatrix
	c.mu.Unlock()
	return visibility.NewView(c.id, viewM, proj, append(opts, options...)...)
}

// updateMatrices recomputes the projection, and the view matrix from the controller when
// one is attached. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.projectionMatrix = common.PerspectiveZO(c.fov, c.aspect, c.near, c.far)
	if c.controller == nil {
		return
	}
	c.viewMatrix = common.LookAt(c.controller.Position(), c.controller.Target(), c.up)
}
