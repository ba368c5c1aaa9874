package visibility

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/convex_volume"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Aggregates are per-view flags accumulated over the relevant primitives.
type Aggregates struct {
	HasDynamicShadowCasters      bool
	UsesLightingChannels         bool
	HasTranslucency              bool
	NumVisibleStaticMeshElements int
}

// View is the transient per-frame record of one camera. The outputs are rewritten by
// every Compute; anything that must survive frames lives in State.
type View struct {
	ID uint32

	Origin           mgl32.Vec3
	ViewMatrix       mgl32.Mat4
	ProjectionMatrix mgl32.Mat4
	ViewProjection   mgl32.Mat4
	Frustum          convex_volume.ConvexVolume
	NearPlane        common.Plane
	// Bounds encloses the frustum corners.
	Bounds      common.Sphere
	Perspective bool
	Near, Far   float32

	// ScreenMultiple is max(0.5*proj[0][0], 0.5*proj[1][1]).
	ScreenMultiple    float32
	LODDistanceFactor float32
	ViewportWidth     int
	ViewportHeight    int
	// Time is the real time of the frame in seconds.
	Time float64

	// State is the persistent viewport state. Nil disables fading, occlusion and LOD dithering.
	State *ViewState

	Hidden                 map[primitive.ComponentID]struct{}
	ShowOnly               map[primitive.ComponentID]struct{}
	Wireframe              bool
	StaticSceneOnly        bool
	ReflectionCapture      bool
	DisableOcclusion       bool
	DisableFadeTransitions bool
	// ForcedLOD selects one LOD for every primitive. Negative means automatic.
	ForcedLOD int

	// Per-primitive outputs, indexed by packed index.
	PrimitiveVisibility           Bitmap
	PrimitiveDefinitelyUnoccluded Bitmap
	PotentiallyFading             Bitmap
	Relevance                     []Relevance
	FadeUniforms                  []FadeUniform

	// Per-draw-batch outputs, indexed by DrawBatch.ID.
	StaticMeshVisibility  Bitmap
	StaticMeshOccluder    Bitmap
	StaticMeshShadowDepth Bitmap
	StaticMeshFadeOut     Bitmap
	StaticMeshFadeIn      Bitmap

	// SubprimitiveOcclusion holds per-subquery occlusion of primitives with sub-primitive queries.
	SubprimitiveOcclusion map[primitive.ComponentID][]bool

	Aggregates Aggregates
	Stats      FrameStats
}

// NewView creates a view from camera matrices. The projection must map depth to [0, 1].
//
// Parameters:
//   - id: the view identifier passed to custom visibility predicates
//   - viewMatrix: world to view space
//   - projection: view to clip space
//   - options: functional options to configure the view
//
// Returns:
//   - *View: the view
func NewView(id uint32, viewMatrix, projection mgl32.Mat4, options ...ViewBuilderOption) *View {
	v := &View{
		ID:                id,
		ViewMatrix:        viewMatrix,
		ProjectionMatrix:  projection,
		ViewProjection:    projection.Mul4(viewMatrix),
		LODDistanceFactor: 1,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		ForcedLOD:         -1,
	}

	v.Origin = viewMatrix.Inv().Col(3).Vec3()
	v.Frustum = convex_volume.FromFrustum(v.ViewProjection)
	v.NearPlane = v.Frustum.Planes[common.FrustumNear]
	v.Perspective = projection[15] == 0
	if projection[10] != 0 {
		if v.Perspective {
			v.Near = projection[14] / projection[10]
			v.Far = projection[14] / (projection[10] + 1)
		} else {
			v.Near = projection[14] / projection[10]
			v.Far = (projection[14] - 1) / projection[10]
		}
	}
	v.ScreenMultiple = math32.Max(0.5*projection[0], 0.5*projection[5])

	corners := common.Corners(v.ViewProjection.Inv())
	var center mgl32.Vec3
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / 8)
	var radiusSq float32
	for _, c := range corners {
		radiusSq = math32.Max(radiusSq, c.Sub(center).LenSqr())
	}
	v.Bounds = common.Sphere{Center: center, Radius: math32.Sqrt(radiusSq)}

	for _, option := range options {
		option(v)
	}
	return v
}

// Forward returns the view direction in world space.
func (v *View) Forward() mgl32.Vec3 {
	return v.ViewMatrix.Row(2).Vec3().Mul(-1)
}

// CascadeView returns what cascade fitting needs from a perspective view.
//
// Returns:
//   - light.CascadeView: the view description
//   - bool: false for orthographic views, which get no view-dependent cascades
func (v *View) CascadeView() (light.CascadeView, bool) {
	if !v.Perspective || v.ProjectionMatrix[0] == 0 || v.ProjectionMatrix[5] == 0 {
		return light.CascadeView{}, false
	}
	return light.CascadeView{
		Origin:      v.Origin,
		Forward:     v.Forward(),
		Right:       v.ViewMatrix.Row(0).Vec3(),
		Up:          v.ViewMatrix.Row(1).Vec3(),
		TanHalfFOVX: 1 / v.ProjectionMatrix[0],
		TanHalfFOVY: 1 / v.ProjectionMatrix[5],
		Near:        v.Near,
	}, true
}

// IsVisible reports whether the primitive at a packed index survived the pass.
func (v *View) IsVisible(packedIndex int) bool {
	return v.PrimitiveVisibility.Get(packedIndex)
}

// PixelScreenRadius returns the approximate on-screen radius in pixels of a sphere.
func (v *View) PixelScreenRadius(origin mgl32.Vec3, radius float32) float32 {
	scale := 0.5 * math32.Max(v.ProjectionMatrix[0]*float32(v.ViewportWidth), v.ProjectionMatrix[5]*float32(v.ViewportHeight))
	if !v.Perspective {
		return radius * scale
	}
	return radius * scale / math32.Max(origin.Sub(v.Origin).Len(), 1)
}

func (v *View) reset(numPrimitives, numBatches int) {
	v.PrimitiveVisibility.Reset(numPrimitives)
	v.PrimitiveDefinitelyUnoccluded.Reset(numPrimitives)
	v.PotentiallyFading.Reset(numPrimitives)
	v.StaticMeshVisibility.Reset(numBatches)
	v.StaticMeshOccluder.Reset(numBatches)
	v.StaticMeshShadowDepth.Reset(numBatches)
	v.StaticMeshFadeOut.Reset(numBatches)
	v.StaticMeshFadeIn.Reset(numBatches)

	if cap(v.Relevance) >= numPrimitives {
		v.Relevance = v.Relevance[:numPrimitives]
		clear(v.Relevance)
	} else {
		v.Relevance = make([]Relevance, numPrimitives)
	}
	if cap(v.FadeUniforms) >= numPrimitives {
		v.FadeUniforms = v.FadeUniforms[:numPrimitives]
		clear(v.FadeUniforms)
	} else {
		v.FadeUniforms = make([]FadeUniform, numPrimitives)
	}
	v.SubprimitiveOcclusion = nil
	v.Aggregates = Aggregates{}
	v.Stats = FrameStats{Primitives: numPrimitives}
}
