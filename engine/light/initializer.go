package light

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowSnapTexels is the number of texels the orthographic shadow origin is snapped to,
// which keeps whole-scene shadows stable while the view moves.
const ShadowSnapTexels = 4

// ProjectedShadowInitializer holds everything needed to build the matrices of one shadow
// projection. Depth values are distances along FaceDirection from Eye.
type ProjectedShadowInitializer struct {
	Eye           mgl32.Vec3
	FaceDirection mgl32.Vec3
	Orthographic  bool
	// HalfWidth is the orthographic half extent.
	HalfWidth float32
	// FieldOfView is the full perspective angle in radians.
	FieldOfView   float32
	SubjectBounds common.BoxSphereBounds
	// MinLightW is the nearest caster depth.
	MinLightW   float32
	MinSubjectZ float32
	MaxSubjectZ float32
	// MaxDistanceToCastInLightW is how far past MinSubjectZ receivers are considered.
	MaxDistanceToCastInLightW float32
}

// WholeSceneInitializer is a ProjectedShadowInitializer covering a light's whole influence,
// or one cascade of it.
type WholeSceneInitializer struct {
	ProjectedShadowInitializer
	// Cascade is set for view-dependent directional shadows.
	Cascade *ShadowCascade
	// OnePassPointLight marks one face of a cube shadow.
	OnePassPointLight bool
	// CubeFace is the face index into CubeFaceDirections, -1 when not a cube face.
	CubeFace int
}

// Up returns the up axis of the shadow view.
func (i ProjectedShadowInitializer) Up() mgl32.Vec3 {
	return common.PerpendicularAxis(i.FaceDirection)
}

// ViewMatrix returns the world to light-view transform.
func (i ProjectedShadowInitializer) ViewMatrix() mgl32.Mat4 {
	return common.LookAt(i.Eye, i.Eye.Add(i.FaceDirection), i.Up())
}

// Projection returns the light projection between the near and far depths.
//
// Parameters:
//   - near: the near depth
//   - far: the far depth
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func (i ProjectedShadowInitializer) Projection(near, far float32) mgl32.Mat4 {
	if far <= near {
		far = near + common.Delta
	}
	if i.Orthographic {
		hw := i.HalfWidth
		return common.OrthoZO(-hw, hw, -hw, hw, near, far)
	}
	near = math32.Max(near, PerspectiveMinLightW)
	return common.PerspectiveZO(i.FieldOfView, 1, near, math32.Max(far, near+common.Delta))
}

// SubjectMatrix returns the view-projection tightly enclosing the subject depth range.
func (i ProjectedShadowInitializer) SubjectMatrix() mgl32.Mat4 {
	return i.Projection(i.MinSubjectZ, i.MaxSubjectZ).Mul4(i.ViewMatrix())
}

// CasterMatrix returns the view-projection used to gather casters, which starts at
// MinLightW so casters between the light and the subject are included.
func (i ProjectedShadowInitializer) CasterMatrix() mgl32.Mat4 {
	return i.Projection(i.MinLightW, i.MaxSubjectZ).Mul4(i.ViewMatrix())
}

// ReceiverMatrix returns the view-projection used to gather receivers, which extends
// behind the subject by MaxDistanceToCastInLightW.
func (i ProjectedShadowInitializer) ReceiverMatrix() mgl32.Mat4 {
	far := math32.Max(i.MaxSubjectZ, i.MinSubjectZ+i.MaxDistanceToCastInLightW)
	return i.Projection(i.MinSubjectZ, math32.Min(far, common.HalfWorldMax)).Mul4(i.ViewMatrix())
}

// SnapToTexels moves an orthographic Eye across the light plane so its projection lands
// on a multiple of ShadowSnapTexels texels. Perspective initializers are returned unchanged.
//
// Parameters:
//   - resolution: the shadow map resolution in texels
//
// Returns:
//   - ProjectedShadowInitializer: the snapped initializer
func (i ProjectedShadowInitializer) SnapToTexels(resolution uint32) ProjectedShadowInitializer {
	if !i.Orthographic || resolution == 0 || i.HalfWidth <= 0 {
		return i
	}
	step := 2 * i.HalfWidth * ShadowSnapTexels / float32(resolution)
	view := i.ViewMatrix()
	right := mgl32.Vec3{view[0], view[4], view[8]}
	up := mgl32.Vec3{view[1], view[5], view[9]}

	x := i.Eye.Dot(right)
	y := i.Eye.Dot(up)
	dx := math32.Floor(x/step)*step - x
	dy := math32.Floor(y/step)*step - y
	i.Eye = i.Eye.Add(right.Mul(dx)).Add(up.Mul(dy))
	return i
}

// WholeSceneInitializers builds the view-independent whole-scene projections of a light.
// Spot lights yield one perspective projection over the outer cone. Point lights yield the
// six faces of a cube when one-pass shadows are enabled, and nothing otherwise.
// Directional lights are view dependent and yield nothing here.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - []WholeSceneInitializer: the projections, possibly empty
func WholeSceneInitializers(l Light) []WholeSceneInitializer {
	if l.Range() <= 0 {
		return nil
	}
	sphere := l.BoundingSphere()
	bounds := common.BoxSphereBounds{
		Origin:       sphere.Center,
		Extent:       mgl32.Vec3{sphere.Radius, sphere.Radius, sphere.Radius},
		SphereRadius: sphere.Radius,
	}

	switch l.Type() {
	case LightTypeSpot:
		half := math32.Acos(common.Clamp(l.OuterCone(), -1, 1))
		fov := common.Clamp(2*half, mgl32.DegToRad(1), mgl32.DegToRad(179))
		return []WholeSceneInitializer{{
			ProjectedShadowInitializer: ProjectedShadowInitializer{
				Eye:                       l.Position(),
				FaceDirection:             l.Direction(),
				FieldOfView:               fov,
				SubjectBounds:             bounds,
				MinLightW:                 PerspectiveMinLightW,
				MinSubjectZ:               PerspectiveMinLightW,
				MaxSubjectZ:               l.Range(),
				MaxDistanceToCastInLightW: l.Range(),
			},
			CubeFace: -1,
		}}
	case LightTypePoint:
		if !l.OnePassPointShadows() {
			return nil
		}
		out := make([]WholeSceneInitializer, 0, len(CubeFaceDirections))
		for face, d := range CubeFaceDirections {
			out = append(out, WholeSceneInitializer{
				ProjectedShadowInitializer: ProjectedShadowInitializer{
					Eye:                       l.Position(),
					FaceDirection:             mgl32.Vec3(d),
					FieldOfView:               mgl32.DegToRad(90),
					SubjectBounds:             bounds,
					MinLightW:                 PerspectiveMinLightW,
					MinSubjectZ:               PerspectiveMinLightW,
					MaxSubjectZ:               l.Range(),
					MaxDistanceToCastInLightW: l.Range(),
				},
				OnePassPointLight: true,
				CubeFace:          face,
			})
		}
		return out
	default:
		return nil
	}
}

// ViewDependentWholeSceneInitializer builds the orthographic projection of one cascade of
// a directional light for the given view.
//
// Parameters:
//   - l: the directional light
//   - view: the dependent view
//   - index: the cascade index
//   - settings: the resolved cascade settings
//
// Returns:
//   - WholeSceneInitializer: the projection
//   - bool: false if the light is not directional or index is out of range
func ViewDependentWholeSceneInitializer(l Light, view CascadeView, index int, settings CascadeSettings) (WholeSceneInitializer, bool) {
	if l.Type() != LightTypeDirectional {
		return WholeSceneInitializer{}, false
	}
	cascade, ok := settings.Cascade(view, index)
	if !ok {
		return WholeSceneInitializer{}, false
	}
	cascade.ShadowBoundsAccurate = cascade.ShadowBoundsAccurate.ExcludePlanesFacing(l.Direction())

	r := cascade.Bounds.Radius
	depth := math32.Max(r, DirectionalDepthRangeClamp)
	return WholeSceneInitializer{
		ProjectedShadowInitializer: ProjectedShadowInitializer{
			Eye:           cascade.Bounds.Center,
			FaceDirection: l.Direction(),
			Orthographic:  true,
			HalfWidth:     r,
			SubjectBounds: common.BoxSphereBounds{
				Origin:       cascade.Bounds.Center,
				Extent:       mgl32.Vec3{r, r, r},
				SphereRadius: r,
			},
			MinLightW:                 -depth,
			MinSubjectZ:               -depth,
			MaxSubjectZ:               depth,
			MaxDistanceToCastInLightW: 2 * depth,
		},
		Cascade:  &cascade,
		CubeFace: -1,
	}, true
}

// PerObjectInitializer builds a projection fitted to one subject's bounds.
// Directional lights use an orthographic projection around the subject sphere; point and
// spot lights use a perspective projection from the light through the sphere.
//
// Parameters:
//   - l: the light
//   - bounds: the subject bounds
//
// Returns:
//   - ProjectedShadowInitializer: the projection
//   - bool: false if the subject has no extent or encloses the light
func PerObjectInitializer(l Light, bounds common.BoxSphereBounds) (ProjectedShadowInitializer, bool) {
	r := bounds.SphereRadius
	if r <= 0 {
		return ProjectedShadowInitializer{}, false
	}

	if l.Type() == LightTypeDirectional {
		return ProjectedShadowInitializer{
			Eye:                       bounds.Origin,
			FaceDirection:             l.Direction(),
			Orthographic:              true,
			HalfWidth:                 r,
			SubjectBounds:             bounds,
			MinLightW:                 -MaxDistanceToCastInLightW,
			MinSubjectZ:               -r,
			MaxSubjectZ:               r,
			MaxDistanceToCastInLightW: MaxDistanceToCastInLightW,
		}, true
	}

	toSubject := bounds.Origin.Sub(l.Position())
	dist := toSubject.Len()
	if dist <= r {
		return ProjectedShadowInitializer{}, false
	}
	maxCast := MaxDistanceToCastInLightW
	if l.Range() > 0 {
		maxCast = math32.Min(maxCast, l.Range())
	}
	return ProjectedShadowInitializer{
		Eye:                       l.Position(),
		FaceDirection:             toSubject.Mul(1 / dist),
		FieldOfView:               2 * math32.Asin(r/dist),
		SubjectBounds:             bounds,
		MinLightW:                 PerspectiveMinLightW,
		MinSubjectZ:               math32.Max(dist-r, PerspectiveMinLightW),
		MaxSubjectZ:               dist + r,
		MaxDistanceToCastInLightW: maxCast,
	}, true
}
