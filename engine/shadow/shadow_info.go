// Package shadow decides, per frame, which shadow projections are rendered, gathers the
// primitives each one draws and places their depth maps in render targets.
//
// InitDynamicShadows creates whole-scene shadows for point and spot lights, cascades
// for directional lights and per-object shadows and preshadows for stationary lights.
// It then refreshes the preshadow cache, gathers casters in packets on the worker pool
// and allocates atlases. Whole-scene shadows of non-movable lights and preshadows are
// cached across frames.
package shadow

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/convex_volume"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

// CacheMode selects which primitives a whole-scene shadow draws.
type CacheMode int

const (
	// CacheModeUncached draws every caster every frame.
	CacheModeUncached CacheMode = iota

	// CacheModeStaticPrimitivesOnly draws the non-movable casters into the cached map.
	CacheModeStaticPrimitivesOnly

	// CacheModeMovablePrimitivesOnly draws movable casters over a copy of the cached map.
	CacheModeMovablePrimitivesOnly
)

// String returns a readable name for the mode.
func (m CacheMode) String() string {
	switch m {
	case CacheModeUncached:
		return "uncached"
	case CacheModeStaticPrimitivesOnly:
		return "static-only"
	case CacheModeMovablePrimitivesOnly:
		return "movable-only"
	default:
		return "unknown"
	}
}

// ProjectedShadowInfo is one shadow depth map to render this frame.
type ProjectedShadowInfo struct {
	Light   light.Light
	LightID uint64
	// DependentView is the view a cascade belongs to. Nil for view-independent shadows.
	DependentView *visibility.View

	Initializer              light.ProjectedShadowInitializer
	SubjectAndReceiverMatrix mgl32.Mat4
	// FaceMatrices are the six face view-projections of a one-pass point light shadow.
	FaceMatrices []mgl32.Mat4
	ShadowBounds common.Sphere
	// OriginalBounds are the per-object subject bounds before preshadow expansion.
	OriginalBounds common.BoxSphereBounds

	ResolutionX uint32
	ResolutionY uint32
	BorderSize  uint32
	// X and Y place the bordered map inside its target.
	X, Y                      uint32
	Allocated                 bool
	AllocatedInPreshadowCache bool
	// DepthsCached marks a cached preshadow whose depths were rendered in an earlier frame.
	DepthsCached bool

	CacheMode       CacheMode
	CasterFrustum   convex_volume.ConvexVolume
	ReceiverFrustum convex_volume.ConvexVolume

	SubjectPrimitives  []*primitive.SceneInfo
	ReceiverPrimitives []*primitive.SceneInfo

	Cascade *light.ShadowCascade
	// FadeAlphas holds one alpha per view of the frame.
	FadeAlphas []float32

	WholeScene        bool
	DirectionalLight  bool
	OnePassPointLight bool
	PreShadow         bool
	PerObjectOpaque   bool
	SplitIndex        int
	CubeFace          int

	MaxScreenPercent float32
	PrimitiveID      primitive.ComponentID
	Target           target.Target
}

func newShadowInfo(l light.Light) *ProjectedShadowInfo {
	return &ProjectedShadowInfo{
		Light:      l,
		LightID:    l.ID(),
		SplitIndex: -1,
		CubeFace:   -1,
	}
}

// AtlasWidth returns the width the shadow occupies in its target, border included.
func (p *ProjectedShadowInfo) AtlasWidth() uint32 {
	return p.ResolutionX + 2*p.BorderSize
}

// AtlasHeight returns the height the shadow occupies in its target, border included.
func (p *ProjectedShadowInfo) AtlasHeight() uint32 {
	return p.ResolutionY + 2*p.BorderSize
}

// HasSubjects reports whether the shadow draws anything.
func (p *ProjectedShadowInfo) HasSubjects() bool {
	return len(p.SubjectPrimitives) > 0
}

// MaxFadeAlpha returns the largest alpha over all views.
func (p *ProjectedShadowInfo) MaxFadeAlpha() float32 {
	var m float32
	for _, a := range p.FadeAlphas {
		m = max(m, a)
	}
	return m
}

// needsCulling reports whether casters must be gathered for the shadow this frame.
func (p *ProjectedShadowInfo) needsCulling() bool {
	if p.PreShadow {
		return !p.DepthsCached
	}
	return p.WholeScene
}

func (p *ProjectedShadowInfo) String() string {
	kind := "per-object"
	switch {
	case p.DirectionalLight && p.WholeScene:
		kind = fmt.Sprintf("cascade %d", p.SplitIndex)
	case p.OnePassPointLight:
		kind = "cube"
	case p.WholeScene:
		kind = "whole-scene"
	case p.PreShadow:
		kind = "preshadow"
	}
	return fmt.Sprintf("%s shadow of light %d (%dx%d, %s)", kind, p.LightID, p.ResolutionX, p.ResolutionY, p.CacheMode)
}

// setupProjection derives the matrices and frusta of the shadow from an initializer.
func (p *ProjectedShadowInfo) setupProjection(init light.ProjectedShadowInitializer, resX, resY, border uint32) {
	p.Initializer = init
	p.ResolutionX = resX
	p.ResolutionY = resY
	p.BorderSize = border
	p.SubjectAndReceiverMatrix = init.SubjectMatrix()
	p.CasterFrustum = convex_volume.FromFrustum(init.CasterMatrix())
	p.ReceiverFrustum = convex_volume.FromFrustum(init.ReceiverMatrix())
	p.ShadowBounds = init.SubjectBounds.Sphere()
}

// setupOnePass sets up a cube shadow from its six face initializers. Casters are gathered
// against the light's bounding sphere rather than a frustum.
func (p *ProjectedShadowInfo) setupOnePass(faces []light.WholeSceneInitializer, resolution uint32) {
	p.setupProjection(faces[0].ProjectedShadowInitializer, resolution, resolution, 0)
	p.OnePassPointLight = true
	p.FaceMatrices = make([]mgl32.Mat4, len(faces))
	for i, f := range faces {
		p.FaceMatrices[i] = f.SubjectMatrix()
	}
	p.CasterFrustum = sphereBoxVolume(p.ShadowBounds)
	p.ReceiverFrustum = p.CasterFrustum
}

// sphereBoxVolume returns the axis-aligned box around a sphere as a convex volume.
func sphereBoxVolume(s common.Sphere) convex_volume.ConvexVolume {
	planes := make([]common.Plane, 0, 6)
	for axis := 0; axis < 3; axis++ {
		for _, sign := range [2]float32{1, -1} {
			var n mgl32.Vec3
			n[axis] = sign
			planes = append(planes, common.NewPlaneFromPoint(n, s.Center.Add(n.Mul(s.Radius))))
		}
	}
	return convex_volume.NewConvexVolume(planes...)
}
