package primitive

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// VisibilityFunc is a custom per-view visibility predicate. An error means not visible.
type VisibilityFunc func(viewID uint32) (bool, error)

type primitiveImpl struct {
	name             string
	enabled          atomic.Bool
	localBounds      common.BoxSphereBounds
	localToWorld     mgl32.Mat4
	batches          []DrawBatch
	flags            Flags
	mobility         common.Mobility
	minDrawDistance  float32
	maxDrawDistance  float32
	lightingChannels uint8
	subQueries       []common.BoxSphereBounds
	visibleFn        VisibilityFunc
	shadowGroup      ComponentID
}

// Proxy is what the scene, culling and shadow setup know about a renderable primitive.
// Values are read while the scene is read-locked for a frame, so implementations must not
// change them concurrently with a frame.
type Proxy interface {
	// Name returns a debug label.
	//
	// Returns:
	//   - string: the label
	Name() string

	// Enabled returns whether the primitive takes part in rendering at all.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Bounds returns the world-space bounds.
	//
	// Returns:
	//   - common.BoxSphereBounds: the bounds
	Bounds() common.BoxSphereBounds

	// LocalToWorld returns the primitive transform.
	//
	// Returns:
	//   - mgl32.Mat4: the transform
	LocalToWorld() mgl32.Mat4

	// DrawBatches returns the draw submissions of every LOD, ordered by LOD.
	//
	// Returns:
	//   - []DrawBatch: the batches
	DrawBatches() []DrawBatch

	// Flags returns the capability bitmask.
	//
	// Returns:
	//   - Flags: the flags
	Flags() Flags

	// Mobility returns whether the primitive may move.
	//
	// Returns:
	//   - common.Mobility: the mobility
	Mobility() common.Mobility

	// DrawDistance returns the distance range in which the primitive is drawn.
	// A max of 0 means unlimited.
	//
	// Returns:
	//   - min: the minimum draw distance
	//   - max: the maximum draw distance
	DrawDistance() (min, max float32)

	// LightingChannels returns the channel mask.
	//
	// Returns:
	//   - uint8: the mask
	LightingChannels() uint8

	// OcclusionQueries returns the world-space bounds of sub-primitive occlusion queries.
	// Only consulted when FlagHasSubprimitiveQueries is set.
	//
	// Returns:
	//   - []common.BoxSphereBounds: the query bounds
	OcclusionQueries() []common.BoxSphereBounds

	// IsVisible runs the custom visibility predicate. Only consulted when
	// FlagHasCustomVisibility is set.
	//
	// Parameters:
	//   - viewID: the view being culled
	//
	// Returns:
	//   - bool: true if visible
	//   - error: a non-nil error is treated as not visible
	IsVisible(viewID uint32) (bool, error)

	// ShadowGroup returns the component whose per-object shadow this primitive joins.
	// InvalidComponentID means the primitive is its own group.
	//
	// Returns:
	//   - ComponentID: the shadow parent
	ShadowGroup() ComponentID

	// SetEnabled enables or disables the primitive.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetLocalToWorld moves the primitive. The owning scene must be told through
	// UpdatePrimitiveBounds.
	//
	// Parameters:
	//   - m: the new transform
	SetLocalToWorld(m mgl32.Mat4)
}

var _ Proxy = &primitiveImpl{}

// NewPrimitive creates a Proxy configured with the given options.
// Without WithLocalBounds the primitive is a unit box at its transform.
//
// Parameters:
//   - options: functional options to configure the primitive
//
// Returns:
//   - Proxy: the new primitive
func NewPrimitive(options ...PrimitiveBuilderOption) Proxy {
	p := &primitiveImpl{
		localBounds: common.BoxSphereBounds{
			Extent:       mgl32.Vec3{1, 1, 1},
			SphereRadius: mgl32.Vec3{1, 1, 1}.Len(),
		},
		localToWorld:     mgl32.Ident4(),
		flags:            DefaultFlags,
		mobility:         common.MobilityMovable,
		lightingChannels: 1,
	}
	p.enabled.Store(true)
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *primitiveImpl) Name() string {
	return p.name
}

func (p *primitiveImpl) Enabled() bool {
	return p.enabled.Load()
}

func (p *primitiveImpl) Bounds() common.BoxSphereBounds {
	return p.localBounds.TransformBy(p.localToWorld)
}

func (p *primitiveImpl) LocalToWorld() mgl32.Mat4 {
	return p.localToWorld
}

func (p *primitiveImpl) DrawBatches() []DrawBatch {
	return p.batches
}

func (p *primitiveImpl) Flags() Flags {
	return p.flags
}

func (p *primitiveImpl) Mobility() common.Mobility {
	return p.mobility
}

func (p *primitiveImpl) DrawDistance() (min, max float32) {
	return p.minDrawDistance, p.maxDrawDistance
}

func (p *primitiveImpl) LightingChannels() uint8 {
	return p.lightingChannels
}

func (p *primitiveImpl) OcclusionQueries() []common.BoxSphereBounds {
	out := make([]common.BoxSphereBounds, len(p.subQueries))
	for i, q := range p.subQueries {
		out[i] = q.TransformBy(p.localToWorld)
	}
	return out
}

func (p *primitiveImpl) IsVisible(viewID uint32) (bool, error) {
	if p.visibleFn == nil {
		return true, nil
	}
	return p.visibleFn(viewID)
}

func (p *primitiveImpl) ShadowGroup() ComponentID {
	return p.shadowGroup
}

func (p *primitiveImpl) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

func (p *primitiveImpl) SetLocalToWorld(m mgl32.Mat4) {
	p.localToWorld = m
}
