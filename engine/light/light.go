package light

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. Shadows are cascaded
	// along the view and depend on each view.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Whole-scene shadows render into a six-face cube.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Whole-scene shadows use a single perspective projection covering the outer cone.
	LightTypeSpot
)

// String returns a readable name for the light type.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	id                    uint64
	lightType             LightType
	mobility              common.Mobility
	position              mgl32.Vec3
	direction             mgl32.Vec3
	lightRange            float32
	innerCone             float32 // stored as cos(angle in radians)
	outerCone             float32 // stored as cos(angle in radians)
	enabled               bool
	castsShadows          bool
	onePassPointShadows   bool
	shadowResolutionScale float32
	shadowBias            float32
	lightingChannels      uint8
	cascades              CascadeSettings
}

// Light defines the interface for a light source in the scene.
//
// All light types (directional, point, spot) share this interface; type-specific
// properties (e.g. cone angles for spot lights) return zero values when not applicable.
// Shadow setup reads lights during the frame while the scene is read-locked, so setters
// must only be called between frames.
type Light interface {
	// ID returns the light's scene identifier. Zero until the light is added to a scene.
	//
	// Returns:
	//   - uint64: the light ID
	ID() uint64

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Mobility returns whether the light may move. Only non-movable lights get cached
	// whole-scene shadows.
	//
	// Returns:
	//   - common.Mobility: the light mobility
	Mobility() common.Mobility

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - mgl32.Vec3: position
	Position() mgl32.Vec3

	// Direction returns the normalized direction light travels.
	// For spot lights this is the cone axis. Meaningless for point lights.
	//
	// Returns:
	//   - mgl32.Vec3: normalized direction
	Direction() mgl32.Vec3

	// Range returns the maximum attenuation distance for point and spot lights.
	//
	// Returns:
	//   - float32: the range value
	Range() float32

	// InnerCone returns the cosine of the inner cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(inner half-angle)
	InnerCone() float32

	// OuterCone returns the cosine of the outer cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(outer half-angle)
	OuterCone() float32

	// Enabled returns whether this light is active. Disabled lights get no shadows.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// CastsShadows returns whether this light is eligible for shadow map generation.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// OnePassPointShadows returns whether a point light renders its whole-scene shadow
	// as a single cube pass.
	//
	// Returns:
	//   - bool: true for one-pass cube shadows
	OnePassPointShadows() bool

	// ShadowResolutionScale scales every shadow resolution computed for this light.
	//
	// Returns:
	//   - float32: the scale, 1 by default
	ShadowResolutionScale() float32

	// ShadowBias returns the constant depth bias for this light's shadows.
	//
	// Returns:
	//   - float32: the bias
	ShadowBias() float32

	// LightingChannels returns the channel mask. A primitive is lit, and casts shadows,
	// only when its mask shares a bit with the light's.
	//
	// Returns:
	//   - uint8: the channel mask
	LightingChannels() uint8

	// CascadeSettings returns the light's cascade overrides. Zero fields fall back to
	// the engine configuration.
	//
	// Returns:
	//   - CascadeSettings: the cascade overrides
	CascadeSettings() CascadeSettings

	// AffectsBounds reports whether the light can reach anything inside bounds.
	//
	// Parameters:
	//   - bounds: the bounds to test
	//
	// Returns:
	//   - bool: true if the light's influence overlaps bounds
	AffectsBounds(bounds common.BoxSphereBounds) bool

	// BoundingSphere returns the sphere enclosing the light's influence.
	// Directional lights return a zero sphere.
	//
	// Returns:
	//   - common.Sphere: the influence sphere
	BoundingSphere() common.Sphere

	// SetID sets the light's scene identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// SetDirection sets the direction of the light and normalizes it.
	//
	// Parameters:
	//   - d: direction (will be normalized)
	SetDirection(d mgl32.Vec3)

	// SetRange sets the maximum attenuation distance.
	//
	// Parameters:
	//   - lightRange: the range value
	SetRange(lightRange float32)

	// SetSpotCone sets the inner and outer cone half-angles for spot lights.
	// Angles are specified in degrees and stored internally as cosines.
	//
	// Parameters:
	//   - innerDeg: inner cone half-angle in degrees
	//   - outerDeg: outer cone half-angle in degrees
	SetSpotCone(innerDeg, outerDeg float32)

	// SetEnabled enables or disables the light.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetCastsShadows sets whether the light is eligible for shadow mapping.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:             lightType,
		mobility:              common.MobilityMovable,
		direction:             mgl32.Vec3{0, -1, 0},
		lightRange:            10.0,
		innerCone:             0.9063, // cos(25°)
		outerCone:             0.8192, // cos(35°)
		enabled:               true,
		castsShadows:          true,
		onePassPointShadows:   true,
		shadowResolutionScale: 1,
		shadowBias:            DefaultShadowBias,
		lightingChannels:      1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) ID() uint64 {
	return l.id
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Mobility() common.Mobility {
	return l.mobility
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) InnerCone() float32 {
	return l.innerCone
}

func (l *lightImpl) OuterCone() float32 {
	return l.outerCone
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) OnePassPointShadows() bool {
	return l.onePassPointShadows
}

func (l *lightImpl) ShadowResolutionScale() float32 {
	return l.shadowResolutionScale
}

func (l *lightImpl) ShadowBias() float32 {
	return l.shadowBias
}

func (l *lightImpl) LightingChannels() uint8 {
	return l.lightingChannels
}

func (l *lightImpl) CascadeSettings() CascadeSettings {
	return l.cascades
}

func (l *lightImpl) SetID(id uint64) {
	l.id = id
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.position = p
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	l.direction = normalize(d)
}

func (l *lightImpl) SetRange(lightRange float32) {
	l.lightRange = lightRange
}

func (l *lightImpl) SetSpotCone(innerDeg, outerDeg float32) {
	l.innerCone = cosDeg(innerDeg)
	l.outerCone = cosDeg(outerDeg)
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
}
