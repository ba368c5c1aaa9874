package light

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithID is an option builder that presets the light's scene identifier.
// Lights without an ID are assigned one when added to a scene.
//
// Parameters:
//   - id: the light ID
//
// Returns:
//   - LightBuilderOption: a function that applies the ID option to a lightImpl
func WithID(id uint64) LightBuilderOption {
	return func(l *lightImpl) {
		l.id = id
	}
}

// WithMobility is an option builder that sets whether the light may move.
// Lights default to movable, which disables whole-scene shadow caching.
//
// Parameters:
//   - m: the light mobility
//
// Returns:
//   - LightBuilderOption: a function that applies the mobility option to a lightImpl
func WithMobility(m common.Mobility) LightBuilderOption {
	return func(l *lightImpl) {
		l.mobility = m
	}
}

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection is an option builder that sets the direction light travels.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize(mgl32.Vec3{x, y, z})
	}
}

// WithRange is an option builder that sets the maximum attenuation distance for
// point and spot lights.
//
// Parameters:
//   - lightRange: the range value
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a lightImpl
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = lightRange
	}
}

// WithSpotCone is an option builder that sets the inner and outer cone half-angles
// for spot lights. Angles are specified in degrees and converted to cosines internally.
//
// Parameters:
//   - innerDeg: inner cone half-angle in degrees
//   - outerDeg: outer cone half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the spot cone option to a lightImpl
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.innerCone = cosDeg(innerDeg)
		l.outerCone = cosDeg(outerDeg)
	}
}

// WithEnabled is an option builder that sets whether the light is active.
//
// Parameters:
//   - enabled: true to enable the light
//
// Returns:
//   - LightBuilderOption: a function that applies the enabled option to a lightImpl
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithCastsShadows is an option builder that sets whether the light is eligible for
// shadow map generation. Lights cast shadows by default.
//
// Parameters:
//   - castsShadows: true to enable shadow casting
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow casting option to a lightImpl
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}

// WithOnePassPointShadows is an option builder that sets whether a point light renders
// its whole-scene shadow as one cube pass.
//
// Parameters:
//   - onePass: true for cube shadows
//
// Returns:
//   - LightBuilderOption: a function that applies the option to a lightImpl
func WithOnePassPointShadows(onePass bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.onePassPointShadows = onePass
	}
}

// WithShadowResolutionScale is an option builder that scales every shadow resolution
// computed for the light. Scales above 1 apply before clamping to the maximum
// resolution, scales below 1 after it.
//
// Parameters:
//   - scale: the resolution scale (negative values are treated as 0)
//
// Returns:
//   - LightBuilderOption: a function that applies the scale option to a lightImpl
func WithShadowResolutionScale(scale float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowResolutionScale = math32.Max(scale, 0)
	}
}

// WithShadowBias is an option builder that sets the constant shadow depth bias.
//
// Parameters:
//   - bias: the depth bias
//
// Returns:
//   - LightBuilderOption: a function that applies the bias option to a lightImpl
func WithShadowBias(bias float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowBias = bias
	}
}

// WithLightingChannels is an option builder that sets the light's channel mask.
//
// Parameters:
//   - mask: the lighting channel mask
//
// Returns:
//   - LightBuilderOption: a function that applies the channel option to a lightImpl
func WithLightingChannels(mask uint8) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightingChannels = mask
	}
}

// WithCascadeSettings is an option builder that overrides the cascade policy of a
// directional light. Zero fields keep the engine defaults.
//
// Parameters:
//   - settings: the cascade overrides
//
// Returns:
//   - LightBuilderOption: a function that applies the cascade option to a lightImpl
func WithCascadeSettings(settings CascadeSettings) LightBuilderOption {
	return func(l *lightImpl) {
		l.cascades = settings
	}
}

// normalize returns v scaled to unit length, or a zero vector if v has zero length.
func normalize(v mgl32.Vec3) mgl32.Vec3 {
	length := v.Len()
	if length == 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / length)
}

// cosDeg converts an angle in degrees to the cosine of that angle in radians.
func cosDeg(deg float32) float32 {
	return math32.Cos(mgl32.DegToRad(deg))
}
