package light

import "github.com/Carmen-Shannon/oxy-cull/common"

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts.
const DefaultShadowBias float32 = 0.001

// DirectionalDepthRangeClamp is the minimum half depth of a directional shadow projection.
// Small cascades still need depth for casters well in front of and behind their sphere.
const DirectionalDepthRangeClamp float32 = 5000

// PerspectiveMinLightW is the nearest caster distance, in world units along the face
// direction, that perspective shadow projections consider.
const PerspectiveMinLightW float32 = 0.1

// MaxDistanceToCastInLightW limits how far behind a per-object subject receivers are gathered.
const MaxDistanceToCastInLightW = common.HalfWorldMax / 32

// CubeFaceDirections lists the six face directions of a one-pass point light cube,
// in +X, -X, +Y, -Y, +Z, -Z order.
var CubeFaceDirections = [6][3]float32{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}
