package shadow

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
)

// MinFadeAlpha is the fade alpha below which a shadow is not worth rendering.
const MinFadeAlpha float32 = 1.0 / 256

// CalculateShadowFadeAlpha returns how strongly a shadow of the given unclamped resolution
// is drawn. Shadows above fadeResolution are fully opaque, shadows at or below
// minResolution are not drawn, and the band between follows a power curve.
//
// Parameters:
//   - resolution: the unclamped resolution the shadow would need
//   - fadeResolution: the resolution where fading starts
//   - minResolution: the resolution where the shadow is gone
//   - exponent: the curve exponent
//
// Returns:
//   - float32: the alpha in [0, 1]
func CalculateShadowFadeAlpha(resolution float32, fadeResolution, minResolution uint32, exponent float32) float32 {
	fade, minRes := float32(fadeResolution), float32(minResolution)
	if resolution > fade {
		return 1
	}
	if resolution <= minRes || fade <= minRes {
		return 0
	}
	inv := 1 / (fade - minRes)
	first := math32.Pow(inv, exponent)
	if first >= 1 {
		return 1
	}
	return common.Clamp((math32.Pow((resolution-minRes)*inv, exponent)-first)/(1-first), 0, 1)
}

// RoundResolution rounds a desired per-object resolution down to a power of two, or
// returns maxResolution when the desired resolution reaches it. Exact powers of two
// halve, which keeps the rounding stable as an object approaches a threshold.
//
// Parameters:
//   - desired: the desired resolution
//   - maxResolution: the largest allowed resolution
//
// Returns:
//   - uint32: the rounded resolution
func RoundResolution(desired, maxResolution uint32) uint32 {
	if desired >= maxResolution {
		return maxResolution
	}
	return common.RoundDownToPowerOfTwo(desired)
}

// wholeSceneResolution is RoundResolution for whole-scene shadows, whose border is carved
// out of the rounded size so the bordered map stays a power of two.
func wholeSceneResolution(desired, maxResolution, border uint32) uint32 {
	if desired >= maxResolution {
		return maxResolution - 2*border
	}
	rounded := int64(common.RoundDownToPowerOfTwo(desired)) - 2*int64(border)
	return uint32(max(rounded, 1))
}
