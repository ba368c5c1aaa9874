package config

// ConfigOption is a functional option applied over the default Config.
type ConfigOption func(*Config)

// WithMaxShadowResolution sets the largest per-shadow resolution.
//
// Parameters:
//   - res: the resolution in texels
//
// Returns:
//   - ConfigOption: option function to apply
func WithMaxShadowResolution(res uint32) ConfigOption {
	return func(c *Config) {
		c.MaxShadowResolution = res
	}
}

// WithShadowBufferResolution sets the size of the per-frame shadow atlases.
//
// Parameters:
//   - res: the atlas size in texels
//
// Returns:
//   - ConfigOption: option function to apply
func WithShadowBufferResolution(res uint32) ConfigOption {
	return func(c *Config) {
		c.ShadowBufferResolution = res
	}
}

// WithShadowFade sets the resolutions at which per-object shadows start and finish fading out.
//
// Parameters:
//   - fadeRes: shadows below this resolution start to fade
//   - minRes: shadows at or below this resolution are fully faded
//
// Returns:
//   - ConfigOption: option function to apply
func WithShadowFade(fadeRes, minRes uint32) ConfigOption {
	return func(c *Config) {
		c.ShadowFadeResolution = fadeRes
		c.MinShadowResolution = minRes
	}
}

// WithCascades sets the near cascade policy of directional lights.
//
// Parameters:
//   - count: the number of cascades
//   - exponent: the split distribution exponent
//   - transition: the fade fraction appended to each cascade
//   - maxDistance: the far edge of the last cascade
//
// Returns:
//   - ConfigOption: option function to apply
func WithCascades(count int, exponent, transition, maxDistance float32) ConfigOption {
	return func(c *Config) {
		c.CascadeCount = count
		c.CascadeDistributionExponent = exponent
		c.CascadeTransitionFraction = transition
		c.CSMMaxDistance = maxDistance
	}
}

// WithFarCascades adds cascades beyond the near cascade range.
//
// Parameters:
//   - count: the number of far cascades
//   - distance: the far edge of the last far cascade
//
// Returns:
//   - ConfigOption: option function to apply
func WithFarCascades(count int, distance float32) ConfigOption {
	return func(c *Config) {
		c.FarShadowCascadeCount = count
		c.FarShadowDistance = distance
	}
}

// WithPerObjectShadows enables or disables per-object shadows and preshadows.
//
// Parameters:
//   - perObject: true to allow per-object shadows
//   - preshadows: true to allow preshadows
//
// Returns:
//   - ConfigOption: option function to apply
func WithPerObjectShadows(perObject, preshadows bool) ConfigOption {
	return func(c *Config) {
		c.AllowPerObjectShadows = perObject
		c.AllowPreshadows = preshadows
	}
}

// WithShadowCaching enables or disables the preshadow and whole-scene shadow caches.
//
// Parameters:
//   - preshadows: true to cache preshadows across frames
//   - wholeScene: true to cache whole-scene shadows of non-movable lights
//
// Returns:
//   - ConfigOption: option function to apply
func WithShadowCaching(preshadows, wholeScene bool) ConfigOption {
	return func(c *Config) {
		c.CachePreshadows = preshadows
		c.CacheWholeSceneShadows = wholeScene
	}
}

// WithWholeSceneShadowCacheMb sets the memory budget of cached whole-scene shadow maps.
//
// Parameters:
//   - mb: the budget in megabytes
//
// Returns:
//   - ConfigOption: option function to apply
func WithWholeSceneShadowCacheMb(mb float32) ConfigOption {
	return func(c *Config) {
		c.WholeSceneShadowCacheMb = mb
	}
}

// WithFadeTime sets how long distance and LOD fades take, in seconds.
//
// Parameters:
//   - seconds: the fade duration
//
// Returns:
//   - ConfigOption: option function to apply
func WithFadeTime(seconds float32) ConfigOption {
	return func(c *Config) {
		c.FadeTime = seconds
	}
}

// WithDistanceScales scales draw distances and LOD screen sizes.
//
// Parameters:
//   - view: the view distance scale
//   - lod: the LOD distance scale
//
// Returns:
//   - ConfigOption: option function to apply
func WithDistanceScales(view, lod float32) ConfigOption {
	return func(c *Config) {
		c.ViewDistanceScale = view
		c.LODDistanceScale = lod
	}
}

// WithOcclusion configures occlusion culling.
//
// Parameters:
//   - enabled: true to allow occlusion queries
//   - hzb: true to test against a hierarchical depth buffer instead of queries
//
// Returns:
//   - ConfigOption: option function to apply
func WithOcclusion(enabled, hzb bool) ConfigOption {
	return func(c *Config) {
		c.AllowOcclusionQueries = enabled
		c.HZBOcclusion = hzb
	}
}

// WithOcclusionRandomSeed seeds the random stream deciding re-queries of unoccluded primitives.
//
// Parameters:
//   - seed: the seed
//
// Returns:
//   - ConfigOption: option function to apply
func WithOcclusionRandomSeed(seed int64) ConfigOption {
	return func(c *Config) {
		c.OcclusionRandomSeed = seed
	}
}

// WithWorkers sets the size of the frame worker pool. Values below 1 are treated as 1.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - ConfigOption: option function to apply
func WithWorkers(n int) ConfigOption {
	return func(c *Config) {
		c.Workers = max(n, 1)
	}
}

// WithPacketSizes sets how work is split into worker packets.
//
// Parameters:
//   - cullWords: 64-bit bitmap words per frustum cull packet
//   - gatherPrimitives: primitives per flat shadow gather packet
//   - gatherNodes: octree nodes per shadow gather packet
//
// Returns:
//   - ConfigOption: option function to apply
func WithPacketSizes(cullWords, gatherPrimitives, gatherNodes int) ConfigOption {
	return func(c *Config) {
		c.FrustumCullWordsPerTask = cullWords
		c.ShadowGatherPrimitivesPerPacket = gatherPrimitives
		c.ShadowGatherNodesPerPacket = gatherNodes
	}
}

// WithParallelGather enables or disables node-partitioned parallel shadow gathering.
//
// Parameters:
//   - enabled: true to gather on the worker pool
//
// Returns:
//   - ConfigOption: option function to apply
func WithParallelGather(enabled bool) ConfigOption {
	return func(c *Config) {
		c.ParallelGather = enabled
	}
}

// WithSmoothShadowFade enables spring smoothing of per-object shadow fade alphas.
//
// Parameters:
//   - enabled: true to smooth
//   - frequency: the spring angular frequency
//   - damping: the spring damping ratio
//
// Returns:
//   - ConfigOption: option function to apply
func WithSmoothShadowFade(enabled bool, frequency, damping float64) ConfigOption {
	return func(c *Config) {
		c.SmoothShadowFade = enabled
		c.ShadowFadeSpringFrequency = frequency
		c.ShadowFadeSpringDamping = damping
	}
}
