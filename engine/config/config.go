// Package config holds the tunables of the visibility and shadow setup passes.
// A Config is passed explicitly into every pass; nothing reads global state.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/oxy-cull/engine/light"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full set of tunables. Times are in seconds.
type Config struct {
	// Shadow resolution.
	MaxShadowResolution           uint32  `json:"maxShadowResolution"`
	ShadowFadeResolution          uint32  `json:"shadowFadeResolution"`
	MinShadowResolution           uint32  `json:"minShadowResolution"`
	PreShadowFadeResolution       uint32  `json:"preShadowFadeResolution"`
	MinPreShadowResolution        uint32  `json:"minPreShadowResolution"`
	PreShadowResolutionFactor     float32 `json:"preShadowResolutionFactor"`
	ShadowTexelsPerPixel          float32 `json:"shadowTexelsPerPixel"`
	ShadowTexelsPerPixelSpotlight float32 `json:"shadowTexelsPerPixelSpotlight"`
	ShadowFadeExponent            float32 `json:"shadowFadeExponent"`
	ShadowBorder                  uint32  `json:"shadowBorder"`
	ShadowBufferResolution        uint32  `json:"shadowBufferResolution"`

	// Cascades.
	CascadeCount                int     `json:"cascadeCount"`
	CascadeDistributionExponent float32 `json:"cascadeDistributionExponent"`
	CascadeTransitionFraction   float32 `json:"cascadeTransitionFraction"`
	CSMMaxDistance              float32 `json:"csmMaxDistance"`
	FarShadowCascadeCount       int     `json:"farShadowCascadeCount"`
	FarShadowDistance           float32 `json:"farShadowDistance"`

	// Caching.
	AllowPerObjectShadows    bool    `json:"allowPerObjectShadows"`
	AllowPreshadows          bool    `json:"allowPreshadows"`
	CachePreshadows          bool    `json:"cachePreshadows"`
	CacheWholeSceneShadows   bool    `json:"cacheWholeSceneShadows"`
	WholeSceneShadowCacheMb  float32 `json:"wholeSceneShadowCacheMb"`
	PreshadowExpandFraction  float32 `json:"preshadowExpandFraction"`
	PreshadowCacheResolution uint32  `json:"preshadowCacheResolution"`
	CachedShadowMapTimeout   float32 `json:"cachedShadowMapTimeout"`

	// Distance and LOD.
	ViewDistanceScale              float32 `json:"viewDistanceScale"`
	LODDistanceScale               float32 `json:"lodDistanceScale"`
	FadeTime                       float32 `json:"fadeTime"`
	DistanceFadeMaxTravel          float32 `json:"distanceFadeMaxTravel"`
	MinScreenRadiusForShadowCaster float32 `json:"minScreenRadiusForShadowCaster"`
	MinScreenRadiusForCSMDepth     float32 `json:"minScreenRadiusForCsmDepth"`
	MinScreenRadiusForDepthPrepass float32 `json:"minScreenRadiusForDepthPrepass"`
	WireframeCullThreshold         float32 `json:"wireframeCullThreshold"`

	// Occlusion.
	AllowOcclusionQueries        bool    `json:"allowOcclusionQueries"`
	HZBOcclusion                 bool    `json:"hzbOcclusion"`
	NumBufferedFrames            int     `json:"numBufferedFrames"`
	PrimitiveProbablyVisibleTime float32 `json:"primitiveProbablyVisibleTime"`
	MaxOcclusionPixelsFraction   float32 `json:"maxOcclusionPixelsFraction"`
	AllowSubPrimitiveQueries     bool    `json:"allowSubPrimitiveQueries"`
	OcclusionRandomSeed          int64   `json:"occlusionRandomSeed"`

	// Parallelism.
	Workers                         int  `json:"workers"`
	FrustumCullWordsPerTask         int  `json:"frustumCullWordsPerTask"`
	ShadowGatherPrimitivesPerPacket int  `json:"shadowGatherPrimitivesPerPacket"`
	ShadowGatherNodesPerPacket      int  `json:"shadowGatherNodesPerPacket"`
	ParallelGather                  bool `json:"parallelGather"`

	// Smoothing.
	SmoothShadowFade          bool    `json:"smoothShadowFade"`
	ShadowFadeSpringFrequency float64 `json:"shadowFadeSpringFrequency"`
	ShadowFadeSpringDamping   float64 `json:"shadowFadeSpringDamping"`
}

// Default returns the default configuration with any provided options applied.
//
// Parameters:
//   - options: functional options applied over the defaults
//
// Returns:
//   - Config: the configuration
func Default(options ...ConfigOption) Config {
	c := Config{
		MaxShadowResolution:           2048,
		ShadowFadeResolution:          64,
		MinShadowResolution:           32,
		PreShadowFadeResolution:       16,
		MinPreShadowResolution:        8,
		PreShadowResolutionFactor:     0.5,
		ShadowTexelsPerPixel:          1.27324,
		ShadowTexelsPerPixelSpotlight: 2.54648,
		ShadowFadeExponent:            0.25,
		ShadowBorder:                  4,
		ShadowBufferResolution:        2048,

		CascadeCount:                3,
		CascadeDistributionExponent: 3,
		CascadeTransitionFraction:   0.1,
		CSMMaxDistance:              20000,
		FarShadowCascadeCount:       0,
		FarShadowDistance:           300000,

		AllowPerObjectShadows:    true,
		AllowPreshadows:          true,
		CachePreshadows:          true,
		CacheWholeSceneShadows:   true,
		WholeSceneShadowCacheMb:  150,
		PreshadowExpandFraction:  0.15,
		PreshadowCacheResolution: 2048,
		CachedShadowMapTimeout:   2,

		ViewDistanceScale:              1,
		LODDistanceScale:               1,
		FadeTime:                       0.25,
		DistanceFadeMaxTravel:          1000,
		MinScreenRadiusForShadowCaster: 0.01,
		MinScreenRadiusForCSMDepth:     0.01,
		MinScreenRadiusForDepthPrepass: 0.03,
		WireframeCullThreshold:         5,

		AllowOcclusionQueries:        true,
		HZBOcclusion:                 false,
		NumBufferedFrames:            2,
		PrimitiveProbablyVisibleTime: 8,
		MaxOcclusionPixelsFraction:   0.1,
		AllowSubPrimitiveQueries:     true,
		OcclusionRandomSeed:          0x2a,

		Workers:                         max(runtime.NumCPU()-1, 1),
		FrustumCullWordsPerTask:         128,
		ShadowGatherPrimitivesPerPacket: 256,
		ShadowGatherNodesPerPacket:      16,
		ParallelGather:                  true,

		SmoothShadowFade:          false,
		ShadowFadeSpringFrequency: 6,
		ShadowFadeSpringDamping:   1,
	}
	for _, option := range options {
		option(&c)
	}
	return c
}

// Validate checks the configuration for values the passes cannot run with.
// Every problem is reported; each wraps ErrInvalid.
//
// Returns:
//   - error: nil if the configuration is usable
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	for _, r := range []struct {
		name  string
		value uint32
	}{
		{"maxShadowResolution", c.MaxShadowResolution},
		{"shadowFadeResolution", c.ShadowFadeResolution},
		{"minShadowResolution", c.MinShadowResolution},
		{"preShadowFadeResolution", c.PreShadowFadeResolution},
		{"minPreShadowResolution", c.MinPreShadowResolution},
		{"shadowBufferResolution", c.ShadowBufferResolution},
		{"preshadowCacheResolution", c.PreshadowCacheResolution},
	} {
		if r.value == 0 {
			bad("%s must be positive", r.name)
		}
	}
	if c.MinShadowResolution > c.ShadowFadeResolution {
		bad("minShadowResolution %d exceeds shadowFadeResolution %d", c.MinShadowResolution, c.ShadowFadeResolution)
	}
	if c.MinPreShadowResolution > c.PreShadowFadeResolution {
		bad("minPreShadowResolution %d exceeds preShadowFadeResolution %d", c.MinPreShadowResolution, c.PreShadowFadeResolution)
	}
	if 2*c.ShadowBorder >= c.ShadowBufferResolution {
		bad("shadowBorder %d leaves no room in a %d buffer", c.ShadowBorder, c.ShadowBufferResolution)
	}
	if c.CascadeCount < 1 {
		bad("cascadeCount %d is below 1", c.CascadeCount)
	}
	if c.CascadeDistributionExponent <= 0 {
		bad("cascadeDistributionExponent must be positive")
	}
	if c.CascadeTransitionFraction < 0 || c.CascadeTransitionFraction >= 1 {
		bad("cascadeTransitionFraction %v is outside [0, 1)", c.CascadeTransitionFraction)
	}
	if c.CSMMaxDistance <= 0 {
		bad("csmMaxDistance must be positive")
	}
	if c.FarShadowCascadeCount < 0 {
		bad("farShadowCascadeCount is negative")
	}
	if c.NumBufferedFrames < 1 {
		bad("numBufferedFrames %d is below 1", c.NumBufferedFrames)
	}
	if c.FadeTime <= 0 {
		bad("fadeTime must be positive")
	}
	if c.Workers < 1 {
		bad("workers %d is below 1", c.Workers)
	}
	if c.FrustumCullWordsPerTask < 1 || c.ShadowGatherPrimitivesPerPacket < 1 || c.ShadowGatherNodesPerPacket < 1 {
		bad("packet sizes must be positive")
	}
	if c.ViewDistanceScale <= 0 || c.LODDistanceScale <= 0 {
		bad("distance scales must be positive")
	}
	return errors.Join(errs...)
}

// CascadeSettings returns the cascade policy described by the configuration.
func (c Config) CascadeSettings() light.CascadeSettings {
	return light.CascadeSettings{
		Count:                c.CascadeCount,
		DistributionExponent: c.CascadeDistributionExponent,
		TransitionFraction:   c.CascadeTransitionFraction,
		MaxDistance:          c.CSMMaxDistance,
		FarCount:             c.FarShadowCascadeCount,
		FarDistance:          c.FarShadowDistance,
	}
}

// WholeSceneShadowCacheBytes returns the whole-scene cache budget in bytes.
func (c Config) WholeSceneShadowCacheBytes() uint64 {
	return uint64(c.WholeSceneShadowCacheMb * 1024 * 1024)
}

// Load reads a JSON file and overlays it on the defaults. Fields missing from the file
// keep their default values.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the loaded configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	c := Default()
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}
