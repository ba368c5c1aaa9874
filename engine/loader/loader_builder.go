package loader

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithMobility sets the mobility of the proxies the loader creates. Defaults to static.
//
// Parameters:
//   - m: the mobility
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mobility to a loader
func WithMobility(m common.Mobility) LoaderBuilderOption {
	return func(l *loader) {
		l.mobility = m
	}
}

// WithFlags sets the capability flags of the proxies the loader creates.
//
// Parameters:
//   - flags: the flags
//
// Returns:
//   - LoaderBuilderOption: a function that applies the flags to a loader
func WithFlags(flags primitive.Flags) LoaderBuilderOption {
	return func(l *loader) {
		l.flags = flags
	}
}

// WithLightingChannels sets the lighting channel mask of the proxies the loader creates.
//
// Parameters:
//   - mask: the channel mask
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mask to a loader
func WithLightingChannels(mask uint8) LoaderBuilderOption {
	return func(l *loader) {
		l.channels = mask
	}
}

// WithDrawDistance sets the draw distance range of the proxies the loader creates.
//
// Parameters:
//   - minDistance, maxDistance: the range; zero max means unlimited
//
// Returns:
//   - LoaderBuilderOption: a function that applies the range to a loader
func WithDrawDistance(minDistance, maxDistance float32) LoaderBuilderOption {
	return func(l *loader) {
		l.drawMin = minDistance
		l.drawMax = maxDistance
	}
}
