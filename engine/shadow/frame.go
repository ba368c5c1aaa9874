package shadow

import (
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/target"
)

// LightShadows are the shadows of one light for one frame.
type LightShadows struct {
	Light light.Light
	// Shadows lists every projection of the light in creation order: whole-scene
	// shadows and cascades first, then per-object shadows.
	Shadows []*ProjectedShadowInfo
	// PreShadows lists the light's preshadows in creation order.
	PreShadows []*ProjectedShadowInfo
}

// Atlas is a render target holding one or more shadow depth maps.
type Atlas struct {
	Desc    common.RenderTargetDesc
	Target  target.Target
	Shadows []*ProjectedShadowInfo
	layout  *TextureLayout
}

// Stats counts what shadow setup did in one frame.
type Stats struct {
	WholeSceneShadows  int
	Cascades           int
	PerObjectShadows   int
	PreShadows         int
	CachedPreShadows   int
	Degenerate         int
	GatheredCasters    int
	GatherPackets      int
	FailedPackets      int
	Atlases            int
	FailedAllocations  int
	CachedShadowMaps   int
	SetupDuration      time.Duration
	ShadowCacheBytes   uint64
	PreshadowCacheUsed int
}

// FrameShadows is the output of InitDynamicShadows.
type FrameShadows struct {
	// Lights holds one entry per shadow-casting light, in scene order.
	Lights []*LightShadows
	// PreShadows are all preshadows of the frame, cached or not.
	PreShadows []*ProjectedShadowInfo
	// CascadeAtlases holds the atlases of directional light cascades. A light whose
	// cascades do not fit one atlas gets several.
	CascadeAtlases []*Atlas
	// PerObjectAtlases are the shadow-buffer-sized atlases of per-object and
	// uncached whole-scene shadows. A shadow larger than the buffer gets a bigger one.
	PerObjectAtlases []*Atlas
	// PreshadowCache is the persistent preshadow target, nil when nothing is cached.
	PreshadowCache *Atlas
	Stats          Stats
}

// ForLight returns the shadows of a light.
//
// Parameters:
//   - lightID: the light's scene ID
//
// Returns:
//   - *LightShadows: the shadows, or nil if the light has none this frame
func (f *FrameShadows) ForLight(lightID uint64) *LightShadows {
	for _, ls := range f.Lights {
		if ls.Light.ID() == lightID {
			return ls
		}
	}
	return nil
}

// All returns every shadow of the frame: each light's shadows followed by its preshadows.
func (f *FrameShadows) All() []*ProjectedShadowInfo {
	var out []*ProjectedShadowInfo
	for _, ls := range f.Lights {
		out = append(out, ls.Shadows...)
		out = append(out, ls.PreShadows...)
	}
	return out
}
