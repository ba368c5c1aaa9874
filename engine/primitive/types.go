package primitive

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
)

// ComponentID is the stable identifier a scene assigns to a primitive.
// It survives swap-removal of other primitives, unlike the packed index.
type ComponentID uint64

// InvalidComponentID is never assigned by a scene.
const InvalidComponentID ComponentID = 0

// Flags is the capability bitmask a primitive publishes to culling and shadow setup.
type Flags uint32

const (
	FlagCastShadow Flags = 1 << iota
	FlagCanBeOccluded
	FlagAllowApproximateOcclusion
	FlagHasSubprimitiveQueries
	FlagVisibleInReflectionCaptures
	FlagHasCustomVisibility
	FlagCastsDynamicShadow
	FlagCastsStaticShadow
	FlagReceivesDecals
	FlagSelected
	FlagHasStaticLighting
	FlagUseSingleSampleShadowFromStationaryLights
	FlagAffectsDynamicIndirect
)

// DefaultFlags are the flags of a primitive built without WithFlags.
const DefaultFlags = FlagCastShadow | FlagCanBeOccluded | FlagVisibleInReflectionCaptures |
	FlagCastsDynamicShadow | FlagCastsStaticShadow | FlagReceivesDecals

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// DrawBatch is one draw submission of a primitive, typically one mesh section at one LOD.
type DrawBatch struct {
	// ID indexes the per-batch bitmaps of a view. The scene assigns it on insert.
	ID uint32
	// LODIndex is the level of detail the batch belongs to.
	LODIndex int
	// ScreenSize is the smallest screen size at which LODIndex is selected.
	ScreenSize float32

	CastShadow            bool
	ReceiveShadow         bool
	UseForMaterial        bool
	UseAsOccluder         bool
	DitheredLODTransition bool
	Translucent           bool
}

// SceneInfo is the scene's record of one registered primitive.
type SceneInfo struct {
	ComponentID ComponentID
	// PackedIndex is the position of the primitive in the scene's dense arrays.
	PackedIndex int
	OctreeID    octree.ElementID
	Proxy       Proxy
	Bounds      common.BoxSphereBounds
	// Batches are the proxy's draw batches with scene-assigned IDs.
	Batches []DrawBatch
	// LazyUpdate marks a record whose octree placement is refreshed on the next scene update.
	LazyUpdate bool
}

// String returns a short description for logging.
func (s *SceneInfo) String() string {
	return fmt.Sprintf("primitive %d (%s) at %d", s.ComponentID, s.Proxy.Name(), s.PackedIndex)
}
