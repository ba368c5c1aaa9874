package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// OcclusionSlop is how far occlusion bounds are grown past the primitive bounds, so that
// surfaces coplanar with an occluder are never reported as hidden.
const OcclusionSlop float32 = 1

// ErrUnknownPrimitive is returned when a ComponentID does not name a primitive in the scene.
var ErrUnknownPrimitive = errors.New("scene: unknown primitive")

// Scene owns the registered primitives and lights and the octree indexing them.
//
// Primitives are kept in dense arrays addressed by packed index; removal swap-removes,
// so packed indices change while ComponentIDs stay stable.
//
// Mutators take the scene's write lock. A frame brackets its reads with BeginFrame and
// EndFrame, which hold the read lock; the frame accessors below do not lock again and
// must only be called inside that bracket.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// AddPrimitive registers a primitive and indexes it in the octree.
	//
	// Parameters:
	//   - proxy: the primitive
	//
	// Returns:
	//   - primitive.ComponentID: the stable identifier assigned to it
	AddPrimitive(proxy primitive.Proxy) primitive.ComponentID

	// RemovePrimitive unregisters a primitive and notifies primitive removal listeners.
	//
	// Parameters:
	//   - id: the primitive to remove
	//
	// Returns:
	//   - error: ErrUnknownPrimitive if id is not registered
	RemovePrimitive(id primitive.ComponentID) error

	// UpdatePrimitiveBounds re-reads a primitive's bounds from its proxy and moves it in the
	// octree.
	//
	// Parameters:
	//   - id: the primitive that moved
	//
	// Returns:
	//   - error: ErrUnknownPrimitive if id is not registered
	UpdatePrimitiveBounds(id primitive.ComponentID) error

	// MarkPrimitiveDirty defers a bounds update to the next FlushUpdates.
	//
	// Parameters:
	//   - id: the primitive that moved
	//
	// Returns:
	//   - error: ErrUnknownPrimitive if id is not registered
	MarkPrimitiveDirty(id primitive.ComponentID) error

	// FlushUpdates applies every deferred bounds update.
	//
	// Returns:
	//   - int: the number of primitives updated
	FlushUpdates() int

	// AddLight registers a light. A light without an ID is assigned one.
	//
	// Parameters:
	//   - l: the light to add
	//
	// Returns:
	//   - uint64: the light ID
	AddLight(l light.Light) uint64

	// RemoveLight unregisters a light by reference and notifies light removal listeners.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// Lights returns a copy of the registered lights.
	//
	// Returns:
	//   - []light.Light: the scene's light list
	Lights() []light.Light

	// OnPrimitiveRemoved registers a listener called, under the write lock, after a
	// primitive is removed.
	//
	// Parameters:
	//   - fn: the listener
	OnPrimitiveRemoved(fn func(id primitive.ComponentID))

	// OnLightRemoved registers a listener called, under the write lock, after a light is removed.
	//
	// Parameters:
	//   - fn: the listener
	OnLightRemoved(fn func(lightID uint64))

	// Clear removes every primitive and light. Removal listeners are notified.
	Clear()

	// Count returns the number of registered primitives.
	//
	// Returns:
	//   - int: the primitive count
	Count() int

	// BeginFrame takes the read lock for the duration of a frame.
	BeginFrame()

	// EndFrame releases the read lock taken by BeginFrame.
	EndFrame()

	// NumPrimitives returns the length of the dense arrays. Frame accessor.
	//
	// Returns:
	//   - int: the primitive count
	NumPrimitives() int

	// NumDrawBatches returns the size of the draw batch ID space. Frame accessor.
	//
	// Returns:
	//   - int: one past the largest assigned batch ID
	NumDrawBatches() int

	// Primitive returns the record at a packed index. Frame accessor.
	//
	// Parameters:
	//   - packedIndex: the dense array index
	//
	// Returns:
	//   - *primitive.SceneInfo: the record
	Primitive(packedIndex int) *primitive.SceneInfo

	// PrimitiveByID looks up a record by component ID. Frame accessor.
	//
	// Parameters:
	//   - id: the component ID
	//
	// Returns:
	//   - *primitive.SceneInfo: the record
	//   - bool: false if id is not registered
	PrimitiveByID(id primitive.ComponentID) (*primitive.SceneInfo, bool)

	// PrimitiveBounds returns the dense bounds array. Frame accessor; do not modify.
	PrimitiveBounds() []common.BoxSphereBounds

	// PrimitiveOcclusionBounds returns the dense occlusion bounds array. Frame accessor; do not modify.
	PrimitiveOcclusionBounds() []common.BoxSphereBounds

	// PrimitiveFlags returns the dense flags array. Frame accessor; do not modify.
	PrimitiveFlags() []primitive.Flags

	// PrimitiveComponentIDs returns the dense component ID array. Frame accessor; do not modify.
	PrimitiveComponentIDs() []primitive.ComponentID

	// Octree returns the spatial index of the primitives. Frame accessor; do not mutate.
	//
	// Returns:
	//   - octree.Octree[*primitive.SceneInfo]: the octree
	Octree() octree.Octree[*primitive.SceneInfo]

	// FrameLights returns the registered lights without locking. Frame accessor; do not modify.
	//
	// Returns:
	//   - []light.Light: the lights in registration order
	FrameLights() []light.Light
}

type scene struct {
	mu *sync.RWMutex

	name string

	worldOrigin mgl32.Vec3
	worldExtent float32
	octreeOpts  []octree.OctreeBuilderOption
	tree        octree.Octree[*primitive.SceneInfo]

	// Dense arrays, all indexed by packed index.
	infos           []*primitive.SceneInfo
	bounds          []common.BoxSphereBounds
	occlusionBounds []common.BoxSphereBounds
	flags           []primitive.Flags
	componentIDs    []primitive.ComponentID

	byID   map[primitive.ComponentID]*primitive.SceneInfo
	nextID primitive.ComponentID
	dirty  []primitive.ComponentID

	batchIDs batchAllocator

	lights      []light.Light
	nextLightID uint64

	primitiveListeners []func(primitive.ComponentID)
	lightListeners     []func(uint64)

	pendingPrimitives []primitive.Proxy
	pendingLights     []light.Light

	logger *log.Entry
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene configured with the given options.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:          &sync.RWMutex{},
		name:        name,
		worldExtent: common.HalfWorldMax,
		byID:        make(map[primitive.ComponentID]*primitive.SceneInfo),
		nextID:      1,
		nextLightID: 1,
		logger:      log.WithFields(log.Fields{"component": "scene", "scene": name}),
	}

	for _, option := range options {
		option(s)
	}

	// The setter keeps each record's OctreeID current as the octree relocates elements.
	opts := append([]octree.OctreeBuilderOption{
		octree.WithElementIDSetter(func(info *primitive.SceneInfo, id octree.ElementID) {
			info.OctreeID = id
		}),
	}, s.octreeOpts...)
	s.tree = octree.NewOctree[*primitive.SceneInfo](s.worldOrigin, s.worldExtent, opts...)

	for _, p := range s.pendingPrimitives {
		s.addPrimitiveLocked(p)
	}
	for _, l := range s.pendingLights {
		s.addLightLocked(l)
	}
	s.pendingPrimitives, s.pendingLights = nil, nil
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) AddPrimitive(proxy primitive.Proxy) primitive.ComponentID {
	if proxy == nil {
		panic("scene: AddPrimitive requires a non-nil proxy")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPrimitiveLocked(proxy)
}

func (s *scene) addPrimitiveLocked(proxy primitive.Proxy) primitive.ComponentID {
	id := s.nextID
	s.nextID++

	bounds := proxy.Bounds()
	src := proxy.DrawBatches()
	batches := make([]primitive.DrawBatch, len(src))
	for i, b := range src {
		b.ID = s.batchIDs.alloc()
		batches[i] = b
	}

	info := &primitive.SceneInfo{
		ComponentID: id,
		PackedIndex: len(s.infos),
		OctreeID:    octree.InvalidElementID,
		Proxy:       proxy,
		Bounds:      bounds,
		Batches:     batches,
	}
	s.infos = append(s.infos, info)
	s.bounds = append(s.bounds, bounds)
	s.occlusionBounds = append(s.occlusionBounds, occlusionBoundsOf(bounds))
	s.flags = append(s.flags, proxy.Flags())
	s.componentIDs = append(s.componentIDs, id)
	s.byID[id] = info

	s.tree.Insert(info, bounds)
	return id
}

func (s *scene) RemovePrimitive(id primitive.ComponentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removePrimitiveLocked(id); err != nil {
		return err
	}
	for _, fn := range s.primitiveListeners {
		fn(id)
	}
	return nil
}

func (s *scene) removePrimitiveLocked(id primitive.ComponentID) error {
	info, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("remove primitive %d: %w", id, ErrUnknownPrimitive)
	}

	if !s.tree.Remove(info.OctreeID) {
		s.logger.WithField("primitive", id).Warn("primitive missing from octree on removal")
	}
	for _, b := range info.Batches {
		s.batchIDs.release(b.ID)
	}

	idx := info.PackedIndex
	last := len(s.infos) - 1
	if idx != last {
		moved := s.infos[last]
		moved.PackedIndex = idx
		s.infos[idx] = moved
		s.bounds[idx] = s.bounds[last]
		s.occlusionBounds[idx] = s.occlusionBounds[last]
		s.flags[idx] = s.flags[last]
		s.componentIDs[idx] = s.componentIDs[last]
	}
	s.infos[last] = nil
	s.infos = s.infos[:last]
	s.bounds = s.bounds[:last]
	s.occlusionBounds = s.occlusionBounds[:last]
	s.flags = s.flags[:last]
	s.componentIDs = s.componentIDs[:last]

	delete(s.byID, id)
	info.PackedIndex = -1
	return nil
}

func (s *scene) UpdatePrimitiveBounds(id primitive.ComponentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("update primitive %d: %w", id, ErrUnknownPrimitive)
	}
	s.updateBoundsLocked(info)
	return nil
}

func (s *scene) updateBoundsLocked(info *primitive.SceneInfo) {
	bounds := info.Proxy.Bounds()
	info.Bounds = bounds
	info.LazyUpdate = false
	s.bounds[info.PackedIndex] = bounds
	s.occlusionBounds[info.PackedIndex] = occlusionBoundsOf(bounds)
	s.flags[info.PackedIndex] = info.Proxy.Flags()
	if _, ok := s.tree.Update(info.OctreeID, bounds); !ok {
		s.tree.Insert(info, bounds)
	}
}

func (s *scene) MarkPrimitiveDirty(id primitive.ComponentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("mark primitive %d: %w", id, ErrUnknownPrimitive)
	}
	if !info.LazyUpdate {
		info.LazyUpdate = true
		s.dirty = append(s.dirty, id)
	}
	return nil
}

func (s *scene) FlushUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.dirty {
		info, ok := s.byID[id]
		if !ok || !info.LazyUpdate {
			continue
		}
		s.updateBoundsLocked(info)
		n++
	}
	s.dirty = s.dirty[:0]
	return n
}

func (s *scene) AddLight(l light.Light) uint64 {
	if l == nil {
		panic("scene: AddLight requires a non-nil light")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLightLocked(l)
}

func (s *scene) addLightLocked(l light.Light) uint64 {
	if l.ID() == 0 {
		l.SetID(s.nextLightID)
		s.nextLightID++
	} else if l.ID() >= s.nextLightID {
		s.nextLightID = l.ID() + 1
	}
	s.lights = append(s.lights, l)
	return l.ID()
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			for _, fn := range s.lightListeners {
				fn(l.ID())
			}
			return
		}
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *scene) FrameLights() []light.Light {
	return s.lights
}

func (s *scene) OnPrimitiveRemoved(fn func(id primitive.ComponentID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primitiveListeners = append(s.primitiveListeners, fn)
}

func (s *scene) OnLightRemoved(fn func(lightID uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lightListeners = append(s.lightListeners, fn)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append([]primitive.ComponentID(nil), s.componentIDs...)
	for _, id := range ids {
		_ = s.removePrimitiveLocked(id)
		for _, fn := range s.primitiveListeners {
			fn(id)
		}
	}
	for _, l := range s.lights {
		for _, fn := range s.lightListeners {
			fn(l.ID())
		}
	}
	s.lights = nil
	s.dirty = s.dirty[:0]
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.infos)
}

func (s *scene) BeginFrame() {
	s.mu.RLock()
}

func (s *scene) EndFrame() {
	s.mu.RUnlock()
}

func (s *scene) NumPrimitives() int {
	return len(s.infos)
}

func (s *scene) NumDrawBatches() int {
	return s.batchIDs.size()
}

func (s *scene) Primitive(packedIndex int) *primitive.SceneInfo {
	return s.infos[packedIndex]
}

func (s *scene) PrimitiveByID(id primitive.ComponentID) (*primitive.SceneInfo, bool) {
	info, ok := s.byID[id]
	return info, ok
}

func (s *scene) PrimitiveBounds() []common.BoxSphereBounds {
	return s.bounds
}

func (s *scene) PrimitiveOcclusionBounds() []common.BoxSphereBounds {
	return s.occlusionBounds
}

func (s *scene) PrimitiveFlags() []primitive.Flags {
	return s.flags
}

func (s *scene) PrimitiveComponentIDs() []primitive.ComponentID {
	return s.componentIDs
}

func (s *scene) Octree() octree.Octree[*primitive.SceneInfo] {
	return s.tree
}

// occlusionBoundsOf grows bounds by OcclusionSlop.
func occlusionBoundsOf(b common.BoxSphereBounds) common.BoxSphereBounds {
	slop := mgl32.Vec3{OcclusionSlop, OcclusionSlop, OcclusionSlop}
	return common.BoxSphereBounds{
		Origin:       b.Origin,
		Extent:       b.Extent.Add(slop),
		SphereRadius: b.SphereRadius + OcclusionSlop,
	}
}
