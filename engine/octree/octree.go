// Package octree implements a bounded loose octree over elements with box/sphere bounds.
// Nodes live in a flat arena and are addressed by index; callers only ever hold ElementID
// handles, never node identity.
//
// An Octree is not safe for concurrent mutation. Concurrent queries are safe as long as no
// goroutine mutates the tree at the same time; the scene enforces this with its RWMutex.
package octree

import (
	"fmt"
	"iter"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/convex_volume"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

const rootIndex int32 = 0

// ElementID addresses an element stored in an Octree. A handle stays valid until the
// element is removed or relocated; relocations are reported through the element ID setter.
type ElementID struct {
	Node  int32
	Index int32
}

// InvalidElementID marks an element that is not stored in any octree.
var InvalidElementID = ElementID{Node: -1, Index: -1}

// IsValid reports whether the handle could refer to a stored element.
func (id ElementID) IsValid() bool {
	return id.Node >= 0 && id.Index >= 0
}

// String returns a readable form of the handle for logging.
func (id ElementID) String() string {
	return fmt.Sprintf("%d:%d", id.Node, id.Index)
}

// Stats summarizes the structure of an octree.
type Stats struct {
	Elements       int
	Nodes          int
	MaxDepth       int
	ElementsAtRoot int
}

// Octree is a bounded loose octree storing elements of type T with per-element bounds.
type Octree[T any] interface {
	// Insert stores elem with the given bounds and returns its handle. Insert never fails:
	// degenerate bounds and bounds outside the root are stored at the root.
	Insert(elem T, bounds common.BoxSphereBounds) ElementID

	// Remove deletes the element addressed by id. It returns false for a stale handle.
	Remove(id ElementID) bool

	// Update moves the element addressed by id to new bounds and returns its new handle.
	Update(id ElementID, bounds common.BoxSphereBounds) (ElementID, bool)

	// Element returns the element and bounds addressed by id.
	Element(id ElementID) (T, common.BoxSphereBounds, bool)

	// QueryBox lazily yields every element whose box intersects box.
	QueryBox(box common.Box) iter.Seq[T]

	// QueryConvex lazily yields every element whose bounds intersect the convex volume.
	QueryConvex(volume convex_volume.ConvexVolume) iter.Seq[T]

	// All yields every stored element with its handle.
	All() iter.Seq2[ElementID, T]

	// CollectNodes returns the non-empty nodes whose loose bounds intersect the volume,
	// for callers that partition a query across worker tasks.
	CollectNodes(volume convex_volume.ConvexVolume) []NodeRef[T]

	// Len returns the number of stored elements.
	Len() int

	// Bounds returns the tight bounds of the root node.
	Bounds() common.Box

	// Stats returns structural statistics.
	Stats() Stats
}

type entry[T any] struct {
	value  T
	bounds common.BoxSphereBounds
}

type node[T any] struct {
	center    mgl32.Vec3
	extent    float32
	depth     int32
	parent    int32
	children  [8]int32
	leaf      bool
	live      bool
	inclusive int32
	elements  []entry[T]
}

type octreeImpl[T any] struct {
	nodes []node[T]
	free  []int32
	count int

	maxElementsPerLeaf int
	maxDepth           int32
	looseness          float32
	minLeafExtent      float32
	setID              func(T, ElementID)

	logger *log.Entry
}

var _ Octree[int] = &octreeImpl[int]{}

var noChildren = [8]int32{-1, -1, -1, -1, -1, -1, -1, -1}

// NewOctree creates a new Octree whose root is a cube centered at origin.
//
// Parameters:
//   - origin: the center of the root node
//   - extent: the half-size of the root node (must be > 0)
//   - options: variadic list of OctreeBuilderOption functions to configure the octree
//
// Returns:
//   - Octree[T]: the newly created octree
func NewOctree[T any](origin mgl32.Vec3, extent float32, options ...OctreeBuilderOption) Octree[T] {
	if !(extent > 0) || math32.IsInf(extent, 1) {
		panic("octree: NewOctree requires a positive root extent")
	}

	s := defaultSettings()
	for _, opt := range options {
		opt(&s)
	}

	o := &octreeImpl[T]{
		maxElementsPerLeaf: s.maxElementsPerLeaf,
		maxDepth:           int32(s.maxDepth),
		minLeafExtent:      s.minLeafExtent,
		logger:             log.WithFields(log.Fields{"component": "octree"}),
	}
	if s.loosenessDenominator > 0 {
		o.looseness = 1 / float32(s.loosenessDenominator)
	}
	if s.elementIDSetter != nil {
		fn, ok := s.elementIDSetter.(func(T, ElementID))
		if !ok {
			panic(fmt.Sprintf("octree: element ID setter has type %T, want func(%T, ElementID)", s.elementIDSetter, *new(T)))
		}
		o.setID = fn
	}

	o.allocNode(origin, extent, 0, -1)
	return o
}

func (o *octreeImpl[T]) Insert(elem T, bounds common.BoxSphereBounds) ElementID {
	o.count++
	e := entry[T]{value: elem, bounds: bounds}
	box := bounds.Box()

	root := &o.nodes[rootIndex]
	if box.IsDegenerate() || !fitsIn(root.center, o.looseExtent(root.extent), box) {
		if !box.IsDegenerate() {
			o.logger.WithFields(log.Fields{"origin": box.Origin, "extent": box.Extent}).Debug("element exceeds root bounds, storing at root")
		}
		root.inclusive++
		return o.appendElement(rootIndex, e)
	}

	idx := rootIndex
	for {
		o.nodes[idx].inclusive++
		if o.nodes[idx].leaf {
			if len(o.nodes[idx].elements) < o.maxElementsPerLeaf || !o.canSplit(idx) {
				return o.appendElement(idx, e)
			}
			o.split(idx)
		}

		child, ok := o.childFor(idx, box)
		if !ok {
			return o.appendElement(idx, e)
		}
		idx = child
	}
}

func (o *octreeImpl[T]) Remove(id ElementID) bool {
	if !o.valid(id) {
		return false
	}

	n := &o.nodes[id.Node]
	last := len(n.elements) - 1
	removed := n.elements[id.Index]
	if int(id.Index) != last {
		n.elements[id.Index] = n.elements[last]
		o.notify(n.elements[id.Index].value, id)
	}
	var zero entry[T]
	n.elements[last] = zero
	n.elements = n.elements[:last]
	o.notify(removed.value, InvalidElementID)
	o.count--

	collapseAt := int32(-1)
	for i := id.Node; i >= 0; i = o.nodes[i].parent {
		o.nodes[i].inclusive--
		if !o.nodes[i].leaf && int(o.nodes[i].inclusive) <= o.maxElementsPerLeaf {
			collapseAt = i
		}
	}
	if collapseAt >= 0 {
		o.collapse(collapseAt)
	}
	return true
}

func (o *octreeImpl[T]) Update(id ElementID, bounds common.BoxSphereBounds) (ElementID, bool) {
	if !o.valid(id) {
		return InvalidElementID, false
	}
	elem := o.nodes[id.Node].elements[id.Index].value
	o.Remove(id)
	return o.Insert(elem, bounds), true
}

func (o *octreeImpl[T]) Element(id ElementID) (T, common.BoxSphereBounds, bool) {
	if !o.valid(id) {
		var zero T
		return zero, common.BoxSphereBounds{}, false
	}
	e := o.nodes[id.Node].elements[id.Index]
	return e.value, e.bounds, true
}

func (o *octreeImpl[T]) All() iter.Seq2[ElementID, T] {
	return func(yield func(ElementID, T) bool) {
		for ni := range o.nodes {
			if !o.nodes[ni].live {
				continue
			}
			for ei := 0; ei < len(o.nodes[ni].elements); ei++ {
				if !yield(ElementID{Node: int32(ni), Index: int32(ei)}, o.nodes[ni].elements[ei].value) {
					return
				}
			}
		}
	}
}

func (o *octreeImpl[T]) Len() int {
	return o.count
}

func (o *octreeImpl[T]) Bounds() common.Box {
	root := &o.nodes[rootIndex]
	return common.Box{Origin: root.center, Extent: mgl32.Vec3{root.extent, root.extent, root.extent}}
}

func (o *octreeImpl[T]) Stats() Stats {
	s := Stats{Elements: o.count, ElementsAtRoot: len(o.nodes[rootIndex].elements)}
	for i := range o.nodes {
		if !o.nodes[i].live {
			continue
		}
		s.Nodes++
		if d := int(o.nodes[i].depth); d > s.MaxDepth {
			s.MaxDepth = d
		}
	}
	return s
}

func (o *octreeImpl[T]) valid(id ElementID) bool {
	if !id.IsValid() || int(id.Node) >= len(o.nodes) || !o.nodes[id.Node].live {
		return false
	}
	return int(id.Index) < len(o.nodes[id.Node].elements)
}

func (o *octreeImpl[T]) notify(elem T, id ElementID) {
	if o.setID != nil {
		o.setID(elem, id)
	}
}

func (o *octreeImpl[T]) looseExtent(extent float32) float32 {
	return extent * (1 + o.looseness)
}

func (o *octreeImpl[T]) looseBox(idx int32) common.Box {
	n := &o.nodes[idx]
	e := o.looseExtent(n.extent)
	return common.Box{Origin: n.center, Extent: mgl32.Vec3{e, e, e}}
}

func (o *octreeImpl[T]) canSplit(idx int32) bool {
	n := &o.nodes[idx]
	return n.depth < o.maxDepth && n.extent*0.5 >= o.minLeafExtent
}

// childFor returns the child of idx that can hold box, creating it if needed.
// It returns false when no child's loose bounds contain the box.
func (o *octreeImpl[T]) childFor(idx int32, box common.Box) (int32, bool) {
	n := &o.nodes[idx]
	ci := childIndex(n.center, box.Origin)
	half := n.extent * 0.5
	center := childCenter(n.center, half, ci)
	if !fitsIn(center, o.looseExtent(half), box) {
		return -1, false
	}

	if child := n.children[ci]; child >= 0 {
		return child, true
	}
	depth := n.depth + 1
	child := o.allocNode(center, half, depth, idx)
	o.nodes[idx].children[ci] = child
	return child, true
}

// split turns a leaf into an interior node and pushes its elements down where they fit.
func (o *octreeImpl[T]) split(idx int32) {
	old := o.nodes[idx].elements
	o.nodes[idx].elements = nil
	o.nodes[idx].leaf = false

	for _, e := range old {
		box := e.bounds.Box()
		if box.IsDegenerate() {
			o.appendElement(idx, e)
			continue
		}
		child, ok := o.childFor(idx, box)
		if !ok {
			o.appendElement(idx, e)
			continue
		}
		o.nodes[child].inclusive++
		o.appendElement(child, e)
	}
}

// collapse pulls every element of the subtree below idx into idx and frees the children.
func (o *octreeImpl[T]) collapse(idx int32) {
	gathered := append([]entry[T](nil), o.nodes[idx].elements...)
	kept := len(gathered)

	stack := make([]int32, 0, 16)
	for _, c := range o.nodes[idx].children {
		if c >= 0 {
			stack = append(stack, c)
		}
	}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		gathered = append(gathered, o.nodes[c].elements...)
		for _, gc := range o.nodes[c].children {
			if gc >= 0 {
				stack = append(stack, gc)
			}
		}
		o.freeNode(c)
	}

	n := &o.nodes[idx]
	n.elements = gathered
	n.children = noChildren
	n.leaf = true
	for i := kept; i < len(gathered); i++ {
		o.notify(gathered[i].value, ElementID{Node: idx, Index: int32(i)})
	}
}

func (o *octreeImpl[T]) appendElement(idx int32, e entry[T]) ElementID {
	n := &o.nodes[idx]
	n.elements = append(n.elements, e)
	id := ElementID{Node: idx, Index: int32(len(n.elements) - 1)}
	o.notify(e.value, id)
	return id
}

func (o *octreeImpl[T]) allocNode(center mgl32.Vec3, extent float32, depth, parent int32) int32 {
	n := node[T]{
		center:   center,
		extent:   extent,
		depth:    depth,
		parent:   parent,
		children: noChildren,
		leaf:     true,
		live:     true,
	}
	if k := len(o.free); k > 0 {
		idx := o.free[k-1]
		o.free = o.free[:k-1]
		o.nodes[idx] = n
		return idx
	}
	o.nodes = append(o.nodes, n)
	return int32(len(o.nodes) - 1)
}

func (o *octreeImpl[T]) freeNode(idx int32) {
	o.nodes[idx] = node[T]{children: noChildren, parent: -1}
	o.free = append(o.free, idx)
}

// childIndex picks the octant of p relative to center: bit 0 is +X, bit 1 is +Y, bit 2 is +Z.
func childIndex(center, p mgl32.Vec3) int {
	i := 0
	if p[0] > center[0] {
		i |= 1
	}
	if p[1] > center[1] {
		i |= 2
	}
	if p[2] > center[2] {
		i |= 4
	}
	return i
}

func childCenter(parent mgl32.Vec3, half float32, ci int) mgl32.Vec3 {
	c := parent
	for axis := 0; axis < 3; axis++ {
		if ci&(1<<axis) != 0 {
			c[axis] += half
		} else {
			c[axis] -= half
		}
	}
	return c
}

// fitsIn reports whether box lies inside the cube of half-size loose centered at center.
func fitsIn(center mgl32.Vec3, loose float32, box common.Box) bool {
	for i := 0; i < 3; i++ {
		if !(math32.Abs(box.Origin[i]-center[i])+box.Extent[i] <= loose) {
			return false
		}
	}
	return true
}
