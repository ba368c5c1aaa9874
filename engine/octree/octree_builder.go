package octree

// octreeSettings collects the construction-time tunables of an Octree.
// It is not generic so options can be passed without naming the element type.
type octreeSettings struct {
	maxElementsPerLeaf   int
	maxDepth             int
	loosenessDenominator int
	minLeafExtent        float32
	elementIDSetter      any
}

func defaultSettings() octreeSettings {
	return octreeSettings{
		maxElementsPerLeaf:   16,
		maxDepth:             12,
		loosenessDenominator: 16,
	}
}

// OctreeBuilderOption is a functional option for configuring an Octree.
// Use the With* functions to create options.
type OctreeBuilderOption func(s *octreeSettings)

// WithMaxElementsPerLeaf sets how many elements a leaf holds before it splits.
// Defaults to 16.
//
// Parameters:
//   - n: the leaf capacity (minimum 1)
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithMaxElementsPerLeaf(n int) OctreeBuilderOption {
	return func(s *octreeSettings) {
		if n < 1 {
			n = 1
		}
		s.maxElementsPerLeaf = n
	}
}

// WithMaxDepth sets the deepest level a node may be created at. The root is depth 0.
// Elements that would descend further stay in the deepest node that can hold them.
// Defaults to 12.
//
// Parameters:
//   - depth: the maximum node depth (minimum 0)
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithMaxDepth(depth int) OctreeBuilderOption {
	return func(s *octreeSettings) {
		if depth < 0 {
			depth = 0
		}
		s.maxDepth = depth
	}
}

// WithLooseness sets the loosening denominator. Each node's bounds are inflated by
// extent/denominator so elements near a split plane can still descend into a child,
// and slightly moving elements do not constantly change nodes.
// A denominator of 0 disables loosening. Defaults to 16.
//
// Parameters:
//   - denominator: the loosening denominator
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithLooseness(denominator int) OctreeBuilderOption {
	return func(s *octreeSettings) {
		if denominator < 0 {
			denominator = 0
		}
		s.loosenessDenominator = denominator
	}
}

// WithMinLeafExtent stops splitting once a child's half-size would fall below extent.
//
// Parameters:
//   - extent: the minimum child half-size
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithMinLeafExtent(extent float32) OctreeBuilderOption {
	return func(s *octreeSettings) {
		s.minLeafExtent = extent
	}
}

// WithElementIDSetter registers a callback that is invoked every time an element is
// stored at a new ElementID: on insert, when a leaf splits or a subtree collapses,
// and when a removal swaps another element into the freed slot. Removed elements
// receive InvalidElementID. The callback must not mutate the octree.
//
// Parameters:
//   - fn: the callback, called with the element and its new handle
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithElementIDSetter[T any](fn func(elem T, id ElementID)) OctreeBuilderOption {
	return func(s *octreeSettings) {
		s.elementIDSetter = fn
	}
}
