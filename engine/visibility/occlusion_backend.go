package visibility

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// QueryHandle names a submitted occlusion query. The zero handle means no query.
type QueryHandle uint64

// OcclusionQueryBackend draws bounding boxes against the depth buffer and reports how many
// pixels passed. Results become readable some frames after submission.
type OcclusionQueryBackend interface {
	// BatchPrimitive queues a box for querying.
	//
	// Parameters:
	//   - origin: the box center
	//   - extent: the box half size
	//   - grouped: true if the box may share a query with other grouped boxes
	//
	// Returns:
	//   - QueryHandle: the query, or zero if none could be issued
	BatchPrimitive(origin, extent mgl32.Vec3, grouped bool) QueryHandle

	// Result reads a query result.
	//
	// Parameters:
	//   - h: the query
	//
	// Returns:
	//   - uint64: the number of visible pixels
	//   - bool: false if the read failed
	Result(h QueryHandle) (uint64, bool)

	// Release returns a query to the backend.
	//
	// Parameters:
	//   - h: the query
	Release(h QueryHandle)
}

// HZBTester tests boxes against a hierarchical depth buffer built from the previous frame.
type HZBTester interface {
	// AddBounds queues a box for testing in the given frame.
	//
	// Parameters:
	//   - frame: the occlusion frame the test belongs to
	//   - origin: the box center
	//   - extent: the box half size
	//
	// Returns:
	//   - uint32: the test index
	AddBounds(frame uint64, origin, extent mgl32.Vec3) uint32

	// IsVisible reads a test result.
	//
	// Parameters:
	//   - frame: the occlusion frame the test was queued in
	//   - index: the test index
	//
	// Returns:
	//   - visible: true if any part of the box passed
	//   - ok: false if results for frame are not available
	IsVisible(frame uint64, index uint32) (visible bool, ok bool)
}

// PixelFunc computes the visible pixel count of a box.
type PixelFunc func(origin, extent mgl32.Vec3) uint64

// FuncOcclusionBackend is an OcclusionQueryBackend that evaluates a PixelFunc when a query
// is batched. Results are readable immediately. Grouped boxes are evaluated individually.
type FuncOcclusionBackend struct {
	mu      sync.Mutex
	fn      PixelFunc
	results map[QueryHandle]uint64
	next    QueryHandle

	// FailReads makes every Result call fail.
	FailReads bool
	// Batched counts BatchPrimitive calls, grouped and individual.
	Batched, BatchedGrouped int
}

var _ OcclusionQueryBackend = &FuncOcclusionBackend{}

// NewFuncOcclusionBackend creates a backend answering queries with fn.
//
// Parameters:
//   - fn: the pixel counter
//
// Returns:
//   - *FuncOcclusionBackend: the backend
func NewFuncOcclusionBackend(fn PixelFunc) *FuncOcclusionBackend {
	return &FuncOcclusionBackend{
		fn:      fn,
		results: make(map[QueryHandle]uint64),
		next:    1,
	}
}

func (b *FuncOcclusionBackend) BatchPrimitive(origin, extent mgl32.Vec3, grouped bool) QueryHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.next
	b.next++
	b.results[h] = b.fn(origin, extent)
	b.Batched++
	if grouped {
		b.BatchedGrouped++
	}
	return h
}

func (b *FuncOcclusionBackend) Result(h QueryHandle) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailReads {
		return 0, false
	}
	px, ok := b.results[h]
	return px, ok
}

func (b *FuncOcclusionBackend) Release(h QueryHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.results, h)
}

// Outstanding returns the number of unreleased queries.
func (b *FuncOcclusionBackend) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.results)
}

// SetFailReads toggles read failure for every query.
func (b *FuncOcclusionBackend) SetFailReads(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FailReads = fail
}
