package scene

import "slices"

// batchAllocator hands out dense draw batch IDs and recycles released ones, lowest first,
// so per-view batch bitmaps stay compact.
type batchAllocator struct {
	next uint32
	free []uint32
}

func (a *batchAllocator) alloc() uint32 {
	if n := len(a.free); n > 0 {
		id := a.free[0]
		a.free = a.free[1:]
		return id
	}
	id := a.next
	a.next++
	return id
}

func (a *batchAllocator) release(id uint32) {
	i, found := slices.BinarySearch(a.free, id)
	if found {
		return
	}
	a.free = slices.Insert(a.free, i, id)
}

// size returns one past the largest ID ever handed out.
func (a *batchAllocator) size() int {
	return int(a.next)
}
