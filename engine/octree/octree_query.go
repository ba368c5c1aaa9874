package octree

import (
	"iter"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/convex_volume"
)

// NodeRef is a read-only view of one octree node returned by CollectNodes.
// It is valid until the next mutation of the tree.
type NodeRef[T any] struct {
	tree      *octreeImpl[T]
	index     int32
	contained bool
}

// FullyContained reports whether the node's loose bounds were fully inside the volume
// passed to CollectNodes, in which case every element of the node intersects it.
func (r NodeRef[T]) FullyContained() bool {
	return r.contained
}

// Len returns the number of elements stored directly at the node.
func (r NodeRef[T]) Len() int {
	return len(r.tree.nodes[r.index].elements)
}

// Bounds returns the loose bounds of the node.
func (r NodeRef[T]) Bounds() common.Box {
	return r.tree.looseBox(r.index)
}

// Elements yields the elements stored directly at the node along with their bounds.
func (r NodeRef[T]) Elements() iter.Seq2[T, common.BoxSphereBounds] {
	return func(yield func(T, common.BoxSphereBounds) bool) {
		elems := r.tree.nodes[r.index].elements
		for i := range elems {
			if !yield(elems[i].value, elems[i].bounds) {
				return
			}
		}
	}
}

type queryFrame struct {
	index     int32
	contained bool
}

func (o *octreeImpl[T]) QueryBox(box common.Box) iter.Seq[T] {
	return func(yield func(T) bool) {
		stack := make([]int32, 1, 32)
		stack[0] = rootIndex
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if o.nodes[idx].inclusive == 0 {
				continue
			}

			for i := 0; i < len(o.nodes[idx].elements); i++ {
				e := &o.nodes[idx].elements[i]
				if e.bounds.Box().Intersects(box) {
					if !yield(e.value) {
						return
					}
				}
			}

			for _, c := range o.nodes[idx].children {
				if c >= 0 && o.nodes[c].inclusive > 0 && o.looseBox(c).Intersects(box) {
					stack = append(stack, c)
				}
			}
		}
	}
}

func (o *octreeImpl[T]) QueryConvex(volume convex_volume.ConvexVolume) iter.Seq[T] {
	return func(yield func(T) bool) {
		o.walkConvex(volume, func(idx int32, contained bool) bool {
			for i := 0; i < len(o.nodes[idx].elements); i++ {
				e := &o.nodes[idx].elements[i]
				if contained || volume.IntersectBounds(e.bounds) {
					if !yield(e.value) {
						return false
					}
				}
			}
			return true
		})
	}
}

func (o *octreeImpl[T]) CollectNodes(volume convex_volume.ConvexVolume) []NodeRef[T] {
	var refs []NodeRef[T]
	o.walkConvex(volume, func(idx int32, contained bool) bool {
		if len(o.nodes[idx].elements) > 0 {
			refs = append(refs, NodeRef[T]{tree: o, index: idx, contained: contained})
		}
		return true
	})
	return refs
}

// walkConvex visits every non-empty node whose loose bounds touch the volume, depth first.
// A node whose loose bounds are fully inside the volume passes that down to its subtree
// so the per-element tests can be skipped. The root is always visited because it also
// stores elements that lie outside its own bounds.
func (o *octreeImpl[T]) walkConvex(volume convex_volume.ConvexVolume, visit func(idx int32, contained bool) bool) {
	stack := make([]queryFrame, 1, 32)
	stack[0] = queryFrame{index: rootIndex}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o.nodes[f.index].inclusive == 0 {
			continue
		}
		if !visit(f.index, f.contained) {
			return
		}

		for _, c := range o.nodes[f.index].children {
			if c < 0 || o.nodes[c].inclusive == 0 {
				continue
			}
			if f.contained {
				stack = append(stack, queryFrame{index: c, contained: true})
				continue
			}
			box := o.looseBox(c)
			switch volume.IntersectBoxWithContainment(box.Origin, box.Extent) {
			case convex_volume.Outside:
			case convex_volume.FullyContained:
				stack = append(stack, queryFrame{index: c, contained: true})
			default:
				stack = append(stack, queryFrame{index: c})
			}
		}
	}
}
