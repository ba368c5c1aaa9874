package shadow

// layoutNode is one rectangle of the guillotine tree. Leaves are either free or hold
// exactly one element; inner nodes are split into a and b.
type layoutNode struct {
	x, y, w, h uint32
	a, b       *layoutNode
	used       bool
}

func (n *layoutNode) isLeaf() bool {
	return n.a == nil
}

// TextureLayout packs rectangles into a fixed-size texture with a guillotine tree.
// The first free leaf that fits is split along its longer excess edge.
type TextureLayout struct {
	root  *layoutNode
	count int
}

// NewTextureLayout creates an empty layout of the given size.
//
// Parameters:
//   - width: the texture width in texels
//   - height: the texture height in texels
//
// Returns:
//   - *TextureLayout: the layout
func NewTextureLayout(width, height uint32) *TextureLayout {
	return &TextureLayout{root: &layoutNode{w: width, h: height}}
}

// AddElement places a w by h rectangle.
//
// Parameters:
//   - w: the element width
//   - h: the element height
//
// Returns:
//   - x, y: the top-left corner of the element
//   - ok: false if the element does not fit
func (l *TextureLayout) AddElement(w, h uint32) (x, y uint32, ok bool) {
	if w == 0 || h == 0 {
		return 0, 0, false
	}
	n := add(l.root, w, h)
	if n == nil {
		return 0, 0, false
	}
	l.count++
	return n.x, n.y, true
}

func add(n *layoutNode, w, h uint32) *layoutNode {
	if !n.isLeaf() {
		if r := add(n.a, w, h); r != nil {
			return r
		}
		return add(n.b, w, h)
	}
	if n.used || w > n.w || h > n.h {
		return nil
	}
	if w == n.w && h == n.h {
		n.used = true
		return n
	}
	if n.w-w > n.h-h {
		n.a = &layoutNode{x: n.x, y: n.y, w: w, h: n.h}
		n.b = &layoutNode{x: n.x + w, y: n.y, w: n.w - w, h: n.h}
	} else {
		n.a = &layoutNode{x: n.x, y: n.y, w: n.w, h: h}
		n.b = &layoutNode{x: n.x, y: n.y + h, w: n.w, h: n.h - h}
	}
	return add(n.a, w, h)
}

// RemoveElement frees a rectangle previously returned by AddElement and merges free
// siblings back together.
//
// Parameters:
//   - x, y: the element corner
//   - w, h: the element size
//
// Returns:
//   - bool: false if no such element exists
func (l *TextureLayout) RemoveElement(x, y, w, h uint32) bool {
	if !remove(l.root, x, y, w, h) {
		return false
	}
	l.count--
	return true
}

func remove(n *layoutNode, x, y, w, h uint32) bool {
	if x < n.x || y < n.y || x >= n.x+n.w || y >= n.y+n.h {
		return false
	}
	if n.isLeaf() {
		if n.used && n.x == x && n.y == y && n.w == w && n.h == h {
			n.used = false
			return true
		}
		return false
	}
	if !remove(n.a, x, y, w, h) && !remove(n.b, x, y, w, h) {
		return false
	}
	if n.a.isLeaf() && n.b.isLeaf() && !n.a.used && !n.b.used {
		n.a, n.b = nil, nil
	}
	return true
}

// Len returns the number of placed elements.
func (l *TextureLayout) Len() int {
	return l.count
}

// SizeX returns the width actually covered by elements.
func (l *TextureLayout) SizeX() uint32 {
	x, _ := extent(l.root)
	return x
}

// SizeY returns the height actually covered by elements.
func (l *TextureLayout) SizeY() uint32 {
	_, y := extent(l.root)
	return y
}

func extent(n *layoutNode) (uint32, uint32) {
	if n.isLeaf() {
		if n.used {
			return n.x + n.w, n.y + n.h
		}
		return 0, 0
	}
	ax, ay := extent(n.a)
	bx, by := extent(n.b)
	return max(ax, bx), max(ay, by)
}
