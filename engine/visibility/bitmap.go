package visibility

import (
	"iter"
	"math/bits"
	"slices"
)

// Bitmap is a fixed-length bit array stored in 64-bit words. Packets own disjoint word
// ranges, so concurrent writers never touch the same word.
type Bitmap struct {
	words []uint64
	n     int
}

// NewBitmap returns a cleared bitmap of n bits.
func NewBitmap(n int) Bitmap {
	var b Bitmap
	b.Reset(n)
	return b
}

// Reset resizes the bitmap to n bits and clears every bit, reusing storage when possible.
func (b *Bitmap) Reset(n int) {
	w := (n + 63) / 64
	if cap(b.words) >= w {
		b.words = b.words[:w]
		clear(b.words)
	} else {
		b.words = make([]uint64, w)
	}
	b.n = n
}

// Len returns the number of bits.
func (b *Bitmap) Len() int {
	return b.n
}

// NumWords returns the number of 64-bit words.
func (b *Bitmap) NumWords() int {
	return len(b.words)
}

// Get reports whether bit i is set. Out-of-range bits read as false.
func (b *Bitmap) Get(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// Set sets or clears bit i.
func (b *Bitmap) Set(i int, v bool) {
	if i < 0 || i >= b.n {
		panic("visibility: bitmap index out of range")
	}
	if v {
		b.words[i>>6] |= 1 << (uint(i) & 63)
	} else {
		b.words[i>>6] &^= 1 << (uint(i) & 63)
	}
}

// Word returns word w.
func (b *Bitmap) Word(w int) uint64 {
	return b.words[w]
}

// SetWord replaces word w. Bits past Len are masked off.
func (b *Bitmap) SetWord(w int, v uint64) {
	if w == len(b.words)-1 && b.n&63 != 0 {
		v &= (1 << (uint(b.n) & 63)) - 1
	}
	b.words[w] = v
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// All yields the index of every set bit in ascending order.
func (b *Bitmap) All() iter.Seq[int] {
	return b.InWords(0, len(b.words))
}

// InWords yields the set bits of words [start, end) in ascending order.
func (b *Bitmap) InWords(start, end int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for w := start; w < end; w++ {
			word := b.words[w]
			for word != 0 {
				bit := bits.TrailingZeros64(word)
				word &= word - 1
				if !yield(w<<6 | bit) {
					return
				}
			}
		}
	}
}

// Equal reports whether both bitmaps have the same length and bits.
func (b *Bitmap) Equal(o *Bitmap) bool {
	return b.n == o.n && slices.Equal(b.words, o.words)
}

// Clone returns an independent copy.
func (b *Bitmap) Clone() Bitmap {
	return Bitmap{words: slices.Clone(b.words), n: b.n}
}
