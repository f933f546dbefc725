// Package bitpack stores small unsigned values in fixed-width bit fields
// packed into 64-bit words, the layout used for section block and biome data.
//
// A value never spans two words: each word holds 64/bits values and any
// remaining high bits are left unused.
package bitpack

import (
	"errors"
	"fmt"
	"math/bits"
)

// MinBits is the narrowest field width used for block data.
const MinBits = 4

var ErrShortData = errors.New("bitpack: not enough words for value count")

// PerWord returns how many values of the given width fit in one word.
func PerWord(width int) int {
	return 64 / width
}

// WordsFor returns the number of words needed to hold n values of the given width.
func WordsFor(n, width int) int {
	per := PerWord(width)
	return (n + per - 1) / per
}

// BitsFor returns the field width used to index a palette of n entries.
// Widths step at powers of two and never go below MinBits.
func BitsFor(n int) int {
	if n <= 1 {
		return MinBits
	}
	return max(MinBits, bits.Len(uint(n-1)))
}

// Get returns the i'th value of the given width from words.
func Get(width int, words []int64, i int) uint16 {
	per := PerWord(width)
	word := uint64(words[i/per])
	shift := (i % per) * width
	return uint16((word >> shift) & (1<<width - 1))
}

// Set stores v as the i'th value of the given width in words.
func Set(width int, words []int64, i int, v uint16) {
	per := PerWord(width)
	idx := i / per
	shift := (i % per) * width
	mask := uint64(1<<width-1) << shift

	word := uint64(words[idx])
	word &^= mask
	word |= (uint64(v) << shift) & mask
	words[idx] = int64(word)
}

// Pack encodes cells into a freshly allocated word array.
func Pack(width int, cells []uint16) []int64 {
	words := make([]int64, WordsFor(len(cells), width))
	for i, v := range cells {
		Set(width, words, i, v)
	}
	return words
}

// Unpack decodes n values of the given width from words.
func Unpack(width int, words []int64, n int) ([]uint16, error) {
	if width < 1 || width > 16 {
		return nil, fmt.Errorf("bitpack: invalid width %d", width)
	}
	if need := WordsFor(n, width); len(words) < need {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortData, len(words), need)
	}
	cells := make([]uint16, n)
	for i := range cells {
		cells[i] = Get(width, words, i)
	}
	return cells, nil
}
