package bitpack

import (
	"errors"
	"math/rand"
	"testing"
)

func TestBitsFor(t *testing.T) {
	for n := 1; n <= 16; n++ {
		if got := BitsFor(n); got != 4 {
			t.Fatalf("BitsFor(%d): expected 4, got %d", n, got)
		}
	}

	tests := []struct {
		n    int
		want int
	}{
		{17, 5},
		{32, 5},
		{33, 6},
		{64, 6},
		{65, 7},
		{256, 8},
		{257, 9},
		{4096, 12},
	}
	for _, tt := range tests {
		if got := BitsFor(tt.n); got != tt.want {
			t.Errorf("BitsFor(%d): expected %d, got %d", tt.n, tt.want, got)
		}
	}
}

func TestBitsForMonotonic(t *testing.T) {
	prev := BitsFor(1)
	for n := 2; n <= 4096; n++ {
		got := BitsFor(n)
		if got < prev {
			t.Fatalf("BitsFor(%d) = %d is below BitsFor(%d) = %d", n, got, n-1, prev)
		}
		prev = got
	}
}

func TestWordsFor(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{4, 256},  // 16 per word
		{5, 342},  // 12 per word, 4 bits wasted
		{6, 410},  // 10 per word
		{7, 456},  // 9 per word
		{8, 512},  // 8 per word
		{12, 820}, // 5 per word
		{16, 1024},
	}
	for _, tt := range tests {
		if got := WordsFor(4096, tt.width); got != tt.want {
			t.Errorf("WordsFor(4096, %d): expected %d, got %d", tt.width, tt.want, got)
		}
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for width := 4; width <= 16; width++ {
		const n = 4096
		words := make([]int64, WordsFor(n, width))
		want := make([]uint16, n)
		for i := range want {
			want[i] = uint16(rng.Intn(1 << width))
			Set(width, words, i, want[i])
		}

		// Rewrite a handful of cells and check that neighbours are untouched.
		for k := 0; k < 256; k++ {
			i := rng.Intn(n)
			v := uint16(rng.Intn(1 << width))
			Set(width, words, i, v)
			want[i] = v
		}

		for i := range want {
			if got := Get(width, words, i); got != want[i] {
				t.Fatalf("width %d cell %d: expected %d, got %d", width, i, want[i], got)
			}
		}
	}
}

func TestSetMasksOversizedValue(t *testing.T) {
	words := make([]int64, 1)
	Set(4, words, 1, 0xFF)
	if got := Get(4, words, 0); got != 0 {
		t.Fatalf("expected neighbour to stay 0, got %d", got)
	}
	if got := Get(4, words, 2); got != 0 {
		t.Fatalf("expected neighbour to stay 0, got %d", got)
	}
}

func TestNoValueSpansWords(t *testing.T) {
	// 5-bit values: 12 per word, so cell 12 starts word 1 at bit 0.
	words := make([]int64, 2)
	Set(5, words, 12, 31)
	if words[0] != 0 {
		t.Fatalf("expected word 0 untouched, got %#x", uint64(words[0]))
	}
	if words[1] != 31 {
		t.Fatalf("expected word 1 = 31, got %d", words[1])
	}
}

func TestHighBitWord(t *testing.T) {
	// 16 values of 4 bits fill a word exactly; the top value lands in the sign bit.
	words := make([]int64, 1)
	Set(4, words, 15, 0xF)
	if words[0] >= 0 {
		t.Fatalf("expected sign bit set, got %d", words[0])
	}
	if got := Get(4, words, 15); got != 0xF {
		t.Fatalf("expected 15, got %d", got)
	}
}

func TestPackUnpack(t *testing.T) {
	cells := make([]uint16, 4096)
	for i := range cells {
		cells[i] = uint16(i % 17)
	}
	width := BitsFor(17)
	words := Pack(width, cells)
	if len(words) != WordsFor(4096, width) {
		t.Fatalf("expected %d words, got %d", WordsFor(4096, width), len(words))
	}

	got, err := Unpack(width, words, len(cells))
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	for i := range cells {
		if got[i] != cells[i] {
			t.Fatalf("cell %d: expected %d, got %d", i, cells[i], got[i])
		}
	}
}

func TestUnpackShortData(t *testing.T) {
	_, err := Unpack(4, make([]int64, 10), 4096)
	if !errors.Is(err, ErrShortData) {
		t.Fatalf("expected ErrShortData, got %v", err)
	}
}
