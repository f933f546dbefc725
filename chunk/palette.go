package chunk

import "fmt"

// PaletteEntry is a block type and the number of cells referencing it.
type PaletteEntry struct {
	Block BlockType
	Refs  uint32
}

// Palette maps block types to small stable indices for one section.
// Entries are never removed or reordered while the palette is in use, even
// when their reference count drops to zero; Compact builds a fresh palette.
type Palette struct {
	entries []PaletteEntry
	index   map[string]int
}

func NewPalette() *Palette {
	return &Palette{index: make(map[string]int)}
}

func newPaletteWith(b BlockType, refs uint32) *Palette {
	p := NewPalette()
	p.entries = append(p.entries, PaletteEntry{Block: b.clone(), Refs: refs})
	p.index[b.String()] = 0
	return p
}

// Len returns the number of entries, including unreferenced ones.
func (p *Palette) Len() int {
	return len(p.entries)
}

// Entry returns the entry at index i.
func (p *Palette) Entry(i int) PaletteEntry {
	return p.entries[i]
}

// Index returns the index of b, if present.
func (p *Palette) Index(b BlockType) (int, bool) {
	i, ok := p.index[b.String()]
	return i, ok
}

// Increment adds one reference to b, appending a new entry if needed,
// and returns its index.
func (p *Palette) Increment(b BlockType) int {
	key := b.String()
	if i, ok := p.index[key]; ok {
		p.entries[i].Refs++
		return i
	}
	i := len(p.entries)
	p.entries = append(p.entries, PaletteEntry{Block: b.clone(), Refs: 1})
	p.index[key] = i
	return i
}

// Decrement drops one reference from entry i. The entry stays in place.
// It panics if i is out of range or the entry is already unreferenced.
func (p *Palette) Decrement(i int) {
	if i < 0 || i >= len(p.entries) {
		panic(fmt.Sprintf("chunk: palette index %d out of range [0,%d)", i, len(p.entries)))
	}
	if p.entries[i].Refs == 0 {
		panic(fmt.Sprintf("chunk: palette entry %d (%s) has no references", i, p.entries[i].Block))
	}
	p.entries[i].Refs--
}

// Blocks returns the block types in index order.
func (p *Palette) Blocks() []BlockType {
	out := make([]BlockType, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Block
	}
	return out
}

// Compact returns a palette without unreferenced entries, preserving the
// order of the rest, and a table mapping old indices to new ones.
// Removed entries map to -1.
func (p *Palette) Compact() (*Palette, []int) {
	out := NewPalette()
	remap := make([]int, len(p.entries))
	for i, e := range p.entries {
		if e.Refs == 0 {
			remap[i] = -1
			continue
		}
		remap[i] = len(out.entries)
		out.index[e.Block.String()] = len(out.entries)
		out.entries = append(out.entries, e)
	}
	return out, remap
}
