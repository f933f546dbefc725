package chunk

import (
	"errors"
	"fmt"

	"github.com/konkers/randoblock/bitpack"
)

const (
	// SectionSize is the edge length of a section.
	SectionSize = 16
	// SectionVolume is the number of cells in a section.
	SectionVolume = SectionSize * SectionSize * SectionSize

	// maxPaletteLen bounds palette growth at one entry per cell, which keeps
	// indices within 12 bits.
	maxPaletteLen = SectionVolume
)

// DefaultBiome fills the biome palette of freshly created sections.
const DefaultBiome = "minecraft:plains"

var ErrCorruptSection = errors.New("chunk: corrupt section")

// blockStorage is either uniformBlocks or *packedBlocks.
type blockStorage interface {
	blockAt(i int) BlockType
}

// uniformBlocks is a section where every cell holds the same block.
type uniformBlocks struct {
	block BlockType
}

func (u uniformBlocks) blockAt(int) BlockType { return u.block }

// packedBlocks holds one palette index per cell.
type packedBlocks struct {
	palette *Palette
	cells   []uint16
}

func (p *packedBlocks) blockAt(i int) BlockType { return p.palette.entries[p.cells[i]].Block }

// Section is one 16x16x16 cube of a chunk.
type Section struct {
	biomes     Biomes
	blocks     blockStorage
	blockLight []byte
	skyLight   []byte
	modified   bool
}

// NewSection returns a section filled with air.
func NewSection() *Section {
	return NewUniformSection(Air)
}

// NewUniformSection returns a section with every cell set to b.
func NewUniformSection(b BlockType) *Section {
	return &Section{
		biomes: Biomes{Palette: []string{DefaultBiome}},
		blocks: uniformBlocks{block: b.clone()},
	}
}

// SectionFromRecord expands a serialized section into an editable one.
//
// A record without data is uniform in its first palette entry. Otherwise
// the cells are decoded at the width implied by the serialized palette and
// the palette is rebuilt in the order block types are first seen.
func SectionFromRecord(rec SectionRecord) (*Section, error) {
	s := &Section{
		biomes:     rec.Biomes,
		blockLight: rec.BlockLight,
		skyLight:   rec.SkyLight,
	}
	if len(s.biomes.Palette) == 0 {
		s.biomes = Biomes{Palette: []string{DefaultBiome}}
	}

	states := rec.BlockStates
	switch {
	case len(states.Palette) == 0 && len(states.Data) == 0:
		s.blocks = uniformBlocks{block: Air}
		return s, nil
	case len(states.Palette) == 0:
		return nil, fmt.Errorf("%w: packed data without a palette", ErrCorruptSection)
	case len(states.Data) == 0:
		s.blocks = uniformBlocks{block: states.Palette[0].clone()}
		return s, nil
	}

	width := bitpack.BitsFor(len(states.Palette))
	indices, err := bitpack.Unpack(width, states.Data, SectionVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSection, err)
	}

	palette := NewPalette()
	cells := make([]uint16, SectionVolume)
	for i, idx := range indices {
		if int(idx) >= len(states.Palette) {
			return nil, fmt.Errorf("%w: cell %d references palette index %d of %d",
				ErrCorruptSection, i, idx, len(states.Palette))
		}
		cells[i] = uint16(palette.Increment(states.Palette[idx]))
	}
	s.blocks = &packedBlocks{palette: palette, cells: cells}
	return s, nil
}

// cellIndex uses the game's y*256 + z*16 + x order. Files written by the
// older converter addressed cells as y*64 + z*16 + x, which aliases cells and
// does not round-trip through this layout.
func cellIndex(x, y, z int) int {
	if x < 0 || x >= SectionSize || y < 0 || y >= SectionSize || z < 0 || z >= SectionSize {
		panic(fmt.Sprintf("chunk: section coordinates (%d,%d,%d) out of range", x, y, z))
	}
	return y*SectionSize*SectionSize + z*SectionSize + x
}

// Block returns the block at section-local coordinates.
// It panics if a coordinate is outside [0,16).
func (s *Section) Block(x, y, z int) BlockType {
	return s.blocks.blockAt(cellIndex(x, y, z))
}

// SetBlock sets the block at section-local coordinates.
// It panics if a coordinate is outside [0,16).
func (s *Section) SetBlock(x, y, z int, b BlockType) {
	i := cellIndex(x, y, z)

	packed, ok := s.blocks.(*packedBlocks)
	if !ok {
		u := s.blocks.(uniformBlocks)
		if u.block.Equal(b) {
			return
		}
		packed = &packedBlocks{
			palette: newPaletteWith(u.block, SectionVolume),
			cells:   make([]uint16, SectionVolume),
		}
		s.blocks = packed
	}

	packed.palette.Decrement(int(packed.cells[i]))
	if _, known := packed.palette.Index(b); !known && packed.palette.Len() >= maxPaletteLen {
		packed.compact()
	}
	packed.cells[i] = uint16(packed.palette.Increment(b))
	s.modified = true
}

// IsUniform reports whether every cell holds the same block without a
// materialized index array.
func (s *Section) IsUniform() bool {
	_, ok := s.blocks.(uniformBlocks)
	return ok
}

// Palette returns the section's block palette. A uniform section reports a
// single entry referenced by every cell.
func (s *Section) Palette() *Palette {
	switch b := s.blocks.(type) {
	case *packedBlocks:
		return b.palette
	default:
		return newPaletteWith(b.blockAt(0), SectionVolume)
	}
}

// Biomes returns the section's biome palette and data as stored.
func (s *Section) Biomes() Biomes {
	return s.biomes
}

// Modified reports whether any block was changed since the section was
// created or decoded.
func (s *Section) Modified() bool {
	return s.modified
}

// Compact drops unreferenced palette entries and renumbers cells. A section
// left with a single referenced block becomes uniform.
func (s *Section) Compact() {
	packed, ok := s.blocks.(*packedBlocks)
	if !ok {
		return
	}
	packed.compact()
	if packed.palette.Len() == 1 {
		s.blocks = uniformBlocks{block: packed.palette.entries[0].Block}
	}
}

func (p *packedBlocks) compact() {
	palette, remap := p.palette.Compact()
	for i, c := range p.cells {
		p.cells[i] = uint16(remap[c])
	}
	p.palette = palette
}

// Record serializes the section for slot y. The palette is written in its
// in-memory order, unreferenced entries included; call Compact first to
// drop them. Light arrays are only kept while the section is unmodified.
func (s *Section) Record(y int8) SectionRecord {
	rec := SectionRecord{
		Y:      y,
		Biomes: s.biomes,
	}
	if !s.modified {
		rec.BlockLight = s.blockLight
		rec.SkyLight = s.skyLight
	}

	switch b := s.blocks.(type) {
	case uniformBlocks:
		rec.BlockStates.Palette = []BlockType{b.block}
	case *packedBlocks:
		rec.BlockStates.Palette = b.palette.Blocks()
		rec.BlockStates.Data = bitpack.Pack(bitpack.BitsFor(b.palette.Len()), b.cells)
	}
	return rec
}
