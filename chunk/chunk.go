// Package chunk models the block contents of a chunk column: 24 stacked
// sections, each storing its blocks as palette indices, plus the rest of
// the chunk's tag tree carried through untouched.
package chunk

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/Tnze/go-mc/nbt"
)

const (
	// SectionCount is the number of sections in a chunk column.
	SectionCount = 24
	// MinSectionY is the section Y of the lowest slot in a new chunk.
	MinSectionY = -4

	// DataVersion is stamped on chunks created by New.
	DataVersion = 2865
	// MinDataVersion is the first data version using the flat
	// "sections" layout this package reads.
	MinDataVersion = 2860

	StatusFull = "full"
)

var ErrUnsupportedFormat = errors.New("chunk: unsupported chunk format")

// Chunk is a 16x384x16 column of blocks.
type Chunk struct {
	x, z int
	yPos int

	sections [SectionCount]*Section
	// outside holds section records whose Y falls outside the 24 slots,
	// such as the light-only sections above and below the world.
	outside []SectionRecord

	fields map[string]nbt.RawMessage
}

// New returns an empty chunk at chunk coordinates (x, z) filled with air.
func New(x, z int) *Chunk {
	fields, err := fieldsOf(newRecord(x, z))
	if err != nil {
		panic(fmt.Sprintf("chunk: encode default record: %v", err))
	}
	c := &Chunk{x: x, z: z, yPos: MinSectionY, fields: fields}
	for i := range c.sections {
		c.sections[i] = NewSection()
	}
	return c
}

// ReadNBT decodes a chunk from its serialized tag tree.
func ReadNBT(r io.Reader) (*Chunk, error) {
	fields, err := readFields(r)
	if err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return FromFields(fields)
}

// FromFields builds a chunk from the raw fields of its root compound.
// Sections are placed by their Y tag; missing slots are filled with air.
func FromFields(fields map[string]nbt.RawMessage) (*Chunk, error) {
	if _, ok := fields[sectionsKey]; !ok {
		return nil, fmt.Errorf("%w: no %q list", ErrUnsupportedFormat, sectionsKey)
	}

	var version, x, y, z int32
	y = MinSectionY
	for key, dst := range map[string]*int32{"DataVersion": &version, "xPos": &x, "yPos": &y, "zPos": &z} {
		if _, err := fieldInto(fields, key, dst); err != nil {
			return nil, err
		}
	}
	if version < MinDataVersion {
		return nil, fmt.Errorf("%w: data version %d", ErrUnsupportedFormat, version)
	}

	var recs []SectionRecord
	if _, err := fieldInto(fields, sectionsKey, &recs); err != nil {
		return nil, err
	}

	c := &Chunk{x: int(x), z: int(z), yPos: int(y), fields: fields}
	for _, rec := range recs {
		slot := int(rec.Y) - c.yPos
		if slot < 0 || slot >= SectionCount {
			c.outside = append(c.outside, rec)
			continue
		}
		if c.sections[slot] != nil {
			return nil, fmt.Errorf("%w: duplicate section Y=%d", ErrCorruptSection, rec.Y)
		}
		s, err := SectionFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("section Y=%d: %w", rec.Y, err)
		}
		c.sections[slot] = s
	}
	for i := range c.sections {
		if c.sections[i] == nil {
			c.sections[i] = NewSection()
		}
	}
	return c, nil
}

// X returns the chunk X coordinate.
func (c *Chunk) X() int { return c.x }

// Z returns the chunk Z coordinate.
func (c *Chunk) Z() int { return c.z }

// YPos returns the section Y of slot 0.
func (c *Chunk) YPos() int { return c.yPos }

// MinY returns the lowest world Y the chunk stores.
func (c *Chunk) MinY() int { return c.yPos * SectionSize }

// MaxY returns the highest world Y the chunk stores.
func (c *Chunk) MaxY() int { return (c.yPos+SectionCount)*SectionSize - 1 }

// Section returns the section in slot i, covering world Y
// [16*(YPos()+i), 16*(YPos()+i)+16).
func (c *Chunk) Section(i int) *Section { return c.sections[i] }

// Status returns the generation status stored with the chunk.
func (c *Chunk) Status() string {
	var s string
	_, _ = fieldInto(c.fields, "Status", &s)
	return s
}

// DataVersion returns the data version stored with the chunk.
func (c *Chunk) DataVersion() int {
	var v int32
	_, _ = fieldInto(c.fields, "DataVersion", &v)
	return int(v)
}

// Field returns a raw field of the chunk's root compound.
func (c *Chunk) Field(name string) (nbt.RawMessage, bool) {
	m, ok := c.fields[name]
	return m, ok
}

// Modified reports whether any block changed since the chunk was created
// or decoded.
func (c *Chunk) Modified() bool {
	for _, s := range c.sections {
		if s.Modified() {
			return true
		}
	}
	return false
}

func (c *Chunk) locate(y int) (*Section, int) {
	if y < c.MinY() {
		panic(fmt.Sprintf("chunk: y=%d below chunk bottom %d", y, c.MinY()))
	}
	if y > c.MaxY() {
		panic(fmt.Sprintf("chunk: y=%d above chunk top %d", y, c.MaxY()))
	}
	local := y - c.MinY()
	return c.sections[local/SectionSize], local % SectionSize
}

// Block returns the block at chunk-local x, z and world y.
func (c *Chunk) Block(x, y, z int) BlockType {
	s, sy := c.locate(y)
	return s.Block(x, sy, z)
}

// SetBlock sets the block at chunk-local x, z and world y. It panics if y
// is outside the chunk or x, z are outside [0,16).
func (c *Chunk) SetBlock(x, y, z int, b BlockType) {
	s, sy := c.locate(y)
	s.SetBlock(x, sy, z, b)
}

// Compact compacts every section's palette.
func (c *Chunk) Compact() {
	for _, s := range c.sections {
		s.Compact()
	}
}

// SectionRecords serializes all sections, including preserved out-of-range
// records, in increasing Y order.
func (c *Chunk) SectionRecords() []SectionRecord {
	recs := make([]SectionRecord, 0, SectionCount+len(c.outside))
	recs = append(recs, c.outside...)
	for i, s := range c.sections {
		recs = append(recs, s.Record(int8(c.yPos+i)))
	}
	slices.SortStableFunc(recs, func(a, b SectionRecord) int {
		return cmp.Compare(a.Y, b.Y)
	})
	return recs
}

// WriteNBT serializes the chunk's tag tree. Fields other than the
// sections are written exactly as they were read; if blocks were changed
// the light-on flag is cleared so lighting is recomputed.
func (c *Chunk) WriteNBT(w io.Writer) error {
	fields := c.fields
	if c.Modified() {
		fields = make(map[string]nbt.RawMessage, len(c.fields)+1)
		for k, v := range c.fields {
			fields[k] = v
		}
		fields["isLightOn"] = nbt.RawMessage{Type: tagByte, Data: []byte{0}}
	}
	return writeCompound(w, fields, c.SectionRecords())
}
