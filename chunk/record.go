package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/Tnze/go-mc/nbt"
)

// NBT tag type IDs used when writing compounds by hand.
const (
	tagEnd      byte = 0
	tagByte     byte = 1
	tagCompound byte = 10
)

const sectionsKey = "sections"

// SectionRecord is the serialized form of one section.
type SectionRecord struct {
	Y           int8        `nbt:"Y"`
	BlockStates BlockStates `nbt:"block_states"`
	Biomes      Biomes      `nbt:"biomes"`
	BlockLight  []byte      `nbt:"BlockLight,omitempty"`
	SkyLight    []byte      `nbt:"SkyLight,omitempty"`
}

// BlockStates is a section's serialized block palette and packed cell indices.
// Data is absent when the palette has a single entry.
type BlockStates struct {
	Palette []BlockType `nbt:"palette"`
	Data    []int64     `nbt:"data,omitempty"`
}

// Biomes is a section's serialized biome palette and packed cell indices.
type Biomes struct {
	Palette []string `nbt:"palette"`
	Data    []int64  `nbt:"data,omitempty"`
}

// structures mirrors the chunk "structures" compound.
type structures struct {
	References map[string][]int64          `nbt:"References"`
	Starts     map[string]map[string]int32 `nbt:"starts"`
}

// record is the metadata a freshly created chunk starts with. Decoded
// chunks keep whatever the file held instead.
type record struct {
	DataVersion    int32              `nbt:"DataVersion"`
	XPos           int32              `nbt:"xPos"`
	YPos           int32              `nbt:"yPos"`
	ZPos           int32              `nbt:"zPos"`
	Status         string             `nbt:"Status"`
	LastUpdate     int64              `nbt:"LastUpdate"`
	InhabitedTime  int64              `nbt:"InhabitedTime"`
	IsLightOn      bool               `nbt:"isLightOn"`
	Heightmaps     map[string][]int64 `nbt:"Heightmaps"`
	Structures     structures         `nbt:"structures"`
	BlockEntities  []map[string]int32 `nbt:"block_entities"`
	BlockTicks     []map[string]int32 `nbt:"block_ticks"`
	FluidTicks     []map[string]int32 `nbt:"fluid_ticks"`
	PostProcessing [][]int16          `nbt:"PostProcessing"`
}

func newRecord(x, z int) record {
	return record{
		DataVersion:   DataVersion,
		XPos:          int32(x),
		YPos:          MinSectionY,
		ZPos:          int32(z),
		Status:        StatusFull,
		IsLightOn:     true,
		Heightmaps:    map[string][]int64{},
		BlockEntities: []map[string]int32{},
		BlockTicks:    []map[string]int32{},
		FluidTicks:    []map[string]int32{},
		Structures: structures{
			References: map[string][]int64{},
			Starts:     map[string]map[string]int32{},
		},
		PostProcessing: make([][]int16, SectionCount),
	}
}

// fieldsOf serializes v and splits the resulting compound into raw fields.
func fieldsOf(v any) (map[string]nbt.RawMessage, error) {
	data, err := nbt.Marshal(v)
	if err != nil {
		return nil, err
	}
	return readFields(bytes.NewReader(data))
}

// readFields decodes one root compound into its raw, uninterpreted fields.
func readFields(r io.Reader) (map[string]nbt.RawMessage, error) {
	var fields map[string]nbt.RawMessage
	if _, err := nbt.NewDecoder(r).Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]nbt.RawMessage)
	}
	return fields, nil
}

// fieldInto decodes fields[key] into v. Missing keys leave v untouched.
func fieldInto(fields map[string]nbt.RawMessage, key string, v any) (bool, error) {
	raw, ok := fields[key]
	if !ok {
		return false, nil
	}
	if err := raw.Unmarshal(v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// compoundWriter writes a root compound tag field by field. Errors are
// accumulated; check Err once done.
type compoundWriter struct {
	w   io.Writer
	err error
}

func (cw *compoundWriter) write(p []byte) {
	if cw.err != nil {
		return
	}
	_, cw.err = cw.w.Write(p)
}

func (cw *compoundWriter) header(tagType byte, name string) {
	var buf [3]byte
	buf[0] = tagType
	binary.BigEndian.PutUint16(buf[1:], uint16(len(name)))
	cw.write(buf[:])
	cw.write([]byte(name))
}

func (cw *compoundWriter) raw(name string, m nbt.RawMessage) {
	cw.header(m.Type, name)
	cw.write(m.Data)
}

func (cw *compoundWriter) value(name string, v any) {
	if cw.err != nil {
		return
	}
	cw.err = nbt.NewEncoder(cw.w).Encode(v, name)
}

func (cw *compoundWriter) end() {
	cw.write([]byte{tagEnd})
}

// writeCompound writes fields plus the given sections list as one root
// compound, with keys in sorted order so output is stable.
func writeCompound(w io.Writer, fields map[string]nbt.RawMessage, sections []SectionRecord) error {
	keys := make([]string, 0, len(fields)+1)
	for k := range fields {
		if k != sectionsKey {
			keys = append(keys, k)
		}
	}
	keys = append(keys, sectionsKey)
	slices.Sort(keys)

	cw := &compoundWriter{w: w}
	cw.header(tagCompound, "")
	for _, k := range keys {
		if k == sectionsKey {
			cw.value(k, sections)
			continue
		}
		cw.raw(k, fields[k])
	}
	cw.end()
	return cw.err
}
