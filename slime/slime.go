// Package slime exports chunks in the slime world format: a small header
// followed by zstd-compressed blocks of chunk, tile entity, entity and
// extra data.
package slime

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/zstd"

	"github.com/konkers/randoblock/chunk"
)

const (
	Magic   = 0xB10B
	Version = 1

	lightLen = 2048

	tagEnd      byte = 0
	tagList     byte = 9
	tagCompound byte = 10
)

var ErrBadLight = errors.New("slime: light array is not 2048 bytes")

// chunkKey orders chunks the way slime readers expect.
func chunkKey(c *chunk.Chunk) int64 {
	return int64(c.Z())*0x7fffffff + int64(c.X())
}

// Write encodes chunks as a slime world. Chunks without any block data
// are skipped.
func Write(w io.Writer, chunks []*chunk.Chunk) error {
	zw, err := zstd.NewWriter(io.Discard)
	if err != nil {
		return err
	}
	defer zw.Close()

	sorted := slices.Clone(chunks)
	slices.SortFunc(sorted, func(a, b *chunk.Chunk) int {
		return cmp.Compare(chunkKey(a), chunkKey(b))
	})
	sw := &slimeWriter{w: w, zw: zw, chunks: sorted}
	return sw.writeWorld()
}

type slimeWriter struct {
	w      io.Writer
	zw     *zstd.Encoder
	chunks []*chunk.Chunk
}

func (sw *slimeWriter) writeWorld() error {
	for _, step := range []func() error{
		sw.writeHeader,
		sw.writeChunks,
		sw.writeTileEntities,
		sw.writeEntities,
		sw.writeExtra,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (sw *slimeWriter) writeHeader() error {
	header := struct {
		Magic   uint16
		Version uint8
	}{Magic, Version}
	return binary.Write(sw.w, binary.BigEndian, header)
}

// blockSections returns the section records of c that carry block data.
func blockSections(c *chunk.Chunk) []chunk.SectionRecord {
	var out []chunk.SectionRecord
	for _, rec := range c.SectionRecords() {
		if len(rec.BlockStates.Palette) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

func (sw *slimeWriter) writeChunks() error {
	type entry struct {
		chunk    *chunk.Chunk
		sections []chunk.SectionRecord
	}
	var entries []entry
	for _, c := range sw.chunks {
		if secs := blockSections(c); len(secs) > 0 {
			entries = append(entries, entry{c, secs})
		}
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(len(entries)))
	for _, e := range entries {
		if err := sw.writeChunk(&out, e.chunk, e.sections); err != nil {
			return fmt.Errorf("chunk %d,%d: %w", e.chunk.X(), e.chunk.Z(), err)
		}
	}
	return sw.writeCompressed(&out)
}

func (sw *slimeWriter) writeChunk(out *bytes.Buffer, c *chunk.Chunk, sections []chunk.SectionRecord) error {
	binary.Write(out, binary.BigEndian, int32(c.X()))
	binary.Write(out, binary.BigEndian, int32(c.Z()))

	heightmaps, ok := c.Field("Heightmaps")
	if !ok {
		heightmaps = nbt.RawMessage{Type: tagCompound, Data: []byte{tagEnd}}
	}
	if err := sizedNBT(out, func(buf *bytes.Buffer) error {
		writeRaw(buf, "Heightmaps", heightmaps)
		return nil
	}); err != nil {
		return err
	}

	binary.Write(out, binary.BigEndian, uint32(len(sections)))
	for _, rec := range sections {
		for _, light := range [][]byte{rec.BlockLight, rec.SkyLight} {
			if light == nil {
				out.WriteByte(0)
				continue
			}
			if len(light) != lightLen {
				return fmt.Errorf("section Y=%d: %w", rec.Y, ErrBadLight)
			}
			out.WriteByte(1)
			out.Write(light)
		}
		if err := sizedNBT(out, func(buf *bytes.Buffer) error {
			return nbt.NewEncoder(buf).Encode(rec.BlockStates, "block_states")
		}); err != nil {
			return err
		}
		if err := sizedNBT(out, func(buf *bytes.Buffer) error {
			return nbt.NewEncoder(buf).Encode(rec.Biomes, "biomes")
		}); err != nil {
			return err
		}
	}
	return nil
}

// sizedNBT writes the tag produced by encode prefixed with its length.
func sizedNBT(out *bytes.Buffer, encode func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}
	binary.Write(out, binary.BigEndian, uint32(buf.Len()))
	_, err := buf.WriteTo(out)
	return err
}

func (sw *slimeWriter) writeTileEntities() error {
	var tiles []nbt.RawMessage
	for _, c := range sw.chunks {
		raw, ok := c.Field("block_entities")
		if !ok {
			continue
		}
		var list []nbt.RawMessage
		if err := raw.Unmarshal(&list); err != nil {
			return fmt.Errorf("chunk %d,%d: block entities: %w", c.X(), c.Z(), err)
		}
		tiles = append(tiles, list...)
	}
	return sw.writeCompoundList("tiles", tiles)
}

// writeEntities writes an empty entity list; entities are stored outside
// the chunk records this package reads.
func (sw *slimeWriter) writeEntities() error {
	return sw.writeCompoundList("entities", nil)
}

func (sw *slimeWriter) writeExtra() error {
	var buf bytes.Buffer
	tagHeader(&buf, tagCompound, "extra")
	buf.WriteByte(tagEnd)
	return sw.writeCompressed(&buf)
}

// writeCompoundList writes a root compound named name holding a single
// list of compounds, also called name.
func (sw *slimeWriter) writeCompoundList(name string, elems []nbt.RawMessage) error {
	var buf bytes.Buffer
	tagHeader(&buf, tagCompound, name)
	tagHeader(&buf, tagList, name)
	buf.WriteByte(tagCompound)
	binary.Write(&buf, binary.BigEndian, int32(len(elems)))
	for _, e := range elems {
		if e.Type != tagCompound {
			return fmt.Errorf("slime: %s entry has tag type %d", name, e.Type)
		}
		buf.Write(e.Data)
	}
	buf.WriteByte(tagEnd)
	return sw.writeCompressed(&buf)
}

func (sw *slimeWriter) writeCompressed(buf *bytes.Buffer) error {
	uncompressedSize := buf.Len()

	var compressed bytes.Buffer
	sw.zw.Reset(&compressed)
	if _, err := buf.WriteTo(sw.zw); err != nil {
		return err
	}
	if err := sw.zw.Close(); err != nil {
		return err
	}
	sw.zw.Reset(io.Discard)

	sizes := [2]uint32{uint32(compressed.Len()), uint32(uncompressedSize)}
	if err := binary.Write(sw.w, binary.BigEndian, sizes); err != nil {
		return err
	}
	_, err := compressed.WriteTo(sw.w)
	return err
}

func tagHeader(buf *bytes.Buffer, tagType byte, name string) {
	buf.WriteByte(tagType)
	binary.Write(buf, binary.BigEndian, uint16(len(name)))
	buf.WriteString(name)
}

func writeRaw(buf *bytes.Buffer, name string, m nbt.RawMessage) {
	tagHeader(buf, m.Type, name)
	buf.Write(m.Data)
}
