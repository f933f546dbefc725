// Package region reads and writes Anvil region files, each holding a 32x32
// grid of chunks.
package region

import (
	"errors"
	"fmt"
	"io"

	"github.com/konkers/randoblock/chunk"
)

const (
	// ChunksPerSide is the width of a region in chunks.
	ChunksPerSide = 32
	// BlocksPerSide is the width of a region in blocks.
	BlocksPerSide = ChunksPerSide * chunk.SectionSize
	SectorSize    = 4096

	maxChunks     = ChunksPerSide * ChunksPerSide
	headerSectors = 2
	maxSectors    = 255
	maxOffset     = 1<<24 - 1
)

var ErrOutOfRange = errors.New("region: block outside region")

// ChunkError attributes a decoding failure to one chunk slot.
type ChunkError struct {
	Index int // slot in the location table
	X, Z  int // absolute chunk coordinates
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d,%d (slot %d): %v", e.X, e.Z, e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ChunkErrors extracts every *ChunkError from an error returned by Read.
func ChunkErrors(err error) []*ChunkError {
	var out []*ChunkError
	var walk func(error)
	walk = func(err error) {
		var cerr *ChunkError
		switch e := err.(type) {
		case nil:
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		default:
			if errors.As(err, &cerr) {
				out = append(out, cerr)
			}
		}
	}
	walk(err)
	return out
}

// isChunkFault reports whether err is confined to a single chunk payload,
// as opposed to a failure of the underlying file.
func isChunkFault(err error) bool {
	return errors.Is(err, ErrCorruptChunk) ||
		errors.Is(err, ErrUnsupportedCompression) ||
		errors.Is(err, chunk.ErrCorruptSection) ||
		errors.Is(err, chunk.ErrUnsupportedFormat)
}

func index(x, z int) int {
	if x < 0 || x >= ChunksPerSide || z < 0 || z >= ChunksPerSide {
		panic(fmt.Sprintf("region: local chunk (%d,%d) out of range", x, z))
	}
	return x + z*ChunksPerSide
}

// Region is an in-memory region: up to 1024 chunks plus the tables that
// were read with them.
type Region struct {
	X, Z int

	chunks     [maxChunks]*chunk.Chunk
	locations  [maxChunks]Location
	timestamps [maxChunks]uint32
}

// New returns an empty region at region coordinates (x, z).
func New(x, z int) *Region {
	return &Region{X: x, Z: z}
}

// Read decodes every chunk in source. Chunks that fail to decode are left
// absent and reported as *ChunkError values joined into the returned error;
// the region is still returned in that case. Failures of source itself
// abort the read and return a nil region.
func Read(source io.ReadSeeker, x, z int) (*Region, error) {
	rd, err := NewReader(source)
	if err != nil {
		return nil, err
	}
	r := New(x, z)
	r.locations = rd.locations
	r.timestamps = rd.timestamps

	var errs []error
	for i, loc := range rd.locations {
		if loc.Empty() {
			continue
		}
		c, err := rd.readAt(loc)
		if err != nil {
			cerr := &ChunkError{
				Index: i,
				X:     x*ChunksPerSide + i%ChunksPerSide,
				Z:     z*ChunksPerSide + i/ChunksPerSide,
				Err:   err,
			}
			if !isChunkFault(err) {
				return nil, cerr
			}
			errs = append(errs, cerr)
			continue
		}
		r.chunks[i] = c
	}
	return r, errors.Join(errs...)
}

// Chunk returns local chunk (x, z), or nil if it is absent.
func (r *Region) Chunk(x, z int) *chunk.Chunk {
	return r.chunks[index(x, z)]
}

// SetChunk stores c at local chunk (x, z). A nil c removes the chunk.
func (r *Region) SetChunk(x, z int, c *chunk.Chunk) {
	r.chunks[index(x, z)] = c
}

// ChunkCount returns the number of chunks present.
func (r *Region) ChunkCount() int {
	n := 0
	for _, c := range r.chunks {
		if c != nil {
			n++
		}
	}
	return n
}

// Timestamp returns the timestamp read or last written for local chunk (x, z).
func (r *Region) Timestamp(x, z int) uint32 {
	return r.timestamps[index(x, z)]
}

// Location returns the table entry read or last written for local chunk (x, z).
func (r *Region) Location(x, z int) Location {
	return r.locations[index(x, z)]
}

// Locations returns the whole location table, indexed by slot.
func (r *Region) Locations() [maxChunks]Location {
	return r.locations
}

// SetBlock places b at region-relative block coordinates. x and z must lie
// in [0, BlocksPerSide) and y in the chunk's vertical range. A missing chunk
// is created, filled with air.
func (r *Region) SetBlock(x, y, z int, b chunk.BlockType) {
	cx, cz := blockToChunk(x, z)
	i := index(cx, cz)
	c := r.chunks[i]
	if c == nil {
		c = chunk.New(r.X*ChunksPerSide+cx, r.Z*ChunksPerSide+cz)
		r.chunks[i] = c
	}
	c.SetBlock(x%chunk.SectionSize, y, z%chunk.SectionSize, b)
}

// CheckBlock reports whether SetBlock accepts (x, y, z). Y is checked
// against the chunk holding the column, or against the range of a new chunk
// when that chunk is absent.
func (r *Region) CheckBlock(x, y, z int) error {
	if x < 0 || x >= BlocksPerSide || z < 0 || z >= BlocksPerSide {
		return fmt.Errorf("%w: x and z must be in [0,%d), got %d,%d", ErrOutOfRange, BlocksPerSide, x, z)
	}
	minY := chunk.MinSectionY * chunk.SectionSize
	maxY := (chunk.MinSectionY+chunk.SectionCount)*chunk.SectionSize - 1
	if c := r.chunks[index(blockToChunk(x, z))]; c != nil {
		minY, maxY = c.MinY(), c.MaxY()
	}
	if y < minY || y > maxY {
		return fmt.Errorf("%w: y must be in [%d,%d] at %d,%d, got %d", ErrOutOfRange, minY, maxY, x, z, y)
	}
	return nil
}

// Block returns the block at region-relative block coordinates. The second
// result is false when the chunk is absent.
func (r *Region) Block(x, y, z int) (chunk.BlockType, bool) {
	cx, cz := blockToChunk(x, z)
	c := r.chunks[index(cx, cz)]
	if c == nil {
		return chunk.Air, false
	}
	return c.Block(x%chunk.SectionSize, y, z%chunk.SectionSize), true
}

// blockToChunk maps 16 blocks to a chunk. The older converter stored blocks
// at slot (x%32)+(z%32)*32 with x/32, z/32 chunk coordinates and z%15 local
// z, so its files place blocks elsewhere than this mapping reads them.
func blockToChunk(x, z int) (int, int) {
	if x < 0 || x >= BlocksPerSide || z < 0 || z >= BlocksPerSide {
		panic(fmt.Sprintf("region: block (%d,%d) outside region", x, z))
	}
	return x / chunk.SectionSize, z / chunk.SectionSize
}

// Compact compacts the palettes of every present chunk.
func (r *Region) Compact() {
	for _, c := range r.chunks {
		if c != nil {
			c.Compact()
		}
	}
}
