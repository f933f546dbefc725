package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/konkers/randoblock/chunk"
)

var ErrChunkTooLarge = errors.New("region: chunk exceeds 255 sectors")

// Write encodes the region to w. Chunks are laid out in slot order starting
// at sector 2, each padded to a whole number of sectors. All 1024 timestamp
// slots receive timestamp, present or not. The location and timestamp
// tables are written last, once every offset is known.
func (r *Region) Write(w io.WriteSeeker, timestamp uint32) (err error) {
	rw := &regionWriter{w: w}
	return rw.writeRegion(r, timestamp)
}

type regionWriter struct {
	w       io.WriteSeeker
	zw      *zlib.Writer
	payload bytes.Buffer
}

func (rw *regionWriter) writeRegion(r *Region, timestamp uint32) (err error) {
	if _, err = rw.w.Seek(0, io.SeekStart); err != nil {
		return
	}
	// Reserve the header; it is filled in once offsets are known.
	if _, err = rw.w.Write(make([]byte, headerSectors*SectorSize)); err != nil {
		return fmt.Errorf("write header placeholder: %w", err)
	}

	var h header
	var locations [maxChunks]Location
	for i := range h.Timestamps {
		h.Timestamps[i] = timestamp
	}
	next := uint32(headerSectors)
	for i, c := range r.chunks {
		if c == nil {
			continue
		}
		cerr := func(err error) error {
			return &ChunkError{Index: i, X: c.X(), Z: c.Z(), Err: err}
		}

		if err = rw.encode(c); err != nil {
			return cerr(err)
		}
		sectors := (rw.payload.Len() + SectorSize - 1) / SectorSize
		if sectors > maxSectors {
			return cerr(fmt.Errorf("%w: %d sectors", ErrChunkTooLarge, sectors))
		}
		if next+uint32(sectors) > maxOffset {
			return cerr(errors.New("region: file exceeds addressable sectors"))
		}
		if pad := sectors*SectorSize - rw.payload.Len(); pad > 0 {
			rw.payload.Write(make([]byte, pad))
		}
		if _, err = rw.w.Write(rw.payload.Bytes()); err != nil {
			return cerr(err)
		}

		locations[i] = Location{Offset: next, Sectors: uint8(sectors)}
		h.Locations[i] = locations[i].entry()
		next += uint32(sectors)
	}

	if _, err = rw.w.Seek(0, io.SeekStart); err != nil {
		return
	}
	if err = binary.Write(rw.w, binary.BigEndian, &h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err = rw.w.Seek(0, io.SeekEnd); err != nil {
		return
	}

	r.locations = locations
	r.timestamps = h.Timestamps
	return nil
}

// encode leaves the framed payload of c in rw.payload: a big-endian length,
// the compression type and the zlib stream.
func (rw *regionWriter) encode(c *chunk.Chunk) (err error) {
	rw.payload.Reset()
	rw.payload.Write([]byte{0, 0, 0, 0, byte(CompressionZlib)})

	if rw.zw == nil {
		rw.zw = zlib.NewWriter(&rw.payload)
	} else {
		rw.zw.Reset(&rw.payload)
	}
	if err = c.WriteNBT(rw.zw); err != nil {
		return
	}
	if err = rw.zw.Close(); err != nil {
		return
	}

	data := rw.payload.Bytes()
	binary.BigEndian.PutUint32(data, uint32(len(data)-4))
	return nil
}
