package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/konkers/randoblock/chunk"
)

var ErrNoChunk = errors.New("region: chunk not found")
var ErrCorruptChunk = errors.New("region: corrupt chunk")
var ErrInvalidCompression = errors.New("region: invalid compression format")
var ErrUnsupportedCompression = errors.New("region: unsupported compression format")

type CompressionType byte

const (
	CompressionGzip CompressionType = 1
	CompressionZlib CompressionType = 2
	CompressionNone CompressionType = 3
)

func (c CompressionType) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "uncompressed"
	default:
		return fmt.Sprintf("compression(%d)", byte(c))
	}
}

// Location is a chunk's position in a region file, in sectors.
// A zero sector count means the chunk is absent.
type Location struct {
	Offset  uint32
	Sectors uint8
}

func locationFromEntry(entry uint32) Location {
	return Location{Offset: entry >> 8, Sectors: uint8(entry)}
}

func (l Location) entry() uint32 {
	return l.Offset<<8 | uint32(l.Sectors)
}

// Empty reports whether no chunk is stored at this location.
func (l Location) Empty() bool { return l.Sectors == 0 }

// ByteOffset returns the offset of the chunk payload from the start of the file.
func (l Location) ByteOffset() int64 { return int64(l.Offset) * SectorSize }

// ByteSize returns the number of bytes allocated to the chunk payload.
func (l Location) ByteSize() int64 { return int64(l.Sectors) * SectorSize }

// header is the two leading sectors of a region file.
type header struct {
	Locations  [maxChunks]uint32
	Timestamps [maxChunks]uint32
}

// Reader gives random access to the chunks of one region file. The reader
// is not safe for concurrent use.
type Reader struct {
	source     io.ReadSeeker
	locations  [maxChunks]Location
	timestamps [maxChunks]uint32
	Name       string
}

// NewReader parses the location and timestamp tables of source. The
// reader takes ownership of source; Close closes it if possible.
func NewReader(source io.ReadSeeker) (reader *Reader, err error) {
	reader = &Reader{source: source}
	if file, ok := source.(*os.File); ok {
		reader.Name = file.Name()
	}
	if err = reader.readHeader(); err != nil {
		return nil, err
	}
	return reader, nil
}

func (rd *Reader) readHeader() (err error) {
	if _, err = rd.source.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var h header
	if err = binary.Read(rd.source, binary.BigEndian, &h); err != nil {
		return fmt.Errorf("read region header: %w", err)
	}
	for i, entry := range h.Locations {
		rd.locations[i] = locationFromEntry(entry)
	}
	rd.timestamps = h.Timestamps
	return nil
}

// ChunkExists reports whether the table has an entry for local chunk (x, z).
func (rd *Reader) ChunkExists(x, z int) bool {
	return !rd.locations[index(x, z)].Empty()
}

// Location returns the table entry for local chunk (x, z).
func (rd *Reader) Location(x, z int) Location {
	return rd.locations[index(x, z)]
}

// Timestamp returns the last-modified time recorded for local chunk (x, z),
// in seconds since the Unix epoch.
func (rd *Reader) Timestamp(x, z int) uint32 {
	return rd.timestamps[index(x, z)]
}

// ReadChunk decodes local chunk (x, z). Coordinates are relative to the
// region, not chunk coordinates.
func (rd *Reader) ReadChunk(x, z int) (c *chunk.Chunk, err error) {
	loc := rd.locations[index(x, z)]
	if loc.Empty() {
		err = ErrNoChunk
		return
	}
	return rd.readAt(loc)
}

func (rd *Reader) readAt(loc Location) (c *chunk.Chunk, err error) {
	if loc.Offset < headerSectors {
		return nil, fmt.Errorf("%w: offset %d overlaps the header", ErrCorruptChunk, loc.Offset)
	}
	if _, err = rd.source.Seek(loc.ByteOffset(), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek: %w", err)
	}

	// Payload Header

	var payloadInfo struct {
		Length      uint32
		Compression CompressionType
	}
	if err = binary.Read(rd.source, binary.BigEndian, &payloadInfo); err != nil {
		return nil, truncated("payload header", err)
	}
	if payloadInfo.Length == 0 || int64(payloadInfo.Length)+4 > loc.ByteSize() {
		return nil, fmt.Errorf("%w: payload length %d does not fit %d sectors",
			ErrCorruptChunk, payloadInfo.Length, loc.Sectors)
	}

	// Payload

	payloadData := make([]byte, payloadInfo.Length-1)
	if _, err = io.ReadFull(rd.source, payloadData); err != nil {
		return nil, truncated("payload data", err)
	}

	var chunkStream io.Reader
	switch payloadInfo.Compression {
	case CompressionZlib:
		var zr io.ReadCloser
		if zr, err = zlib.NewReader(bytes.NewReader(payloadData)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, err)
		}
		defer zr.Close()
		chunkStream = zr
	case CompressionGzip, CompressionNone:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, payloadInfo.Compression)
	default:
		return nil, fmt.Errorf("%w: %w: %s", ErrCorruptChunk, ErrInvalidCompression, payloadInfo.Compression)
	}

	if c, err = chunk.ReadNBT(chunkStream); err != nil {
		if isChunkFault(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, err)
	}
	return c, nil
}

// truncated classifies a short read inside a payload as corruption and
// passes any other read failure through.
func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorruptChunk, what)
	}
	return fmt.Errorf("could not read %s: %w", what, err)
}

func (rd *Reader) Close() error {
	if closer, ok := rd.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
