// Package world edits the region files of a world save directory.
package world

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/konkers/randoblock/chunk"
	"github.com/konkers/randoblock/region"
)

const (
	regionDir = "region"
	levelFile = "level.dat"
)

type RegionPos struct {
	X int
	Z int
}

// World is a set of loaded regions backed by a save directory.
type World struct {
	dir     string
	log     *slog.Logger
	regions map[RegionPos]*region.Region
}

// New returns an empty world that will save into dir.
func New(dir string, log *slog.Logger) *World {
	if log == nil {
		log = slog.Default()
	}
	return &World{dir: dir, log: log, regions: make(map[RegionPos]*region.Region)}
}

// Open loads every region file under dir/region. Regions are read in
// parallel. Corrupt chunks are logged and skipped; a region file that
// cannot be read at all fails the whole load.
func Open(dir string, log *slog.Logger) (*World, error) {
	w := New(dir, log)

	entries, err := os.ReadDir(filepath.Join(dir, regionDir))
	if errors.Is(err, fs.ErrNotExist) {
		w.log.Info("world has no region directory", "dir", dir)
		return w, nil
	}
	if err != nil {
		return nil, err
	}

	type regionFile struct {
		path string
		pos  RegionPos
	}
	var files []regionFile
	for _, entry := range entries {
		x, z, err := region.ParseFileName(entry.Name())
		if err != nil || entry.IsDir() {
			w.log.Debug("skipping non-region file", "name", entry.Name())
			continue
		}
		w.log.Debug("discovered region", "name", entry.Name())
		files = append(files, regionFile{path: filepath.Join(dir, regionDir, entry.Name()), pos: RegionPos{x, z}})
	}

	type result struct {
		file   regionFile
		region *region.Region
		err    error
	}

	var wg sync.WaitGroup
	wg.Add(len(files))
	results := make(chan result, len(files))
	for _, file := range files {
		go func(file regionFile) {
			defer wg.Done()
			r, err := region.OpenAt(file.path, file.pos.X, file.pos.Z)
			results <- result{file: file, region: r, err: err}
		}(file)
	}
	wg.Wait()
	close(results)

	var errs []error
	for res := range results {
		if res.region == nil {
			errs = append(errs, fmt.Errorf("could not read %s: %w", res.file.path, res.err))
			continue
		}
		for _, cerr := range region.ChunkErrors(res.err) {
			w.log.Warn("skipping unreadable chunk",
				"region", filepath.Base(res.file.path), "x", cerr.X, "z", cerr.Z, "err", cerr.Err)
		}
		w.regions[res.file.pos] = res.region
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	w.log.Info("loaded world", "dir", dir, "regions", len(w.regions), "chunks", w.ChunkCount())
	return w, nil
}

// Dir returns the save directory.
func (w *World) Dir() string { return w.dir }

// Level reads the world's level.dat.
func (w *World) Level() (*Level, error) {
	return LoadLevel(filepath.Join(w.dir, levelFile))
}

// Region returns the loaded region at (x, z), or nil.
func (w *World) Region(x, z int) *region.Region {
	return w.regions[RegionPos{x, z}]
}

// Regions returns the loaded regions ordered by (z, x).
func (w *World) Regions() []*region.Region {
	out := make([]*region.Region, 0, len(w.regions))
	for _, r := range w.regions {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *region.Region) int {
		return cmp.Or(cmp.Compare(a.Z, b.Z), cmp.Compare(a.X, b.X))
	})
	return out
}

// ChunkCount returns the number of loaded chunks.
func (w *World) ChunkCount() int {
	n := 0
	for _, r := range w.regions {
		n += r.ChunkCount()
	}
	return n
}

// Chunks returns every loaded chunk ordered by (z, x).
func (w *World) Chunks() []*chunk.Chunk {
	var out []*chunk.Chunk
	for _, r := range w.regions {
		for z := 0; z < region.ChunksPerSide; z++ {
			for x := 0; x < region.ChunksPerSide; x++ {
				if c := r.Chunk(x, z); c != nil {
					out = append(out, c)
				}
			}
		}
	}
	slices.SortFunc(out, func(a, b *chunk.Chunk) int {
		return cmp.Or(cmp.Compare(a.Z(), b.Z()), cmp.Compare(a.X(), b.X()))
	})
	return out
}

// split maps a world block coordinate to its region and the offset inside
// that region. The shift floors negative coordinates.
func split(v int) (int, int) {
	return v >> 9, v & (region.BlocksPerSide - 1)
}

// SetBlock places b at absolute world coordinates, creating the region and
// chunk if they are not loaded.
func (w *World) SetBlock(x, y, z int, b chunk.BlockType) {
	rx, lx := split(x)
	rz, lz := split(z)
	pos := RegionPos{rx, rz}
	r := w.regions[pos]
	if r == nil {
		r = region.New(rx, rz)
		w.regions[pos] = r
	}
	r.SetBlock(lx, y, lz, b)
}

// Block returns the block at absolute world coordinates. The second result
// is false when the chunk is not loaded.
func (w *World) Block(x, y, z int) (chunk.BlockType, bool) {
	rx, lx := split(x)
	rz, lz := split(z)
	r := w.regions[RegionPos{rx, rz}]
	if r == nil {
		return chunk.Air, false
	}
	return r.Block(lx, y, lz)
}

// Compact compacts every loaded chunk.
func (w *World) Compact() {
	for _, r := range w.regions {
		r.Compact()
	}
}

// Save writes every loaded region back to dir/region.
func (w *World) Save(timestamp uint32) error {
	dir := filepath.Join(w.dir, regionDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, r := range w.Regions() {
		path := filepath.Join(dir, region.FileName(r.X, r.Z))
		if err := r.Save(path, timestamp); err != nil {
			return fmt.Errorf("could not save %s: %w", path, err)
		}
		w.log.Debug("saved region", "path", path, "chunks", r.ChunkCount())
	}
	return nil
}
