package world

import (
	"fmt"
	"io"
	"os"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

// Level is the subset of level.dat this tool reports.
type Level struct {
	Data LevelData `nbt:"Data"`
}

type LevelData struct {
	LevelName   string  `nbt:"LevelName"`
	DataVersion int32   `nbt:"DataVersion"`
	SpawnX      int32   `nbt:"SpawnX"`
	SpawnY      int32   `nbt:"SpawnY"`
	SpawnZ      int32   `nbt:"SpawnZ"`
	LastPlayed  int64   `nbt:"LastPlayed"`
	Version     Version `nbt:"Version"`
}

type Version struct {
	ID   int32  `nbt:"Id"`
	Name string `nbt:"Name"`
}

// LoadLevel reads a gzip-compressed level.dat file.
func LoadLevel(path string) (*Level, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadLevel(file)
}

func ReadLevel(r io.Reader) (*Level, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("level.dat is not gzip compressed: %w", err)
	}
	defer zr.Close()

	var level Level
	if _, err := nbt.NewDecoder(zr).Decode(&level); err != nil {
		return nil, fmt.Errorf("could not decode level.dat: %w", err)
	}
	return &level, nil
}
