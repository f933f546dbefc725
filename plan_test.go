package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tnze/go-mc/nbt"

	"github.com/konkers/randoblock/chunk"
	"github.com/konkers/randoblock/region"
)

const samplePlan = `
region: {x: 2, z: -1}
compact: true
timestamp: 1700000000
blocks:
  - {x: 1, y: 64, z: 2, block: "minecraft:stone"}
  - {x: 3, y: -64, z: 4, block: "minecraft:oak_log[axis=y]"}
fills:
  - {from: [15, 60, 15], to: [0, 61, 0], block: "minecraft:glass"}
`

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(samplePlan))
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if plan.Region == nil || plan.Region.X != 2 || plan.Region.Z != -1 {
		t.Fatalf("unexpected region %+v", plan.Region)
	}
	if !plan.Compact || plan.Timestamp != 1700000000 {
		t.Fatalf("unexpected options %+v", plan)
	}
	if len(plan.Blocks) != 2 || len(plan.Fills) != 1 {
		t.Fatalf("expected 2 blocks and 1 fill, got %d and %d", len(plan.Blocks), len(plan.Fills))
	}
	if want := chunk.NewBlockType("minecraft:oak_log", "axis", "y"); !plan.Blocks[1].block.Equal(want) {
		t.Fatalf("expected %s, got %s", want, plan.Blocks[1].block)
	}
	f := plan.Fills[0]
	if f.From != [3]int{0, 60, 0} || f.To != [3]int{15, 61, 15} {
		t.Fatalf("expected corners to be normalized, got %v..%v", f.From, f.To)
	}
	if f.Volume() != 512 {
		t.Fatalf("expected volume 512, got %d", f.Volume())
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "blockz: []", "blockz"},
		{"bad block", `blocks: [{x: 0, y: 0, z: 0, block: "minecraft:log[axis"}]`, "blocks[0]"},
		{"x out of range", `blocks: [{x: 512, y: 0, z: 0, block: "minecraft:stone"}]`, "blocks[0]"},
		{"z out of range", `blocks: [{x: 0, y: 0, z: -1, block: "minecraft:stone"}]`, "blocks[0]"},
		{"fill corner", `fills: [{from: [0, 0, 0], to: [0, 0, -1], block: "minecraft:stone"}]`, "fills[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseEmptyPlan(t *testing.T) {
	plan, err := ParsePlan(nil)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if n, err := plan.Apply(region.New(0, 0)); err != nil || n != 0 {
		t.Fatalf("expected nothing applied, got %d, %v", n, err)
	}
}

func TestPlanApply(t *testing.T) {
	plan, err := ParsePlan([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	r := region.New(2, -1)
	r.SetBlock(7, 61, 7, chunk.NewBlockType("minecraft:dirt"))

	n, err := plan.Apply(r)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if n != 514 {
		t.Fatalf("expected 514 blocks set, got %d", n)
	}
	tests := []struct {
		x, y, z int
		want    string
	}{
		{1, 64, 2, "minecraft:stone"},
		{3, -64, 4, "minecraft:oak_log[axis=y]"},
		{0, 60, 0, "minecraft:glass"},
		{15, 61, 15, "minecraft:glass"},
		{7, 61, 7, "minecraft:glass"},
		{16, 60, 0, "minecraft:air"},
	}
	for _, tt := range tests {
		b, _ := r.Block(tt.x, tt.y, tt.z)
		if b.String() != tt.want {
			t.Fatalf("(%d,%d,%d): expected %s, got %s", tt.x, tt.y, tt.z, tt.want, b)
		}
	}

	// Compaction removed the overwritten dirt from the palette.
	s := r.Chunk(0, 0).Section(7)
	if _, ok := s.Palette().Index(chunk.NewBlockType("minecraft:dirt")); ok {
		t.Fatal("expected dirt to be compacted away")
	}
}

// raisedChunk decodes a chunk whose lowest section sits at Y=0, so it
// stores world Y [0,383] instead of [-64,319].
func raisedChunk(t *testing.T, x, z int) *chunk.Chunk {
	t.Helper()
	tree := struct {
		DataVersion int32                 `nbt:"DataVersion"`
		XPos        int32                 `nbt:"xPos"`
		YPos        int32                 `nbt:"yPos"`
		ZPos        int32                 `nbt:"zPos"`
		Status      string                `nbt:"Status"`
		Sections    []chunk.SectionRecord `nbt:"sections"`
	}{
		DataVersion: chunk.DataVersion,
		XPos:        int32(x),
		ZPos:        int32(z),
		Status:      chunk.StatusFull,
		Sections: []chunk.SectionRecord{
			{Y: 0, BlockStates: chunk.BlockStates{Palette: []chunk.BlockType{chunk.Air}}},
		},
	}
	var buf bytes.Buffer
	if err := nbt.NewEncoder(&buf).Encode(tree, ""); err != nil {
		t.Fatalf("encode chunk: %v", err)
	}
	c, err := chunk.ReadNBT(&buf)
	if err != nil {
		t.Fatalf("ReadNBT failed: %v", err)
	}
	return c
}

func TestPlanApplyChecksChunkRange(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"below raised chunk", `blocks: [{x: 1, y: -10, z: 1, block: "minecraft:stone"}]`, "blocks[0]"},
		{"above default chunk", `blocks: [{x: 40, y: 320, z: 1, block: "minecraft:stone"}]`, "blocks[0]"},
		{"fill into raised chunk", `fills: [{from: [10, -5, 0], to: [20, 5, 0], block: "minecraft:glass"}]`, "fills[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("ParsePlan failed: %v", err)
			}
			r := region.New(0, 0)
			r.SetChunk(0, 0, raisedChunk(t, 0, 0))

			n, err := plan.Apply(r)
			if !errors.Is(err, region.ErrOutOfRange) {
				t.Fatalf("expected ErrOutOfRange, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
			if n != 0 || r.Chunk(0, 0).Modified() || r.ChunkCount() != 1 {
				t.Fatal("expected the region to be left untouched")
			}
		})
	}

	plan, err := ParsePlan([]byte(`blocks: [{x: 1, y: 350, z: 1, block: "minecraft:stone"}]`))
	if err != nil {
		t.Fatal(err)
	}
	r := region.New(0, 0)
	r.SetChunk(0, 0, raisedChunk(t, 0, 0))
	if _, err := plan.Apply(r); err != nil {
		t.Fatalf("expected y=350 to fit the raised chunk, got %v", err)
	}
	if b, _ := r.Block(1, 350, 1); b.String() != "minecraft:stone" {
		t.Fatalf("expected stone, got %s", b)
	}
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPlan(path); err != nil {
		t.Fatalf("LoadPlan failed: %v", err)
	}
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing plan")
	}
}
