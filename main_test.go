package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/konkers/randoblock/chunk"
	"github.com/konkers/randoblock/region"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"randoblock"}, args...))
	return out.String(), err
}

func TestSetblockAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), region.FileName(-1, 0))
	if err := region.New(-1, 0).Save(path, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "setblock", path, "20", "70", "3", "minecraft:oak_log[axis=z]"); err != nil {
		t.Fatalf("setblock failed: %v", err)
	}
	r, err := region.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := r.Block(20, 70, 3); b.String() != "minecraft:oak_log[axis=z]" {
		t.Fatalf("expected oak log, got %s", b)
	}

	out, err := run(t, "inspect", path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out, "-31,0") {
		t.Fatalf("expected chunk -31,0 in output:\n%s", out)
	}
	if !strings.Contains(out, "1 chunks, 0 unreadable") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestSetblockRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), region.FileName(0, 0))
	tests := [][]string{
		{"setblock", path, "512", "0", "0", "minecraft:stone"},
		{"setblock", path, "0", "x", "0", "minecraft:stone"},
		{"setblock", path, "0", "0", "0", "minecraft:stone[bad"},
		{"setblock", path, "0", "0"},
	}
	for _, args := range tests {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestSetblockRespectsChunkRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), region.FileName(0, 0))
	r := region.New(0, 0)
	r.SetChunk(0, 0, raisedChunk(t, 0, 0))
	if err := r.Save(path, 1); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "setblock", path, "1", "-10", "1", "minecraft:stone")
	if !errors.Is(err, region.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := run(t, "setblock", path, "1", "350", "1", "minecraft:stone"); err != nil {
		t.Fatalf("setblock failed: %v", err)
	}
	got, err := region.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := got.Block(1, 350, 1); b.String() != "minecraft:stone" {
		t.Fatalf("expected stone, got %s", b)
	}
}

func TestApplyRejectsOutOfRangePlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, region.FileName(0, 0))
	r := region.New(0, 0)
	r.SetChunk(0, 0, raisedChunk(t, 0, 0))
	if err := r.Save(path, 1); err != nil {
		t.Fatal(err)
	}
	planPath := filepath.Join(dir, "plan.yaml")
	plan := `blocks: [{x: 2, y: -20, z: 2, block: "minecraft:stone"}]`
	if err := os.WriteFile(planPath, []byte(plan), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "apply", "--plan", planPath, path); !errors.Is(err, region.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestApplyCreatesRegion(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(planPath, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "custom.mca")

	if _, err := run(t, "apply", "--plan", planPath, path); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	r, err := region.OpenAt(path, 2, -1)
	if err != nil {
		t.Fatal(err)
	}
	c := r.Chunk(0, 0)
	if c == nil || c.X() != 64 || c.Z() != -32 {
		t.Fatal("expected chunk (64,-32) created from the plan's region")
	}
	if ts := r.Timestamp(0, 0); ts != 1700000000 {
		t.Fatalf("expected plan timestamp, got %d", ts)
	}
}

func TestRewriteCompact(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, region.FileName(0, 0))
	r := region.New(0, 0)
	r.SetBlock(0, 0, 0, chunk.NewBlockType("minecraft:stone"))
	r.SetBlock(0, 0, 0, chunk.Air)
	if err := r.Save(in, 1); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.mca")
	if _, err := run(t, "rewrite", "--compact", in, out); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	got, err := region.OpenAt(out, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Chunk(0, 0).Section(4).IsUniform() {
		t.Fatal("expected compacted section")
	}
}

func TestEditRefusesCorruptChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, region.FileName(0, 0))
	r := region.New(0, 0)
	r.SetBlock(0, 0, 0, chunk.NewBlockType("minecraft:stone"))
	r.SetBlock(16, 0, 0, chunk.NewBlockType("minecraft:stone"))
	if err := r.Save(path, 1); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[r.Location(0, 0).ByteOffset()+4] = 7
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.mca")
	if _, err := run(t, "rewrite", path, out); err == nil {
		t.Fatal("expected rewrite to refuse corrupt input")
	}
	if _, err := run(t, "rewrite", "--skip-corrupt", path, out); err != nil {
		t.Fatalf("rewrite --skip-corrupt failed: %v", err)
	}
	got, err := region.OpenAt(out, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkCount() != 1 {
		t.Fatalf("expected the corrupt chunk to be dropped, got %d chunks", got.ChunkCount())
	}

	summary, err := run(t, "inspect", path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(summary, "2 chunks, 1 unreadable") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
}
