package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/konkers/randoblock/chunk"
	"github.com/konkers/randoblock/region"
)

// Plan is a batch of block placements for one region, read from YAML.
type Plan struct {
	Region    *PlanRegion `yaml:"region"`
	Compact   bool        `yaml:"compact"`
	Timestamp uint32      `yaml:"timestamp"`
	Blocks    []Placement `yaml:"blocks"`
	Fills     []Fill      `yaml:"fills"`
}

type PlanRegion struct {
	X int `yaml:"x"`
	Z int `yaml:"z"`
}

// Placement sets a single block. X and Z are relative to the region.
type Placement struct {
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Z     int    `yaml:"z"`
	Block string `yaml:"block"`

	block chunk.BlockType
}

// Fill sets every block in the box spanned by two corners, inclusive.
type Fill struct {
	From  [3]int `yaml:"from"`
	To    [3]int `yaml:"to"`
	Block string `yaml:"block"`

	block chunk.BlockType
}

func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes and validates a YAML plan. Unknown keys are rejected
// and an empty document is an empty plan.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not parse plan: %w", err)
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Plan) validate() error {
	var errs []error
	for i := range p.Blocks {
		if err := p.Blocks[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("blocks[%d]: %w", i, err))
		}
	}
	for i := range p.Fills {
		if err := p.Fills[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("fills[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// checkColumn validates x and z. Y depends on the chunk a block lands in
// and is checked by Apply.
func checkColumn(x, z int) error {
	if x < 0 || x >= region.BlocksPerSide || z < 0 || z >= region.BlocksPerSide {
		return fmt.Errorf("x and z must be in [0,%d), got %d,%d", region.BlocksPerSide, x, z)
	}
	return nil
}

func (pl *Placement) validate() error {
	if err := checkColumn(pl.X, pl.Z); err != nil {
		return err
	}
	b, err := chunk.ParseBlockType(pl.Block)
	if err != nil {
		return err
	}
	pl.block = b
	return nil
}

func (f *Fill) validate() error {
	for _, c := range [][3]int{f.From, f.To} {
		if err := checkColumn(c[0], c[2]); err != nil {
			return err
		}
	}
	b, err := chunk.ParseBlockType(f.Block)
	if err != nil {
		return err
	}
	for i := range f.From {
		if f.From[i] > f.To[i] {
			f.From[i], f.To[i] = f.To[i], f.From[i]
		}
	}
	f.block = b
	return nil
}

// Volume returns the number of blocks the fill covers.
func (f *Fill) Volume() int {
	v := 1
	for i := range f.From {
		v *= f.To[i] - f.From[i] + 1
	}
	return v
}

// check verifies that every block of the fill fits the chunk under its
// column.
func (f *Fill) check(r *region.Region) error {
	for z := f.From[2]; z <= f.To[2]; z++ {
		for x := f.From[0]; x <= f.To[0]; x++ {
			if err := r.CheckBlock(x, f.From[1], z); err != nil {
				return err
			}
			if err := r.CheckBlock(x, f.To[1], z); err != nil {
				return err
			}
		}
	}
	return nil
}

// Check verifies the plan's coordinates against the chunks of r.
func (p *Plan) Check(r *region.Region) error {
	var errs []error
	for i, pl := range p.Blocks {
		if err := r.CheckBlock(pl.X, pl.Y, pl.Z); err != nil {
			errs = append(errs, fmt.Errorf("blocks[%d]: %w", i, err))
		}
	}
	for i := range p.Fills {
		if err := p.Fills[i].check(r); err != nil {
			errs = append(errs, fmt.Errorf("fills[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Apply performs the plan's placements in order, single blocks first, and
// returns the number of blocks set. Nothing is changed if any placement
// falls outside the chunk it targets. The plan must have been validated.
func (p *Plan) Apply(r *region.Region) (int, error) {
	if err := p.Check(r); err != nil {
		return 0, err
	}
	n := 0
	for _, pl := range p.Blocks {
		r.SetBlock(pl.X, pl.Y, pl.Z, pl.block)
		n++
	}
	for _, f := range p.Fills {
		for y := f.From[1]; y <= f.To[1]; y++ {
			for z := f.From[2]; z <= f.To[2]; z++ {
				for x := f.From[0]; x <= f.To[0]; x++ {
					r.SetBlock(x, y, z, f.block)
				}
			}
		}
		n += f.Volume()
	}
	if p.Compact {
		r.Compact()
	}
	return n, nil
}
