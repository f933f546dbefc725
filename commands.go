package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/konkers/randoblock/chunk"
	"github.com/konkers/randoblock/region"
	"github.com/konkers/randoblock/slime"
	"github.com/konkers/randoblock/world"
)

func regionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "region-x", Usage: "region X coordinate, when the file name does not carry it"},
		&cli.IntFlag{Name: "region-z", Usage: "region Z coordinate, when the file name does not carry it"},
	}
}

func editFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(extra,
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the result to `FILE` instead of in place"},
		&cli.BoolFlag{Name: "skip-corrupt", Usage: "drop chunks that fail to decode instead of aborting"},
	)
	return append(flags, regionFlags()...)
}

// usageError prints the command help and fails the command.
func usageError(ctx *cli.Context) error {
	_ = cli.ShowSubcommandHelp(ctx)
	return fmt.Errorf("%s: wrong number of arguments", ctx.Command.Name)
}

func regionCoords(ctx *cli.Context, path string) (int, int, error) {
	if ctx.IsSet("region-x") || ctx.IsSet("region-z") {
		return ctx.Int("region-x"), ctx.Int("region-z"), nil
	}
	x, z, err := region.ParseFileName(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w; pass --region-x and --region-z", err)
	}
	return x, z, nil
}

// loadRegion reads the region at path for editing. Corrupt chunks abort the
// load unless --skip-corrupt is given, since saving would drop them.
func loadRegion(ctx *cli.Context, path string) (*region.Region, error) {
	x, z, err := regionCoords(ctx, path)
	if err != nil {
		return nil, err
	}
	r, err := region.OpenAt(path, x, z)
	if r == nil {
		return nil, err
	}
	cerrs := region.ChunkErrors(err)
	for _, cerr := range cerrs {
		slog.Warn("unreadable chunk", "x", cerr.X, "z", cerr.Z, "err", cerr.Err)
	}
	if len(cerrs) > 0 && !ctx.Bool("skip-corrupt") {
		return nil, fmt.Errorf("%d chunks could not be decoded; rerun with --skip-corrupt to drop them", len(cerrs))
	}
	return r, nil
}

func saveRegion(ctx *cli.Context, r *region.Region, path string, timestamp uint32) error {
	if out := ctx.String("out"); out != "" {
		path = out
	}
	if timestamp == 0 {
		timestamp = uint32(time.Now().Unix())
	}
	if err := r.Save(path, timestamp); err != nil {
		return err
	}
	slog.Info("saved region", "path", path, "chunks", r.ChunkCount())
	return nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "list the chunks stored in a region file",
		ArgsUsage: "FILE.mca",
		Flags:     regionFlags(),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return usageError(ctx)
			}
			path := ctx.Args().First()
			x, z, err := regionCoords(ctx, path)
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			rd, err := region.NewReader(file)
			if err != nil {
				file.Close()
				return err
			}
			defer rd.Close()

			tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLOT\tCHUNK\tSECTOR\tCOUNT\tTIMESTAMP\tSTATUS\tPALETTES")
			present, corrupt := 0, 0
			for lz := 0; lz < region.ChunksPerSide; lz++ {
				for lx := 0; lx < region.ChunksPerSide; lx++ {
					if !rd.ChunkExists(lx, lz) {
						continue
					}
					present++
					loc := rd.Location(lx, lz)
					ts := time.Unix(int64(rd.Timestamp(lx, lz)), 0).UTC().Format(time.RFC3339)
					prefix := fmt.Sprintf("%d\t%d,%d\t%d\t%d\t%s", lx+lz*region.ChunksPerSide,
						x*region.ChunksPerSide+lx, z*region.ChunksPerSide+lz, loc.Offset, loc.Sectors, ts)

					c, err := rd.ReadChunk(lx, lz)
					if err != nil {
						corrupt++
						fmt.Fprintf(tw, "%s\terror\t%v\n", prefix, err)
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", prefix, c.Status(), paletteSizes(c))
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%d chunks, %d unreadable\n", present, corrupt)
			return nil
		},
	}
}

func paletteSizes(c *chunk.Chunk) string {
	sizes := make([]string, chunk.SectionCount)
	for i := range sizes {
		sizes[i] = strconv.Itoa(c.Section(i).Palette().Len())
	}
	return strings.Join(sizes, ",")
}

func setblockCommand() *cli.Command {
	return &cli.Command{
		Name:      "setblock",
		Usage:     "place one block; X and Z are relative to the region, Y is absolute",
		ArgsUsage: "FILE.mca X Y Z BLOCK",
		Flags:     editFlags(),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 5 {
				return usageError(ctx)
			}
			args := ctx.Args().Slice()
			var pos [3]int
			for i := range pos {
				v, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("bad coordinate %q: %w", args[i+1], err)
				}
				pos[i] = v
			}
			b, err := chunk.ParseBlockType(args[4])
			if err != nil {
				return err
			}
			p := Placement{X: pos[0], Y: pos[1], Z: pos[2], Block: b.String()}
			if err := p.validate(); err != nil {
				return err
			}

			r, err := loadRegion(ctx, args[0])
			if err != nil {
				return err
			}
			if err := r.CheckBlock(p.X, p.Y, p.Z); err != nil {
				return err
			}
			r.SetBlock(p.X, p.Y, p.Z, b)
			slog.Debug("set block", "x", p.X, "y", p.Y, "z", p.Z, "block", b)
			return saveRegion(ctx, r, args[0], 0)
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "apply a YAML placement plan to a region file",
		ArgsUsage: "FILE.mca",
		Flags: editFlags(
			&cli.StringFlag{Name: "plan", Aliases: []string{"p"}, Usage: "placement plan `FILE`", Required: true},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return usageError(ctx)
			}
			plan, err := LoadPlan(ctx.String("plan"))
			if err != nil {
				return err
			}

			path := ctx.Args().First()
			var r *region.Region
			if plan.Region != nil && !ctx.IsSet("region-x") && !ctx.IsSet("region-z") {
				if err := ctx.Set("region-x", strconv.Itoa(plan.Region.X)); err != nil {
					return err
				}
				if err := ctx.Set("region-z", strconv.Itoa(plan.Region.Z)); err != nil {
					return err
				}
			}
			if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
				x, z, err := regionCoords(ctx, path)
				if err != nil {
					return err
				}
				slog.Info("creating new region", "path", path, "x", x, "z", z)
				r = region.New(x, z)
			} else if r, err = loadRegion(ctx, path); err != nil {
				return err
			}

			n, err := plan.Apply(r)
			if err != nil {
				return fmt.Errorf("%s: %w", ctx.String("plan"), err)
			}
			slog.Info("applied plan", "plan", ctx.String("plan"), "blocks", n)
			return saveRegion(ctx, r, path, plan.Timestamp)
		},
	}
}

func rewriteCommand() *cli.Command {
	return &cli.Command{
		Name:      "rewrite",
		Usage:     "decode a region file and encode it again",
		ArgsUsage: "IN.mca OUT.mca",
		Flags: editFlags(
			&cli.BoolFlag{Name: "compact", Usage: "drop unused palette entries before writing"},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return usageError(ctx)
			}
			in, out := ctx.Args().Get(0), ctx.Args().Get(1)
			r, err := loadRegion(ctx, in)
			if err != nil {
				return err
			}
			if ctx.Bool("compact") {
				r.Compact()
			}
			return saveRegion(ctx, r, out, 0)
		},
	}
}

func levelCommand() *cli.Command {
	return &cli.Command{
		Name:      "level",
		Usage:     "print the name, version and spawn point from level.dat",
		ArgsUsage: "LEVEL.dat",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return usageError(ctx)
			}
			level, err := world.LoadLevel(ctx.Args().First())
			if err != nil {
				return err
			}
			d := level.Data
			fmt.Fprintf(ctx.App.Writer, "name:         %s\n", d.LevelName)
			fmt.Fprintf(ctx.App.Writer, "version:      %s (%d)\n", d.Version.Name, d.Version.ID)
			fmt.Fprintf(ctx.App.Writer, "data version: %d\n", d.DataVersion)
			fmt.Fprintf(ctx.App.Writer, "spawn:        %d %d %d\n", d.SpawnX, d.SpawnY, d.SpawnZ)
			fmt.Fprintf(ctx.App.Writer, "last played:  %s\n", time.UnixMilli(d.LastPlayed).UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func slimeCommand() *cli.Command {
	return &cli.Command{
		Name:      "slime",
		Usage:     "export a world directory as a slime world",
		ArgsUsage: "WORLD_DIR OUT.slime",
		Action: func(ctx *cli.Context) (err error) {
			if ctx.NArg() != 2 {
				return usageError(ctx)
			}
			w, err := world.Open(ctx.Args().Get(0), slog.Default())
			if err != nil {
				return err
			}

			file, err := os.Create(ctx.Args().Get(1))
			if err != nil {
				return err
			}
			defer func() {
				if cerr := file.Close(); err == nil {
					err = cerr
				}
			}()

			chunks := w.Chunks()
			if err := slime.Write(file, chunks); err != nil {
				return err
			}
			slog.Info("wrote slime world", "path", ctx.Args().Get(1), "chunks", len(chunks))
			return nil
		},
	}
}
