package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "randoblock",
		Usage: "inspect and edit Minecraft Anvil region files",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(ctx *cli.Context) error {
			level := slog.LevelInfo
			if ctx.Bool("verbose") {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(ctx.App.ErrWriter, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
		Commands: []*cli.Command{
			inspectCommand(),
			setblockCommand(),
			applyCommand(),
			rewriteCommand(),
			levelCommand(),
			slimeCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("randoblock failed", "err", err)
		os.Exit(1)
	}
}
