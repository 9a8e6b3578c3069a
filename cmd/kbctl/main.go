package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	kbDirFlag := &cli.StringFlag{
		Name:    "kb-dir",
		Aliases: []string{"d"},
		Usage:   "KB directory holding manifest.json (overrides kb.dir)",
	}
	minDocsFlag := &cli.IntFlag{
		Name:  "min-docs",
		Usage: "Minimum number of sections a publishable KB must hold (overrides KB_MIN_DOCS)",
	}
	return &cli.App{
		Name:  "kbctl",
		Usage: "Validate and build the guidance knowledge base search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Check manifest, sources and sections for integrity and minimum size",
				Action: validateCommand,
				Flags:  []cli.Flag{kbDirFlag, minDocsFlag},
			},
			{
				Name:   "build",
				Usage:  "Validate, flatten sections into search documents and write the index artifact",
				Action: buildCommand,
				Flags: []cli.Flag{
					kbDirFlag,
					minDocsFlag,
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Artifact path (default: <kb-dir>/<files.search_index>)",
					},
					&cli.BoolFlag{
						Name:  "record",
						Usage: "Record the publication in the Postgres ledger",
					},
					&cli.BoolFlag{
						Name:  "notify",
						Usage: "Publish a kb-published event so searchers reload",
					},
				},
			},
		},
	}
}
