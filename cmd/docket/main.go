// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/poiesic/docket"
	"github.com/poiesic/docket/config"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	containerFlag := &cli.StringFlag{
		Name:     "container",
		Aliases:  []string{"n"},
		Usage:    "Container holding the documents",
		Required: true,
	}

	return &cli.App{
		Name:  "docket",
		Usage: "Store and query JSON documents in an embedded database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"DOCKET_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to database directory (overrides config)",
				EnvVars: []string{"DOCKET_DB"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); defaults to the config value",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every repository operation and payload",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Env file loaded before expanding the config",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the document with the given id",
				ArgsUsage: "ID",
				Action:    getCommand,
				Flags:     []cli.Flag{containerFlag},
			},
			{
				Name:   "list",
				Usage:  "Print documents, optionally filtered",
				Action: listCommand,
				Flags: []cli.Flag{
					containerFlag,
					&cli.StringSliceFlag{
						Name:    "where",
						Aliases: []string{"w"},
						Usage:   "Only documents whose field equals value (field=value), repeatable",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of documents to print (0 for all)",
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Print the number of matching documents",
				Action: countCommand,
				Flags: []cli.Flag{
					containerFlag,
					&cli.StringSliceFlag{
						Name:    "where",
						Aliases: []string{"w"},
						Usage:   "Only documents whose field equals value (field=value), repeatable",
					},
				},
			},
			{
				Name:      "put",
				Usage:     "Store a JSON object or array of objects read from FILE or stdin",
				ArgsUsage: "[FILE|-]",
				Action:    putCommand,
				Flags: []cli.Flag{
					containerFlag,
					&cli.BoolFlag{
						Name:    "update",
						Aliases: []string{"u"},
						Usage:   "Replace existing documents instead of adding new ones",
					},
					&cli.StringFlag{
						Name:  "assign-id",
						Usage: "Id for documents without one: none, random or content",
						Value: idNone,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete documents by id",
				ArgsUsage: "ID...",
				Action:    deleteCommand,
				Flags:     []cli.Flag{containerFlag},
			},
			{
				Name:   "purge",
				Usage:  "Delete every document in a container",
				Action: purgeCommand,
				Flags: []cli.Flag{
					containerFlag,
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the purge",
					},
				},
			},
			{
				Name:   "gc",
				Usage:  "Reclaim space in the database value log",
				Action: gcCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "discard-ratio",
						Usage: "Rewrite value log files with at least this fraction of stale data (defaults to the config value)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up after this long",
						Value: 5 * time.Minute,
					},
				},
			},
		},
	}
}

// setup loads the config and installs the process logger.
func setup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	levelStr := c.String("log-level")
	if levelStr == "" {
		levelStr = cfg.SlogLevel().String()
	}
	if err := setupLogger(c.App.ErrWriter, levelStr); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path, config.WithEnvFiles(c.String("env-file")))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}
	if c.Bool("debug") {
		cfg.Log = true
	}
	return cfg, nil
}

func setupLogger(w io.Writer, levelStr string) error {
	if w == nil {
		w = os.Stderr
	}

	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		return err
	}

	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    !isTerminal(w),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// openDatabase opens the database named by the loaded config.
// Caller must close it.
func openDatabase(c *cli.Context) (*docket.Database, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("config not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (set --db, DOCKET_DB or database.path)", err)
	}

	db, err := docket.NewDatabase("", docket.WithConfig(cfg), docket.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
