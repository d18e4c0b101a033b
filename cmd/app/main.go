package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/mie-tools/mie/internal"
	pkgconfig "github.com/mie-tools/mie/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	configPath := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := pkgconfig.LoadIfExists(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// CLI flags override file values.
	if cmd.IsSet("quality") {
		cfg.Embed.Quality = int(cmd.Int("quality"))
	}
	if cmd.IsSet("max-size") {
		cfg.Embed.MaxSizeMB = int(cmd.Int("max-size"))
	}
	if cmd.IsSet("max-width") {
		cfg.Embed.MaxWidth = int(cmd.Int("max-width"))
	}
	if cmd.IsSet("max-height") {
		cfg.Embed.MaxHeight = int(cmd.Int("max-height"))
	}
	if cmd.IsSet("path") {
		cfg.Embed.BasePath = cmd.String("path")
	}
	if cmd.IsSet("yarle") {
		cfg.Embed.Yarle = cmd.Bool("yarle")
	}
	if cmd.IsSet("concurrency") {
		cfg.Embed.Concurrency = int(cmd.Int("concurrency"))
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelInfo
	}
	if cmd.Bool("debug") {
		cfg.App.LogLevel = slog.LevelDebug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runEmbed(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Run(ctx,
		internal.WithConfig(cfg),
		internal.WithInput(cmd.String("input-file")),
		internal.WithOutput(cmd.String("output-file")),
	)
}

func runBatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pattern := cmd.Args().First()
	if pattern == "" {
		return fmt.Errorf("a glob pattern is required, e.g. 'mie batch \"notes/*.md\"'")
	}
	return internal.RunBatch(ctx, pattern, cmd.Bool("backup"), internal.WithConfig(cfg))
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	return internal.RunServe(ctx, internal.WithConfig(cfg))
}

func embedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
			Value:   "config/config.yaml",
			Sources: cli.EnvVars("MIE_CONFIG_FILE"),
		},
		&cli.IntFlag{
			Name:    "quality",
			Aliases: []string{"q"},
			Usage:   "Quality scale from 1 (smallest) to 9 (best)",
		},
		&cli.IntFlag{
			Name:    "max-size",
			Aliases: []string{"m"},
			Usage:   "Maximum size of a single embedded image, in MB",
		},
		&cli.IntFlag{
			Name:    "max-width",
			Aliases: []string{"W"},
			Usage:   "Downscale images wider than this many pixels",
		},
		&cli.IntFlag{
			Name:    "max-height",
			Aliases: []string{"H"},
			Usage:   "Downscale images taller than this many pixels",
		},
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Base path for resolving relative image references",
		},
		&cli.BoolFlag{
			Name:    "yarle",
			Aliases: []string{"y"},
			Usage:   "Resolve Yarle resource directories as local files",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Number of images processed in parallel",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log per-image progress",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Log debug details",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "mie",
		Usage:  "Embed images in Markdown documents as base64 data URLs",
		Action: runEmbed,
		Flags: append(embedFlags(),
			&cli.StringFlag{
				Name:    "input-file",
				Aliases: []string{"i"},
				Usage:   "Markdown file to read (stdin when omitted)",
			},
			&cli.StringFlag{
				Name:    "output-file",
				Aliases: []string{"o"},
				Usage:   "File to write (stdout when omitted)",
			},
		),
		Commands: []*cli.Command{
			{
				Name:      "batch",
				Usage:     "Rewrite every Markdown file matching a glob pattern in place",
				ArgsUsage: "PATTERN",
				Action:    runBatch,
				Flags: append(embedFlags(),
					&cli.BoolFlag{
						Name:  "backup",
						Usage: "Keep a .bak copy of each changed file",
						Value: true,
					},
				),
			},
			{
				Name:   "serve",
				Usage:  "Expose the embedder over HTTP",
				Action: runServe,
				Flags: append(embedFlags(),
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP listen port",
					},
				),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
