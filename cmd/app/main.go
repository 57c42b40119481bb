package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/galdr/internal"
	pkgconfig "github.com/starford/galdr/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	if dir := cmd.String("gallery"); dir != "" {
		cfg.Gallery.Path = dir
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func validate(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Validate(ctx, cmd.Bool("dry-run"), os.Stdout, os.Stderr, opts...)
}

func derive(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Derive(ctx, internal.DeriveOptions{
		Mode:  cmd.String("mode"),
		Force: cmd.Bool("force"),
	}, os.Stdout, opts...)
}

func sitemap(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Sitemap(ctx, cmd.String("out"), os.Stdout, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "galdr",
		Usage:   "Prompt gallery content pipeline: validate metadata, derive image assets, serve ranked queries",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "gallery",
				Aliases: []string{"g"},
				Usage:   "Gallery root directory (overrides gallery.path)",
				Sources: cli.EnvVars("GALDR_GALLERY"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and watch the gallery for changes",
				Action: serve,
			},
			{
				Name:   "validate",
				Usage:  "Validate every item folder and rewrite repaired meta.json files; exits non-zero on errors",
				Action: validate,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report repairs without rewriting meta.json",
					},
				},
			},
			{
				Name:   "derive",
				Usage:  "Write meta.generated.json and responsive variants for every item",
				Action: derive,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "full, fallback or auto (overrides assets.mode)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-derive items the ledger reports as unchanged",
					},
				},
			},
			{
				Name:   "sitemap",
				Usage:  "Render sitemap.xml for site.url",
				Action: sitemap,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve gallery tools over MCP stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
