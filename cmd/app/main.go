package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/itemdesk/internal"
	"github.com/starford/itemdesk/internal/itemstore"
	pkgconfig "github.com/starford/itemdesk/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(logger),
		internal.WithVersion(version),
	)
}

func asValidation(err error) (*itemstore.ValidationError, bool) {
	var ve *itemstore.ValidationError
	return ve, errors.As(err, &ve)
}

func main() {
	cmd := &cli.Command{
		Name:    "itemdesk",
		Usage:   "Track small prioritized items over HTTP, MCP or the command line",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve item tools over MCP stdio",
				Action: serveMCP,
			},
			addCommand(),
			updateCommand(),
			removeCommand(),
			listCommand(),
			exportCommand(),
			importCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		var ve *itemstore.ValidationError
		if errors.As(err, &ve) {
			renderError(os.Stderr, err)
		} else {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
