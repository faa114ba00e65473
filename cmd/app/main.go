package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/nodeql/internal"
	pkgconfig "github.com/starford/nodeql/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
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

func runQuery(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var request []byte
	switch path := cmd.String("request"); path {
	case "":
	case "-":
		if request, err = io.ReadAll(os.Stdin); err != nil {
			return fmt.Errorf("read request: %w", err)
		}
	default:
		if request, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("read request: %w", err)
		}
	}

	// Logs go to stderr so stdout holds only the result.
	return internal.RunQuery(ctx, os.Stdout, cmd.String("type"), request,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	)
}

func main() {
	cmd := &cli.Command{
		Name:    "nodeql",
		Usage:   "Query engine over a typed graph of content nodes",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and rebuild snapshots on content changes",
				Action: serve,
			},
			{
				Name:   "query",
				Usage:  "Build one snapshot, run a query and print the connection as JSON",
				Action: runQuery,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    "Node type to query",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "request",
						Aliases: []string{"r"},
						Usage:   "Path to a JSON request file, or - for stdin",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve query tools over MCP on stdin/stdout",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
