package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/labdesk/internal"
	"github.com/starford/labdesk/internal/export"
	"github.com/starford/labdesk/internal/parser"
	"github.com/starford/labdesk/internal/projector"
	pkgconfig "github.com/starford/labdesk/pkg/config"
)

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
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogger(logger)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func extract(_ context.Context, cmd *cli.Command) error {
	file := cmd.Args().First()
	if file == "" {
		return fmt.Errorf("extract: FILE is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	doc, err := parser.Extract(filepath.Base(file), data)
	if err != nil {
		return err
	}

	out := os.Stdout
	switch format := cmd.String("format"); format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "raw":
		_, err = fmt.Fprint(out, doc.RawText)
	case "eval":
		_, err = fmt.Fprintln(out, projector.Truncate(projector.EvaluationText(doc), int(cmd.Int("limit"))))
	case "markdown":
		var md string
		md, err = export.New().Markdown(doc)
		if err == nil {
			_, err = fmt.Fprint(out, md)
		}
	default:
		return fmt.Errorf("extract: unknown format %q", format)
	}
	return err
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "labdesk",
		Usage:  "Lab submission desk: parses scripts and notebooks, indexes them and relays grading",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and inbox watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "extract",
				Usage:     "Parse a .py or .ipynb file and print it",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, raw, eval or markdown",
						Value:   "json",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Character limit for eval output (0 for none)",
						Value: 0,
					},
				},
				Action: extract,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
