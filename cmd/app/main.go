package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/outliner/internal"
	"github.com/starford/outliner/internal/export"
	"github.com/starford/outliner/internal/storage"
	pkgconfig "github.com/starford/outliner/pkg/config"
)

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
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the MCP protocol.
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func exportDocument(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: %s", cmd.ArgsUsage)
	}
	return internal.ExportDocument(os.Stdout, name, export.Format(cmd.String("format")),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func importDocument(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	file := cmd.Args().First()
	if file == "" {
		return fmt.Errorf("usage: %s", cmd.ArgsUsage)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	name := cmd.String("name")
	if name == "" {
		name = nameFromFile(file)
	}
	row, err := internal.ImportDocument(name, data, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	fmt.Printf("imported %s (%d nodes)\n", row.Name, row.NodeCount)
	return nil
}

func nameFromFile(file string) string {
	base := filepath.Base(file)
	if name, ok := storage.NameOf(base); ok {
		return name
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func formatNames() []string {
	var out []string
	for _, f := range export.Formats() {
		out = append(out, string(f))
	}
	return out
}

func main() {
	cmd := &cli.Command{
		Name:   "outliner",
		Usage:  "Outline documents with structural editing, undo history, full-text search and MCP tools",
		Action: serve,
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
				Usage:  "Run the HTTP API and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the library as MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "export",
				Usage:     "Print a stored document",
				ArgsUsage: "<name>",
				Action:    exportDocument,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "One of " + strings.Join(formatNames(), ", "),
						Value:   string(export.Text),
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Migrate a JSON, YAML or OPML outline into the library",
				ArgsUsage: "<file>",
				Action:    importDocument,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Document name; defaults to the file name",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
