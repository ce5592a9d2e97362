package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/paperlink/internal"
	"github.com/starford/paperlink/internal/linker"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/prompt"
	"github.com/starford/paperlink/internal/settings"
	pkgconfig "github.com/starford/paperlink/pkg/config"
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

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func lsp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunLSP(ctx, internal.WithConfig(cfg))
}

// openApp wires the services for one-shot commands. Notices and logs go
// to stderr so stdout carries only the JSON result.
func openApp(cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	notify := linker.NotifierFunc(func(message string) {
		fmt.Fprintln(os.Stderr, message)
	})
	return internal.Open(
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
		internal.WithNotifier(notify),
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func render(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	edit, err := app.Service.Render(ctx, cmd.String("note"), int(cmd.Int("line")))
	if err != nil {
		return err
	}
	return printJSON(edit)
}

func insert(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id := cmd.String("id")
	if id == "" {
		id, err = prompt.Prompter{In: os.Stdin, Out: os.Stderr}.Ask(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, linker.NoticeInvalidNumber)
			return err
		}
	}

	pos := models.Position{Line: int(cmd.Int("line")), Column: int(cmd.Int("column"))}
	edit, err := app.Service.Insert(ctx, cmd.String("note"), pos, id)
	if err != nil {
		return err
	}
	return printJSON(edit)
}

func settingsShow(_ context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return printJSON(app.Service.Settings())
}

func settingsSet(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg, err := app.Service.UpdateSettings(ctx, settings.Patch{
		APIURL:            cmd.String("api-url"),
		PlaceholderFolder: cmd.String("dummy-folder"),
	})
	if err != nil {
		return err
	}
	return printJSON(cfg)
}

func noteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "note",
			Aliases:  []string{"n"},
			Usage:    "Vault-relative path of the note to edit",
			Required: true,
		},
		&cli.IntFlag{
			Name:     "line",
			Aliases:  []string{"l"},
			Usage:    "0-based line of the cursor",
			Required: true,
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "paperlink",
		Usage:  "Link paperless-ngx documents into a Markdown vault as embedded placeholders",
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
				Usage:  "Run the HTTP API and vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: mcp,
			},
			{
				Name:   "lsp",
				Usage:  "Serve the Language Server on stdio",
				Action: lsp,
			},
			{
				Name:   "render",
				Usage:  "Replace the paperless-ngx token on a note line with an embed",
				Flags:  noteFlags(),
				Action: render,
			},
			{
				Name:  "insert",
				Usage: "Insert an embed for a document id at a note position",
				Flags: append(noteFlags(),
					&cli.IntFlag{
						Name:  "column",
						Usage: "0-based character column of the cursor",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Document id (prompted on stdin when omitted)",
					},
				),
				Action: insert,
			},
			{
				Name:  "settings",
				Usage: "Show or change the linker settings",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the current settings",
						Action: settingsShow,
					},
					{
						Name:  "set",
						Usage: "Change settings; omitted values are kept",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "api-url", Usage: "paperless-ngx API base URL"},
							&cli.StringFlag{Name: "dummy-folder", Usage: "Vault folder for placeholder files"},
						},
						Action: settingsSet,
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
