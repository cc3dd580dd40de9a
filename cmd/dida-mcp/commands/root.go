package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/didatodolist/dida-mcp/internal/app"
	"github.com/didatodolist/dida-mcp/internal/dida"
	"github.com/didatodolist/dida-mcp/internal/oauth"
	"github.com/didatodolist/dida-mcp/internal/observability"
	"github.com/didatodolist/dida-mcp/internal/tokenstore"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	// Best effort: a missing .env file is not an error, the variables may
	// come from the real environment.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "dida-mcp",
		Usage: "Dida365 todo MCP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			refreshCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the MCP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otlp-http|otlp-grpc|otlp-stdout)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "upstream--base-url",
				Usage: "upstream API base URL",
				Value: oauth.APIBaseURL,
			},
			&cli.StringFlag{
				Name:  "gateway--api-key",
				Usage: "shared secret expected in the gateway header",
			},
			&cli.StringFlag{
				Name:  "gateway--external-path",
				Usage: "externally advertised MCP path",
				Value: app.DefaultConfigExternalPath,
			},
			&cli.StringFlag{
				Name:  "gateway--internal-path",
				Usage: "internal path the external path is rewritten to",
			},
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "serve MCP over stdin/stdout instead of HTTP",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := setup(cmd)
	if err != nil {
		return err
	}
	defer flushLogs(shutdown)

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	if cmd.Bool("stdio") {
		return application.RunStdio(ctx)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "run the interactive authorization flow and store the issued tokens",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "print the authorization URL instead of opening a browser",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "additionally write the full session (including client credentials) to this JSON file",
			},
			&cli.BoolFlag{
				Name:  "no-verify",
				Usage: "skip the post-login API probe",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := setup(cmd)
	if err != nil {
		return err
	}
	defer flushLogs(shutdown)

	client, err := oauth.NewClient(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURI,
		oauth.WithScope(cfg.OAuth.Scope))
	if err != nil {
		return err
	}

	if err := client.Authorize(ctx, !cmd.Bool("no-browser")); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}
	if err := store.Save(ctx, tokenstore.Credentials{
		AccessToken:  client.AccessToken(),
		RefreshToken: client.RefreshToken(),
	}); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	slog.InfoContext(ctx, "tokens stored", "storage", string(cfg.Credentials.Storage))

	if path := cmd.String("session"); path != "" {
		if err := client.SaveSession(path); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		slog.InfoContext(ctx, "session saved", "path", path)
	}

	if !cmd.Bool("no-verify") {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: client.AccessToken()})
		projects, err := dida.New(cfg.Upstream.BaseURL, ts).ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("API probe failed: %w", err)
		}
		slog.InfoContext(ctx, "login verified", "projects", len(projects))
	}

	return nil
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "renew the stored access token using the stored refresh token",
		Action: refreshAction,
	}
}

func refreshAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := setup(cmd)
	if err != nil {
		return err
	}
	defer flushLogs(shutdown)

	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	creds, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored tokens: %w", err)
	}

	client, err := oauth.NewClient(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURI)
	if err != nil {
		return err
	}
	client.SetTokens(creds.AccessToken, creds.RefreshToken)

	if err := client.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	if err := store.Save(ctx, tokenstore.Credentials{
		AccessToken:  client.AccessToken(),
		RefreshToken: client.RefreshToken(),
	}); err != nil {
		return fmt.Errorf("failed to persist renewed tokens: %w", err)
	}

	slog.InfoContext(ctx, "access token renewed")
	return nil
}

// setup loads configuration and installs the observability layer for a
// command action.
func setup(cmd *cli.Command) (*app.Config, func(context.Context) error, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, shutdown, nil
}

func flushLogs(shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	if err := shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}
