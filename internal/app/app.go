// Package app orchestrates the lifecycle of the MCP service: credential
// loading, the authenticated upstream client, the tool server, and the
// gateway-protected HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/didatodolist/dida-mcp/internal/dida"
	"github.com/didatodolist/dida-mcp/internal/gateway"
	"github.com/didatodolist/dida-mcp/internal/mcpserver"
	"github.com/didatodolist/dida-mcp/internal/oauth"
	"github.com/didatodolist/dida-mcp/internal/server"
	"github.com/didatodolist/dida-mcp/internal/tokenstore"
)

// Version is reported in the MCP handshake.
const Version = "1.1.0"

// App orchestrates the lifecycle of the service.
type App struct {
	cfg       *Config
	srv       *server.Server
	mcpServer *mcp.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// I/O deferred to first Token() call
	tokenSource, err := newTokenSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	didaClient := dida.New(cfg.Upstream.BaseURL, tokenSource)
	mcpServer := mcpserver.New(didaClient, Version)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	gatewayKey := cfg.Gateway.APIKey
	if gatewayKey == "" {
		gatewayKey = gateway.InsecureDefaultKey
		slog.Warn("no gateway API key configured; falling back to the insecure development default",
			"default", gateway.InsecureDefaultKey,
			"remediation", "set gateway.api_key (or MCP_API_KEY) before exposing this service")
	}

	srv := server.New(mcpHandler, server.Config{
		Gateway: gateway.Config{
			HeaderName:   cfg.Gateway.Header,
			ExpectedKey:  gatewayKey,
			ExternalPath: cfg.Gateway.ExternalPath,
			InternalPath: cfg.Gateway.InternalPath,
		},
		MCPKey: cfg.Gateway.APIKey,
	})

	return &App{
		cfg:       cfg,
		srv:       srv,
		mcpServer: mcpServer,
	}, nil
}

// Start starts the HTTP service and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function
// collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting MCP server", "address", address, "path", a.cfg.Gateway.ExternalPath)
	srvErrCh, err := a.srv.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.srv.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-srvErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// RunStdio serves the MCP protocol over stdin/stdout instead of HTTP,
// for local clients such as desktop assistants. The gateway does not
// apply: the transport is the caller's own process.
func (a *App) RunStdio(ctx context.Context) error {
	slog.InfoContext(ctx, "serving MCP over stdio")
	return a.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// newTokenSource creates a PersistentTokenSource from application
// configuration. No I/O is performed - credential loading is deferred to
// the first Token() call.
func newTokenSource(cfg *Config) (*PersistentTokenSource, error) {
	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     oauth.Endpoint,
	}

	factory := func(creds tokenstore.Credentials) oauth2.TokenSource {
		return oauthCfg.TokenSource(context.Background(), &oauth2.Token{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
		})
	}

	return NewPersistentTokenSource(factory, store)
}
