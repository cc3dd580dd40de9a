// Package server assembles the service's HTTP surface: an open health
// endpoint and the MCP streamable endpoint behind the gateway middleware
// chain.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/didatodolist/dida-mcp/internal/gateway"
)

// Config holds the server's routing and authentication settings.
type Config struct {
	// Gateway configures the path-scoped API key middleware. Its
	// ExpectedKey is the effective secret (insecure default applied).
	Gateway gateway.Config

	// MCPKey is the configured secret for the relaxed bearer check on the
	// MCP endpoint. Empty disables that check.
	MCPKey string
}

// Server is the hosting HTTP server.
type Server struct {
	handler http.Handler
	server  *http.Server
	addr    string
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New builds the server. The MCP handler is mounted on the internal path
// when a rewrite is configured, otherwise on the external path; the
// gateway middleware translates between the two.
func New(mcpHandler http.Handler, cfg Config) *Server {
	route := cfg.Gateway.InternalPath
	if route == "" {
		route = cfg.Gateway.ExternalPath
	}
	if route == "" {
		route = gateway.DefaultExternalPath
	}

	protected := gateway.ApplyMiddlewares(mcpHandler, gateway.VerifyAPIKey(cfg.MCPKey))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle(route, protected)
	mux.Handle(route+"/", protected)

	handler := gateway.ApplyMiddlewares(mux,
		gateway.Logging(slog.Default()),
		gateway.Recovery,
		gateway.APIKeyGateway(cfg.Gateway),
	)

	return &Server{handler: handler}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned
// immediately. Runtime errors (network failures during operation) are sent
// to the error channel. The caller is responsible for calling Shutdown.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.addr = listener.Addr().String()

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second, // Bound reading slow client requests
		WriteTimeout: 15 * time.Minute, // Allows long MCP streaming responses, still bounded
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the bound listen address after Start.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
