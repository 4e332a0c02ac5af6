package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/net/netutil"
)

const (
	mcpEndpoint     = "/mcp"
	shutdownTimeout = 10 * time.Second
)

// Handler returns the HTTP routes of server mode: the streamable MCP
// endpoint and a health check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.config.IsDebug() {
		r.Use(middleware.Logger)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle(mcpEndpoint, server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath(mcpEndpoint),
	))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"server":   s.config.ServerName,
		"version":  s.config.Version,
		"sessions": len(s.pdfService.Sessions()),
	})
}

// runServerMode serves the streamable HTTP transport until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.serve(ctx, listener)
}

// serve accepts at most MaxConnections concurrent connections on listener
func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	if s.config.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConnections)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("PDF editor MCP server listening on %s%s", listener.Addr(), mcpEndpoint)
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Printf("Shutting down PDF editor MCP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
