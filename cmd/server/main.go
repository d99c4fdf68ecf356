// server is the taskflow AI service binary. It serves the HTTP API (with
// MCP-over-HTTP at /mcp) or speaks MCP over stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"taskflow-ai/internal/config"
	"taskflow-ai/internal/di"
)

const (
	modeHTTP  = "http"
	modeStdio = "stdio"

	shutdownTimeout = 30 * time.Second
)

func main() {
	mode := flag.String("mode", modeHTTP, "Server mode: http or stdio")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *mode, cfg); err != nil {
		cancel()
		log.Fatalf("Server failed: %v", err)
	}
}

// run builds the container and serves until ctx is done
func run(ctx context.Context, mode string, cfg *config.Config, opts ...di.Option) error {
	if mode != modeHTTP && mode != modeStdio {
		return fmt.Errorf("invalid mode %q, use %q or %q", mode, modeHTTP, modeStdio)
	}

	container, err := di.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Shutdown(); err != nil {
			container.Logger.Error("Error during shutdown", "error", err)
		}
	}()

	if mode == modeStdio {
		container.Logger.Info("Starting MCP server on stdio")
		if err := container.MCP.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	}

	srv := newHTTPServer(cfg, container.Router.Handler())
	errCh := make(chan error, 1)
	go func() {
		container.Logger.Info("HTTP server listening", "addr", srv.Addr, "mcp_endpoint", "/mcp")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	container.Logger.Info("Shutting down HTTP server")
	// the parent context is already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx) //nolint:contextcheck
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
