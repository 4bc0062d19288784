// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/modelcontextprotocol/go-mcp-core/mcp"
	"github.com/modelcontextprotocol/go-mcp-core/mcp/sessioncache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a Streamable-HTTP MCP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(c *cobra.Command, args []string) error {
	initViper(cfgFile)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	tp, shutdownTracing, err := setupTracing()
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	otel.SetTracerProvider(tp)

	reg := prometheus.NewRegistry()
	metrics := mcp.NewMetrics(reg)

	sessionStore := mcp.NewMemorySessionStore()
	sessionCache := sessioncache.NewMemoryCache(nil)

	server := mcp.NewServer(&mcp.Implementation{Name: "mcpcore", Version: "0.1.0"}, &mcp.ServerOptions{
		Logger:       logger,
		Observer:     metrics,
		SessionStore: sessionStore,
	})

	httpOpts := &mcp.StreamableHTTPOptions{
		MaxBodyBytes: cfg.MaxBodyBytes,
		SessionStore: sessionStore,
		SessionCache: sessionCache,
		SessionTTL:   cfg.SessionTTL,
	}
	if cfg.RateLimitPerSecond > 0 {
		httpOpts.RateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), max(cfg.RateLimitBurst, 1))
	}
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, httpOpts)
	wsHandler := mcp.NewWebSocketHTTPHandler(func(*http.Request) *mcp.Server { return server })

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/mcp/ws", wsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("mcpcore: listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		sessionCache.Close()
		return shutdownTracing(shutdownCtx)
	})

	return g.Wait()
}

func setupTracing() (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return tp, tp.Shutdown, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
