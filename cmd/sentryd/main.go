// Command sentryd runs the ghost-sentry tactical picture pipeline: the
// HTTP/WebSocket gateway backed by correlation, behavioral analytics,
// asset tasking, and persistence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/im-sham/ghost-sentry/internal/assets"
	"github.com/im-sham/ghost-sentry/internal/config"
	"github.com/im-sham/ghost-sentry/internal/correlation"
	"github.com/im-sham/ghost-sentry/internal/eventbus"
	"github.com/im-sham/ghost-sentry/internal/gateway"
	"github.com/im-sham/ghost-sentry/internal/lattice"
	"github.com/im-sham/ghost-sentry/internal/sentry"
	"github.com/im-sham/ghost-sentry/internal/store"
	"github.com/im-sham/ghost-sentry/internal/trackcache"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath, slog.Default())
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	bus := eventbus.New(slog.Default())
	registry := assets.New()
	matcher := correlation.New()
	cache := trackcache.New()

	sink, err := lattice.NewSink(cfg.SinkMode, st, bus, cfg.LatticeEndpoint, slog.Default())
	if err != nil {
		slog.Error("construct lattice sink", "error", err)
		os.Exit(1)
	}

	engine := sentry.New(matcher, cache, registry, sink)
	gw := gateway.New(st, bus, registry, engine, slog.Default())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: gw.Handler(cfg.CORSOrigins),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("sentryd listening", "port", cfg.Port, "sink_mode", cfg.SinkMode, "db_path", cfg.DBPath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("serve failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
}
