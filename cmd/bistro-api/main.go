package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/bistro-cache/internal/config"
	"github.com/Sternrassler/bistro-cache/internal/media"
	"github.com/Sternrassler/bistro-cache/internal/server"
	"github.com/Sternrassler/bistro-cache/internal/store"
	"github.com/Sternrassler/bistro-cache/pkg/cache"
	"github.com/Sternrassler/bistro-cache/pkg/coalesce"
	"github.com/Sternrassler/bistro-cache/pkg/etag"
	"github.com/Sternrassler/bistro-cache/pkg/logging"
	"github.com/Sternrassler/bistro-cache/pkg/transform"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", ""), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// app is the assembled service.
type app struct {
	store   *store.Store
	cache   *cache.Manager
	handler http.Handler
}

func (a *app) Close() error {
	return a.store.Close()
}

// build opens the store and wires every cache component into the HTTP server.
func build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	st, err := store.Open(ctx, cfg.Database.Path, logging.NewLogger("store"))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	if cfg.Database.Seed {
		if err := st.Seed(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	fp, err := etag.FingerprintByName(cfg.Cache.ETagHash)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.SweepInterval = cfg.Cache.SweepInterval
	responses := cache.NewManager(cacheCfg, logging.NewLogger("cache"))

	srv, err := server.New(server.Deps{
		Repo:      st,
		Cache:     responses,
		Coalescer: coalesce.New(coalesce.Config{Timeout: cfg.Cache.CoalesceTimeout}, logging.NewLogger("coalesce")),
		Responder: etag.NewResponder(fp, logging.NewLogger("etag")),
		Variants:  transform.New(cfg.Cache.TransformCapacity, logging.NewLogger("transform")),
		Media:     media.NewLibrary(cfg.Media.Dir),
		TTL: server.TTLs{
			Categories: cfg.Cache.TTL.Categories,
			MenuItems:  cfg.Cache.TTL.MenuItems,
			Orders:     cfg.Cache.TTL.Orders,
		},
		Logger: logger.With().Str("component", "server").Logger(),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{store: st, cache: responses, handler: srv.Handler()}, nil
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.cache.RunSweeper(sweepCtx, cfg.Cache.SweepInterval)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("database", cfg.Database.Path).
			Str("media", cfg.Media.Dir).
			Msg("Starting bistro API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
