// Package main provides the kaizen server entry point.
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
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/fthabet1/Kaizen-sub000/internal/config"
	"github.com/fthabet1/Kaizen-sub000/internal/db"
	"github.com/fthabet1/Kaizen-sub000/internal/server"
	"github.com/fthabet1/Kaizen-sub000/internal/timer"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Listen port (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	store, err := db.NewStore(db.Config{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer store.Close()

	cache, cleanupCache, err := buildCache(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session cache")
	}
	defer cleanupCache()

	svc := server.New(cfg, store, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// The file backend gets a directory watcher: a sibling process writing
	// a session file triggers reconciliation here, the multi-tab analogue.
	if fc, ok := cache.(*timer.FileCache); ok {
		watcher, err := timer.NewCacheWatcher(fc.Dir(), func(userID int64) {
			wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
			defer wcancel()
			if _, err := svc.Timer().Reconcile(wctx, userID); err != nil {
				log.Warn().Err(err).Int64("user", userID).Msg("Reconcile after cache change failed")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("Session cache watcher unavailable")
		} else if err := watcher.Start(); err == nil {
			defer watcher.Stop()
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.Port).Str("version", Version).Msg("Starting kaizen server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down")
		case <-gctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

// buildCache selects the session cache backend from config.
func buildCache(cfg *config.Config) (timer.SessionCache, func(), error) {
	switch cfg.CacheMode {
	case "memory":
		return timer.NewMemoryCache(), func() {}, nil
	case "redis":
		c := timer.NewRedisCache(cfg.RedisAddr)
		return c, func() { _ = c.Close() }, nil
	default:
		c, err := timer.NewFileCache(config.SessionCacheDir())
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}
}
