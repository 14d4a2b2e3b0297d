package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahmethakanbesel/market-harvester/internal/cache"
	"github.com/ahmethakanbesel/market-harvester/internal/config"
	"github.com/ahmethakanbesel/market-harvester/internal/feed"
	"github.com/ahmethakanbesel/market-harvester/internal/harvest"
	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/logging"
	"github.com/ahmethakanbesel/market-harvester/internal/platform/sqlite"
	runrepo "github.com/ahmethakanbesel/market-harvester/internal/repository/run"
	"github.com/ahmethakanbesel/market-harvester/internal/run"
	"github.com/ahmethakanbesel/market-harvester/internal/scheduler"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper/newsmaker"
	"github.com/ahmethakanbesel/market-harvester/internal/server"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	closeLog := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer func() { _ = closeLog() }()

	// Root context: cancelled on SIGINT/SIGTERM so an in-flight harvest
	// stops promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Open database
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Cache store: Redis when configured and reachable, memory otherwise.
	store := openStore(rootCtx, cfg)
	defer func() { _ = store.Close() }()

	// Source scraper
	scr := newsmaker.New(
		newsmaker.WithBaseURL(cfg.SourceBaseURL),
		newsmaker.WithClient(&http.Client{Timeout: cfg.RequestTimeout}),
		newsmaker.WithRetryDelay(cfg.RetryBaseDelay),
		newsmaker.WithRequestsPerSecond(cfg.RequestsPerSecond),
	)

	// Harvest core
	historySvc := history.NewService(store)
	directory := harvest.NewDirectory(scr, cfg.DirectoryTTL)
	orchestrator := harvest.NewOrchestrator(
		directory,
		harvest.NewAccumulator(scr,
			harvest.WithPageSize(cfg.PageSize),
			harvest.WithPageDelay(cfg.PageDelay),
		),
		historySvc,
		harvest.WithWorkers(cfg.Workers),
		harvest.WithCacheTTL(cfg.CacheTTL),
	)

	// Services
	runSvc := run.NewService(runrepo.NewRepository(db.DB), orchestrator)
	feedSvc := feed.NewService(scr)

	// Runs left running by a previous process can never finish.
	if err := runSvc.RecoverStale(rootCtx); err != nil {
		slog.Error("failed to recover stale runs", "error", err)
	}

	sched := scheduler.New(runSvc, feedSvc, cfg.MaxRowsPerSymbol)
	if err := sched.Register(cfg.HarvestSchedule, cfg.FeedSchedule); err != nil {
		slog.Error("failed to register schedules", "error", err)
		os.Exit(1)
	}
	sched.Start(rootCtx)

	startupDone := make(chan struct{})
	go func() {
		defer close(startupDone)
		if cfg.RunOnStart {
			sched.RunNow(rootCtx)
		}
	}()

	// HTTP server: rootCtx is used as BaseContext so every request context
	// inherits from it and is cancelled on shutdown.
	srv := server.New(rootCtx, cfg.Port, server.Services{
		History: historySvc,
		Runs:    runSvc,
		Feeds:   feedSvc,
		Symbols: directory,
		Cycles:  orchestrator,
		MaxRows: cfg.MaxRowsPerSymbol,
	})

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "workers", cfg.Workers)
	<-done

	// Cancel root context first so an in-flight harvest begins winding down
	// immediately.
	rootCancel()

	// Wait for scheduled and startup jobs to drain before shutting down HTTP.
	sched.Stop()
	<-startupDone

	// Then drain connections with a deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) cache.Store {
	if cfg.RedisAddr == "" {
		slog.Info("using in-memory cache store")
		return cache.NewMemoryStore()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := cache.NewRedisStore(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("redis unreachable, falling back to in-memory cache store", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemoryStore()
	}
	slog.Info("using redis cache store", "addr", cfg.RedisAddr)
	return store
}
