package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/arenabuilder"
	appcfg "github.com/park285/linkrace-arena/internal/config"
	"github.com/park285/linkrace-arena/internal/obslog"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Console: cfg.Log.Console,
		ToFile:  cfg.Log.ToFile,
		File:    cfg.Log.File,
		Caller:  cfg.Log.Caller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := arenabuilder.New(ctx, cfg)
	if err != nil {
		logger.Fatal("arena_init_error", zap.Error(err))
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	go func() {
		if err := deps.Hub.Relay(relayCtx, deps.Redis, nil); err != nil {
			logger.Error("event_relay_error", zap.Error(err))
		}
	}()
	deps.Scheduler.Start()

	spectator := &http.Server{
		Addr:              cfg.SpectatorAddr,
		Handler:           deps.SpectatorHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info("spectator_listen", zap.String("addr", cfg.SpectatorAddr))
		if err := spectator.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		if err := deps.API.ListenAndServe(cfg.HTTPAddr); err != nil {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("arena_shutdown", zap.String("reason", "signal"))
	case err := <-errc:
		logger.Error("arena_listen_error", zap.Error(err))
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := deps.API.Shutdown(sctx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	if err := spectator.Shutdown(sctx); err != nil {
		logger.Warn("spectator_shutdown_error", zap.Error(err))
	}
	stopRelay()
	deps.Close(sctx)
	logger.Info("arena_stopped")
}
