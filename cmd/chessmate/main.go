package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "github.com/kapu/chessmate/internal/config"
	"github.com/kapu/chessmate/internal/httpapi"
	"github.com/kapu/chessmate/internal/lock"
	"github.com/kapu/chessmate/internal/msgcat"
	"github.com/kapu/chessmate/internal/obslog"
	"github.com/kapu/chessmate/internal/render"
	"github.com/kapu/chessmate/internal/service"
	"github.com/kapu/chessmate/internal/session"
	"github.com/kapu/chessmate/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	var st store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("store init failed", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemoryStore()
	}
	defer func() { _ = st.Close() }()

	locker, err := lock.NewLocker(cfg.RedisURL, cfg.LockTTL)
	if err != nil {
		logger.Fatal("locker init failed", zap.Error(err))
	}
	defer func() { _ = locker.Close() }()

	engine, err := session.NewEngine(st, locker, cfg.GameTTL, cfg.LockWait, logger)
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}

	catalog, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		logger.Fatal("message catalog init failed", zap.Error(err))
	}

	svc, err := service.New(st, engine, render.NewRenderer(), catalog, logger)
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}

	sweeper, err := session.NewSweeper(engine, cfg.SweepInterval, logger)
	if err != nil {
		logger.Fatal("sweeper init failed", zap.Error(err))
	}
	if err := sweeper.Start(); err != nil {
		logger.Fatal("sweeper start failed", zap.Error(err))
	}
	defer func() { _ = sweeper.Stop() }()

	server := httpapi.NewServer(svc, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			logger.Warn("server shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}
}
