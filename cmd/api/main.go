package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/abduss/stopsurvey/internal/app"
	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/logger"
	"github.com/abduss/stopsurvey/internal/metrics"
	"github.com/abduss/stopsurvey/internal/server"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	zl, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		zl.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	a, err := app.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("build pipeline", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			zl.Warn("close backends", zap.Error(err))
		}
	}()

	router := server.NewRouter(a.Dependencies())

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("stopsurvey API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("store", a.Backends.StoreName),
			zap.String("ledger", a.Backends.LedgerName),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
