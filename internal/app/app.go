// Package app assembles the intake pipeline from configuration for the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abduss/stopsurvey/internal/auth"
	"github.com/abduss/stopsurvey/internal/catalog"
	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/media"
	"github.com/abduss/stopsurvey/internal/server"
	"github.com/abduss/stopsurvey/internal/storage"
	"github.com/abduss/stopsurvey/internal/submission"
	"github.com/abduss/stopsurvey/internal/survey"
)

// App is a fully wired pipeline.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Catalog      *catalog.Catalog
	Backends     *storage.Backends
	Auth         *auth.Service
	Orchestrator *submission.Orchestrator
}

// Build loads the catalog, opens the configured backends and wires the orchestrator.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Pipeline.Location()
	if err != nil {
		return nil, err
	}

	backends, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	stamper := media.NewStamper(media.Options{
		Location: loc,
		FontPath: cfg.Pipeline.FontPath,
		Quality:  cfg.Pipeline.JPEGQuality,
		Logger:   log.Named("media"),
	})
	orchestrator := submission.NewOrchestrator(survey.NewValidator(cat), stamper, backends.Store, backends.Ledger, submission.Options{
		Concurrency:   cfg.Pipeline.UploadConcurrency,
		StoreBackend:  backends.StoreName,
		LedgerBackend: backends.LedgerName,
		Logger:        log.Named("submission"),
	})

	return &App{
		Config:       cfg,
		Logger:       log,
		Catalog:      cat,
		Backends:     backends,
		Auth:         auth.NewService(cat, cfg.Auth),
		Orchestrator: orchestrator,
	}, nil
}

// Dependencies returns the HTTP router inputs.
func (a *App) Dependencies() server.Dependencies {
	return server.Dependencies{
		Config:       a.Config,
		Logger:       a.Logger,
		Catalog:      a.Catalog,
		AuthService:  a.Auth,
		Orchestrator: a.Orchestrator,
		Presigned:    a.Backends.Presigned,
		Checks:       a.Backends.Checks(),
	}
}

// Close releases backend connections.
func (a *App) Close() error {
	return a.Backends.Close()
}
