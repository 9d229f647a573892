package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abduss/stopsurvey/internal/auth"
	"github.com/abduss/stopsurvey/internal/catalog"
	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/logger"
	"github.com/abduss/stopsurvey/internal/metrics"
	"github.com/abduss/stopsurvey/internal/presigned"
	"github.com/abduss/stopsurvey/internal/submission"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	Logger       *zap.Logger
	Catalog      *catalog.Catalog
	AuthService  *auth.Service
	Orchestrator *submission.Orchestrator
	// Presigned is set only for the MinIO store.
	Presigned *presigned.Service
	// Checks are pinged by the readiness check, keyed by component name.
	Checks map[string]any
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())
	router.MaxMultipartMemory = deps.Config.Server.MaxUploadBytes

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.Presigned != nil {
		presigned.RegisterRoutes(api, deps.Presigned)
	}
	if deps.Catalog != nil {
		catalog.RegisterRoutes(api, deps.Catalog)
	}
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))

		if deps.Orchestrator != nil {
			submission.RegisterRoutes(protected, deps.Orchestrator, deps.Config.Server.MaxUploadBytes)
		}
	}

	return router
}
