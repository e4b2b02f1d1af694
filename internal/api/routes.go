// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/session"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Workspace *session.Manager
	Store     *measurement.Store // nil disables the dataset routes
	Version   string
}

// Handlers holds all handler instances
type Handlers struct {
	Health      HealthHandler
	Models      ModelHandler
	Calculators CalculatorHandler
	Datasets    DatasetHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	var store DatasetStore
	if deps.Store != nil {
		store = deps.Store
	}
	return &Handlers{
		Health:      NewHealthHandler(deps.Version, deps.Workspace),
		Models:      NewModelHandler(deps.Workspace),
		Calculators: NewCalculatorHandler(deps.Workspace),
		Datasets:    NewDatasetHandler(store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Calculator selection
	apiGroup.GET("/calculators", handlers.Calculators.HandleGetCalculators)
	apiGroup.PUT("/calculators", handlers.Calculators.HandleSetCalculator)
	apiGroup.GET("/calculators/reflections", handlers.Calculators.HandleReflections)

	// Models
	modelGroup := apiGroup.Group("/models")
	modelGroup.POST("", handlers.Models.HandleCreateModel)
	modelGroup.GET("", handlers.Models.HandleListModels)
	modelGroup.GET("/:id", handlers.Models.HandleGetModel)
	modelGroup.DELETE("/:id", handlers.Models.HandleDeleteModel)
	modelGroup.POST("/:id/items", handlers.Models.HandleAddItem)
	modelGroup.POST("/:id/items/:index/duplicate", handlers.Models.HandleDuplicateItem)
	modelGroup.DELETE("/:id/items/:index", handlers.Models.HandleRemoveItem)
	modelGroup.GET("/:id/parameters", handlers.Models.HandleGetParameters)
	modelGroup.PUT("/:id/parameters", handlers.Models.HandleBulkUpdate)
	modelGroup.POST("/:id/reflectivity", handlers.Models.HandleReflectivity)
	modelGroup.POST("/:id/reflectivity/msgpack", handlers.Models.HandleReflectivityMsgpack)
	modelGroup.GET("/:id/sld", handlers.Models.HandleSLDProfile)
	modelGroup.GET("/:id/compare/:dataset", handlers.Models.HandleCompare)
	modelGroup.GET("/:id/storage", handlers.Models.HandleStorage)

	// Measured data
	datasetGroup := apiGroup.Group("/datasets")
	datasetGroup.POST("", handlers.Datasets.HandleUploadDataset)
	datasetGroup.GET("", handlers.Datasets.HandleListDatasets)
	datasetGroup.GET("/:name", handlers.Datasets.HandleGetDataset)
	datasetGroup.DELETE("/:name", handlers.Datasets.HandleDeleteDataset)
}

// MiddlewareOptions tunes SetupMiddleware
type MiddlewareOptions struct {
	Logger         *slog.Logger
	RequestLogging bool
	BodyLimit      string
	Timeout        time.Duration
	AllowOrigins   []string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !opts.RequestLogging || c.Request().URL.Path == "/api/health"
		},
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      opts.Timeout,
			ErrorMessage: "Request timeout - calculation took too long",
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/datasets") &&
					c.Request().Method == http.MethodPost
			},
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if len(opts.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
