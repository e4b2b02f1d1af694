package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/refl-model/backend/internal/api"
	"github.com/refl-model/backend/internal/calculators"
	"github.com/refl-model/backend/internal/config"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/session"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	configPath := filepath.Join(filepath.Dir(exePath), "ReflectometryServer.config")
	if p := os.Getenv("REFL_CONFIG"); p != "" {
		configPath = p
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Measurement store
	store, err := measurement.NewStore(cfg.GetMeasurementPath(), measurement.StoreOptions{
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		Threads:     cfg.Advanced.DuckDBThreads,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open measurement store: %w", err)
	}
	defer store.Close()

	// Calculator factory and workspace
	factory, err := calculators.NewFactory(calculators.GetGlobalRegistry(), logger)
	if err != nil {
		return err
	}
	if err := factory.Switch(cfg.Calculation.DefaultCalculator); err != nil {
		return fmt.Errorf("default calculator: %w", err)
	}
	ws, err := session.NewManager(session.Options{
		Factory:   factory,
		Store:     store,
		Logger:    logger,
		MaxModels: cfg.Calculation.MaxModels,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background model cleanup
	if cfg.Calculation.CleanupIntervalMinutes > 0 && cfg.Calculation.ModelTimeoutMinutes > 0 {
		go func() {
			ticker := time.NewTicker(cfg.CleanupInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := ws.CleanupOldModels(cfg.ModelTimeout()); n > 0 {
						logger.Info("idle models dropped", "count", n)
					}
				}
			}
		}()
	}

	api.ShowErrorDetails = cfg.Advanced.ShowErrorDetails

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, api.MiddlewareOptions{
		Logger:         logger,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		Timeout:        time.Duration(cfg.Calculation.RequestTimeoutSeconds) * time.Second,
		AllowOrigins:   cfg.GetAllowOrigins(),
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Workspace: ws,
		Store:     store,
		Version:   Version,
	}))

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("reflectometry server starting",
		"version", Version,
		"build", BuildTime,
		"config", configPath,
		"listen", cfg.GetServerAddr(),
		"data", cfg.GetDataDir(),
		"calculator", factory.CurrentName(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
