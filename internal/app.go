// Package internal contains core application functionality
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"salesboard/internal/catalog"
	"salesboard/internal/charts"
	"salesboard/internal/config"
	"salesboard/internal/database"
	apihttp "salesboard/internal/http"
	"salesboard/internal/jobs"
	"salesboard/internal/logging"
	"salesboard/internal/metrics"
	"salesboard/internal/metricscache"
)

// stockAlertsTTL is how long the low stock list is cached.
const stockAlertsTTL = 5 * time.Minute

// Application wires configuration, storage, the metrics service, background
// jobs and the HTTP server.
type Application struct {
	Config      *config.Config
	Logger      *slog.Logger
	DBManager   *database.DBManager
	Cache       *metricscache.Cache
	Service     *metrics.Service
	StockAlerts *catalog.StockAlerts
	Scheduler   *jobs.Scheduler
	Server      *fiber.App

	serverErr chan error
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.New(cfg)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbManager.GetConnection()

	var store metricscache.Store
	var purger jobs.ExpiredEntryPurger
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		store = metricscache.NewMemoryStore()
	default:
		dbStore := metricscache.NewDBStore(db, logger)
		store, purger = dbStore, dbStore
	}
	cache := metricscache.New(store, logger)

	service := metrics.NewService(dbManager, cache, logger, metrics.ServiceConfig{
		PushdownThresholdDays: cfg.PushdownThresholdDays,
		TopLimit:              cfg.TopLimit,
		RecentLimit:           cfg.RecentOrdersLimit,
		Workers:               cfg.PushdownWorkers,
		CacheTTL:              cfg.CacheTTL(),
	})

	alerts := catalog.NewStockAlerts(db, logger, stockAlertsTTL)

	scheduler := jobs.NewScheduler(service, purger, logger, jobs.Config{
		WarmInterval: cfg.WarmerInterval(),
	})

	server := apihttp.NewServer(apihttp.Deps{
		DBManager:   dbManager,
		Service:     service,
		StockAlerts: alerts,
		Formatter:   charts.NewFormatter(cfg.Currency),
		Logger:      logger,
	})

	return &Application{
		Config:      cfg,
		Logger:      logger,
		DBManager:   dbManager,
		Cache:       cache,
		Service:     service,
		StockAlerts: alerts,
		Scheduler:   scheduler,
		Server:      server,
		serverErr:   make(chan error, 1),
	}, nil
}

// StartAsync starts the background jobs and the HTTP listener without blocking.
func (a *Application) StartAsync() error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start background jobs: %w", err)
	}

	addr := ":" + a.Config.GetPort()
	a.Logger.Info("Starting HTTP server", slog.String("addr", addr))
	go func() {
		a.serverErr <- a.Server.Listen(addr)
	}()
	return nil
}

// Errors reports a listener that stopped on its own.
func (a *Application) Errors() <-chan error {
	return a.serverErr
}

// Shutdown stops the HTTP server and background jobs and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if a.Server != nil {
		if err := a.Server.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		a.Scheduler.Stop()
	}
	if a.DBManager != nil {
		if db := a.DBManager.GetConnection(); db != nil {
			if sqlDB, err := db.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					errs = append(errs, fmt.Errorf("database: %w", err))
				}
			}
		}
	}

	return errors.Join(errs...)
}
