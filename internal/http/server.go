// Package http exposes the metrics core over a JSON API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/karloscodes/cartridge"

	"salesboard/internal/catalog"
	"salesboard/internal/charts"
	"salesboard/internal/metrics"
)

// DefaultRequestTimeout bounds each metrics computation.
const DefaultRequestTimeout = 30 * time.Second

// Deps are the collaborators shared by every handler.
type Deps struct {
	DBManager      cartridge.DBManager
	Service        *metrics.Service
	StockAlerts    *catalog.StockAlerts
	Formatter      *charts.Formatter
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

type handlers struct {
	Deps
}

// NewServer builds the fiber app with all API routes mounted.
func NewServer(deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Formatter == nil {
		deps.Formatter = charts.NewFormatter("")
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = DefaultRequestTimeout
	}

	app := fiber.New(fiber.Config{
		AppName:               "salesboard",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})
	app.Use(recover.New())

	mountRoutes(app, &handlers{Deps: deps})
	return app
}

// mountRoutes registers the API routes on app.
func mountRoutes(app *fiber.App, h *handlers) {
	app.Get("/health", h.HealthIndexAction)

	api := app.Group("/api")
	api.Get("/metrics", h.MetricsIndexAction)
	api.Get("/metrics/charts", h.MetricsChartsAction)
	api.Post("/orders", h.OrdersImportAction)
	api.Get("/stock-alerts", h.StockAlertsIndexAction)
	api.Get("/cache/status", h.CacheStatusAction)
	api.Post("/cache/purge", h.CachePurgeAction)
}

func (h *handlers) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.RequestTimeout)
}

// errorHandler renders errors as JSON. Invalid requests map to 400 and
// store failures to 503.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
		case errors.Is(err, metrics.ErrInvalidRequest):
			status = fiber.StatusBadRequest
		case errors.Is(err, metrics.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
			status = fiber.StatusServiceUnavailable
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Any("error", err))
		}

		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
}
