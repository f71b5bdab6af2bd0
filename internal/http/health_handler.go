package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	CacheWarm bool      `json:"cache_warm"`
}

// HealthIndexAction handles the health check endpoint
func (h *handlers) HealthIndexAction(c *fiber.Ctx) error {
	dbStatus := "ok"

	// Check database connectivity
	db := h.DBManager.GetConnection()
	if db == nil {
		dbStatus = "error"
		h.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			h.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
			dbStatus = "error"
			h.Logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		DBStatus:  dbStatus,
	}
	if h.Service != nil {
		health.CacheWarm = h.Service.CacheStatus(c.UserContext()).Warm
	}

	if dbStatus != "ok" {
		health.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return c.JSON(health)
}
