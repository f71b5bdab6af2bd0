package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/cache"
)

// CacheStatusAction reports whether the metrics cache is warm and how many
// summaries it holds.
func (h *handlers) CacheStatusAction(c *fiber.Ctx) error {
	return c.JSON(h.Service.CacheStatus(c.UserContext()))
}

// CachePurgeAction drops cached summaries, the generic caches and the stock
// alerts.
func (h *handlers) CachePurgeAction(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	summaries, err := h.Service.InvalidateCache(ctx)
	if err != nil {
		h.Logger.Error("Failed to invalidate metrics cache", slog.Any("error", err))
		return err
	}

	rowsAffected, err := cache.PurgeAllCaches(h.DBManager.GetConnection())
	if err != nil {
		h.Logger.Error("Failed to clear generic_cache", slog.Any("error", err))
		return err
	}

	if h.StockAlerts != nil {
		h.StockAlerts.Invalidate()
	}

	h.Logger.Info("Caches purged successfully",
		slog.Int("summaries", summaries),
		slog.Int64("rows_deleted", rowsAffected))

	return c.JSON(fiber.Map{
		"summaries_purged": summaries,
		"rows_deleted":     rowsAffected,
	})
}
