package http

import (
	"github.com/gofiber/fiber/v2"

	"salesboard/internal/catalog"
)

// StockAlertsIndexAction lists products at or below their minimum stock.
func (h *handlers) StockAlertsIndexAction(c *fiber.Ctx) error {
	alerts, err := h.StockAlerts.Get()
	if err != nil {
		return err
	}
	if alerts == nil {
		alerts = []catalog.StockAlert{}
	}
	return c.JSON(fiber.Map{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
