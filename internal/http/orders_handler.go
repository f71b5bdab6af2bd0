package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"salesboard/internal/orders"
)

// maxImportBatch caps the number of orders accepted per request.
const maxImportBatch = 5000

// OrdersImportAction upserts a JSON array of order-management API payloads.
// Cached metrics pick the change up through their fingerprints.
func (h *handlers) OrdersImportAction(c *fiber.Ctx) error {
	payload, err := orders.DecodeAPIOrders(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid orders payload: %v", err))
	}
	if len(payload) > maxImportBatch {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d orders per request", maxImportBatch))
	}

	now := time.Now().UTC()
	batch := make([]orders.Order, len(payload))
	for i, p := range payload {
		batch[i] = orders.FromAPI(p, now)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := orders.Upsert(ctx, h.Logger, h.DBManager.GetConnection(), batch); err != nil {
		return err
	}

	h.Logger.Info("Orders imported", slog.Int("count", len(batch)))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"imported": len(batch)})
}
