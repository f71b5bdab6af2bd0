package http

import (
	"github.com/gofiber/fiber/v2"

	"salesboard/internal/charts"
	"salesboard/internal/metrics"
)

func metricsRequest(c *fiber.Ctx) metrics.Request {
	return metrics.Request{
		Period:   c.Query("period", "7"),
		Start:    c.Query("start"),
		End:      c.Query("end"),
		Channel:  c.Query("channel"),
		Status:   c.Query("status"),
		Strategy: c.Query("strategy"),
	}
}

// MetricsIndexAction returns the metrics summary for the requested window.
func (h *handlers) MetricsIndexAction(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	summary, err := h.Service.Compute(ctx, metricsRequest(c))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// MetricsChartsAction returns the chart projection of the metrics summary.
// The metric query parameter selects the line chart's data set.
func (h *handlers) MetricsChartsAction(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	summary, err := h.Service.Compute(ctx, metricsRequest(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"period":     summary.Period,
		"start_date": summary.StartDate,
		"end_date":   summary.EndDate,
		"charts":     h.Formatter.Project(summary, charts.ParseMetric(c.Query("metric"))),
	})
}
