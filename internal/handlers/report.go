package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/restopos/internal/services"
)

// ReportHandler serves the manager sales reports.
type ReportHandler struct {
	reports *services.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// parseRange reads the inclusive from/to dates (YYYY-MM-DD, UTC) of a report.
func parseRange(c *fiber.Ctx) (services.ReportRange, error) {
	var rng services.ReportRange
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return rng, fiber.NewError(fiber.StatusBadRequest, "invalid from date")
		}
		rng.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return rng, fiber.NewError(fiber.StatusBadRequest, "invalid to date")
		}
		end := t.AddDate(0, 0, 1)
		rng.To = &end
	}
	return rng, nil
}

// Sales returns paid revenue grouped by day, week or month.
func (h *ReportHandler) Sales(c *fiber.Ctx) error {
	rng, err := parseRange(c)
	if err != nil {
		return err
	}
	buckets, totals, err := h.reports.SalesByPeriod(c.UserContext(), rng, c.Query("period", services.PeriodDay))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"periods": buckets, "totals": totals}})
}

// Products returns the best selling products.
func (h *ReportHandler) Products(c *fiber.Ctx) error {
	rng, err := parseRange(c)
	if err != nil {
		return err
	}
	rows, err := h.reports.TopProducts(c.UserContext(), rng, c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// Categories returns revenue per menu category.
func (h *ReportHandler) Categories(c *fiber.Ctx) error {
	rng, err := parseRange(c)
	if err != nil {
		return err
	}
	rows, err := h.reports.RevenueByCategory(c.UserContext(), rng)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// Waiters returns revenue per waiter.
func (h *ReportHandler) Waiters(c *fiber.Ctx) error {
	rng, err := parseRange(c)
	if err != nil {
		return err
	}
	rows, err := h.reports.SalesByWaiter(c.UserContext(), rng)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// Hours returns revenue per hour of the day.
func (h *ReportHandler) Hours(c *fiber.Ctx) error {
	rng, err := parseRange(c)
	if err != nil {
		return err
	}
	rows, err := h.reports.SalesByHour(c.UserContext(), rng)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// PaymentMethods returns payment volume per method.
func (h *ReportHandler) PaymentMethods(c *fiber.Ctx) error {
	rng, err := parseRange(c)
	if err != nil {
		return err
	}
	rows, err := h.reports.PaymentMethods(c.UserContext(), rng)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}
