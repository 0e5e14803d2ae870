package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/restopos/internal/services"
)

// StockHandler exposes inventory administration.
type StockHandler struct {
	stock *services.StockLedger
}

// NewStockHandler constructs StockHandler.
func NewStockHandler(stock *services.StockLedger) *StockHandler {
	return &StockHandler{stock: stock}
}

type enableTrackingRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
	Minimum  int `json:"minimum" validate:"min=0"`
}

type adjustStockRequest struct {
	Quantity *int   `json:"quantity"`
	Minimum  *int   `json:"minimum"`
	Reason   string `json:"reason" validate:"max=255"`
}

// ListTracked returns tracked products; ?low=true keeps only those at or below minimum.
func (h *StockHandler) ListTracked(c *fiber.Ctx) error {
	products, err := h.stock.ListTracked(c.UserContext(), c.QueryBool("low"), c.Query("search"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": products})
}

// Alerts returns active products that need restocking.
func (h *StockHandler) Alerts(c *fiber.Ctx) error {
	products, err := h.stock.LowStockAlerts(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": products, "count": len(products)})
}

// EnableTracking starts counting a product.
func (h *StockHandler) EnableTracking(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req enableTrackingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.stock.EnableTracking(c.UserContext(), id, req.Quantity, req.Minimum)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DisableTracking stops counting a product.
func (h *StockHandler) DisableTracking(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.stock.DisableTracking(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// Adjust sets a counted quantity or a new minimum.
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req adjustStockRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.stock.Adjust(c.UserContext(), id, req.Quantity, req.Minimum, req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// Movements returns the audit trail of a product.
func (h *StockHandler) Movements(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	movements, err := h.stock.Movements(c.UserContext(), id, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": movements})
}
