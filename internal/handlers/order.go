package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/restopos/internal/middleware"
	"github.com/example/restopos/internal/services"
	"github.com/example/restopos/internal/utils"
)

// OrderHandler exposes the order lifecycle.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	TableID      *uuid.UUID `json:"table_id"`
	Kind         string     `json:"kind" validate:"omitempty,oneof=table counter"`
	CustomerName string     `json:"customer_name" validate:"max=120"`
	Note         string     `json:"note" validate:"max=500"`
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity"`
	Note      string    `json:"note" validate:"max=255"`
}

type itemStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type cancelOrderRequest struct {
	Reason   string `json:"reason" validate:"max=255"`
	Password string `json:"password"`
}

type transferOrderRequest struct {
	TableID uuid.UUID `json:"table_id" validate:"required"`
}

type adjustOrderRequest struct {
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Discount      decimal.Decimal `json:"discount"`
}

// CreateOrder opens an order for a table or the counter.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input := services.CreateOrderInput{
		TableID:      req.TableID,
		Kind:         req.Kind,
		CustomerName: req.CustomerName,
		Note:         req.Note,
	}
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		input.WaiterID = &userID
	}

	order, err := h.orders.CreateOrder(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns orders filtered by status, table and opening date.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, 20)

	tableID, err := queryID(c, "table_id")
	if err != nil {
		return err
	}
	from, err := utils.ParseDate(c.Query("from"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid from date")
	}
	to, err := utils.ParseDate(c.Query("to"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid to date")
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}

	orders, total, err := h.orders.ListOrders(c.UserContext(), services.OrderFilter{
		Status:  c.Query("status"),
		TableID: tableID,
		From:    from,
		To:      to,
		Limit:   pg.Limit,
		Offset:  pg.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": pg.Meta(total)})
}

// GetOrder returns one order with items and payments.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// AddItem appends a product line to an order.
func (h *OrderHandler) AddItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := h.orders.AddItem(c.UserContext(), services.AddItemInput{
		OrderID:   id,
		ProductID: req.ProductID,
		Quantity:  quantity,
		Note:      req.Note,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

// UpdateItemStatus moves an item through the kitchen states.
func (h *OrderHandler) UpdateItemStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := paramID(c, "itemId")
	if err != nil {
		return err
	}

	var req itemStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	item, ready, err := h.orders.UpdateItemStatus(c.UserContext(), id, itemID, req.Status)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": item, "order_ready": ready})
}

// RemoveItem deletes a line from an order.
func (h *OrderHandler) RemoveItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := paramID(c, "itemId")
	if err != nil {
		return err
	}

	item, err := h.orders.RemoveItem(c.UserContext(), id, itemID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": item})
}

// CloseOrder settles a fully paid order.
func (h *OrderHandler) CloseOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.CloseOrder(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CancelOrder cancels an order after the caller re-enters their supervisor password.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cancelOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.orders.CancelOrder(c.UserContext(), services.CancelOrderInput{
		OrderID: id,
		Reason:  req.Reason,
		Actor:   services.Actor{UserID: userID, Password: req.Password},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// TransferOrder moves an order to another table.
func (h *OrderHandler) TransferOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req transferOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.orders.TransferOrder(c.UserContext(), id, req.TableID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// AdjustOrder sets service charge and discount.
func (h *OrderHandler) AdjustOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req adjustOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.orders.ApplyAdjustments(c.UserContext(), id, req.ServiceCharge, req.Discount)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// KitchenQueue lists what the kitchen still has to prepare.
func (h *OrderHandler) KitchenQueue(c *fiber.Ctx) error {
	tickets, err := h.orders.KitchenQueue(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": tickets})
}
