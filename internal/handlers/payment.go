package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/restopos/internal/services"
	"github.com/example/restopos/internal/utils"
)

// PaymentHandler exposes the payment ledger.
type PaymentHandler struct {
	payments *services.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type recordPaymentRequest struct {
	OrderID     uuid.UUID       `json:"order_id" validate:"required"`
	Method      string          `json:"method" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	ChangeGiven decimal.Decimal `json:"change_given"`
	Note        string          `json:"note" validate:"max=255"`
}

// RecordPayment registers money received and returns the settlement state of the order.
func (h *PaymentHandler) RecordPayment(c *fiber.Ctx) error {
	var req recordPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	settlement, err := h.payments.RecordPayment(c.UserContext(), services.RecordPaymentInput{
		OrderID:     req.OrderID,
		Method:      req.Method,
		Amount:      req.Amount,
		ChangeGiven: req.ChangeGiven,
		Note:        req.Note,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": settlement})
}

// ReversePayment deletes a payment of an open order.
func (h *PaymentHandler) ReversePayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.payments.ReversePayment(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": payment})
}

// ListPayments returns payments filtered by order, method and date.
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, 50)

	orderID, err := queryID(c, "order_id")
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

	payments, total, err := h.payments.ListPayments(c.UserContext(), services.PaymentFilter{
		OrderID: orderID,
		Method:  c.Query("method"),
		From:    from,
		To:      to,
		Limit:   pg.Limit,
		Offset:  pg.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": payments, "pagination": pg.Meta(total)})
}

// Summary returns per-method totals of one day (today by default).
func (h *PaymentHandler) Summary(c *fiber.Ctx) error {
	day, err := utils.ParseDate(c.Query("date"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid date")
	}
	if day == nil {
		today := time.Now().UTC()
		day = &today
	}

	summary, err := h.payments.Summary(c.UserContext(), *day)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": summary})
}
