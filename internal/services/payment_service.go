package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
)

// PaymentTolerance absorbs cent rounding when a payment settles the last remaining amount.
var PaymentTolerance = decimal.New(1, -2)

const summaryTTL = 60 * time.Second

// PaymentService records and reverses payments against orders.
type PaymentService struct {
	db      *gorm.DB
	effects sideEffects
	log     *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, cache Cache, notifier Notifier, log *zap.Logger) *PaymentService {
	return &PaymentService{db: db, effects: newSideEffects(cache, notifier, log), log: log}
}

// RecordPaymentInput describes money received against an order.
type RecordPaymentInput struct {
	OrderID     uuid.UUID
	Method      string
	Amount      decimal.Decimal
	ChangeGiven decimal.Decimal
	Note        string
}

// Settlement is the state of an order's payments right after one was recorded.
// Complete is the signal callers use to decide whether to close the order.
type Settlement struct {
	Payment    *models.Payment `json:"payment"`
	OrderTotal string          `json:"order_total"`
	TotalPaid  string          `json:"total_pago"`
	Remaining  string          `json:"restante"`
	Complete   bool            `json:"pagamento_completo"`
}

// PaymentFilter narrows ListPayments.
type PaymentFilter struct {
	OrderID *uuid.UUID
	Method  string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// MethodTotal aggregates one payment method over a day.
type MethodTotal struct {
	Method string          `json:"method"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// PaymentSummary is the cashier's end-of-day view.
type PaymentSummary struct {
	Date       string          `json:"date"`
	ByMethod   []MethodTotal   `json:"by_method"`
	Orders     int             `json:"orders"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// RecordPayment stores a payment unless it would push the paid total past the order
// total by more than PaymentTolerance.
func (s *PaymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*Settlement, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, newError(ErrInvalidAmount)
	}
	if input.ChangeGiven.IsNegative() {
		return nil, &Error{Info: ErrInvalidAmount, Message: "change cannot be negative"}
	}
	if !models.IsPaymentMethod(input.Method) {
		return nil, NewError(ErrInvalidMethod, map[string]any{"accepted": models.PaymentMethods})
	}

	var (
		order      *models.Order
		settlement *Settlement
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, input.OrderID); err != nil {
			return err
		}
		if err := requireMutable(order); err != nil {
			return err
		}

		payments, err := loadPayments(tx, order.ID)
		if err != nil {
			return err
		}
		paid := models.SumPayments(payments)
		remaining := order.Total.Sub(paid)

		if amount.GreaterThan(remaining.Add(PaymentTolerance)) {
			return NewError(ErrOverpayment, map[string]any{
				"valor_restante": remaining.StringFixed(2),
			})
		}

		payment := &models.Payment{
			OrderID:     order.ID,
			Method:      input.Method,
			Amount:      amount,
			ChangeGiven: input.ChangeGiven.Round(2),
			Note:        strings.TrimSpace(input.Note),
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		paid = paid.Add(payment.Amount)
		remaining = order.Total.Sub(paid)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		settlement = &Settlement{
			Payment:    payment,
			OrderTotal: order.Total.StringFixed(2),
			TotalPaid:  paid.StringFixed(2),
			Remaining:  remaining.StringFixed(2),
			Complete:   paid.GreaterThanOrEqual(order.Total),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", settlement.Payment.ID.String()),
		zap.String("method", settlement.Payment.Method),
		zap.String("amount", settlement.Payment.Amount.StringFixed(2)),
		zap.String("remaining", settlement.Remaining),
		zap.Bool("complete", settlement.Complete))

	s.effects.after(ctx, []string{CacheKeySummaryAll}, NewEvent(EventPaymentRecorded, settlement))
	return settlement, nil
}

// ReversePayment deletes a payment of an order that has not been closed yet.
func (s *PaymentService) ReversePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(ErrPaymentNotFound)
			}
			return err
		}

		order, err := lockOrder(tx, payment.OrderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusPaid {
			return NewError(ErrOrderAlreadyClosed, map[string]any{"order_id": order.ID})
		}

		result := tx.Delete(&models.Payment{}, "id = ?", payment.ID)
		if result.Error != nil {
			return fmt.Errorf("delete payment %s: %w", payment.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return newError(ErrPaymentNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment reversed",
		zap.String("order_id", payment.OrderID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)))

	s.effects.after(ctx, []string{CacheKeySummaryAll}, NewEvent(EventPaymentReversed, &payment))
	return &payment, nil
}

// ListPayments returns a page of payments, newest first, with the total match count.
func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Payment{})

	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var payments []models.Payment
	if err := query.Order("created_at desc").Limit(limit).Offset(filter.Offset).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Summary aggregates the payments of one UTC day by method. Results are cached briefly
// and dropped whenever a payment is recorded or reversed.
func (s *PaymentService) Summary(ctx context.Context, day time.Time) (*PaymentSummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	date := start.Format("2006-01-02")
	key := CacheKeySummaryPrefix + date

	var cached PaymentSummary
	if s.effects.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	var payments []models.Payment
	if err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, start.AddDate(0, 0, 1)).
		Find(&payments).Error; err != nil {
		return nil, err
	}

	summary := &PaymentSummary{Date: date, ByMethod: []MethodTotal{}, GrandTotal: decimal.Zero}
	byMethod := make(map[string]*MethodTotal)
	orders := make(map[uuid.UUID]struct{})
	for _, p := range payments {
		total, ok := byMethod[p.Method]
		if !ok {
			total = &MethodTotal{Method: p.Method, Total: decimal.Zero}
			byMethod[p.Method] = total
		}
		total.Count++
		total.Total = total.Total.Add(p.Amount)
		summary.GrandTotal = summary.GrandTotal.Add(p.Amount)
		orders[p.OrderID] = struct{}{}
	}
	for _, total := range byMethod {
		summary.ByMethod = append(summary.ByMethod, *total)
	}
	sort.Slice(summary.ByMethod, func(i, j int) bool {
		return summary.ByMethod[i].Total.GreaterThan(summary.ByMethod[j].Total)
	})
	summary.Orders = len(orders)

	s.effects.cache.SetJSON(ctx, key, summary, summaryTTL)
	return summary, nil
}
