package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
)

// Report periods.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// ReportService aggregates settled sales. Orders count once they are paid, items
// unless they were cancelled.
type ReportService struct {
	db *gorm.DB
}

// NewReportService constructs a ReportService.
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// ReportRange bounds a report by closing time. To is exclusive; nil leaves a side open.
type ReportRange struct {
	From *time.Time
	To   *time.Time
}

// SalesBucket is the paid revenue of one period.
type SalesBucket struct {
	Period        time.Time       `json:"period"`
	Orders        int             `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Discounts     decimal.Decimal `json:"discounts"`
}

// SalesTotals sums a whole sales report.
type SalesTotals struct {
	Orders        int             `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// ProductSales is one line of the best sellers report.
type ProductSales struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	OrderCount  int64           `json:"order_count"`
}

// CategorySales is the revenue of one menu category.
type CategorySales struct {
	CategoryID uuid.UUID       `json:"category_id"`
	Category   string          `json:"category"`
	ItemsSold  int64           `json:"items_sold"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int64           `json:"order_count"`
}

// WaiterSales is the revenue of the orders one waiter opened.
type WaiterSales struct {
	WaiterID      uuid.UUID       `json:"waiter_id"`
	Waiter        string          `json:"waiter"`
	OrderCount    int64           `json:"order_count"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"average_ticket" gorm:"-"`
}

// HourSales is the paid revenue of orders opened within one hour of the day (UTC).
type HourSales struct {
	Hour    int             `json:"hour"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// MethodSales is the payment volume of one method.
type MethodSales struct {
	Method string          `json:"method"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

func closedWithin(rng ReportRange) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if rng.From != nil {
			db = db.Where("orders.closed_at >= ?", *rng.From)
		}
		if rng.To != nil {
			db = db.Where("orders.closed_at < ?", *rng.To)
		}
		return db
	}
}

func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// truncatePeriod returns the start of the period holding t. Weeks start on Monday.
func truncatePeriod(t time.Time, period string) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func (s *ReportService) paidOrders(ctx context.Context, rng ReportRange) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("id, subtotal, service_charge, discount, total, opened_at, closed_at").
		Where("orders.status = ?", models.OrderStatusPaid).
		Scopes(closedWithin(rng)).
		Find(&orders).Error
	return orders, err
}

// SalesByPeriod groups paid orders by the day, week or month they closed in, newest
// first. Unknown periods fall back to days.
func (s *ReportService) SalesByPeriod(ctx context.Context, rng ReportRange, period string) ([]SalesBucket, SalesTotals, error) {
	orders, err := s.paidOrders(ctx, rng)
	if err != nil {
		return nil, SalesTotals{}, err
	}

	buckets := make(map[time.Time]*SalesBucket)
	totals := SalesTotals{Revenue: decimal.Zero}
	for _, order := range orders {
		if order.ClosedAt == nil {
			continue
		}
		key := truncatePeriod(*order.ClosedAt, period)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &SalesBucket{
				Period:        key,
				Revenue:       decimal.Zero,
				Subtotal:      decimal.Zero,
				ServiceCharge: decimal.Zero,
				Discounts:     decimal.Zero,
			}
			buckets[key] = bucket
		}
		bucket.Orders++
		bucket.Revenue = bucket.Revenue.Add(order.Total)
		bucket.Subtotal = bucket.Subtotal.Add(order.Subtotal)
		bucket.ServiceCharge = bucket.ServiceCharge.Add(order.ServiceCharge)
		bucket.Discounts = bucket.Discounts.Add(order.Discount)

		totals.Orders++
		totals.Revenue = totals.Revenue.Add(order.Total)
	}
	totals.AverageTicket = average(totals.Revenue, totals.Orders)

	out := make([]SalesBucket, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.AverageTicket = average(bucket.Revenue, bucket.Orders)
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.After(out[j].Period) })
	return out, totals, nil
}

// TopProducts ranks products by units sold.
func (s *ReportService) TopProducts(ctx context.Context, rng ReportRange, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []ProductSales
	err := s.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select(`order_items.product_id AS product_id,
			order_items.product_name AS product_name,
			SUM(order_items.quantity) AS quantity,
			COALESCE(SUM(order_items.subtotal), 0) AS revenue,
			COUNT(DISTINCT order_items.order_id) AS order_count`).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ? AND order_items.status <> ?", models.OrderStatusPaid, models.ItemStatusCancelled).
		Scopes(closedWithin(rng)).
		Group("order_items.product_id, order_items.product_name").
		Order("quantity DESC, revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// RevenueByCategory sums item revenue per category. Products without a category are left out.
func (s *ReportService) RevenueByCategory(ctx context.Context, rng ReportRange) ([]CategorySales, error) {
	var rows []CategorySales
	err := s.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select(`categories.id AS category_id,
			categories.name AS category,
			SUM(order_items.quantity) AS items_sold,
			COALESCE(SUM(order_items.subtotal), 0) AS revenue,
			COUNT(DISTINCT order_items.order_id) AS order_count`).
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN categories ON categories.id = products.category_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ? AND order_items.status <> ?", models.OrderStatusPaid, models.ItemStatusCancelled).
		Scopes(closedWithin(rng)).
		Group("categories.id, categories.name").
		Order("revenue DESC").
		Scan(&rows).Error
	return rows, err
}

// SalesByWaiter sums paid orders per waiter who opened them.
func (s *ReportService) SalesByWaiter(ctx context.Context, rng ReportRange) ([]WaiterSales, error) {
	var rows []WaiterSales
	if err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(`users.id AS waiter_id,
			users.name AS waiter,
			COUNT(orders.id) AS order_count,
			COALESCE(SUM(orders.total), 0) AS revenue`).
		Joins("JOIN users ON users.id = orders.waiter_id").
		Where("orders.status = ?", models.OrderStatusPaid).
		Scopes(closedWithin(rng)).
		Group("users.id, users.name").
		Order("revenue DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AverageTicket = average(rows[i].Revenue, int(rows[i].OrderCount))
	}
	return rows, nil
}

// SalesByHour groups paid orders by the hour they were opened, earliest hour first.
func (s *ReportService) SalesByHour(ctx context.Context, rng ReportRange) ([]HourSales, error) {
	orders, err := s.paidOrders(ctx, rng)
	if err != nil {
		return nil, err
	}

	var hours [24]HourSales
	for _, order := range orders {
		h := order.OpenedAt.UTC().Hour()
		hours[h].Orders++
		hours[h].Revenue = hours[h].Revenue.Add(order.Total)
	}

	out := make([]HourSales, 0)
	for h, sales := range hours {
		if sales.Orders == 0 {
			continue
		}
		sales.Hour = h
		out = append(out, sales)
	}
	return out, nil
}

// PaymentMethods breaks recorded payments down by method, largest volume first.
// The range applies to when the payment was taken.
func (s *ReportService) PaymentMethods(ctx context.Context, rng ReportRange) ([]MethodSales, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("method, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total")
	if rng.From != nil {
		query = query.Where("created_at >= ?", *rng.From)
	}
	if rng.To != nil {
		query = query.Where("created_at < ?", *rng.To)
	}

	var rows []MethodSales
	err := query.Group("method").Order("total DESC").Scan(&rows).Error
	return rows, err
}
