package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderStatusOpen         = "open"
	OrderStatusInProduction = "in_production"
	OrderStatusReady        = "ready"
	OrderStatusPaid         = "paid"
	OrderStatusCancelled    = "cancelled"
)

// Order kinds.
const (
	OrderKindTable   = "table"
	OrderKindCounter = "counter"
)

// Item statuses.
const (
	ItemStatusPending   = "pending"
	ItemStatusPreparing = "preparing"
	ItemStatusReady     = "ready"
	ItemStatusDelivered = "delivered"
	ItemStatusCancelled = "cancelled"
)

// ActiveOrderStatuses lists the non-terminal order statuses.
var ActiveOrderStatuses = []string{OrderStatusOpen, OrderStatusInProduction, OrderStatusReady}

// Order is a customer's running tab, bound to a table or to the counter.
// Subtotal and Total are derived from the live items and never authoritative.
type Order struct {
	BaseModel
	TableID       *uuid.UUID      `gorm:"type:uuid;index" json:"table_id"`
	Table         *Table          `json:"table,omitempty"`
	Kind          string          `gorm:"not null;default:'table'" json:"kind"`
	CustomerName  string          `json:"customer_name"`
	Note          string          `json:"note"`
	Status        string          `gorm:"index;not null" json:"status"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	ServiceCharge decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"service_charge"`
	Discount      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	Total         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	WaiterID      *uuid.UUID      `gorm:"type:uuid" json:"waiter_id"`
	OpenedAt      time.Time       `gorm:"index" json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at"`
	Items         []OrderItem     `json:"items,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
}

// OrderItem is one product line of an order. Name and price are snapshots so that
// later catalog edits never rewrite history.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Note        string          `json:"note"`
	Status      string          `gorm:"index;not null" json:"status"`
}

// IsActive reports whether the order still accepts changes.
func (o *Order) IsActive() bool {
	return IsActiveOrderStatus(o.Status)
}

// IsActiveOrderStatus reports whether status is open, in_production or ready.
func IsActiveOrderStatus(status string) bool {
	for _, s := range ActiveOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// RecomputeTotals derives subtotal and total from the live (non-cancelled) items.
// Total is floored at zero.
func (o *Order) RecomputeTotals(items []OrderItem) {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Status == ItemStatusCancelled {
			continue
		}
		subtotal = subtotal.Add(item.Subtotal)
	}

	total := subtotal.Add(o.ServiceCharge).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o.Subtotal = subtotal.Round(2)
	o.Total = total.Round(2)
}

// LineSubtotal returns quantity × unit price rounded to cents.
func LineSubtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

var itemTransitions = map[string][]string{
	ItemStatusPending:   {ItemStatusPreparing, ItemStatusDelivered, ItemStatusCancelled},
	ItemStatusPreparing: {ItemStatusReady, ItemStatusDelivered, ItemStatusCancelled},
	ItemStatusReady:     {ItemStatusDelivered, ItemStatusCancelled},
}

// IsItemStatus reports whether status is a known item status.
func IsItemStatus(status string) bool {
	switch status {
	case ItemStatusPending, ItemStatusPreparing, ItemStatusReady, ItemStatusDelivered, ItemStatusCancelled:
		return true
	}
	return false
}

// CanTransitionItem reports whether an item may move from one kitchen status to another.
func CanTransitionItem(from, to string) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsItemSettled reports whether the kitchen is done with the item.
func IsItemSettled(status string) bool {
	return status == ItemStatusReady || status == ItemStatusDelivered || status == ItemStatusCancelled
}

// AllItemsSettled reports whether a non-empty item set is entirely ready, delivered or cancelled.
func AllItemsSettled(items []OrderItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !IsItemSettled(item.Status) {
			return false
		}
	}
	return true
}
