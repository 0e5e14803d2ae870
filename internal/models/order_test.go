package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func item(subtotal, status string) OrderItem {
	return OrderItem{Subtotal: decimal.RequireFromString(subtotal), Status: status}
}

func TestRecomputeTotals(t *testing.T) {
	order := &Order{
		ServiceCharge: decimal.RequireFromString("4.50"),
		Discount:      decimal.RequireFromString("2"),
	}
	order.RecomputeTotals([]OrderItem{
		item("10.10", ItemStatusPending),
		item("20.20", ItemStatusReady),
		item("99.99", ItemStatusCancelled),
	})

	assert.Equal(t, "30.30", order.Subtotal.StringFixed(2))
	assert.Equal(t, "32.80", order.Total.StringFixed(2))
}

func TestRecomputeTotalsFloorsAtZero(t *testing.T) {
	order := &Order{Discount: decimal.RequireFromString("50")}
	order.RecomputeTotals([]OrderItem{item("20", ItemStatusPending)})

	assert.True(t, order.Total.IsZero())
	assert.Equal(t, "20.00", order.Subtotal.StringFixed(2))
}

func TestLineSubtotal(t *testing.T) {
	assert.Equal(t, "77.70", LineSubtotal(3, decimal.RequireFromString("25.90")).StringFixed(2))
}

func TestCanTransitionItem(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{ItemStatusPending, ItemStatusPreparing, true},
		{ItemStatusPending, ItemStatusDelivered, true},
		{ItemStatusPending, ItemStatusReady, false},
		{ItemStatusPreparing, ItemStatusReady, true},
		{ItemStatusPreparing, ItemStatusPending, false},
		{ItemStatusReady, ItemStatusDelivered, true},
		{ItemStatusReady, ItemStatusCancelled, true},
		{ItemStatusDelivered, ItemStatusCancelled, false},
		{ItemStatusCancelled, ItemStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionItem(tt.from, tt.to))
		})
	}
}

func TestAllItemsSettled(t *testing.T) {
	assert.False(t, AllItemsSettled(nil))
	assert.False(t, AllItemsSettled([]OrderItem{item("1", ItemStatusReady), item("1", ItemStatusPreparing)}))
	assert.True(t, AllItemsSettled([]OrderItem{
		item("1", ItemStatusReady),
		item("1", ItemStatusDelivered),
		item("1", ItemStatusCancelled),
	}))
}

func TestOrderIsActive(t *testing.T) {
	for _, status := range ActiveOrderStatuses {
		assert.True(t, (&Order{Status: status}).IsActive(), status)
	}
	assert.False(t, (&Order{Status: OrderStatusPaid}).IsActive())
	assert.False(t, (&Order{Status: OrderStatusCancelled}).IsActive())
}

func TestSumPayments(t *testing.T) {
	total := SumPayments([]Payment{
		{Amount: decimal.RequireFromString("80")},
		{Amount: decimal.RequireFromString("19.99")},
	})
	assert.Equal(t, "99.99", total.StringFixed(2))
	assert.True(t, SumPayments(nil).IsZero())
}

func TestProductStockFlags(t *testing.T) {
	qty, min := 3, 3
	p := &Product{StockQuantity: &qty, StockMinimum: &min}
	assert.True(t, p.IsStockTracked())
	assert.True(t, p.IsLowStock())

	qty = 4
	assert.False(t, p.IsLowStock())

	untracked := &Product{}
	assert.False(t, untracked.IsStockTracked())
	assert.False(t, untracked.IsLowStock())

	noMinimum := &Product{StockQuantity: &qty}
	assert.False(t, noMinimum.IsLowStock())
}
