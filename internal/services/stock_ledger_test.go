package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
)

func TestReserveUntrackedNeverBlocks(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "Water", "3.50", nil, nil)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		product, err := env.stock.Reserve(tx, p.ID, 10000, nil)
		if err != nil {
			return err
		}
		assert.Nil(t, product.StockQuantity)
		return nil
	})
	require.NoError(t, err)

	assert.Nil(t, env.stockOf(t, p.ID))

	var movements int64
	require.NoError(t, env.db.Model(&models.StockMovement{}).Count(&movements).Error)
	assert.Zero(t, movements)
}

func TestReserveTrackedDecrementsAndRejectsShortage(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "Steak", "59.90", intPtr(5), intPtr(1))

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		product, err := env.stock.Reserve(tx, p.ID, 3, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, *product.StockQuantity)
		return nil
	}))
	assert.Equal(t, 2, *env.stockOf(t, p.ID))

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.stock.Reserve(tx, p.ID, 3, nil)
		return err
	})
	businessErr := requireKind(t, err, KindInsufficientStock)
	assert.Equal(t, 2, businessErr.Data["available"])
	assert.Equal(t, "Steak", businessErr.Data["product"])
	assert.Equal(t, 2, *env.stockOf(t, p.ID))

	var movements []models.StockMovement
	require.NoError(t, env.db.Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, models.StockMovementReserve, movements[0].Kind)
	assert.Equal(t, -3, movements[0].Delta)
	assert.Equal(t, 5, movements[0].PreviousStock)
	assert.Equal(t, 2, movements[0].NewStock)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "Pudding", "12.00", intPtr(7), nil)
	orderID := uuid.New()

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.stock.Reserve(tx, p.ID, 4, &orderID); err != nil {
			return err
		}
		return env.stock.Release(tx, p.ID, 4, &orderID)
	}))

	assert.Equal(t, 7, *env.stockOf(t, p.ID))

	var refs int64
	require.NoError(t, env.db.Model(&models.StockMovement{}).Where("order_id = ?", orderID).Count(&refs).Error)
	assert.Equal(t, int64(2), refs)
}

func TestReserveValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "Juice", "8.00", intPtr(3), nil)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.stock.Reserve(tx, p.ID, 0, nil)
		return err
	})
	requireKind(t, err, KindInvalidQuantity)

	err = env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.stock.Reserve(tx, uuid.New(), 1, nil)
		return err
	})
	requireKind(t, err, KindProductNotFound)
}

func TestReleaseIgnoresMissingAndUntracked(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "Bread", "2.00", nil, nil)

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		if err := env.stock.Release(tx, uuid.New(), 2, nil); err != nil {
			return err
		}
		return env.stock.Release(tx, p.ID, 2, nil)
	}))
	assert.Nil(t, env.stockOf(t, p.ID))
}

func TestTrackingAdministration(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := env.product(t, "Wine", "90.00", nil, nil)

	product, err := env.stock.EnableTracking(ctx, p.ID, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, *product.StockQuantity)
	assert.False(t, product.IsLowStock())

	product, err = env.stock.Adjust(ctx, p.ID, intPtr(2), nil, "inventory count")
	require.NoError(t, err)
	assert.Equal(t, 2, *product.StockQuantity)
	assert.True(t, product.IsLowStock())

	alerts, err := env.stock.LowStockAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, p.ID, alerts[0].ID)

	movements, err := env.stock.Movements(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	_, err = env.stock.Adjust(ctx, p.ID, intPtr(-1), nil, "")
	requireKind(t, err, KindInvalidQuantity)
	_, err = env.stock.Adjust(ctx, p.ID, nil, nil, "")
	requireKind(t, err, KindInvalidQuantity)

	product, err = env.stock.DisableTracking(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, product.StockQuantity)
	assert.Nil(t, env.stockOf(t, p.ID))

	alerts, err = env.stock.LowStockAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestAdjustStartsTrackingUntrackedProduct(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "Cake", "15.00", nil, nil)

	product, err := env.stock.Adjust(context.Background(), p.ID, intPtr(6), intPtr(1), "")
	require.NoError(t, err)
	assert.Equal(t, 6, *product.StockQuantity)
	assert.Equal(t, 6, *env.stockOf(t, p.ID))
}

func TestListTrackedPutsLowStockFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.product(t, "Apple pie", "9.00", intPtr(20), intPtr(2))
	low := env.product(t, "Beer", "7.00", intPtr(1), intPtr(5))
	env.product(t, "Coffee", "4.00", nil, nil)

	products, err := env.stock.ListTracked(ctx, false, "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, low.ID, products[0].ID)

	products, err = env.stock.ListTracked(ctx, true, "")
	require.NoError(t, err)
	require.Len(t, products, 1)

	products, err = env.stock.ListTracked(ctx, false, "APPLE")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Apple pie", products[0].Name)
}
