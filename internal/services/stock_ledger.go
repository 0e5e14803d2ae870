package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/restopos/internal/models"
)

// StockLedger moves tracked product inventory. Reserve and Release always run inside
// the caller's transaction and lock the product row before reading the count, so two
// concurrent reservations can never both pass a stale availability check.
type StockLedger struct {
	db      *gorm.DB
	effects sideEffects
	log     *zap.Logger
}

// NewStockLedger constructs a StockLedger. The cache is only touched by the
// administrative operations; Reserve and Release leave invalidation to the caller.
func NewStockLedger(db *gorm.DB, cache Cache, log *zap.Logger) *StockLedger {
	return &StockLedger{db: db, effects: newSideEffects(cache, nil, log), log: log}
}

func lockProduct(tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrProductNotFound)
		}
		return nil, fmt.Errorf("lock product %s: %w", productID, err)
	}
	return &product, nil
}

// Reserve takes qty units of a product for an order and returns the locked product
// as it stands after the reservation. Untracked products always succeed untouched.
func (l *StockLedger) Reserve(tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) (*models.Product, error) {
	if qty < 1 {
		return nil, newError(ErrInvalidQuantity)
	}

	product, err := lockProduct(tx, productID)
	if err != nil {
		return nil, err
	}

	if !product.IsStockTracked() {
		return product, nil
	}

	available := *product.StockQuantity
	if available < qty {
		return nil, &Error{
			Info:    ErrInsufficientStock,
			Message: fmt.Sprintf("insufficient stock for %q, available: %d", product.Name, available),
			Data: map[string]any{
				"product_id": product.ID,
				"product":    product.Name,
				"available":  available,
			},
		}
	}

	if err := l.apply(tx, product, -qty, models.StockMovementReserve, orderID, ""); err != nil {
		return nil, err
	}
	return product, nil
}

// Release credits qty units back to a product. It is a no-op for untracked products
// and for products that no longer exist.
func (l *StockLedger) Release(tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error {
	if qty < 1 {
		return nil
	}

	product, err := lockProduct(tx, productID)
	if err != nil {
		if IsKind(err, KindProductNotFound) {
			return nil
		}
		return err
	}

	if !product.IsStockTracked() {
		return nil
	}

	return l.apply(tx, product, qty, models.StockMovementRelease, orderID, "")
}

// apply writes delta to a locked, tracked product and records the movement.
func (l *StockLedger) apply(tx *gorm.DB, product *models.Product, delta int, kind string, orderID *uuid.UUID, reason string) error {
	previous := *product.StockQuantity
	next := previous + delta

	if err := tx.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta)).Error; err != nil {
		return fmt.Errorf("update stock of %s: %w", product.ID, err)
	}

	movement := models.StockMovement{
		ProductID:     product.ID,
		Kind:          kind,
		Delta:         delta,
		PreviousStock: previous,
		NewStock:      next,
		OrderID:       orderID,
		Reason:        reason,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}

	product.StockQuantity = &next
	return nil
}

// EnableTracking starts counting inventory for a product.
func (l *StockLedger) EnableTracking(ctx context.Context, productID uuid.UUID, quantity, minimum int) (*models.Product, error) {
	if quantity < 0 || minimum < 0 {
		return nil, &Error{Info: ErrInvalidQuantity, Message: "stock values cannot be negative"}
	}

	var product *models.Product
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = lockProduct(tx, productID)
		if err != nil {
			return err
		}

		previous := 0
		if product.StockQuantity != nil {
			previous = *product.StockQuantity
		}

		if err := tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]any{
			"stock_quantity": quantity,
			"stock_minimum":  minimum,
		}).Error; err != nil {
			return err
		}

		movement := models.StockMovement{
			ProductID:     productID,
			Kind:          models.StockMovementAdjust,
			Delta:         quantity - previous,
			PreviousStock: previous,
			NewStock:      quantity,
			Reason:        "tracking enabled",
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}

		product.StockQuantity = &quantity
		product.StockMinimum = &minimum
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("stock tracking enabled",
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
		zap.Int("minimum", minimum))
	l.effects.after(ctx, []string{CacheKeyMenu})
	return product, nil
}

// DisableTracking makes a product untracked again.
func (l *StockLedger) DisableTracking(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product *models.Product
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = lockProduct(tx, productID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]any{
			"stock_quantity": gorm.Expr("NULL"),
			"stock_minimum":  gorm.Expr("NULL"),
		}).Error; err != nil {
			return err
		}
		product.StockQuantity = nil
		product.StockMinimum = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("stock tracking disabled", zap.String("product_id", productID.String()))
	l.effects.after(ctx, []string{CacheKeyMenu})
	return product, nil
}

// Adjust sets the counted quantity and/or minimum of a tracked product by hand.
func (l *StockLedger) Adjust(ctx context.Context, productID uuid.UUID, quantity, minimum *int, reason string) (*models.Product, error) {
	if quantity == nil && minimum == nil {
		return nil, &Error{Info: ErrInvalidQuantity, Message: "quantity or minimum is required"}
	}
	if (quantity != nil && *quantity < 0) || (minimum != nil && *minimum < 0) {
		return nil, &Error{Info: ErrInvalidQuantity, Message: "stock values cannot be negative"}
	}

	var product *models.Product
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = lockProduct(tx, productID)
		if err != nil {
			return err
		}

		if minimum != nil {
			if err := tx.Model(&models.Product{}).Where("id = ?", productID).
				Update("stock_minimum", *minimum).Error; err != nil {
				return err
			}
			product.StockMinimum = minimum
		}

		if quantity == nil {
			return nil
		}
		if !product.IsStockTracked() {
			if err := tx.Model(&models.Product{}).Where("id = ?", productID).
				Update("stock_quantity", 0).Error; err != nil {
				return err
			}
			zero := 0
			product.StockQuantity = &zero
		}
		if reason == "" {
			reason = "manual adjustment"
		}
		return l.apply(tx, product, *quantity-*product.StockQuantity, models.StockMovementAdjust, nil, reason)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("stock adjusted", zap.String("product_id", productID.String()), zap.String("reason", reason))
	l.effects.after(ctx, []string{CacheKeyMenu})
	return product, nil
}

// ListTracked returns every tracked product, the ones at or below their minimum first.
func (l *StockLedger) ListTracked(ctx context.Context, lowOnly bool, search string) ([]models.Product, error) {
	query := l.db.WithContext(ctx).Model(&models.Product{}).
		Preload("Category").
		Where("stock_quantity IS NOT NULL")

	if lowOnly {
		query = query.Where("stock_quantity <= stock_minimum")
	}
	if search = strings.TrimSpace(search); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", q, q)
	}

	var products []models.Product
	if err := query.
		Order("CASE WHEN stock_quantity <= COALESCE(stock_minimum, 0) THEN 0 ELSE 1 END").
		Order("name").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// LowStockAlerts returns active tracked products at or below their minimum.
func (l *StockLedger) LowStockAlerts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := l.db.WithContext(ctx).
		Preload("Category").
		Where("stock_quantity IS NOT NULL AND stock_minimum IS NOT NULL").
		Where("stock_quantity <= stock_minimum AND active = ?", true).
		Order("stock_quantity - stock_minimum ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Movements lists the audit trail of a product, newest first.
func (l *StockLedger) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	var movements []models.StockMovement
	if err := l.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at desc").
		Limit(limit).
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
