package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/restopos/internal/models"
)

// OrderService drives the order lifecycle. Every mutation runs in one transaction that
// locks the order row first, then table rows, then product rows, each group in id order.
type OrderService struct {
	db         *gorm.DB
	stock      *StockLedger
	tables     *TableSync
	authorizer CancelAuthorizer
	effects    sideEffects
	log        *zap.Logger
}

// NewOrderService wires the order coordinator.
func NewOrderService(db *gorm.DB, stock *StockLedger, tables *TableSync, authorizer CancelAuthorizer, cache Cache, notifier Notifier, log *zap.Logger) *OrderService {
	return &OrderService{
		db:         db,
		stock:      stock,
		tables:     tables,
		authorizer: authorizer,
		effects:    newSideEffects(cache, notifier, log),
		log:        log,
	}
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	TableID      *uuid.UUID
	Kind         string
	CustomerName string
	Note         string
	WaiterID     *uuid.UUID
}

// AddItemInput describes a product line added to an order.
type AddItemInput struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Note      string
}

// CancelOrderInput carries the supervisor confirming a cancellation.
type CancelOrderInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   Actor
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	Status  string
	TableID *uuid.UUID
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// KitchenTicket is one order as the kitchen display shows it.
type KitchenTicket struct {
	OrderID        uuid.UUID          `json:"order_id"`
	TableNumber    *int               `json:"table_number"`
	Kind           string             `json:"kind"`
	CustomerName   string             `json:"customer_name"`
	Status         string             `json:"status"`
	OpenedAt       time.Time          `json:"opened_at"`
	WaitingMinutes int                `json:"waiting_minutes"`
	Items          []models.OrderItem `json:"items"`
}

func lockOrder(tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrOrderNotFound)
		}
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return &order, nil
}

func lockItem(tx *gorm.DB, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ? AND order_id = ?", itemID, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrItemNotFound)
		}
		return nil, fmt.Errorf("lock item %s: %w", itemID, err)
	}
	return &item, nil
}

// requireMutable rejects changes to paid and cancelled orders.
func requireMutable(order *models.Order) error {
	if order.IsActive() {
		return nil
	}
	return NewError(ErrOrderNotPayable, map[string]any{"order_id": order.ID, "status": order.Status})
}

// recomputeTotals reloads the items of a locked order, derives its totals and stores them.
func recomputeTotals(tx *gorm.DB, order *models.Order) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Order("created_at").Find(&items).Error; err != nil {
		return fmt.Errorf("load items of %s: %w", order.ID, err)
	}

	order.RecomputeTotals(items)
	order.Items = items

	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
		"subtotal": order.Subtotal,
		"total":    order.Total,
	}).Error; err != nil {
		return fmt.Errorf("store totals of %s: %w", order.ID, err)
	}
	return nil
}

func loadPayments(tx *gorm.DB, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := tx.Where("order_id = ?", orderID).Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments of %s: %w", orderID, err)
	}
	return payments, nil
}

// ensureCovered rejects a recomputed total that falls below what was already paid.
func ensureCovered(tx *gorm.DB, order *models.Order) error {
	payments, err := loadPayments(tx, order.ID)
	if err != nil {
		return err
	}
	paid := models.SumPayments(payments)
	if paid.GreaterThan(order.Total.Add(PaymentTolerance)) {
		return NewError(ErrPaymentsExceedTotal, map[string]any{
			"paid":  paid.StringFixed(2),
			"total": order.Total.StringFixed(2),
		})
	}
	return nil
}

func setOrderStatus(tx *gorm.DB, order *models.Order, status string) error {
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", status).Error; err != nil {
		return fmt.Errorf("set order %s status: %w", order.ID, err)
	}
	order.Status = status
	return nil
}

// markReadyIfSettled moves an active order to ready once the kitchen is done with
// every item. It reports whether the order changed status.
func markReadyIfSettled(tx *gorm.DB, order *models.Order) (bool, error) {
	if !order.IsActive() || order.Status == models.OrderStatusReady {
		return false, nil
	}
	if !models.AllItemsSettled(order.Items) {
		return false, nil
	}
	if err := setOrderStatus(tx, order, models.OrderStatusReady); err != nil {
		return false, err
	}
	return true, nil
}

func orderFields(order *models.Order) []zap.Field {
	return []zap.Field{
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status),
		zap.String("total", order.Total.StringFixed(2)),
	}
}

// CreateOrder opens a new order, occupying its table in the same transaction.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	kind := input.Kind
	if kind == "" {
		kind = models.OrderKindCounter
		if input.TableID != nil {
			kind = models.OrderKindTable
		}
	}
	switch {
	case kind != models.OrderKindTable && kind != models.OrderKindCounter:
		return nil, newError(ErrInvalidKind)
	case kind == models.OrderKindTable && input.TableID == nil:
		return nil, &Error{Info: ErrInvalidKind, Message: "table orders need a table"}
	case kind == models.OrderKindCounter && input.TableID != nil:
		return nil, &Error{Info: ErrInvalidKind, Message: "counter orders cannot have a table"}
	}

	order := &models.Order{
		TableID:      input.TableID,
		Kind:         kind,
		CustomerName: strings.TrimSpace(input.CustomerName),
		Note:         strings.TrimSpace(input.Note),
		Status:       models.OrderStatusOpen,
		WaiterID:     input.WaiterID,
		OpenedAt:     time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.TableID != nil {
			table, err := s.tables.Occupy(tx, *input.TableID)
			if err != nil {
				return err
			}
			order.Table = table
		}
		return tx.Omit(clause.Associations).Create(order).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created", orderFields(order)...)

	events := []Event{NewEvent(EventOrderCreated, order)}
	if order.Table != nil {
		events = append(events, NewEvent(EventTableUpdated, order.Table))
	}
	s.effects.after(ctx, []string{CacheKeyTables}, events...)
	return order, nil
}

// AddItem reserves stock and appends a product line. The first item moves an open
// order into production. Nothing is written when the reservation fails.
func (s *OrderService) AddItem(ctx context.Context, input AddItemInput) (*models.OrderItem, error) {
	if input.Quantity < 1 {
		return nil, newError(ErrInvalidQuantity)
	}

	var (
		order   *models.Order
		item    *models.OrderItem
		product *models.Product
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, input.OrderID); err != nil {
			return err
		}
		if err := requireMutable(order); err != nil {
			return err
		}

		if product, err = s.stock.Reserve(tx, input.ProductID, input.Quantity, &order.ID); err != nil {
			return err
		}
		if !product.Active {
			return &Error{Info: ErrProductNotFound, Message: fmt.Sprintf("product %q is not available", product.Name)}
		}

		item = &models.OrderItem{
			OrderID:     order.ID,
			ProductID:   &product.ID,
			ProductName: product.Name,
			Quantity:    input.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    models.LineSubtotal(input.Quantity, product.Price),
			Note:        strings.TrimSpace(input.Note),
			Status:      models.ItemStatusPending,
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create item: %w", err)
		}

		if err := recomputeTotals(tx, order); err != nil {
			return err
		}
		if order.Status == models.OrderStatusOpen {
			return setOrderStatus(tx, order, models.OrderStatusInProduction)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item added",
		zap.String("order_id", order.ID.String()),
		zap.String("item_id", item.ID.String()),
		zap.String("product", item.ProductName),
		zap.Int("quantity", item.Quantity))

	patterns := []string{CacheKeyTables}
	events := []Event{NewEvent(EventItemAdded, item), NewEvent(EventOrderUpdated, order)}
	if product.IsStockTracked() {
		patterns = append(patterns, CacheKeyMenu)
	}
	if product.IsLowStock() {
		s.log.Warn("product stock is low",
			zap.String("product_id", product.ID.String()),
			zap.Int("quantity", *product.StockQuantity),
			zap.Int("minimum", *product.StockMinimum))
		events = append(events, NewEvent(EventStockLow, product))
	}
	s.effects.after(ctx, patterns, events...)
	return item, nil
}

// UpdateItemStatus moves an item through the kitchen states. Cancelling an item
// releases its stock. The returned flag reports whether the order is now ready.
func (s *OrderService) UpdateItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status string) (*models.OrderItem, bool, error) {
	if !models.IsItemStatus(status) {
		return nil, false, newError(ErrInvalidStatus)
	}

	var (
		order       *models.Order
		item        *models.OrderItem
		becameReady bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			return requireMutable(order)
		}
		if item, err = lockItem(tx, orderID, itemID); err != nil {
			return err
		}

		if !models.CanTransitionItem(item.Status, status) {
			return NewError(ErrInvalidStatus, map[string]any{"from": item.Status, "to": status})
		}
		if status == models.ItemStatusCancelled && order.Status == models.OrderStatusPaid {
			return newError(ErrAlreadyPaid)
		}

		if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Update("status", status).Error; err != nil {
			return fmt.Errorf("set item %s status: %w", item.ID, err)
		}
		item.Status = status

		if status == models.ItemStatusCancelled && item.ProductID != nil {
			if err := s.stock.Release(tx, *item.ProductID, item.Quantity, &order.ID); err != nil {
				return err
			}
		}

		if err := recomputeTotals(tx, order); err != nil {
			return err
		}
		if status == models.ItemStatusCancelled {
			if err := ensureCovered(tx, order); err != nil {
				return err
			}
		}
		becameReady, err = markReadyIfSettled(tx, order)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	s.log.Info("item status updated",
		zap.String("order_id", orderID.String()),
		zap.String("item_id", itemID.String()),
		zap.String("status", status),
		zap.Bool("order_ready", becameReady))

	patterns := []string{CacheKeyTables}
	if status == models.ItemStatusCancelled {
		patterns = append(patterns, CacheKeyMenu)
	}
	events := []Event{NewEvent(EventItemUpdated, item)}
	if becameReady {
		events = append(events, NewEvent(EventOrderReady, order))
	}
	s.effects.after(ctx, patterns, events...)

	return item, order.Status == models.OrderStatusReady, nil
}

// RemoveItem deletes a line from an unpaid order and credits its stock back unless
// the line was already cancelled. It fails when the new total would fall below the
// payments already taken.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	var (
		order       *models.Order
		item        *models.OrderItem
		becameReady bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireMutable(order); err != nil {
			return err
		}
		if item, err = lockItem(tx, orderID, itemID); err != nil {
			return err
		}

		if item.Status != models.ItemStatusCancelled && item.ProductID != nil {
			if err := s.stock.Release(tx, *item.ProductID, item.Quantity, &order.ID); err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.OrderItem{}, "id = ?", item.ID).Error; err != nil {
			return fmt.Errorf("delete item %s: %w", item.ID, err)
		}

		if err := recomputeTotals(tx, order); err != nil {
			return err
		}
		if err := ensureCovered(tx, order); err != nil {
			return err
		}
		becameReady, err = markReadyIfSettled(tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item removed",
		zap.String("order_id", orderID.String()),
		zap.String("item_id", itemID.String()),
		zap.String("total", order.Total.StringFixed(2)))

	events := []Event{NewEvent(EventItemUpdated, item), NewEvent(EventOrderUpdated, order)}
	if becameReady {
		events = append(events, NewEvent(EventOrderReady, order))
	}
	s.effects.after(ctx, []string{CacheKeyTables, CacheKeyMenu}, events...)
	return item, nil
}

// CloseOrder settles a fully paid order and frees its table.
func (s *OrderService) CloseOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var (
		order *models.Order
		table *models.Table
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		switch order.Status {
		case models.OrderStatusPaid:
			return newError(ErrAlreadyPaid)
		case models.OrderStatusCancelled:
			return requireMutable(order)
		}

		payments, err := loadPayments(tx, order.ID)
		if err != nil {
			return err
		}
		paid := models.SumPayments(payments)
		if paid.LessThan(order.Total) {
			return NewError(ErrIncompletePayment, map[string]any{
				"total":    order.Total.StringFixed(2),
				"paid":     paid.StringFixed(2),
				"restante": order.Total.Sub(paid).StringFixed(2),
			})
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
			"status":    models.OrderStatusPaid,
			"closed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("close order %s: %w", order.ID, err)
		}
		order.Status = models.OrderStatusPaid
		order.ClosedAt = &now
		order.Payments = payments

		if order.TableID != nil {
			if table, err = s.tables.Free(tx, *order.TableID); err != nil {
				return err
			}
			order.Table = table
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order closed", orderFields(order)...)

	events := []Event{NewEvent(EventOrderClosed, order)}
	if table != nil {
		events = append(events, NewEvent(EventTableUpdated, table))
	}
	s.effects.after(ctx, []string{CacheKeyTables, CacheKeySummaryAll}, events...)
	return order, nil
}

// CancelOrder cancels an unpaid order on behalf of a verified supervisor, crediting
// back the stock of every line that was not already cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	supervisor, err := s.authorizer.AuthorizeCancel(ctx, input.Actor)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "no reason given"
	}
	audit := fmt.Sprintf("CANCELLED by %s: %s", supervisor.Name, reason)

	var (
		order *models.Order
		table *models.Table
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, input.OrderID); err != nil {
			return err
		}
		switch order.Status {
		case models.OrderStatusPaid:
			return newError(ErrAlreadyPaid)
		case models.OrderStatusCancelled:
			return requireMutable(order)
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ? AND status <> ?", order.ID, models.ItemStatusCancelled).
			Find(&items).Error; err != nil {
			return fmt.Errorf("load items of %s: %w", order.ID, err)
		}

		if order.TableID != nil {
			if table, err = s.tables.Free(tx, *order.TableID); err != nil {
				return err
			}
			order.Table = table
		}

		reserved := make(map[uuid.UUID]int)
		productIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			if item.ProductID == nil {
				continue
			}
			if _, seen := reserved[*item.ProductID]; !seen {
				productIDs = append(productIDs, *item.ProductID)
			}
			reserved[*item.ProductID] += item.Quantity
		}
		sortIDs(productIDs)
		for _, productID := range productIDs {
			if err := s.stock.Release(tx, productID, reserved[productID], &order.ID); err != nil {
				return err
			}
		}

		note := audit
		if order.Note != "" {
			note = order.Note + " | " + audit
		}
		now := time.Now().UTC()
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
			"status":    models.OrderStatusCancelled,
			"note":      note,
			"closed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("cancel order %s: %w", order.ID, err)
		}
		order.Status = models.OrderStatusCancelled
		order.Note = note
		order.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order cancelled",
		append(orderFields(order), zap.String("by", supervisor.ID.String()), zap.String("reason", reason))...)

	events := []Event{NewEvent(EventOrderCancelled, order)}
	if table != nil {
		events = append(events, NewEvent(EventTableUpdated, table))
	}
	s.effects.after(ctx, []string{CacheKeyTables, CacheKeyMenu, CacheKeySummaryAll}, events...)
	return order, nil
}

// TransferOrder moves an active order to a free table.
func (s *OrderService) TransferOrder(ctx context.Context, orderID, tableID uuid.UUID) (*models.Order, error) {
	var (
		order    *models.Order
		from, to *models.Table
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireMutable(order); err != nil {
			return err
		}

		if from, to, err = s.tables.Transfer(tx, order.ID, order.TableID, tableID); err != nil {
			return err
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
			"table_id": to.ID,
			"kind":     models.OrderKindTable,
		}).Error; err != nil {
			return fmt.Errorf("repoint order %s: %w", order.ID, err)
		}
		order.TableID = &to.ID
		order.Kind = models.OrderKindTable
		order.Table = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("order_id", order.ID.String()), zap.Int("to_table", to.Number)}
	if from != nil {
		fields = append(fields, zap.Int("from_table", from.Number))
	}
	s.log.Info("order transferred", fields...)

	events := []Event{NewEvent(EventOrderUpdated, order)}
	if from != nil {
		events = append(events, NewEvent(EventTableUpdated, from))
	}
	events = append(events, NewEvent(EventTableUpdated, to))
	s.effects.after(ctx, []string{CacheKeyTables}, events...)
	return order, nil
}

// ApplyAdjustments sets the service charge and discount of an active order.
func (s *OrderService) ApplyAdjustments(ctx context.Context, orderID uuid.UUID, serviceCharge, discount decimal.Decimal) (*models.Order, error) {
	if serviceCharge.IsNegative() || discount.IsNegative() {
		return nil, &Error{Info: ErrInvalidAmount, Message: "service charge and discount cannot be negative"}
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireMutable(order); err != nil {
			return err
		}

		order.ServiceCharge = serviceCharge.Round(2)
		order.Discount = discount.Round(2)
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
			"service_charge": order.ServiceCharge,
			"discount":       order.Discount,
		}).Error; err != nil {
			return fmt.Errorf("store adjustments of %s: %w", order.ID, err)
		}

		if err := recomputeTotals(tx, order); err != nil {
			return err
		}
		if order.Subtotal.Add(order.ServiceCharge).LessThan(order.Discount) {
			return NewError(ErrInvalidAmount, map[string]any{
				"max_discount": order.Subtotal.Add(order.ServiceCharge).StringFixed(2),
			})
		}
		return ensureCovered(tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order adjusted",
		append(orderFields(order),
			zap.String("service_charge", order.ServiceCharge.StringFixed(2)),
			zap.String("discount", order.Discount.StringFixed(2)))...)

	s.effects.after(ctx, []string{CacheKeyTables}, NewEvent(EventOrderUpdated, order))
	return order, nil
}

// GetOrder returns an order with its items, payments and table.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Table").
		First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrOrderNotFound)
		}
		return nil, err
	}
	return &order, nil
}

// ListOrders returns a page of orders, newest first, with the total match count.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TableID != nil {
		query = query.Where("table_id = ?", *filter.TableID)
	}
	if filter.From != nil {
		query = query.Where("opened_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("opened_at < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var orders []models.Order
	if err := query.
		Preload("Table").
		Order("opened_at desc").
		Limit(limit).
		Offset(filter.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// KitchenQueue lists active orders that still have pending or preparing items, oldest first.
func (s *OrderService) KitchenQueue(ctx context.Context) ([]KitchenTicket, error) {
	kitchenStatuses := []string{models.ItemStatusPending, models.ItemStatusPreparing}

	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Table").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("status IN ?", kitchenStatuses).Order("created_at")
		}).
		Where("status IN ?", models.ActiveOrderStatuses).
		Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.status IN ?)", kitchenStatuses).
		Order("opened_at").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tickets := make([]KitchenTicket, 0, len(orders))
	for _, order := range orders {
		ticket := KitchenTicket{
			OrderID:        order.ID,
			Kind:           order.Kind,
			CustomerName:   order.CustomerName,
			Status:         order.Status,
			OpenedAt:       order.OpenedAt,
			WaitingMinutes: int(now.Sub(order.OpenedAt).Minutes()),
			Items:          order.Items,
		}
		if order.Table != nil {
			number := order.Table.Number
			ticket.TableNumber = &number
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}
