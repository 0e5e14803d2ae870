package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/restopos/internal/database"
	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/utils"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.events))
	for _, e := range n.events {
		names = append(names, e.Name)
	}
	return names
}

type testEnv struct {
	db       *gorm.DB
	stock    *StockLedger
	tables   *TableSync
	orders   *OrderService
	payments *PaymentService
	events   *recordingNotifier
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(":memory:", logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestEnv(t *testing.T, cache Cache) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop()
	events := &recordingNotifier{}

	stock := NewStockLedger(db, cache, log)
	tables := NewTableSync(db, cache, events, log)
	return &testEnv{
		db:       db,
		stock:    stock,
		tables:   tables,
		orders:   NewOrderService(db, stock, tables, NewSupervisorAuthorizer(db), cache, events, log),
		payments: NewPaymentService(db, cache, events, log),
		events:   events,
	}
}

func intPtr(v int) *int { return &v }

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func (e *testEnv) product(t *testing.T, name, price string, stock, minimum *int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Price:         dec(t, price),
		Active:        true,
		StockQuantity: stock,
		StockMinimum:  minimum,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) table(t *testing.T, number int) *models.Table {
	t.Helper()
	table := &models.Table{Number: number, Capacity: 4, Status: models.TableStatusFree}
	require.NoError(t, e.db.Create(table).Error)
	return table
}

func (e *testEnv) user(t *testing.T, name, role, password string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Name: name, Email: uuid.NewString() + "@test.local", PasswordHash: hash, Role: role, Active: true}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) stockOf(t *testing.T, productID uuid.UUID) *int {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, "id = ?", productID).Error)
	return p.StockQuantity
}

func (e *testEnv) tableStatus(t *testing.T, tableID uuid.UUID) string {
	t.Helper()
	var table models.Table
	require.NoError(t, e.db.First(&table, "id = ?", tableID).Error)
	return table.Status
}

func (e *testEnv) reload(t *testing.T, orderID uuid.UUID) *models.Order {
	t.Helper()
	order, err := e.orders.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func (e *testEnv) tableOrder(t *testing.T, tableID uuid.UUID) *models.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), CreateOrderInput{TableID: &tableID})
	require.NoError(t, err)
	return order
}

func (e *testEnv) counterOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), CreateOrderInput{Kind: models.OrderKindCounter, CustomerName: "Ana"})
	require.NoError(t, err)
	return order
}

func (e *testEnv) addItem(t *testing.T, orderID, productID uuid.UUID, qty int) *models.OrderItem {
	t.Helper()
	item, err := e.orders.AddItem(context.Background(), AddItemInput{OrderID: orderID, ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	return item
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
	var businessErr *Error
	require.ErrorAs(t, err, &businessErr)
	return businessErr
}
