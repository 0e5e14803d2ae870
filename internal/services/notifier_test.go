package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/restopos/internal/models"
)

type failingNotifier struct{ err error }

func (n failingNotifier) Publish(context.Context, Event) error { return n.err }

func TestMultiNotifierFansOut(t *testing.T) {
	first, second := &recordingNotifier{}, &recordingNotifier{}
	boom := errors.New("broker down")

	multi := MultiNotifier{first, failingNotifier{err: boom}, second}
	err := multi.Publish(context.Background(), NewEvent(EventOrderReady, nil))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{EventOrderReady}, first.names())
	assert.Equal(t, []string{EventOrderReady}, second.names())
}

func TestSideEffectsOnlyLogPublishFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	effects := newSideEffects(nil, failingNotifier{err: errors.New("offline")}, zap.New(core))

	effects.after(context.Background(), []string{CacheKeyTables}, NewEvent(EventTableUpdated, nil))

	entries := logs.FilterMessage("failed to publish event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, EventTableUpdated, entries[0].ContextMap()["event"])
}

type telegramCall struct {
	path string
	msg  telegramMessage
}

func newTelegramStub(t *testing.T) (*TelegramService, func() []telegramCall) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls []telegramCall
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg telegramMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		mu.Lock()
		calls = append(calls, telegramCall{path: r.URL.Path, msg: msg})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	svc := NewTelegramService("token", "42", "BRL", zap.NewNop())
	svc.baseURL = server.URL
	return svc, func() []telegramCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]telegramCall(nil), calls...)
	}
}

func TestTelegramPublishesManagerAlerts(t *testing.T) {
	ctx := context.Background()
	svc, calls := newTelegramStub(t)

	order := &models.Order{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Table:     &models.Table{Number: 12},
		Total:     decimal.RequireFromString("1234.5"),
		Note:      "CANCELLED by Mia: spilled",
	}
	require.NoError(t, svc.Publish(ctx, NewEvent(EventOrderClosed, order)))
	require.NoError(t, svc.Publish(ctx, NewEvent(EventOrderCancelled, order)))

	stock, minimum := 1, 3
	product := &models.Product{Name: "Lemons", StockQuantity: &stock, StockMinimum: &minimum}
	require.NoError(t, svc.Publish(ctx, NewEvent(EventStockLow, product)))

	// Kitchen traffic is not forwarded.
	require.NoError(t, svc.Publish(ctx, NewEvent(EventOrderCreated, order)))
	require.NoError(t, svc.Publish(ctx, NewEvent(EventItemAdded, &models.OrderItem{})))

	got := calls()
	require.Len(t, got, 3)
	assert.Equal(t, "/bottoken/sendMessage", got[0].path)
	assert.Equal(t, "42", got[0].msg.ChatID)
	assert.Equal(t, "HTML", got[0].msg.ParseMode)
	assert.Contains(t, got[0].msg.Text, "ORDER CLOSED")
	assert.Contains(t, got[0].msg.Text, "Table 12")
	assert.Contains(t, got[0].msg.Text, "1,234.50 BRL")
	assert.Contains(t, got[1].msg.Text, "spilled")
	assert.Contains(t, got[2].msg.Text, "Lemons")
}

func TestTelegramReportsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	svc := NewTelegramService("token", "42", "", zap.NewNop())
	svc.baseURL = server.URL

	err := svc.SendToAdmin(context.Background(), "hello")
	assert.ErrorContains(t, err, "502")
}

func TestTelegramDisabledWithoutChat(t *testing.T) {
	svc := NewTelegramService("token", "", "", zap.NewNop())
	svc.baseURL = "http://127.0.0.1:0"
	assert.NoError(t, svc.Publish(context.Background(), NewEvent(EventOrderClosed, &models.Order{})))
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"0", "BRL", "0.00 BRL"},
		{"999.999", "BRL", "1,000.00 BRL"},
		{"1234567.8", "USD", "1,234,567.80 USD"},
		{"-45.5", "", "-45.50 BRL"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestSortIDsOrdersByBytes(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	ids := []uuid.UUID{c, a, b}
	sortIDs(ids)
	assert.Equal(t, []uuid.UUID{a, b, c}, ids)
}

func TestKindOfUnwraps(t *testing.T) {
	err := fmt.Errorf("add item: %w", NewError(ErrInsufficientStock, map[string]any{"available": 0}))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.True(t, IsKind(err, KindInsufficientStock))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))

	custom := &Error{Info: ErrProductNotFound, Message: "product \"Tea\" is not available"}
	assert.Equal(t, "product \"Tea\" is not available", custom.Detail())
	assert.Equal(t, ErrOrderNotFound.Message, newError(ErrOrderNotFound).Detail())
}
