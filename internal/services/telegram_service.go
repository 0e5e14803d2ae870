package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/restopos/internal/models"
)

// TelegramService pushes manager-facing alerts to a Telegram admin chat.
// It implements Notifier and ignores the events managers do not care about.
type TelegramService struct {
	botToken    string
	adminChatID string
	currency    string
	baseURL     string
	client      *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID, currency string, log *zap.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		currency:    currency,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice formats an amount with thousand separators, two decimals and currency.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "BRL"
	}

	fixed := amount.Abs().StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(digit)
	}
	result.WriteByte('.')
	result.WriteString(fracPart)

	return result.String() + " " + currency
}

// Publish turns closed/cancelled orders and low stock into admin chat messages.
func (s *TelegramService) Publish(ctx context.Context, event Event) error {
	if s.botToken == "" || s.adminChatID == "" {
		return nil
	}

	var message string
	switch payload := event.Payload.(type) {
	case *models.Order:
		switch event.Name {
		case EventOrderClosed:
			message = s.formatClosed(payload)
		case EventOrderCancelled:
			message = s.formatCancelled(payload)
		}
	case *models.Product:
		if event.Name == EventStockLow {
			message = s.formatLowStock(payload)
		}
	}
	if message == "" {
		return nil
	}

	return s.SendToAdmin(ctx, message)
}

func orderLabel(order *models.Order) string {
	if order.Table != nil {
		return fmt.Sprintf("Table %d", order.Table.Number)
	}
	if order.CustomerName != "" {
		return "Counter, " + order.CustomerName
	}
	return "Counter"
}

func (s *TelegramService) formatClosed(order *models.Order) string {
	return fmt.Sprintf(`<b>✅ ORDER CLOSED</b>
<b>📋 Order:</b> %s
<b>🍽 Where:</b> %s
<b>💰 Total:</b> %s`,
		order.ID,
		orderLabel(order),
		FormatPrice(order.Total, s.currency),
	)
}

func (s *TelegramService) formatCancelled(order *models.Order) string {
	return fmt.Sprintf(`<b>❌ ORDER CANCELLED</b>
<b>📋 Order:</b> %s
<b>🍽 Where:</b> %s
<b>💰 Total:</b> %s
<b>📝 Note:</b> %s`,
		order.ID,
		orderLabel(order),
		FormatPrice(order.Total, s.currency),
		order.Note,
	)
}

func (s *TelegramService) formatLowStock(product *models.Product) string {
	quantity, minimum := 0, 0
	if product.StockQuantity != nil {
		quantity = *product.StockQuantity
	}
	if product.StockMinimum != nil {
		minimum = *product.StockMinimum
	}
	return fmt.Sprintf(`<b>⚠️ LOW STOCK</b>
<b>📦 Product:</b> %s
<b>Left:</b> %d (minimum %d)`,
		product.Name,
		quantity,
		minimum,
	)
}
