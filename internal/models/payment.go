package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	PaymentMethodCash    = "cash"
	PaymentMethodPix     = "pix"
	PaymentMethodCredit  = "credit"
	PaymentMethodDebit   = "debit"
	PaymentMethodVoucher = "voucher"
)

// PaymentMethods lists every accepted payment method.
var PaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodPix,
	PaymentMethodCredit,
	PaymentMethodDebit,
	PaymentMethodVoucher,
}

// IsPaymentMethod reports whether method is accepted.
func IsPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Payment is an immutable record of money received against an order.
// It is only ever removed as a whole (reversal).
type Payment struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	Method      string          `gorm:"index;not null" json:"method"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	ChangeGiven decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"change_given"`
	Note        string          `json:"note"`
}

// SumPayments adds up the amounts of the given payments.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
