package services

import (
	"errors"
	"net/http"
)

// Kind names a business failure.
type Kind string

// Error kinds.
const (
	KindInvalidQuantity      Kind = "InvalidQuantity"
	KindInvalidAmount        Kind = "InvalidAmount"
	KindInvalidMethod        Kind = "InvalidMethod"
	KindInvalidStatus        Kind = "InvalidStatus"
	KindInvalidKind          Kind = "InvalidKind"
	KindProductNotFound      Kind = "ProductNotFound"
	KindOrderNotFound        Kind = "OrderNotFound"
	KindItemNotFound         Kind = "ItemNotFound"
	KindPaymentNotFound      Kind = "PaymentNotFound"
	KindTableNotFound        Kind = "TableNotFound"
	KindUserNotFound         Kind = "UserNotFound"
	KindDuplicateOpenOrder   Kind = "DuplicateOpenOrder"
	KindOrderNotPayable      Kind = "OrderNotPayable"
	KindAlreadyPaid          Kind = "AlreadyPaid"
	KindIncompletePayment    Kind = "IncompletePayment"
	KindOverpayment          Kind = "OverpaymentRejected"
	KindOrderAlreadyClosed   Kind = "OrderAlreadyClosed"
	KindTableOccupied        Kind = "TableOccupied"
	KindTableInUse           Kind = "TableInUse"
	KindInsufficientStock    Kind = "InsufficientStock"
	KindForbiddenRole        Kind = "ForbiddenRole"
	KindForbiddenPassword    Kind = "ForbiddenPassword"
	KindInvalidCredentials   Kind = "InvalidCredentials"
	KindDuplicateEmail       Kind = "DuplicateEmail"
	KindDuplicateTableNumber Kind = "DuplicateTableNumber"
	KindPaymentsExceedTotal  Kind = "PaymentsExceedTotal"
)

// ErrorInfo describes a business failure and how it surfaces over HTTP.
type ErrorInfo struct {
	Kind    Kind
	Status  int
	Message string
}

var (
	ErrInvalidQuantity      = ErrorInfo{Kind: KindInvalidQuantity, Status: http.StatusBadRequest, Message: "quantity must be at least 1"}
	ErrInvalidAmount        = ErrorInfo{Kind: KindInvalidAmount, Status: http.StatusBadRequest, Message: "amount must be greater than zero"}
	ErrInvalidMethod        = ErrorInfo{Kind: KindInvalidMethod, Status: http.StatusBadRequest, Message: "invalid payment method"}
	ErrInvalidStatus        = ErrorInfo{Kind: KindInvalidStatus, Status: http.StatusBadRequest, Message: "invalid status"}
	ErrInvalidKind          = ErrorInfo{Kind: KindInvalidKind, Status: http.StatusBadRequest, Message: "invalid order kind"}
	ErrProductNotFound      = ErrorInfo{Kind: KindProductNotFound, Status: http.StatusNotFound, Message: "product not found"}
	ErrOrderNotFound        = ErrorInfo{Kind: KindOrderNotFound, Status: http.StatusNotFound, Message: "order not found"}
	ErrItemNotFound         = ErrorInfo{Kind: KindItemNotFound, Status: http.StatusNotFound, Message: "item not found"}
	ErrPaymentNotFound      = ErrorInfo{Kind: KindPaymentNotFound, Status: http.StatusNotFound, Message: "payment not found"}
	ErrTableNotFound        = ErrorInfo{Kind: KindTableNotFound, Status: http.StatusNotFound, Message: "table not found"}
	ErrUserNotFound         = ErrorInfo{Kind: KindUserNotFound, Status: http.StatusNotFound, Message: "user not found"}
	ErrDuplicateOpenOrder   = ErrorInfo{Kind: KindDuplicateOpenOrder, Status: http.StatusConflict, Message: "table already has an open order"}
	ErrOrderNotPayable      = ErrorInfo{Kind: KindOrderNotPayable, Status: http.StatusConflict, Message: "order is already closed or cancelled"}
	ErrAlreadyPaid          = ErrorInfo{Kind: KindAlreadyPaid, Status: http.StatusConflict, Message: "order is already paid"}
	ErrIncompletePayment    = ErrorInfo{Kind: KindIncompletePayment, Status: http.StatusConflict, Message: "payment incomplete"}
	ErrOverpayment          = ErrorInfo{Kind: KindOverpayment, Status: http.StatusConflict, Message: "amount exceeds the remaining balance"}
	ErrOrderAlreadyClosed   = ErrorInfo{Kind: KindOrderAlreadyClosed, Status: http.StatusConflict, Message: "payments of a closed order cannot be reversed"}
	ErrTableOccupied        = ErrorInfo{Kind: KindTableOccupied, Status: http.StatusConflict, Message: "destination table is not free"}
	ErrTableInUse           = ErrorInfo{Kind: KindTableInUse, Status: http.StatusConflict, Message: "table has an active order"}
	ErrInsufficientStock    = ErrorInfo{Kind: KindInsufficientStock, Status: http.StatusConflict, Message: "insufficient stock"}
	ErrForbiddenRole        = ErrorInfo{Kind: KindForbiddenRole, Status: http.StatusForbidden, Message: "only supervisors can cancel orders"}
	ErrForbiddenPassword    = ErrorInfo{Kind: KindForbiddenPassword, Status: http.StatusForbidden, Message: "supervisor password is incorrect"}
	ErrInvalidCredentials   = ErrorInfo{Kind: KindInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"}
	ErrDuplicateEmail       = ErrorInfo{Kind: KindDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"}
	ErrDuplicateTableNumber = ErrorInfo{Kind: KindDuplicateTableNumber, Status: http.StatusConflict, Message: "a table with this number already exists"}
	ErrPaymentsExceedTotal  = ErrorInfo{Kind: KindPaymentsExceedTotal, Status: http.StatusConflict, Message: "recorded payments exceed the new order total"}
)

// Error is a structured business error. Data carries whatever the caller needs to
// resolve the conflict without re-deriving state (existing order id, remaining amount, ...).
type Error struct {
	Info    ErrorInfo
	Message string
	Data    map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Info.Kind) + ": " + e.Message
	}
	return string(e.Info.Kind) + ": " + e.Info.Message
}

// Detail returns the human readable message.
func (e *Error) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Info.Message
}

// NewError builds a business error carrying data.
func NewError(info ErrorInfo, data map[string]any) *Error {
	return &Error{Info: info, Data: data}
}

func newError(info ErrorInfo) *Error {
	return &Error{Info: info}
}

// KindOf returns the kind of a business error, or "" for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Info.Kind
	}
	return ""
}

// IsKind reports whether err is a business error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
