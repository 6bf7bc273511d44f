package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderSettled  = errors.New("order already settled")
)

// ValidationError reports a rejected order submission.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

type Status string

const (
	StatusPending       Status = "pending"
	StatusConfirmed     Status = "confirmed"
	StatusPaymentFailed Status = "payment_failed"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	TransactionID   string          `json:"transactionId,omitempty"`
	Items           []Item          `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Settled reports whether the order reached a terminal state.
func (o *Order) Settled() bool {
	return o.Status != StatusPending || o.PaymentStatus != PaymentPending
}

type NewItem struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

type NewOrder struct {
	TotalAmount     decimal.Decimal
	ShippingAddress string
	Items           []NewItem
}

// Result is the outcome of a payment attempt as the ledger records it.
type Result struct {
	Approved      bool
	Method        string
	TransactionID string
	Reason        string
}

// transition returns the terminal state a payment result moves a pending
// order into.
func transition(res Result) (Status, PaymentStatus) {
	if res.Approved {
		return StatusConfirmed, PaymentPaid
	}
	return StatusPaymentFailed, PaymentFailed
}

type ApplyResult int

const (
	ApplyUpdated ApplyResult = iota
	ApplyNotFound
	ApplyAlreadySettled
)

func (r ApplyResult) String() string {
	switch r {
	case ApplyUpdated:
		return "updated"
	case ApplyNotFound:
		return "not_found"
	case ApplyAlreadySettled:
		return "already_settled"
	default:
		return "unknown"
	}
}
