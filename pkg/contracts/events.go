package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated     = "orders.created"
	EventPaymentProcessed = "payments.processed"
)

type OrderCreatedEvent struct {
	EventID   string          `json:"event_id"`
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	ItemCount int             `json:"item_count"`
	CreatedAt time.Time       `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentProcessedEvent struct {
	EventID       string          `json:"event_id"`
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	Method        string          `json:"method,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Processed     time.Time       `json:"processed_at"`
}

func NewEventID() string {
	return uuid.NewString()
}
