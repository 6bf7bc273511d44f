package order

import (
	"time"

	"aerolite/backend/pkg/contracts"
)

func createdEvent(o *Order) contracts.OrderCreatedEvent {
	return contracts.OrderCreatedEvent{
		EventID:   contracts.NewEventID(),
		OrderID:   o.ID,
		UserID:    o.UserID,
		Amount:    o.TotalAmount,
		ItemCount: len(o.Items),
		CreatedAt: o.CreatedAt,
	}
}

func paymentEvent(o *Order, res Result) contracts.PaymentProcessedEvent {
	evt := contracts.PaymentProcessedEvent{
		EventID:   contracts.NewEventID(),
		OrderID:   o.ID,
		UserID:    o.UserID,
		Amount:    o.TotalAmount,
		Status:    contracts.PaymentFailed,
		Method:    res.Method,
		Reason:    res.Reason,
		Processed: time.Now().UTC(),
	}
	if res.Approved {
		evt.Status = contracts.PaymentSucceeded
		evt.TransactionID = res.TransactionID
		evt.Reason = ""
	}
	return evt
}
