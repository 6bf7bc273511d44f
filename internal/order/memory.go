package order

import (
	"context"
	"slices"
	"sync"
	"time"

	"aerolite/backend/pkg/contracts"
)

// RecordedEvent is an event the memory repository would have written to
// the outbox.
type RecordedEvent struct {
	Type  string
	Event any
}

type MemoryRepository struct {
	mu         sync.Mutex
	nextID     int64
	nextItemID int64
	orders     map[int64]*Order
	events     []RecordedEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[int64]*Order)}
}

func (r *MemoryRepository) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now().UTC()
	o.ID = r.nextID
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Items {
		r.nextItemID++
		o.Items[i].ID = r.nextItemID
		o.Items[i].OrderID = o.ID
	}

	r.orders[o.ID] = clone(o)
	r.events = append(r.events, RecordedEvent{Type: contracts.EventOrderCreated, Event: createdEvent(o)})
	return nil
}

func (r *MemoryRepository) ApplyPayment(_ context.Context, orderID, userID int64, res Result) (ApplyResult, *Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.UserID != userID {
		return ApplyNotFound, nil, nil
	}
	if o.Settled() {
		return ApplyAlreadySettled, clone(o), nil
	}

	o.Status, o.PaymentStatus = transition(res)
	if res.Approved {
		o.PaymentMethod = res.Method
		o.TransactionID = res.TransactionID
	}
	o.UpdatedAt = time.Now().UTC()

	r.events = append(r.events, RecordedEvent{Type: contracts.EventPaymentProcessed, Event: paymentEvent(o, res)})
	return ApplyUpdated, clone(o), nil
}

func (r *MemoryRepository) Get(_ context.Context, orderID, userID int64) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return clone(o), nil
}

func (r *MemoryRepository) List(_ context.Context, userID int64) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			result = append(result, *clone(o))
		}
	}
	slices.SortFunc(result, func(a, b Order) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return result, nil
}

// Events returns the events recorded so far, oldest first.
func (r *MemoryRepository) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func clone(o *Order) *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if c.Items == nil {
		c.Items = []Item{}
	}
	return &c
}
