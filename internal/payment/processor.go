package payment

import (
	"context"
	"errors"
	"log/slog"

	"aerolite/backend/internal/order"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	OrderID int64
	Outcome Outcome
}

// Processor charges an order through the simulator and records the
// result on the ledger.
type Processor struct {
	orders    *order.Service
	simulator *Simulator
	logger    *slog.Logger
}

func NewProcessor(orders *order.Service, simulator *Simulator, logger *slog.Logger) *Processor {
	return &Processor{orders: orders, simulator: simulator, logger: logger}
}

// Process returns order.ErrOrderNotFound when userID does not own orderID
// and order.ErrOrderSettled when the order already left pending. Rejected
// card data and declines both settle the order as failed and come back as
// a receipt with Approved=false.
func (p *Processor) Process(ctx context.Context, userID, orderID int64, d Details, amount decimal.Decimal) (*Receipt, error) {
	o, err := p.orders.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if o.Settled() {
		return nil, order.ErrOrderSettled
	}
	if amount.IsZero() {
		amount = o.TotalAmount
	}

	outcome, err := p.simulator.Attempt(ctx, d, amount)
	if err != nil {
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			return nil, err
		}
	}

	applied, err := p.orders.ApplyPaymentResult(ctx, orderID, userID, order.Result{
		Approved:      outcome.Approved,
		Method:        outcome.Method,
		TransactionID: outcome.TransactionID,
		Reason:        outcome.Reason,
	})
	if err != nil {
		return nil, err
	}
	switch applied {
	case order.ApplyNotFound:
		return nil, order.ErrOrderNotFound
	case order.ApplyAlreadySettled:
		// Another request settled the order between the lookup and the update.
		return nil, order.ErrOrderSettled
	}

	if outcome.Approved {
		p.logger.Info("payment successful", "order_id", orderID, "transaction_id", outcome.TransactionID)
	} else {
		p.logger.Info("payment failed", "order_id", orderID, "reason", outcome.Reason)
	}
	return &Receipt{OrderID: orderID, Outcome: outcome}, nil
}
