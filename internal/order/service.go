package order

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// Notifier is told about every status change the ledger commits.
type Notifier interface {
	NotifyStatus(o Order)
}

type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Create records a pending order for userID. Item prices are stored exactly
// as submitted.
func (s *Service) Create(ctx context.Context, userID int64, req NewOrder) (*Order, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	o := &Order{
		UserID:          userID,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Items:           make([]Item, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("order created, payment pending", "order_id", o.ID, "user_id", userID, "total", o.TotalAmount.String(), "items", len(o.Items))
	return o, nil
}

// Amounts are stored as NUMERIC(14, 2): whole cents below 10^12.
var maxAmount = decimal.New(1, 12)

func storableAmount(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && d.Abs().LessThan(maxAmount)
}

func validate(req *NewOrder) error {
	if !req.TotalAmount.GreaterThan(decimal.Zero) {
		return &ValidationError{Msg: "Total amount must be positive"}
	}
	if !storableAmount(req.TotalAmount) {
		return &ValidationError{Msg: "Total amount must be whole cents below 1000000000000"}
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return &ValidationError{Msg: "Shipping address is required"}
	}
	for i := range req.Items {
		it := &req.Items[i]
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		switch {
		case it.ProductID <= 0:
			return &ValidationError{Msg: "Every item needs a product id"}
		case it.Quantity < 0:
			return &ValidationError{Msg: "Item quantity must be positive"}
		case it.Price.IsNegative():
			return &ValidationError{Msg: "Item price cannot be negative"}
		case !storableAmount(it.Price):
			return &ValidationError{Msg: "Item price must be whole cents below 1000000000000"}
		}
	}
	return nil
}

// ApplyPaymentResult settles a pending order. Orders that are missing,
// owned by someone else, or already terminal are reported through the
// ApplyResult and left untouched.
func (s *Service) ApplyPaymentResult(ctx context.Context, orderID, userID int64, res Result) (ApplyResult, error) {
	applied, o, err := s.repo.ApplyPayment(ctx, orderID, userID, res)
	if err != nil {
		return 0, err
	}

	switch applied {
	case ApplyUpdated:
		s.logger.Info("order settled", "order_id", orderID, "status", o.Status, "payment_status", o.PaymentStatus, "transaction_id", o.TransactionID)
		if s.notifier != nil {
			s.notifier.NotifyStatus(*o)
		}
	default:
		s.logger.Warn("payment result not applied", "order_id", orderID, "user_id", userID, "result", applied.String())
	}
	return applied, nil
}

func (s *Service) Get(ctx context.Context, orderID, userID int64) (*Order, error) {
	return s.repo.Get(ctx, orderID, userID)
}

func (s *Service) List(ctx context.Context, userID int64) ([]Order, error) {
	return s.repo.List(ctx, userID)
}
