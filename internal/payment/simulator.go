// Package payment simulates a card gateway. No funds move: a validated
// request is approved or declined by a weighted random draw.
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	DefaultSuccessRate = 0.9
	DefaultMethod      = "card"
	DeclineReason      = "Payment declined: Insufficient funds"

	cardNumberLen = 16
)

// ValidationError rejects payment data before any draw is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

var (
	ErrInvalidCard   = &ValidationError{Msg: "Invalid card number"}
	ErrMissingExpiry = &ValidationError{Msg: "Expiry date required"}
	ErrMissingCVC    = &ValidationError{Msg: "CVC required"}
)

type Details struct {
	Method         string `json:"method"`
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	CVC            string `json:"cvc"`
	CardholderName string `json:"cardholderName,omitempty"`
}

type Outcome struct {
	Approved      bool
	Method        string
	TransactionID string
	Reason        string
}

type Simulator struct {
	mu          sync.Mutex
	rng         *mrand.Rand
	successRate float64
	logger      *slog.Logger
}

// NewSimulator draws outcomes from src. Pass a seeded source for
// reproducible runs.
func NewSimulator(successRate float64, src mrand.Source, logger *slog.Logger) *Simulator {
	return &Simulator{
		rng:         mrand.New(src),
		successRate: successRate,
		logger:      logger,
	}
}

func Validate(d Details) error {
	if len(strings.ReplaceAll(d.CardNumber, " ", "")) != cardNumberLen {
		return ErrInvalidCard
	}
	if d.ExpiryDate == "" {
		return ErrMissingExpiry
	}
	if d.CVC == "" {
		return ErrMissingCVC
	}
	return nil
}

// Attempt validates d and then draws an outcome. Every call is an
// independent draw.
func (s *Simulator) Attempt(ctx context.Context, d Details, amount decimal.Decimal) (Outcome, error) {
	method := d.Method
	if method == "" {
		method = DefaultMethod
	}

	s.logger.InfoContext(ctx, "processing payment", "amount", amount.StringFixed(2), "method", method)

	if err := Validate(d); err != nil {
		return Outcome{Method: method, Reason: err.Error()}, err
	}

	s.mu.Lock()
	draw := s.rng.Float64()
	s.mu.Unlock()

	if draw >= s.successRate {
		return Outcome{Method: method, Reason: DeclineReason}, nil
	}

	txID, err := newTransactionID()
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Approved: true, Method: method, TransactionID: txID}, nil
}

func newTransactionID() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read transaction id: %w", err)
	}
	return "txn_" + hex.EncodeToString(b), nil
}
