package payment

import (
	"context"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var txnPattern = regexp.MustCompile(`^txn_[0-9a-f]{24}$`)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validDetails() Details {
	return Details{Method: "card", CardNumber: "4242 4242 4242 4242", ExpiryDate: "12/29", CVC: "123"}
}

func TestValidateOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Details)
		want   error
	}{
		{"missing card", func(d *Details) { d.CardNumber = "" }, ErrInvalidCard},
		{"short card", func(d *Details) { d.CardNumber = "4242 4242 4242 424" }, ErrInvalidCard},
		{"long card", func(d *Details) { d.CardNumber = "42424242424242424" }, ErrInvalidCard},
		{"card checked before expiry", func(d *Details) { d.CardNumber = "1"; d.ExpiryDate = "" }, ErrInvalidCard},
		{"missing expiry", func(d *Details) { d.ExpiryDate = "" }, ErrMissingExpiry},
		{"expiry checked before cvc", func(d *Details) { d.ExpiryDate = ""; d.CVC = "" }, ErrMissingExpiry},
		{"missing cvc", func(d *Details) { d.CVC = "" }, ErrMissingCVC},
		{"spaces ignored", func(d *Details) { d.CardNumber = " 4242424242424242 " }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDetails()
			tc.mutate(&d)
			err := Validate(d)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAttemptRejectsBadCardRegardlessOfAmount(t *testing.T) {
	sim := NewSimulator(1, mrand.NewPCG(1, 2), discardLogger())

	for n := 0; n <= 24; n++ {
		if n == cardNumberLen {
			continue
		}
		d := validDetails()
		d.CardNumber = strings.Repeat("4", n)
		for _, amount := range []int64{0, 1, 9300000, 73000000} {
			out, err := sim.Attempt(context.Background(), d, decimal.NewFromInt(amount))
			require.ErrorIs(t, err, ErrInvalidCard, "len=%d amount=%d", n, amount)
			assert.False(t, out.Approved)
			assert.Equal(t, "Invalid card number", out.Reason)
		}
	}
}

func TestAttemptApproved(t *testing.T) {
	sim := NewSimulator(1, mrand.NewPCG(1, 2), discardLogger())

	out, err := sim.Attempt(context.Background(), validDetails(), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.Equal(t, "card", out.Method)
	assert.Regexp(t, txnPattern, out.TransactionID)
	assert.Empty(t, out.Reason)
}

func TestAttemptDeclined(t *testing.T) {
	sim := NewSimulator(0, mrand.NewPCG(1, 2), discardLogger())

	d := validDetails()
	d.Method = ""
	out, err := sim.Attempt(context.Background(), d, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, DefaultMethod, out.Method)
	assert.Equal(t, DeclineReason, out.Reason)
	assert.Empty(t, out.TransactionID)
}

func TestAttemptSuccessRateConverges(t *testing.T) {
	sim := NewSimulator(DefaultSuccessRate, mrand.NewPCG(42, 1337), discardLogger())

	const trials = 10000
	approved := 0
	ids := make(map[string]struct{})
	for i := 0; i < trials; i++ {
		out, err := sim.Attempt(context.Background(), validDetails(), decimal.NewFromInt(1))
		require.NoError(t, err)
		if out.Approved {
			approved++
			ids[out.TransactionID] = struct{}{}
		}
	}

	rate := float64(approved) / trials
	assert.InDelta(t, DefaultSuccessRate, rate, 0.02)
	assert.Len(t, ids, approved, "transaction ids must be unique")
}

func TestSameSeedSameOutcomes(t *testing.T) {
	run := func() []bool {
		sim := NewSimulator(DefaultSuccessRate, mrand.NewPCG(7, 7), discardLogger())
		var out []bool
		for i := 0; i < 50; i++ {
			o, err := sim.Attempt(context.Background(), validDetails(), decimal.NewFromInt(1))
			require.NoError(t, err)
			out = append(out, o.Approved)
		}
		return out
	}
	assert.Equal(t, run(), run())
}
