package order

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"aerolite/backend/internal/account"
	"aerolite/backend/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postgresRepo(t *testing.T) (*PostgresRepository, int64) {
	t.Helper()
	url := os.Getenv("AEROLITE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AEROLITE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := storage.New(ctx, url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	u := &account.User{
		Email:        fmt.Sprintf("ledger-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "x",
		FirstName:    "Ledger",
		LastName:     "Test",
	}
	require.NoError(t, account.NewPostgresRepository(store.Pool()).Create(ctx, u))
	return NewPostgresRepository(store.Pool()), u.ID
}

func TestPostgresCreateAndGet(t *testing.T) {
	repo, userID := postgresRepo(t)
	ctx := context.Background()

	o := &Order{
		UserID:          userID,
		TotalAmount:     decimal.RequireFromString("1500.50"),
		ShippingAddress: "1 Runway Rd",
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Items: []Item{
			{ProductID: 1, Quantity: 1, Price: decimal.RequireFromString("1000.25")},
			{ProductID: 2, Quantity: 2, Price: decimal.RequireFromString("250.25")},
		},
	}
	require.NoError(t, repo.Create(ctx, o))
	require.NotZero(t, o.ID)

	got, err := repo.Get(ctx, o.ID, userID)
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount))
	assert.Len(t, got.Items, 2)

	_, err = repo.Get(ctx, o.ID, userID+1_000_000)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresApplyPaymentOnce(t *testing.T) {
	repo, userID := postgresRepo(t)
	ctx := context.Background()

	o := &Order{
		UserID:          userID,
		TotalAmount:     decimal.NewFromInt(100),
		ShippingAddress: "Hangar 4",
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
	}
	require.NoError(t, repo.Create(ctx, o))

	const attempts = 8
	results := make([]ApplyResult, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := repo.ApplyPayment(ctx, o.ID, userID, Result{
				Approved:      true,
				Method:        "card",
				TransactionID: fmt.Sprintf("txn_%024d", i),
			})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	updated := 0
	for _, r := range results {
		if r == ApplyUpdated {
			updated++
		} else {
			assert.Equal(t, ApplyAlreadySettled, r)
		}
	}
	assert.Equal(t, 1, updated)

	got, err := repo.Get(ctx, o.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
}
