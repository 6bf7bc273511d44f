package account

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"aerolite/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func postgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	url := os.Getenv("AEROLITE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AEROLITE_TEST_DATABASE_URL not set")
	}

	store, err := storage.New(context.Background(), url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return NewPostgresRepository(store.Pool())
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func TestPostgresCreateDuplicateEmail(t *testing.T) {
	repo := postgresRepo(t)
	ctx := context.Background()
	email := uniqueEmail("dup")

	first := &User{Email: email, PasswordHash: "x", FirstName: "A", LastName: "B"}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotZero(t, first.ID)

	second := &User{Email: email, PasswordHash: "y", FirstName: "C", LastName: "D"}
	assert.ErrorIs(t, repo.Create(ctx, second), ErrEmailTaken)

	got, err := repo.ByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestPostgresConcurrentRegisterSameEmail(t *testing.T) {
	repo := postgresRepo(t)
	svc := NewService(repo, bcrypt.MinCost, slog.New(slog.NewTextHandler(io.Discard, nil)))
	email := uniqueEmail("race")

	const workers = 6
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), email, "secret123", "Racer", "Test")
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrEmailTaken)
	}
	assert.Equal(t, 1, created)
}
