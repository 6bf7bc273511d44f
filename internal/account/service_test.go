package account

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewMemoryRepository(), bcrypt.MinCost, logger)
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Alice@Example.com ", "secret123", " Alice ", "Lee")
	require.NoError(t, err)

	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.FirstName)
	assert.NotEqual(t, "secret123", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")))
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name                         string
		email, password, first, last string
		msg                          string
	}{
		{"missing email", "", "secret", "A", "B", "All fields are required"},
		{"blank first name", "a@b.c", "secret", "   ", "B", "All fields are required"},
		{"missing password", "a@b.c", "", "A", "B", "All fields are required"},
		{"short password", "a@b.c", "ab", "A", "B", "Password must be at least 3 characters"},
		{"two multibyte characters", "a@b.c", "éé", "A", "B", "Password must be at least 3 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.email, tc.password, tc.first, tc.last)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.msg, vErr.Msg)
		})
	}
}

func TestPasswordLengthCountsCharacters(t *testing.T) {
	svc := newTestService()

	_, err := svc.Register(context.Background(), "a@b.c", "ééé", "A", "B")
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmailIsCaseInsensitive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice", "Lee")
	require.NoError(t, err)

	_, err = svc.Register(ctx, " ALICE@example.COM", "other", "Al", "Lee")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice", "Lee")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "Alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	for _, pw := range []string{"", "secret12", "secret1234", "SECRET123", " secret123"} {
		_, err := svc.Authenticate(ctx, "alice@example.com", pw)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "password %q", pw)
	}

	_, err = svc.Authenticate(ctx, "bob@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice", "Lee")
	require.NoError(t, err)

	u, err := svc.Get(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
