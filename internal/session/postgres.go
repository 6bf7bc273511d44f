package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps tokens in the sessions table so they survive restarts
// and are shared by every instance pointed at the same database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Issue(ctx context.Context, userID int64) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id)
		VALUES ($1, $2)`,
		token, userID,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, token string) (int64, bool, error) {
	var userID int64
	err := s.pool.QueryRow(ctx, `
		SELECT user_id FROM sessions WHERE token = $1`,
		token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select session: %w", err)
	}
	return userID, true, nil
}
