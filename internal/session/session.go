// Package session issues opaque bearer tokens and resolves them back to a
// user id. Tokens never expire and cannot be revoked.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 16

type Store interface {
	Issue(ctx context.Context, userID int64) (string, error)
	// Resolve reports ok=false for tokens that were never issued by this
	// store (or were lost with a restart of the memory backend).
	Resolve(ctx context.Context, token string) (userID int64, ok bool, err error)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
