package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenResolve(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, token, 2*tokenBytes)

	userID, ok, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), userID)
}

func TestResolveUnknownToken(t *testing.T) {
	store := NewMemoryStore()

	_, ok, err := store.Resolve(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEachLoginGetsItsOwnToken(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Issue(ctx, 1)
	require.NoError(t, err)
	second, err := store.Issue(ctx, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	for _, tok := range []string{first, second} {
		userID, ok, _ := store.Resolve(ctx, tok)
		assert.True(t, ok)
		assert.Equal(t, int64(1), userID)
	}
}

func TestConcurrentIssue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers, perWorker = 16, 50
	tokens := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tok, err := store.Issue(ctx, userID)
				if err != nil {
					t.Error(err)
					return
				}
				if _, ok, _ := store.Resolve(ctx, tok); !ok {
					t.Errorf("token %s not resolvable right after issue", tok)
				}
				tokens <- tok
			}
		}(int64(w))
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]struct{})
	for tok := range tokens {
		seen[tok] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, workers*perWorker, store.Len())
}
