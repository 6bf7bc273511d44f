package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []Message
}

func (p *fakePublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.sent...)
}

type outboxState struct {
	Status    string
	Attempts  int
	NextRetry time.Time
}

// outboxTable creates a scratch table shaped like order_outbox and drops it
// when the test ends.
func outboxTable(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	url := os.Getenv("AEROLITE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AEROLITE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	table := fmt.Sprintf("outbox_test_%d", time.Now().UnixNano())
	ident := pgx.Identifier{table}.Sanitize()
	_, err = pool.Exec(ctx, `CREATE TABLE `+ident+` (
		id         BIGSERIAL PRIMARY KEY,
		event_id   UUID NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		payload    JSONB NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		attempts   INTEGER NOT NULL DEFAULT 0,
		next_retry TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP TABLE IF EXISTS `+ident)
	})
	return pool, table
}

func enqueue(t *testing.T, pool *pgxpool.Pool, table, eventType string) string {
	t.Helper()
	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	require.NoError(t, Enqueue(ctx, tx, table, id, eventType, map[string]string{"id": id}))
	require.NoError(t, tx.Commit(ctx))
	return id
}

func stateOf(t *testing.T, pool *pgxpool.Pool, table, eventID string) outboxState {
	t.Helper()
	var st outboxState
	err := pool.QueryRow(context.Background(),
		`SELECT status, attempts, next_retry FROM `+pgx.Identifier{table}.Sanitize()+` WHERE event_id = $1`,
		eventID,
	).Scan(&st.Status, &st.Attempts, &st.NextRetry)
	require.NoError(t, err)
	return st
}

func newDispatcher(pool *pgxpool.Pool, pub Publisher, table string) *OutboxDispatcher {
	return NewOutboxDispatcher(pool, pub, table, time.Hour, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchPublishesAndMarksSent(t *testing.T) {
	pool, table := outboxTable(t)
	ctx := context.Background()
	first := enqueue(t, pool, table, "orders.created")
	second := enqueue(t, pool, table, "payments.processed")

	pub := &fakePublisher{}
	d := newDispatcher(pool, pub, table)

	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	msgs := pub.messages()
	require.Len(t, msgs, 2)
	ids := []string{msgs[0].ID, msgs[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q}`, msgs[0].ID), string(msgs[0].Body))

	assert.Equal(t, "sent", stateOf(t, pool, table, first).Status)
	assert.Equal(t, "sent", stateOf(t, pool, table, second).Status)

	sent, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, pub.messages(), 2)
}

func TestDispatchFailureReschedules(t *testing.T) {
	pool, table := outboxTable(t)
	ctx := context.Background()
	id := enqueue(t, pool, table, "orders.created")

	pub := &fakePublisher{err: errors.New("broker unavailable")}
	d := newDispatcher(pool, pub, table)

	before := time.Now()
	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	st := stateOf(t, pool, table, id)
	assert.Equal(t, "pending", st.Status)
	assert.Equal(t, 1, st.Attempts)
	assert.WithinDuration(t, before.Add(retryDelay(1)), st.NextRetry, time.Second)

	// Not due yet, so nothing is claimed even once the broker recovers.
	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	sent, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	_, err = pool.Exec(ctx, `UPDATE `+pgx.Identifier{table}.Sanitize()+` SET next_retry = NOW() - INTERVAL '1 second'`)
	require.NoError(t, err)
	sent, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	st = stateOf(t, pool, table, id)
	assert.Equal(t, "sent", st.Status)
	assert.Equal(t, 1, st.Attempts)
}

func TestDispatchReclaimsExpiredClaims(t *testing.T) {
	pool, table := outboxTable(t)
	ctx := context.Background()
	ident := pgx.Identifier{table}.Sanitize()
	stuck := enqueue(t, pool, table, "orders.created")
	held := enqueue(t, pool, table, "orders.created")

	_, err := pool.Exec(ctx, `UPDATE `+ident+` SET status = 'processing', next_retry = NOW() - INTERVAL '1 second' WHERE event_id = $1`, stuck)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE `+ident+` SET status = 'processing', next_retry = NOW() + INTERVAL '1 minute' WHERE event_id = $1`, held)
	require.NoError(t, err)

	pub := &fakePublisher{}
	sent, err := newDispatcher(pool, pub, table).Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, stuck, msgs[0].ID)
	assert.Equal(t, "sent", stateOf(t, pool, table, stuck).Status)
	assert.Equal(t, "processing", stateOf(t, pool, table, held).Status)
}
