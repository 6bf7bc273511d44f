package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultOutboxBatch = 32
	// A claimed row that is neither sent nor rescheduled within this window
	// becomes claimable again.
	claimTimeout   = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxRetryDelay  = 32 * time.Second
)

// Enqueue stores an event in the outbox table as part of tx so it is
// published only if the surrounding write commits.
func Enqueue(ctx context.Context, tx pgx.Tx, table, eventID, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+pgx.Identifier{table}.Sanitize()+` (event_id, event_type, payload) VALUES ($1, $2, $3)`,
		eventID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// OutboxDispatcher moves outbox rows to a Publisher. Delivery is at least
// once: a crash after publishing but before marking the row sent republishes
// the event with the same message id.
type OutboxDispatcher struct {
	pool      *pgxpool.Pool
	publisher Publisher
	table     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	claimQuery string
	sentQuery  string
	retryQuery string
}

type outboxRow struct {
	ID        int64
	EventID   string
	EventType string
	Payload   []byte
	Attempts  int
}

func NewOutboxDispatcher(pool *pgxpool.Pool, publisher Publisher, table string, interval time.Duration, batch int, logger *slog.Logger) *OutboxDispatcher {
	if batch <= 0 {
		batch = defaultOutboxBatch
	}
	ident := pgx.Identifier{table}.Sanitize()
	return &OutboxDispatcher{
		pool:      pool,
		publisher: publisher,
		table:     table,
		interval:  interval,
		batchSize: batch,
		logger:    logger,

		claimQuery: `UPDATE ` + ident + `
			SET status = 'processing', next_retry = $2, updated_at = NOW()
			WHERE id IN (
				SELECT id FROM ` + ident + `
				WHERE status IN ('pending', 'processing') AND next_retry <= NOW()
				ORDER BY id
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, event_id::text, event_type, payload, attempts`,
		sentQuery: `UPDATE ` + ident + ` SET status = 'sent', updated_at = NOW() WHERE id = $1`,
		retryQuery: `UPDATE ` + ident + `
			SET status = 'pending', attempts = attempts + 1, next_retry = $2, updated_at = NOW()
			WHERE id = $1`,
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		sent, err := d.Dispatch(ctx)
		if err != nil {
			d.logger.Error("outbox dispatch failed", "table", d.table, "err", err)
		} else if sent > 0 {
			d.logger.Debug("outbox events published", "table", d.table, "count", sent)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Dispatch runs one publishing pass and reports how many rows were sent.
func (d *OutboxDispatcher) Dispatch(ctx context.Context) (int, error) {
	rows, err := d.claim(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range rows {
		if err := d.publishOne(ctx, row); err != nil {
			d.logger.Warn("publish event failed", "table", d.table, "row_id", row.ID, "event_type", row.EventType, "attempts", row.Attempts+1, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// claim marks up to batchSize due rows as processing in a single statement.
// Concurrent dispatchers skip each other's rows.
func (d *OutboxDispatcher) claim(ctx context.Context) ([]outboxRow, error) {
	rows, err := d.pool.Query(ctx, d.claimQuery, d.batchSize, time.Now().Add(claimTimeout))
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}
	claimed, err := pgx.CollectRows(rows, pgx.RowToStructByPos[outboxRow])
	if err != nil {
		return nil, fmt.Errorf("scan outbox rows: %w", err)
	}
	return claimed, nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, row outboxRow) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := Message{ID: row.EventID, Type: row.EventType, Body: row.Payload}
	if pubErr := d.publisher.Publish(pubCtx, msg); pubErr != nil {
		next := time.Now().Add(retryDelay(row.Attempts + 1))
		if _, err := d.pool.Exec(ctx, d.retryQuery, row.ID, next); err != nil {
			return fmt.Errorf("reschedule after %v: %w", pubErr, err)
		}
		return pubErr
	}

	if _, err := d.pool.Exec(ctx, d.sentQuery, row.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// retryDelay doubles from one second per attempt up to maxRetryDelay.
func retryDelay(attempts int) time.Duration {
	attempts = max(attempts, 0)
	if attempts >= 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<attempts)*time.Second, maxRetryDelay)
}
