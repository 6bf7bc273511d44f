package order

import (
	"context"
	"errors"
	"fmt"

	"aerolite/backend/pkg/contracts"
	"aerolite/backend/pkg/messaging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxTable holds order events until the dispatcher publishes them.
const OutboxTable = "order_outbox"

type Repository interface {
	// Create persists the order with its items atomically and fills in the
	// generated identifiers and timestamps.
	Create(ctx context.Context, o *Order) error
	// ApplyPayment moves a pending order owned by userID into its terminal
	// state. The returned order reflects the row after the call.
	ApplyPayment(ctx context.Context, orderID, userID int64, res Result) (ApplyResult, *Order, error)
	Get(ctx context.Context, orderID, userID int64) (*Order, error)
	List(ctx context.Context, userID int64) ([]Order, error)
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_amount, shipping_address, status, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.TotalAmount, o.ShippingAddress, o.Status, o.PaymentStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			o.ID, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	evt := createdEvent(o)
	if err := messaging.Enqueue(ctx, tx, OutboxTable, evt.EventID, contracts.EventOrderCreated, evt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) ApplyPayment(ctx context.Context, orderID, userID int64, res Result) (ApplyResult, *Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT id, user_id, total_amount, shipping_address, status, payment_status,
		       payment_method, transaction_id, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`,
		orderID, userID,
	))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ApplyNotFound, nil, nil
		}
		return 0, nil, err
	}
	if o.Settled() {
		return ApplyAlreadySettled, o, nil
	}

	o.Status, o.PaymentStatus = transition(res)
	if res.Approved {
		o.PaymentMethod = res.Method
		o.TransactionID = res.TransactionID
	}

	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $3,
		    payment_status = $4,
		    payment_method = $5,
		    transaction_id = $6,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND payment_status = 'pending'
		RETURNING updated_at`,
		orderID, userID, o.Status, o.PaymentStatus, o.PaymentMethod, o.TransactionID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return 0, nil, fmt.Errorf("update order payment: %w", err)
	}

	evt := paymentEvent(o, res)
	if err := messaging.Enqueue(ctx, tx, OutboxTable, evt.EventID, contracts.EventPaymentProcessed, evt); err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return ApplyUpdated, o, nil
}

func (r *PostgresRepository) Get(ctx context.Context, orderID, userID int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT id, user_id, total_amount, shipping_address, status, payment_status,
		       payment_method, transaction_id, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2`,
		orderID, userID,
	))
	if err != nil {
		return nil, err
	}

	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return o, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, total_amount, shipping_address, status, payment_status,
		       payment_method, transaction_id, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	result := make([]Order, 0)
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Items = items[result[i].ID]
		if result[i].Items == nil {
			result[i].Items = []Item{}
		}
	}
	return result, nil
}

func (r *PostgresRepository) items(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.ShippingAddress, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.TransactionID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}
