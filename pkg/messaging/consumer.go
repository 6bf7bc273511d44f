package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery. A nil error acks it; an error rejects it
// without requeueing so a poison message cannot loop.
type Handler func(context.Context, amqp091.Delivery) error

type Consumer struct {
	conn     *amqp091.Connection
	queue    string
	prefetch int
	logger   *slog.Logger
}

// NewRabbitConsumer binds queue to the fanout exchange. A transient queue
// is auto-deleted once the consumer goes away; an empty name lets the
// broker pick one.
func NewRabbitConsumer(url, exchange, queue string, transient bool, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	name, err := bindQueue(conn, exchange, queue, transient)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:     conn,
		queue:    name,
		prefetch: 32,
		logger:   logger,
	}, nil
}

func bindQueue(conn *amqp091.Connection, exchange, queue string, transient bool) (string, error) {
	if err := declareExchange(conn, exchange); err != nil {
		return "", err
	}

	ch, err := conn.Channel()
	if err != nil {
		return "", fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(queue, !transient, transient, transient, false, nil)
	if err != nil {
		return "", fmt.Errorf("declare queue %q: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %q: %w", q.Name, err)
	}
	return q.Name, nil
}

// Queue reports the bound queue name, which the broker assigns for
// anonymous queues.
func (c *Consumer) Queue() string {
	return c.queue
}

// Start blocks, feeding deliveries to handler until ctx is done or the
// broker closes the channel.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("consumer channel closed", "queue", c.queue)
				return nil
			}
			c.settle(ctx, msg, handler(ctx, msg))
		}
	}
}

func (c *Consumer) settle(ctx context.Context, msg amqp091.Delivery, handleErr error) {
	if handleErr == nil {
		if err := msg.Ack(false); err != nil {
			c.logger.WarnContext(ctx, "ack failed", "queue", c.queue, "message_id", msg.MessageId, "err", err)
		}
		return
	}

	c.logger.ErrorContext(ctx, "message rejected", "queue", c.queue, "message_id", msg.MessageId, "type", msg.Type, "err", handleErr)
	if err := msg.Nack(false, false); err != nil {
		c.logger.WarnContext(ctx, "nack failed", "queue", c.queue, "message_id", msg.MessageId, "err", err)
	}
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}
