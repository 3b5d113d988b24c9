// Package amqp implements domain.Broker and domain.Consumer against
// RabbitMQ, grounded on the shape of the teacher's redpanda producer
// (internal/adapter/queue/redpanda/producer.go: package doc comment,
// options-style construction, slog at connect/publish/consume
// boundaries, fmt.Errorf wrapping) and the plain-AMQP
// publish/ack/nack idiom from the orders-consumer reference example.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/quantum-tasks/internal/adapter/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// Config controls connection retry and queue topology, sourced from
// config.Config at wiring time (kept as a separate struct so this package
// doesn't import internal/config).
type Config struct {
	URL             string
	QueueName       string
	Prefetch        int
	ConnectInitial  time.Duration
	ConnectMax      time.Duration
	ConnectMaxRetry int
	ConnectTimeout  time.Duration
}

// Client wraps an amqp091-go connection, implementing domain.Broker and
// domain.Consumer. A single connection is shared; Publish and Consume each
// open their own channel so a slow consumer doesn't block publishes.
type Client struct {
	cfg Config

	mu   sync.Mutex
	conn *amqp.Connection
}

var (
	_ domain.Broker   = (*Client)(nil)
	_ domain.Consumer = (*Client)(nil)
)

// Dial connects to RabbitMQ with exponential backoff (spec.md §4.2: initial
// 1s, factor 2, cap at 60s, give up after ConnectMaxRetry attempts) and
// declares the queue idempotently (durable, no auto-delete, no extra args).
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{cfg: cfg}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ConnectInitial
	b.MaxInterval = c.cfg.ConnectMax
	b.Multiplier = 2
	// WithMaxRetries counts retries after the first attempt, so
	// ConnectMaxRetry attempts allow ConnectMaxRetry-1 retries.
	retries := c.cfg.ConnectMaxRetry - 1
	if retries < 0 {
		retries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	var conn *amqp.Connection
	operation := func() error {
		var err error
		conn, err = amqp.DialConfig(c.cfg.URL, amqp.Config{Dial: amqp.DefaultDial(c.cfg.ConnectTimeout)})
		if err != nil {
			slog.Warn("broker connect attempt failed", slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("op=broker.connect: %w: %v", domain.ErrBrokerUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("op=broker.connect.channel: %w: %v", domain.ErrBrokerUnavailable, err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.cfg.QueueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("op=broker.connect.queue_declare: %w: %v", domain.ErrBrokerUnavailable, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	slog.Info("connected to broker", slog.String("queue", c.cfg.QueueName))
	return nil
}

func (c *Client) connection() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil, fmt.Errorf("op=broker.connection: %w: connection closed", domain.ErrBrokerUnavailable)
	}
	return c.conn, nil
}

// Publish enqueues a task message (spec.md §6: default exchange, routing key
// equals the queue name, persistent delivery mode, content_type
// application/json, correlation_id set to correlationID, message_id a fresh
// UUID).
func (c *Client) Publish(ctx context.Context, taskID, circuit, correlationID string) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("op=broker.publish.channel: %w: %v", domain.ErrBrokerUnavailable, err)
	}
	defer ch.Close()

	body, err := json.Marshal(domain.TaskMessage{TaskID: taskID, Circuit: circuit})
	if err != nil {
		return fmt.Errorf("op=broker.publish.marshal: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", c.cfg.QueueName, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.New().String(),
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("op=broker.publish: %w: %v", domain.ErrBrokerUnavailable, err)
	}
	slog.Info("task published", slog.String("task_id", taskID), slog.String("correlation_id", correlationID))
	return nil
}

// Consume starts a dedicated channel with Qos prefetch (fair dispatch, one
// in-flight message per worker) and delivers each message to handler.
// Acking/nacking follows spec.md §4.5/§7: handler nil error -> ack; handler
// error wrapping ErrStorageUnavailable -> nack+requeue (transient, retry
// later); any other handler error -> ack (poison-safe, no redelivery loop).
// Consume blocks until ctx is cancelled or the channel/connection fails.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, domain.Delivery) error) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("op=broker.consume.channel: %w: %v", domain.ErrBrokerUnavailable, err)
	}
	defer ch.Close()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("op=broker.consume.qos: %w: %v", domain.ErrBrokerUnavailable, err)
	}

	msgs, err := ch.Consume(c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("op=broker.consume: %w: %v", domain.ErrBrokerUnavailable, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("op=broker.consume: %w: delivery channel closed", domain.ErrBrokerUnavailable)
			}
			if d.Redelivered {
				observability.RecordBrokerRedelivery()
			}
			delivery := domain.Delivery{Body: d.Body, MessageID: d.MessageId, CorrelationID: d.CorrelationId}
			handleErr := handler(ctx, delivery)
			if handleErr == nil {
				_ = d.Ack(false)
				continue
			}
			if isTransient(handleErr) {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func isTransient(err error) bool {
	return err != nil && (domain.IsStorageUnavailable(err))
}

// Health verifies the connection is open and can open/close a channel.
func (c *Client) Health(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("op=broker.health: %w: %v", domain.ErrBrokerUnavailable, err)
	}
	return ch.Close()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
