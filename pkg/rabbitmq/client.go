package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nomasclub/nomas-backend/pkg/config"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

var (
	errURLRequired      = errors.New("rabbitmq url is required")
	errExchangeRequired = errors.New("rabbitmq exchange is required")
	errNotInitialized   = errors.New("rabbitmq client not initialized")
	errNacked           = errors.New("rabbitmq broker nacked publish")
)

// Client owns one connection plus a confirm-mode channel bound to a durable topic exchange.
type Client struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewClient dials the broker, declares the exchange and enables publisher confirms.
func NewClient(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errURLRequired
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errExchangeRequired
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "exchange", exchange), "rabbitmq client initialized")
	}

	return &Client{conn: conn, ch: ch, exchange: exchange}, nil
}

// Exchange returns the exchange messages are published to.
func (c *Client) Exchange() string {
	if c == nil {
		return ""
	}
	return c.exchange
}

// Publish sends msg with the routing key and waits for the broker confirm.
func (c *Client) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if c == nil || c.ch == nil {
		return errNotInitialized
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.DeliveryMode == 0 {
		msg.DeliveryMode = amqp.Persistent
	}
	confirm, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, c.exchange, routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm %s: %w", routingKey, err)
	}
	if !acked {
		return errNacked
	}
	return nil
}

// PublishJSON marshals v and publishes it as application/json.
func (c *Client) PublishJSON(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.Publish(ctx, routingKey, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Ping reports whether the connection is still open.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errNotInitialized
	}
	if c.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return ctx.Err()
}

// Close releases the channel and connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
