package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nomasclub/nomas-backend/pkg/config"
)

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), config.RabbitMQConfig{Exchange: "x"}, nil); err != errURLRequired {
		t.Fatalf("expected url error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RabbitMQConfig{URL: "amqp://localhost"}, nil); err != errExchangeRequired {
		t.Fatalf("expected exchange error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Publish(context.Background(), "booking.confirmed", amqpPublishing()); err != errNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
	if c.Exchange() != "" {
		t.Fatalf("nil client has no exchange")
	}
}

func amqpPublishing() amqp.Publishing {
	return amqp.Publishing{ContentType: "application/json", Body: []byte(`{}`)}
}
