package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nomasclub/nomas-backend/pkg/config"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, routing key and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Exchange       string
	RoutingKey     string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry against the configured topic exchange.
func NewEventRegistry(cfg config.RabbitMQConfig) (*EventRegistry, error) {
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("rabbitmq exchange is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventBookingConfirmed,
			AggregateType:  enums.AggregateBooking,
			RoutingKey:     "bookings.confirmed",
			PayloadFactory: func() interface{} { return &payloads.BookingEvent{} },
		},
		{
			EventType:      enums.EventBookingWaitlisted,
			AggregateType:  enums.AggregateBooking,
			RoutingKey:     "bookings.waitlisted",
			PayloadFactory: func() interface{} { return &payloads.BookingEvent{} },
		},
		{
			EventType:      enums.EventBookingCancelled,
			AggregateType:  enums.AggregateBooking,
			RoutingKey:     "bookings.cancelled",
			PayloadFactory: func() interface{} { return &payloads.BookingCancelledEvent{} },
		},
		{
			EventType:      enums.EventBookingPaymentUpdated,
			AggregateType:  enums.AggregateBooking,
			RoutingKey:     "bookings.payment_updated",
			PayloadFactory: func() interface{} { return &payloads.BookingPaymentUpdatedEvent{} },
		},
		{
			EventType:      enums.EventMembershipChanged,
			AggregateType:  enums.AggregateProfile,
			RoutingKey:     "memberships.changed",
			PayloadFactory: func() interface{} { return &payloads.MembershipChangedEvent{} },
		},
		{
			EventType:      enums.EventMembershipExpired,
			AggregateType:  enums.AggregateProfile,
			RoutingKey:     "memberships.expired",
			PayloadFactory: func() interface{} { return &payloads.MembershipExpiredEvent{} },
		},
	} {
		desc.Exchange = cfg.Exchange
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
