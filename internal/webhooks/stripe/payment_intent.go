package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/bookings"
	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/outbox/payloads"
)

// handlePaymentIntent follows an event-booking PaymentIntent onto the booking
// scoped by (event_id, user_id, payment_intent_id). Intents without booking
// metadata belong to other flows and are only audited. A succeeded intent
// whose pending booking was already cleaned up gets its booking recreated.
func (s *Service) handlePaymentIntent(ctx context.Context, event *stripe.Event, status enums.PaymentStatus) (handled, error) {
	var intent stripe.PaymentIntent
	if err := decodeObject(event, &intent); err != nil {
		return handled{}, err
	}
	result := handled{customerID: customerRef(intent.Customer)}
	if result.customerID == "" {
		result.customerID = unknownCustomer
	}

	rawEventID := strings.TrimSpace(intent.Metadata[payments.MetadataEventID])
	rawUserID := payments.MetadataUser(intent.Metadata)
	result.details = fmt.Sprintf("Event: %s, Amount: %d", rawEventID, intent.Amount)
	if rawEventID == "" || rawUserID == "" {
		s.logg.Info(ctx, "payment intent carries no booking metadata")
		return result, nil
	}
	eventID, err := uuid.Parse(rawEventID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "event_id", rawEventID), "payment intent has malformed event id")
		return result, nil
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "user_id", rawUserID), "payment intent has malformed user id")
		return result, nil
	}

	update := bookings.PaymentUpdate{
		EventID:         eventID,
		UserID:          userID,
		PaymentIntentID: intent.ID,
		Status:          status,
	}
	if status == enums.PaymentStatusPaid {
		amount := intent.Amount
		update.AmountCents = &amount
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookings.ApplyPayment(ctx, tx, update)
		if err != nil {
			return fmt.Errorf("apply booking payment: %w", err)
		}
		if booking == nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":          eventID.String(),
				"user_id":           userID.String(),
				"payment_intent_id": intent.ID,
			})
			if status != enums.PaymentStatusPaid {
				s.logg.Warn(logCtx, "no booking matched payment intent")
				return nil
			}
			booking, err = s.bookings.RestorePaidBooking(ctx, tx, update)
			switch {
			case errors.Is(err, bookings.ErrAlreadyBooked):
				return fmt.Errorf("%w: member holds another booking for the event", ErrUnmatchedPayment)
			case errors.Is(err, bookings.ErrEventNotFound):
				return fmt.Errorf("%w: event no longer exists", ErrUnmatchedPayment)
			case err != nil:
				return fmt.Errorf("restore paid booking: %w", err)
			}
			s.logg.Warn(s.logg.WithField(logCtx, "booking_status", string(booking.Status)), "recreated booking for late payment")
			result.details += ", booking restored"
		}
		payload := payloads.BookingPaymentUpdatedEvent{
			BookingID:       booking.ID,
			UserID:          booking.UserID,
			EventID:         booking.EventID,
			PaymentIntentID: intent.ID,
			PaymentStatus:   status,
			AmountPaidCents: booking.AmountPaidCents,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingPaymentUpdated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         outbox.SystemActor(actorSource),
			Data:          payload,
			OccurredAt:    s.now(),
		})
	})
	return result, err
}
