package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// BookingEvent is emitted when a booking is confirmed or waitlisted.
type BookingEvent struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	UserID        uuid.UUID           `json:"user_id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventTitle    string              `json:"event_title"`
	EventDate     time.Time           `json:"event_date"`
	Status        enums.BookingStatus `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// BookingCancelledEvent reports a removed booking. Reason is "member" or "payment_expired".
type BookingCancelledEvent struct {
	BookingID      uuid.UUID           `json:"booking_id"`
	UserID         uuid.UUID           `json:"user_id"`
	EventID        uuid.UUID           `json:"event_id"`
	PreviousStatus enums.BookingStatus `json:"previous_status"`
	Reason         string              `json:"reason"`
	CancelledAt    time.Time           `json:"cancelled_at"`
}

// BookingPaymentUpdatedEvent follows a PaymentIntent outcome onto its booking.
type BookingPaymentUpdatedEvent struct {
	BookingID       uuid.UUID           `json:"booking_id"`
	UserID          uuid.UUID           `json:"user_id"`
	EventID         uuid.UUID           `json:"event_id"`
	PaymentIntentID string              `json:"payment_intent_id"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	AmountPaidCents int64               `json:"amount_paid_cents"`
}

// MembershipChangedEvent carries the profile projection after a Stripe update.
type MembershipChangedEvent struct {
	UserID             uuid.UUID                `json:"user_id"`
	Email              string                   `json:"email"`
	StripeEventType    string                   `json:"stripe_event_type"`
	Tier               enums.MembershipTier     `json:"tier"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status,omitempty"`
	ExpiresAt          *time.Time               `json:"expires_at,omitempty"`
}

// MembershipExpiredEvent is emitted by the expiry sweeper per downgraded profile.
type MembershipExpiredEvent struct {
	UserID       uuid.UUID            `json:"user_id"`
	Email        string               `json:"email"`
	PreviousTier enums.MembershipTier `json:"previous_tier"`
	ExpiredAt    time.Time            `json:"expired_at"`
}
