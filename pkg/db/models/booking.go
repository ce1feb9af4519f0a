package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// BookingUserEventIndex enforces one booking per member per event.
const BookingUserEventIndex = "ux_bookings_user_event"

// Booking is a member's claim on an event.
type Booking struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_bookings_user_event,priority:1"`
	EventID               uuid.UUID           `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_bookings_user_event,priority:2"`
	Status                enums.BookingStatus `gorm:"column:status;type:booking_status;not null"`
	PaymentStatus         enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:not_required"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id"`
	AmountPaidCents       int64               `gorm:"column:amount_paid_cents;not null;default:0"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
