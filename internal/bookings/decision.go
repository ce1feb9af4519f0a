package bookings

import (
	"time"

	"github.com/nomasclub/nomas-backend/internal/memberships"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// Currency is the only currency event prices are charged in.
const Currency = "usd"

type Outcome string

const (
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomeWaitlisted   Outcome = "waitlisted"
	OutcomeNeedsPayment Outcome = "needs_payment"
)

// Decision is the admission outcome for one member and one event.
type Decision struct {
	Outcome       Outcome             `json:"outcome"`
	PaymentStatus enums.PaymentStatus `json:"payment_status,omitempty"`
	AmountCents   int64               `json:"amount_cents,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	HasFreeAccess bool                `json:"has_free_access"`
}

// BookingStatus maps a non-payment outcome onto the stored booking status.
func (d Decision) BookingStatus() enums.BookingStatus {
	if d.Outcome == OutcomeWaitlisted {
		return enums.BookingStatusWaitlisted
	}
	return enums.BookingStatusConfirmed
}

// HasFreeAccess is true for entitled members on non-premium events.
func HasFreeAccess(event *models.Event, profile *models.Profile, now time.Time) bool {
	return memberships.IsEntitled(profile, now) && !event.IsPremiumEvent
}

// RequiresPayment reports whether the member must pay the event price.
func RequiresPayment(event *models.Event, profile *models.Profile, now time.Time) bool {
	return !event.IsFree && !HasFreeAccess(event, profile, now)
}

// StatusForCapacity is confirmed while confirmed bookings are below max_slots.
func StatusForCapacity(event *models.Event, confirmedCount int64) enums.BookingStatus {
	if confirmedCount >= int64(event.MaxSlots) {
		return enums.BookingStatusWaitlisted
	}
	return enums.BookingStatusConfirmed
}

// Decide runs the admission rules. It performs no I/O; the caller supplies
// the confirmed count read under the event lock.
func Decide(event *models.Event, profile *models.Profile, confirmedCount int64, now time.Time) Decision {
	free := HasFreeAccess(event, profile, now)
	if !event.IsFree && !free {
		return Decision{
			Outcome:       OutcomeNeedsPayment,
			AmountCents:   event.PriceCents,
			Currency:      Currency,
			HasFreeAccess: false,
		}
	}
	outcome := OutcomeConfirmed
	if StatusForCapacity(event, confirmedCount) == enums.BookingStatusWaitlisted {
		outcome = OutcomeWaitlisted
	}
	return Decision{
		Outcome:       outcome,
		PaymentStatus: enums.PaymentStatusNotRequired,
		HasFreeAccess: free,
	}
}
