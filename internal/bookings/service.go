package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/db"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/outbox/payloads"
)

// CancelReasonMember marks cancellations requested by the member.
const CancelReasonMember = "member"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type bookingStore interface {
	FindEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.Event, error)
	LockEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.Event, error)
	FindByUserAndEvent(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*models.Booking, error)
	FindOwned(ctx context.Context, tx *gorm.DB, userID, bookingID uuid.UUID) (*models.Booking, error)
	CountConfirmed(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	Delete(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]BookingView, error)
	ApplyPayment(ctx context.Context, tx *gorm.DB, update PaymentUpdate) (*models.Booking, error)
}

type profileReader interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Profile, error)
}

type ServiceParams struct {
	Repo              bookingStore
	Profiles          profileReader
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Logger            *logger.Logger
}

// Service admits members to events. Every write happens inside a transaction
// that holds the event row lock, so confirmed bookings never exceed max_slots.
type Service struct {
	repo     bookingStore
	profiles profileReader
	tx       txRunner
	outbox   outbox.Emitter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &Service{
		repo:     params.Repo,
		profiles: params.Profiles,
		tx:       params.TransactionRunner,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Result is the outcome of a booking request. Booking is nil when payment is required.
type Result struct {
	Event    *models.Event
	Booking  *models.Booking
	Decision Decision
}

// RequestBooking admits the member to the event. Free access (free event or
// entitled member on a non-premium event) writes a confirmed or waitlisted
// booking; otherwise nothing is written and the decision carries the price.
func (s *Service) RequestBooking(ctx context.Context, userID, eventID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := s.lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if err := s.ensureNotBooked(ctx, tx, userID, eventID); err != nil {
			return err
		}
		profile, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		confirmed, err := s.repo.CountConfirmed(ctx, tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed bookings")
		}

		decision := Decide(event, profile, confirmed, s.now().UTC())
		result = &Result{Event: event, Decision: decision}
		if decision.Outcome == OutcomeNeedsPayment {
			return nil
		}

		booking := &models.Booking{
			UserID:        userID,
			EventID:       eventID,
			Status:        decision.BookingStatus(),
			PaymentStatus: enums.PaymentStatusNotRequired,
		}
		if err := s.insert(ctx, tx, event, booking); err != nil {
			return err
		}
		result.Booking = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Booking != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":    userID.String(),
			"event_id":   eventID.String(),
			"booking_id": result.Booking.ID.String(),
			"status":     result.Booking.Status,
		})
		s.logg.Info(logCtx, "booking admitted")
	}
	return result, nil
}

// PaymentQuote is the validated input for charging a member for an event.
type PaymentQuote struct {
	Event       *models.Event
	Profile     *models.Profile
	AmountCents int64
	Currency    string
}

// QuoteEventPayment checks that the member can and must pay for the event.
// It reads without locking; ReservePaidBooking re-checks under the lock.
func (s *Service) QuoteEventPayment(ctx context.Context, userID, eventID uuid.UUID) (*PaymentQuote, error) {
	event, err := s.repo.FindEvent(ctx, nil, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eventNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	if event.IsFree || event.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event is free")
	}
	if err := s.ensureNotBooked(ctx, nil, userID, eventID); err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if !RequiresPayment(event, profile, s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment not required")
	}
	confirmed, err := s.repo.CountConfirmed(ctx, nil, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed bookings")
	}
	if StatusForCapacity(event, confirmed) == enums.BookingStatusWaitlisted {
		return nil, eventFull()
	}
	return &PaymentQuote{
		Event:       event,
		Profile:     profile,
		AmountCents: event.PriceCents,
		Currency:    Currency,
	}, nil
}

// ReservePaidBooking writes the pending booking for a created PaymentIntent.
// Capacity is re-counted under the event lock; a slot taken in the meantime
// lands the member on the waitlist.
func (s *Service) ReservePaidBooking(ctx context.Context, userID, eventID uuid.UUID, paymentIntentID string, amountCents int64) (*models.Booking, error) {
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := s.lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if err := s.ensureNotBooked(ctx, tx, userID, eventID); err != nil {
			return err
		}
		confirmed, err := s.repo.CountConfirmed(ctx, tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed bookings")
		}
		intentID := paymentIntentID
		booking = &models.Booking{
			UserID:                userID,
			EventID:               eventID,
			Status:                StatusForCapacity(event, confirmed),
			PaymentStatus:         enums.PaymentStatusPending,
			StripePaymentIntentID: &intentID,
			AmountPaidCents:       amountCents,
		}
		return s.insert(ctx, tx, event, booking)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ApplyPayment records a PaymentIntent outcome on the booking it reserved.
// A nil booking means no row matched.
func (s *Service) ApplyPayment(ctx context.Context, tx *gorm.DB, update PaymentUpdate) (*models.Booking, error) {
	return s.repo.ApplyPayment(ctx, tx, update)
}

// RestorePaidBooking recreates the booking for a PaymentIntent that settled
// after its pending row was removed. It joins the caller's transaction and
// places the member by capacity under the event lock, like admission.
// ErrAlreadyBooked means the member holds a different booking for the event.
func (s *Service) RestorePaidBooking(ctx context.Context, tx *gorm.DB, update PaymentUpdate) (*models.Booking, error) {
	if update.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	event, err := s.lockEvent(ctx, tx, update.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBooked(ctx, tx, update.UserID, update.EventID); err != nil {
		return nil, err
	}
	confirmed, err := s.repo.CountConfirmed(ctx, tx, update.EventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed bookings")
	}
	intentID := update.PaymentIntentID
	booking := &models.Booking{
		UserID:                update.UserID,
		EventID:               update.EventID,
		Status:                StatusForCapacity(event, confirmed),
		PaymentStatus:         enums.PaymentStatusPaid,
		StripePaymentIntentID: &intentID,
	}
	if update.AmountCents != nil {
		booking.AmountPaidCents = *update.AmountCents
	}
	if err := s.insert(ctx, tx, event, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking deletes the member's booking and returns the status it had.
// Waitlisted members are not promoted into the freed slot.
func (s *Service) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (enums.BookingStatus, error) {
	return s.cancel(ctx, userID, func(tx *gorm.DB) (*models.Booking, error) {
		return s.repo.FindOwned(ctx, tx, userID, bookingID)
	})
}

// CancelBookingForEvent deletes the member's booking for the event.
func (s *Service) CancelBookingForEvent(ctx context.Context, userID, eventID uuid.UUID) (enums.BookingStatus, error) {
	return s.cancel(ctx, userID, func(tx *gorm.DB) (*models.Booking, error) {
		return s.repo.FindByUserAndEvent(ctx, tx, userID, eventID)
	})
}

func (s *Service) ListUserBookings(ctx context.Context, userID uuid.UUID) ([]BookingView, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return rows, nil
}

func (s *Service) cancel(ctx context.Context, userID uuid.UUID, find func(tx *gorm.DB) (*models.Booking, error)) (enums.BookingStatus, error) {
	var previous enums.BookingStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := find(tx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bookingNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		deleted, err := s.repo.Delete(ctx, tx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete booking")
		}
		if !deleted {
			return bookingNotFound()
		}
		previous = booking.Status
		now := s.now().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingCancelled,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleMember)},
			Data: payloads.BookingCancelledEvent{
				BookingID:      booking.ID,
				UserID:         booking.UserID,
				EventID:        booking.EventID,
				PreviousStatus: booking.Status,
				Reason:         CancelReasonMember,
				CancelledAt:    now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

func (s *Service) lockEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.repo.LockEvent(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eventNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock event")
	}
	return event, nil
}

func (s *Service) ensureNotBooked(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) error {
	_, err := s.repo.FindByUserAndEvent(ctx, tx, userID, eventID)
	switch {
	case err == nil:
		return alreadyBooked()
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing booking")
	}
}

// loadProfile treats a member without a profile row as free tier.
func (s *Service) loadProfile(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, tx, userID)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Profile{ID: userID, MembershipTier: enums.MembershipTierFree}, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, event *models.Event, booking *models.Booking) error {
	if err := s.repo.Create(ctx, tx, booking); err != nil {
		if db.IsUniqueViolation(err, models.BookingUserEventIndex) {
			return alreadyBooked()
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
	}
	eventType := enums.EventBookingConfirmed
	if booking.Status == enums.BookingStatusWaitlisted {
		eventType = enums.EventBookingWaitlisted
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         &outbox.ActorRef{UserID: booking.UserID, Role: string(enums.UserRoleMember)},
		Data: payloads.BookingEvent{
			BookingID:     booking.ID,
			UserID:        booking.UserID,
			EventID:       booking.EventID,
			EventTitle:    event.Title,
			EventDate:     event.Date,
			Status:        booking.Status,
			PaymentStatus: booking.PaymentStatus,
		},
	})
}
