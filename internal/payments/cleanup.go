package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/outbox/payloads"
)

// CancelReasonPaymentExpired marks bookings dropped because payment never settled.
const CancelReasonPaymentExpired = "payment_expired"

const defaultCleanupBatch = 500

type staleBookingStore interface {
	ListStalePayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	DeleteStalePayment(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, cutoff time.Time) (bool, error)
}

type intentCanceler interface {
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type CleanerParams struct {
	Bookings          staleBookingStore
	Intents           intentCanceler
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Logger            *logger.Logger
	TTL               time.Duration
	BatchSize         int
}

// PendingBookingCleaner frees places held by paid bookings whose payment was
// abandoned or failed. The PaymentIntent is canceled before its booking goes,
// so a stale client secret can no longer charge the member.
type PendingBookingCleaner struct {
	bookings  staleBookingStore
	intents   intentCanceler
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	ttl       time.Duration
	batchSize int
}

// CleanupResult counts what one run removed. Skipped rows have a payment that
// settled or is still settling; the webhook reconciles those.
type CleanupResult struct {
	Scanned int
	Deleted int
	Skipped int
	Failed  int
}

func NewPendingBookingCleaner(params CleanerParams) (*PendingBookingCleaner, error) {
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.Intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.TTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending booking ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	return &PendingBookingCleaner{
		bookings:  params.Bookings,
		intents:   params.Intents,
		tx:        params.TransactionRunner,
		outbox:    params.Outbox,
		logg:      params.Logger,
		ttl:       params.TTL,
		batchSize: batch,
	}, nil
}

// Run deletes pending or failed bookings created more than TTL before now.
// Row failures are combined into the returned error after the batch finishes.
func (c *PendingBookingCleaner) Run(ctx context.Context, now time.Time) (CleanupResult, error) {
	var result CleanupResult
	cutoff := now.UTC().Add(-c.ttl)

	rows, err := c.bookings.ListStalePayments(ctx, cutoff, c.batchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale bookings")
	}
	result.Scanned = len(rows)

	var errs error
	for i := range rows {
		booking := rows[i]
		release, err := c.releaseIntent(ctx, booking)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", booking.ID, err))
			continue
		}
		if !release {
			result.Skipped++
			continue
		}
		deleted, err := c.deleteOne(ctx, booking, cutoff, now.UTC())
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", booking.ID, err))
			continue
		}
		if deleted {
			result.Deleted++
		}
	}

	if c.logg != nil && result.Scanned > 0 {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"scanned": result.Scanned,
			"deleted": result.Deleted,
			"skipped": result.Skipped,
			"failed":  result.Failed,
		})
		c.logg.Info(logCtx, "stale pending bookings cleaned up")
	}
	return result, errs
}

// releaseIntent cancels the booking's PaymentIntent and reports whether the
// booking may be deleted. Intents that succeeded or are mid-settlement keep
// their booking.
func (c *PendingBookingCleaner) releaseIntent(ctx context.Context, booking models.Booking) (bool, error) {
	if booking.StripePaymentIntentID == nil || strings.TrimSpace(*booking.StripePaymentIntentID) == "" {
		return true, nil
	}
	intentID := *booking.StripePaymentIntentID
	intent, err := c.intents.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return false, fmt.Errorf("load payment intent %s: %w", intentID, err)
	}
	switch intent.Status {
	case stripe.PaymentIntentStatusCanceled:
		return true, nil
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		if c.logg != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"booking_id":        booking.ID.String(),
				"payment_intent_id": intentID,
				"intent_status":     string(intent.Status),
			}), "stale booking has a settling payment; left for webhook")
		}
		return false, nil
	}
	if _, err := c.intents.CancelPaymentIntent(ctx, intentID, &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}); err != nil {
		return false, fmt.Errorf("cancel payment intent %s: %w", intentID, err)
	}
	return true, nil
}

func (c *PendingBookingCleaner) deleteOne(ctx context.Context, booking models.Booking, cutoff, now time.Time) (bool, error) {
	deleted := false
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := c.bookings.DeleteStalePayment(ctx, tx, booking.ID, cutoff)
		if err != nil || !ok {
			return err
		}
		deleted = true
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingCancelled,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         outbox.SystemActor("pending_booking_cleanup"),
			Data: payloads.BookingCancelledEvent{
				BookingID:      booking.ID,
				UserID:         booking.UserID,
				EventID:        booking.EventID,
				PreviousStatus: booking.Status,
				Reason:         CancelReasonPaymentExpired,
				CancelledAt:    now,
			},
			OccurredAt: now,
		})
	})
	return deleted, err
}
