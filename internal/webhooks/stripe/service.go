package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/bookings"
	"github.com/nomasclub/nomas-backend/internal/plans"
	"github.com/nomasclub/nomas-backend/internal/profiles"
	"github.com/nomasclub/nomas-backend/internal/webhooklogs"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
)

const (
	unknownCustomer = "unknown"
	actorSource     = "stripe_webhook"
)

// ErrUnknownCustomer marks events whose customer has no linked profile.
// Stripe retries cannot fix these, so they are acknowledged.
var ErrUnknownCustomer = errors.New("profile not found for customer")

// ErrUnmatchedPayment marks a settled payment that no booking can absorb.
// The charge needs manual follow-up, so it is logged as an error and acknowledged.
var ErrUnmatchedPayment = errors.New("payment settled without a booking")

type profileStore interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Profile, error)
	FindByCustomerIDForUpdate(ctx context.Context, tx *gorm.DB, customerID string) (*models.Profile, error)
	ApplySubscription(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch profiles.SubscriptionPatch) error
	UpdateEmail(ctx context.Context, tx *gorm.DB, id uuid.UUID, email string) error
}

type paymentStore interface {
	ApplyPayment(ctx context.Context, tx *gorm.DB, update bookings.PaymentUpdate) (*models.Booking, error)
	RestorePaidBooking(ctx context.Context, tx *gorm.DB, update bookings.PaymentUpdate) (*models.Booking, error)
}

type planResolver interface {
	ByID(id string) (plans.Plan, bool)
	ByPriceID(priceID string) (plans.Plan, bool)
	ByProductID(productID string) (plans.Plan, bool)
	Default() plans.Plan
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditWriter interface {
	Record(ctx context.Context, entry webhooklogs.Entry)
}

type ServiceParams struct {
	Profiles          profileStore
	Bookings          paymentStore
	Catalog           planResolver
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Audit             auditWriter
	Logger            *logger.Logger
}

// Service reconciles Stripe events onto profiles and bookings. Every handler
// sets absolute values, so replays and out-of-order deliveries converge.
type Service struct {
	profiles profileStore
	bookings paymentStore
	catalog  planResolver
	txRunner txRunner
	outbox   outbox.Emitter
	audit    auditWriter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit writer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		profiles: params.Profiles,
		bookings: params.Bookings,
		catalog:  params.Catalog,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		audit:    params.Audit,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// handled is what a transition reports for the audit row.
type handled struct {
	customerID string
	details    string
}

// IsHandled reports whether the event type drives a state transition rather
// than only an audit row.
func IsHandled(eventType stripe.EventType) bool {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted,
		stripe.EventTypeCustomerSubscriptionTrialWillEnd,
		stripe.EventTypeCustomerSubscriptionPaused,
		stripe.EventTypeCustomerSubscriptionResumed,
		stripe.EventTypeInvoicePaymentFailed,
		stripe.EventTypeInvoicePaymentSucceeded,
		stripe.EventTypeCustomerUpdated,
		stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed:
		return true
	}
	return false
}

// HandleEvent applies one verified Stripe event and records its outcome in
// webhook_logs. A returned error means the delivery should be retried.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithStripeEvent(ctx, event.ID, string(event.Type))

	result, err := s.dispatch(ctx, event)
	customerID := result.customerID
	if customerID == "" {
		customerID = objectID(event)
	}
	if customerID == "" {
		customerID = unknownCustomer
	}

	switch {
	case err == nil:
		s.record(ctx, event, customerID, enums.WebhookLogStatusSuccess, result.details)
		return nil
	case errors.Is(err, ErrUnknownCustomer):
		s.logg.Warn(s.logg.WithField(ctx, "stripe_customer_id", customerID), "stripe event for unknown customer")
		s.record(ctx, event, customerID, enums.WebhookLogStatusError, ErrUnknownCustomer.Error())
		return nil
	case errors.Is(err, ErrUnmatchedPayment):
		s.logg.Error(s.logg.WithField(ctx, "stripe_customer_id", customerID), "stripe payment matched no booking", err)
		s.record(ctx, event, customerID, enums.WebhookLogStatusError, err.Error())
		return nil
	default:
		s.logg.Error(ctx, "stripe webhook processing failed", err)
		s.record(ctx, event, customerID, enums.WebhookLogStatusError, err.Error())
		return err
	}
}

func (s *Service) record(ctx context.Context, event *stripe.Event, customerID string, status enums.WebhookLogStatus, details string) {
	s.audit.Record(ctx, webhooklogs.Entry{
		EventType:  string(event.Type),
		CustomerID: customerID,
		Status:     status,
		Details:    details,
		At:         s.now(),
	})
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (handled, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		return s.handleSubscriptionSync(ctx, event)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	case stripe.EventTypeCustomerSubscriptionTrialWillEnd:
		return s.handleSubscriptionStatus(ctx, event, enums.SubscriptionStatusTrialing)
	case stripe.EventTypeCustomerSubscriptionPaused:
		return s.handleSubscriptionStatus(ctx, event, enums.SubscriptionStatusPaused)
	case stripe.EventTypeCustomerSubscriptionResumed:
		return s.handleSubscriptionStatus(ctx, event, enums.SubscriptionStatusActive)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoice(ctx, event, enums.SubscriptionStatusPastDue)
	case stripe.EventTypeInvoicePaymentSucceeded:
		return s.handleInvoice(ctx, event, enums.SubscriptionStatusActive)
	case stripe.EventTypeCustomerUpdated:
		return s.handleCustomerUpdated(ctx, event)
	case stripe.EventTypePaymentIntentSucceeded:
		return s.handlePaymentIntent(ctx, event, enums.PaymentStatusPaid)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.handlePaymentIntent(ctx, event, enums.PaymentStatusFailed)
	case stripe.EventTypeChargeDisputeCreated:
		return s.handleDisputeCreated(event)
	default:
		s.logg.Info(ctx, "unhandled stripe event type")
		return handled{
			customerID: unknownCustomer,
			details:    fmt.Sprintf("Unhandled event type: %s", event.Type),
		}, nil
	}
}

func (s *Service) handleDisputeCreated(event *stripe.Event) (handled, error) {
	var dispute stripe.Dispute
	if err := decodeObject(event, &dispute); err != nil {
		return handled{}, err
	}
	customerID := unknownCustomer
	if dispute.Charge != nil && dispute.Charge.Customer != nil && dispute.Charge.Customer.ID != "" {
		customerID = dispute.Charge.Customer.ID
	}
	return handled{
		customerID: customerID,
		details:    fmt.Sprintf("Dispute amount: %d", dispute.Amount),
	}, nil
}
