package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/bookings"
	"github.com/nomasclub/nomas-backend/internal/plans"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

// Metadata keys written on Stripe objects and read back by the webhook handlers.
const (
	MetadataUserID          = "user_id"
	MetadataEventID         = "event_id"
	MetadataEventTitle      = "event_title"
	MetadataEventPriceCents = "event_price_cents"
	MetadataPlan            = "plan"
	MetadataPriceID         = "price_id"

	// MetadataLegacyUserID is the user key on intents and subscriptions
	// created before the current backend. Readers accept either key.
	MetadataLegacyUserID = "supabase_user_id"
)

// MetadataUser returns the member id stored on a Stripe object, preferring
// the current key over the legacy one.
func MetadataUser(metadata map[string]string) string {
	if v := strings.TrimSpace(metadata[MetadataUserID]); v != "" {
		return v
	}
	return strings.TrimSpace(metadata[MetadataLegacyUserID])
}

type bookingGateway interface {
	QuoteEventPayment(ctx context.Context, userID, eventID uuid.UUID) (*bookings.PaymentQuote, error)
	ReservePaidBooking(ctx context.Context, userID, eventID uuid.UUID, paymentIntentID string, amountCents int64) (*models.Booking, error)
}

type profileStore interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Profile, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type ServiceParams struct {
	Bookings bookingGateway
	Profiles profileStore
	Catalog  *plans.Catalog
	Stripe   StripeClient
	Logger   *logger.Logger
}

// Service starts Stripe payment flows: one-off event payments, membership
// checkout and the billing portal.
type Service struct {
	bookings bookingGateway
	profiles profileStore
	catalog  *plans.Catalog
	stripe   StripeClient
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking service required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		bookings: params.Bookings,
		profiles: params.Profiles,
		catalog:  params.Catalog,
		stripe:   params.Stripe,
		logg:     params.Logger,
	}, nil
}

// EventPayment is returned to the client to confirm the card payment.
type EventPayment struct {
	ClientSecret    string              `json:"client_secret"`
	PaymentIntentID string              `json:"payment_intent_id"`
	AmountCents     int64               `json:"amount_cents"`
	Currency        string              `json:"currency"`
	EventTitle      string              `json:"event_title"`
	BookingID       uuid.UUID           `json:"booking_id"`
	BookingStatus   enums.BookingStatus `json:"booking_status"`
}

// CreateEventPayment creates a PaymentIntent for a paid event and holds the
// member's place with a pending booking until the webhook settles it.
func (s *Service) CreateEventPayment(ctx context.Context, userID, eventID uuid.UUID) (*EventPayment, error) {
	quote, err := s.bookings.QuoteEventPayment(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, quote.Profile, userID)
	if err != nil {
		return nil, err
	}

	event := quote.Event
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(quote.AmountCents),
		Currency:    stripe.String(quote.Currency),
		Customer:    stripe.String(customerID),
		Description: stripe.String("Event booking: " + event.Title),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(MetadataUserID, userID.String())
	params.AddMetadata(MetadataEventID, event.ID.String())
	params.AddMetadata(MetadataEventTitle, event.Title)
	params.AddMetadata(MetadataEventPriceCents, fmt.Sprintf("%d", event.PriceCents))

	intent, err := s.stripe.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, stripeFailure(err, "create payment intent")
	}

	booking, err := s.bookings.ReservePaidBooking(ctx, userID, eventID, intent.ID, quote.AmountCents)
	if err != nil {
		s.cancelIntent(ctx, intent.ID)
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":           userID.String(),
			"event_id":          eventID.String(),
			"payment_intent_id": intent.ID,
			"amount_cents":      quote.AmountCents,
		})
		s.logg.Info(logCtx, "event payment intent created")
	}

	return &EventPayment{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		AmountCents:     quote.AmountCents,
		Currency:        quote.Currency,
		EventTitle:      event.Title,
		BookingID:       booking.ID,
		BookingStatus:   booking.Status,
	}, nil
}

// CreateCheckoutSession starts a subscription checkout for a catalog plan and
// returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, planID, origin string) (string, error) {
	plan, ok := s.catalog.ByID(strings.TrimSpace(planID))
	if !ok || !plan.IsPurchasable() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid plan").
			WithDetails(map[string]any{"plan": planID})
	}
	origin, err := normalizeOrigin(origin)
	if err != nil {
		return "", err
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.ensureCustomer(ctx, profile, userID)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(origin + "/home?payment=success"),
		CancelURL:           stripe.String(origin + "/membership-selection?payment=canceled"),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserID: userID.String(),
				MetadataPlan:   plan.ID,
			},
		},
	}
	params.AddMetadata(MetadataUserID, userID.String())
	params.AddMetadata(MetadataPlan, plan.ID)
	params.AddMetadata(MetadataPriceID, plan.StripePriceID)

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", stripeFailure(err, "create checkout session")
	}
	return session.URL, nil
}

// CreatePortalSession opens the Stripe billing portal for an existing customer.
func (s *Service) CreatePortalSession(ctx context.Context, userID uuid.UUID, origin string) (string, error) {
	origin, err := normalizeOrigin(origin)
	if err != nil {
		return "", err
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.StripeCustomerID == nil || *profile.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no billing account")
	}
	session, err := s.stripe.CreatePortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  profile.StripeCustomerID,
		ReturnURL: stripe.String(origin + "/profile"),
	})
	if err != nil {
		return "", stripeFailure(err, "create portal session")
	}
	return session.URL, nil
}

func (s *Service) loadProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return profile, nil
}

// ensureCustomer returns the member's Stripe customer, creating and linking
// one on first use.
func (s *Service) ensureCustomer(ctx context.Context, profile *models.Profile, userID uuid.UUID) (string, error) {
	if profile != nil && profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		return *profile.StripeCustomerID, nil
	}
	if profile == nil || profile.Email == "" {
		// a synthesized free profile has no email to bill
		loaded, err := s.loadProfile(ctx, userID)
		if err != nil {
			return "", err
		}
		profile = loaded
		if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
			return *profile.StripeCustomerID, nil
		}
	}

	params := &stripe.CustomerParams{Email: stripe.String(profile.Email)}
	if profile.FullName != nil && *profile.FullName != "" {
		params.Name = profile.FullName
	}
	params.AddMetadata(MetadataUserID, userID.String())
	customer, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", stripeFailure(err, "create customer")
	}
	if err := s.profiles.SetStripeCustomerID(ctx, userID, customer.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store stripe customer")
	}
	return customer.ID, nil
}

func (s *Service) cancelIntent(ctx context.Context, intentID string) {
	if _, err := s.stripe.CancelPaymentIntent(ctx, intentID, nil); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "payment_intent_id", intentID), "failed to cancel orphaned payment intent", err)
	}
}

func normalizeOrigin(origin string) (string, error) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "origin required")
	}
	return origin, nil
}

// stripeFailure maps Stripe API errors onto dependency errors with a message
// the member can act on.
func stripeFailure(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		details := map[string]any{"stripe_code": string(stripeErr.Code)}
		switch {
		case strings.Contains(stripeErr.Msg, "No such customer"):
			details["reason"] = "Customer not found in Stripe. Please contact support."
		case strings.Contains(stripeErr.Msg, "billing portal"):
			details["reason"] = "Billing portal is not configured. Please contact support."
		case stripeErr.Type == stripe.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, stripeErr.Msg)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
