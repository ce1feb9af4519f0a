package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/internal/profiles"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/outbox/payloads"
)

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (handled, error) {
	var session stripe.CheckoutSession
	if err := decodeObject(event, &session); err != nil {
		return handled{}, err
	}
	customerID := customerRef(session.Customer)

	var patch profiles.SubscriptionPatch
	patch.Tier(s.checkoutTier(ctx, session.Metadata)).ExpiresAt(nil)
	if session.Subscription != nil && session.Subscription.ID != "" {
		id := session.Subscription.ID
		patch.SubscriptionID(&id)
	} else {
		patch.SubscriptionID(nil)
	}

	return handled{customerID: customerID}, s.applyMembership(ctx, event, customerID, patch)
}

// checkoutTier resolves the purchased tier from session metadata: the price id
// wins, then the plan id (or a bare tier name), then the catalog default.
func (s *Service) checkoutTier(ctx context.Context, metadata map[string]string) enums.MembershipTier {
	if priceID := strings.TrimSpace(metadata[payments.MetadataPriceID]); priceID != "" {
		if plan, ok := s.catalog.ByPriceID(priceID); ok {
			return plan.Tier
		}
	}
	if planID := strings.TrimSpace(metadata[payments.MetadataPlan]); planID != "" {
		if plan, ok := s.catalog.ByID(planID); ok {
			return plan.Tier
		}
		if tier, err := enums.ParseMembershipTier(planID); err == nil && tier.IsPaid() {
			return tier
		}
	}
	fallback := s.catalog.Default().Tier
	s.logg.Warn(s.logg.WithField(ctx, "fallback_tier", string(fallback)), "checkout session carries no known plan")
	return fallback
}

func (s *Service) handleSubscriptionSync(ctx context.Context, event *stripe.Event) (handled, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return handled{}, err
	}
	customerID := customerRef(sub.Customer)

	var patch profiles.SubscriptionPatch
	id := sub.ID
	patch.SubscriptionID(&id).ExpiresAt(periodEnd(event, &sub))
	if status, err := enums.ParseSubscriptionStatus(string(sub.Status)); err == nil {
		patch.Status(status)
	}

	productID, priceID := firstPrice(&sub)
	if plan, ok := s.catalog.ByProductID(productID); ok {
		patch.Tier(plan.Tier)
	} else if plan, ok := s.catalog.ByPriceID(priceID); ok {
		patch.Tier(plan.Tier)
	} else {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"stripe_product_id": productID,
			"stripe_price_id":   priceID,
		}), "subscription product maps to no plan; tier unchanged")
	}

	return handled{customerID: customerID}, s.applyMembership(ctx, event, customerID, patch)
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) (handled, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return handled{}, err
	}
	customerID := customerRef(sub.Customer)

	var patch profiles.SubscriptionPatch
	patch.Tier(enums.MembershipTierFree).
		SubscriptionID(nil).
		ExpiresAt(nil).
		Status(enums.SubscriptionStatusCanceled)

	return handled{customerID: customerID}, s.applyMembership(ctx, event, customerID, patch)
}

func (s *Service) handleSubscriptionStatus(ctx context.Context, event *stripe.Event, status enums.SubscriptionStatus) (handled, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return handled{}, err
	}
	customerID := customerRef(sub.Customer)

	var patch profiles.SubscriptionPatch
	patch.Status(status)
	return handled{customerID: customerID}, s.applyMembership(ctx, event, customerID, patch)
}

func (s *Service) handleInvoice(ctx context.Context, event *stripe.Event, status enums.SubscriptionStatus) (handled, error) {
	var invoice stripe.Invoice
	if err := decodeObject(event, &invoice); err != nil {
		return handled{}, err
	}
	result := handled{customerID: customerRef(invoice.Customer)}
	if status == enums.SubscriptionStatusPastDue {
		result.details = fmt.Sprintf("Payment failed for subscription %s", invoiceSubscriptionID(event))
	}

	var patch profiles.SubscriptionPatch
	patch.Status(status)
	return result, s.applyMembership(ctx, event, result.customerID, patch)
}

func (s *Service) handleCustomerUpdated(ctx context.Context, event *stripe.Event) (handled, error) {
	var customer stripe.Customer
	if err := decodeObject(event, &customer); err != nil {
		return handled{}, err
	}
	result := handled{customerID: customer.ID}
	email := strings.TrimSpace(customer.Email)
	if email == "" {
		return result, nil
	}
	return result, s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		profile, err := s.lockProfile(ctx, tx, customer.ID)
		if err != nil {
			return err
		}
		if profile.Email == email {
			return nil
		}
		return s.profiles.UpdateEmail(ctx, tx, profile.ID, email)
	})
}

// applyMembership writes the patch onto the customer's profile and emits the
// resulting projection in the same transaction.
func (s *Service) applyMembership(ctx context.Context, event *stripe.Event, customerID string, patch profiles.SubscriptionPatch) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		profile, err := s.lockProfile(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if err := s.profiles.ApplySubscription(ctx, tx, profile.ID, patch); err != nil {
			return fmt.Errorf("apply subscription: %w", err)
		}
		updated, err := s.profiles.FindByID(ctx, tx, profile.ID)
		if err != nil {
			return fmt.Errorf("reload profile: %w", err)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMembershipChanged,
			AggregateType: enums.AggregateProfile,
			AggregateID:   updated.ID,
			Actor:         outbox.SystemActor(actorSource),
			Data:          membershipChanged(updated, event),
			OccurredAt:    s.now(),
		})
	})
}

func (s *Service) lockProfile(ctx context.Context, tx *gorm.DB, customerID string) (*models.Profile, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrUnknownCustomer
	}
	profile, err := s.profiles.FindByCustomerIDForUpdate(ctx, tx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownCustomer
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

func membershipChanged(profile *models.Profile, event *stripe.Event) payloads.MembershipChangedEvent {
	payload := payloads.MembershipChangedEvent{
		UserID:          profile.ID,
		Email:           profile.Email,
		StripeEventType: string(event.Type),
		Tier:            profile.MembershipTier,
		ExpiresAt:       profile.MembershipExpiresAt,
	}
	if profile.SubscriptionStatus != nil {
		payload.SubscriptionStatus = *profile.SubscriptionStatus
	}
	return payload
}
