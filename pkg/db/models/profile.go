package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// Profile carries the membership projection for a member. The subscription
// columns are written by the Stripe webhook handlers and the expiry sweeper.
type Profile struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Email                string                    `gorm:"column:email;not null"`
	FullName             *string                   `gorm:"column:full_name"`
	MembershipTier       enums.MembershipTier      `gorm:"column:membership_tier;type:membership_tier;not null;default:free"`
	SubscriptionStatus   *enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status"`
	StripeCustomerID     *string                   `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                   `gorm:"column:stripe_subscription_id"`
	MembershipExpiresAt  *time.Time                `gorm:"column:membership_expires_at"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// Status returns the subscription status, treating a missing value as active.
func (p Profile) Status() enums.SubscriptionStatus {
	if p.SubscriptionStatus == nil || *p.SubscriptionStatus == "" {
		return enums.SubscriptionStatusActive
	}
	return *p.SubscriptionStatus
}
