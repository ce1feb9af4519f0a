package memberships

import (
	"time"

	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// IsEntitled reports whether the profile currently grants free access to
// non-premium paid events. A nil profile is a free member.
func IsEntitled(profile *models.Profile, now time.Time) bool {
	if profile == nil || !profile.MembershipTier.IsPaid() {
		return false
	}
	switch profile.Status() {
	case enums.SubscriptionStatusCanceled,
		enums.SubscriptionStatusUnpaid,
		enums.SubscriptionStatusIncompleteExpired:
		return false
	}
	if profile.MembershipExpiresAt != nil && now.After(*profile.MembershipExpiresAt) {
		return false
	}
	return true
}

// NeedsPaymentAttention is true while Stripe is waiting on the member's card.
func NeedsPaymentAttention(status enums.SubscriptionStatus) bool {
	switch normalizeStatus(status) {
	case enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusUnpaid,
		enums.SubscriptionStatusIncomplete:
		return true
	}
	return false
}

func IsHealthy(status enums.SubscriptionStatus) bool {
	switch normalizeStatus(status) {
	case enums.SubscriptionStatusActive, enums.SubscriptionStatusTrialing:
		return true
	}
	return false
}

// DisplayName is the member-facing label for a tier.
func DisplayName(tier enums.MembershipTier) string {
	switch tier {
	case enums.MembershipTierMonthly:
		return "Monthly Premium"
	case enums.MembershipTierQuarterly:
		return "3-Month Premium"
	case enums.MembershipTierSemiannual:
		return "6-Month Premium"
	default:
		return "Free"
	}
}

func normalizeStatus(status enums.SubscriptionStatus) enums.SubscriptionStatus {
	if status == "" {
		return enums.SubscriptionStatusActive
	}
	return status
}
