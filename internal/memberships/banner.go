package memberships

import (
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

type BannerLevel string

const (
	BannerInfo    BannerLevel = "info"
	BannerWarning BannerLevel = "warning"
	BannerError   BannerLevel = "error"
)

// Banner is the status notice shown to a paying member.
type Banner struct {
	Level   BannerLevel `json:"type"`
	Message string      `json:"message"`
}

var bannersByStatus = map[enums.SubscriptionStatus]Banner{
	enums.SubscriptionStatusPastDue: {
		Level:   BannerWarning,
		Message: "Payment overdue. Please update your payment method to maintain access.",
	},
	enums.SubscriptionStatusCanceled: {
		Level:   BannerError,
		Message: "Subscription canceled. You have access until your current period ends.",
	},
	enums.SubscriptionStatusUnpaid: {
		Level:   BannerError,
		Message: "Payment failed. Please update your payment method.",
	},
	enums.SubscriptionStatusIncomplete: {
		Level:   BannerWarning,
		Message: "Payment processing. This may take a few minutes.",
	},
	enums.SubscriptionStatusTrialing: {
		Level:   BannerInfo,
		Message: "Trial period active. Enjoy your premium features!",
	},
	enums.SubscriptionStatusPaused: {
		Level:   BannerInfo,
		Message: "Subscription paused. Resume anytime to regain access.",
	},
}

// StatusBanner returns nil for free members and for statuses with nothing to say.
func StatusBanner(profile *models.Profile) *Banner {
	if profile == nil || !profile.MembershipTier.IsPaid() {
		return nil
	}
	banner, ok := bannersByStatus[profile.Status()]
	if !ok {
		return nil
	}
	return &banner
}
