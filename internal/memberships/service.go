package memberships

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
)

type profileReader interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Profile, error)
}

// StatusView is what a member sees about their own membership.
type StatusView struct {
	Tier                  enums.MembershipTier     `json:"tier"`
	DisplayName           string                   `json:"display_name"`
	Status                enums.SubscriptionStatus `json:"status"`
	Entitled              bool                     `json:"entitled"`
	Healthy               bool                     `json:"healthy"`
	NeedsPaymentAttention bool                     `json:"needs_payment_attention"`
	Banner                *Banner                  `json:"banner,omitempty"`
	ExpiresAt             *time.Time               `json:"expires_at,omitempty"`
}

type Service struct {
	profiles profileReader
	now      func() time.Time
}

func NewService(profiles profileReader) (*Service, error) {
	if profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	return &Service{profiles: profiles, now: time.Now}, nil
}

// Status builds the view for the user. A user without a profile row is a free member.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*StatusView, error) {
	profile, err := s.profiles.FindByID(ctx, nil, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
		}
		profile = &models.Profile{ID: userID, MembershipTier: enums.MembershipTierFree}
	}
	return BuildStatusView(profile, s.now().UTC()), nil
}

// BuildStatusView derives the view from a loaded profile.
func BuildStatusView(profile *models.Profile, now time.Time) *StatusView {
	status := profile.Status()
	return &StatusView{
		Tier:                  profile.MembershipTier,
		DisplayName:           DisplayName(profile.MembershipTier),
		Status:                status,
		Entitled:              IsEntitled(profile, now),
		Healthy:               IsHealthy(status),
		NeedsPaymentAttention: NeedsPaymentAttention(status),
		Banner:                StatusBanner(profile),
		ExpiresAt:             profile.MembershipExpiresAt,
	}
}
