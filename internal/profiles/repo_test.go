package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/db/dbtest"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

func seedProfile(t *testing.T, db *gorm.DB, mutate func(*models.Profile)) *models.Profile {
	t.Helper()
	profile := &models.Profile{
		ID:             uuid.New(),
		Email:          uuid.NewString() + "@nomas.test",
		MembershipTier: enums.MembershipTierFree,
	}
	if mutate != nil {
		mutate(profile)
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

func TestFindByID_NotFound(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))

	_, err := repo.FindByID(context.Background(), nil, uuid.New())
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestApplySubscriptionAndLookupByCustomer(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	customer := "cus_123"
	profile := seedProfile(t, db, func(p *models.Profile) { p.StripeCustomerID = &customer })

	expires := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	sub := "sub_1"
	patch := (&SubscriptionPatch{}).
		Tier(enums.MembershipTierQuarterly).
		Status(enums.SubscriptionStatusActive).
		SubscriptionID(&sub).
		ExpiresAt(&expires)
	require.NoError(t, repo.ApplySubscription(ctx, nil, profile.ID, *patch))

	got, err := repo.FindByCustomerIDForUpdate(ctx, nil, customer)
	require.NoError(t, err)
	require.Equal(t, enums.MembershipTierQuarterly, got.MembershipTier)
	require.Equal(t, enums.SubscriptionStatusActive, got.Status())
	require.NotNil(t, got.StripeSubscriptionID)
	require.Equal(t, sub, *got.StripeSubscriptionID)
	require.NotNil(t, got.MembershipExpiresAt)
	require.True(t, expires.Equal(got.MembershipExpiresAt.UTC()))

	cleared := (&SubscriptionPatch{}).SubscriptionID(nil).ExpiresAt(nil)
	require.NoError(t, repo.ApplySubscription(ctx, nil, profile.ID, *cleared))

	got, err = repo.FindByID(ctx, nil, profile.ID)
	require.NoError(t, err)
	require.Nil(t, got.StripeSubscriptionID)
	require.Nil(t, got.MembershipExpiresAt)
	require.Equal(t, enums.MembershipTierQuarterly, got.MembershipTier)
}

func TestSetStripeCustomerID(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	profile := seedProfile(t, db, nil)

	require.NoError(t, repo.SetStripeCustomerID(ctx, profile.ID, "cus_new"))
	got, err := repo.FindByID(ctx, nil, profile.ID)
	require.NoError(t, err)
	require.Equal(t, "cus_new", *got.StripeCustomerID)

	err = repo.SetStripeCustomerID(ctx, uuid.New(), "cus_other")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListExpiredAndExpire(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := seedProfile(t, db, func(p *models.Profile) {
		p.MembershipTier = enums.MembershipTierMonthly
		p.MembershipExpiresAt = &past
	})
	seedProfile(t, db, func(p *models.Profile) {
		p.MembershipTier = enums.MembershipTierMonthly
		p.MembershipExpiresAt = &future
	})
	seedProfile(t, db, func(p *models.Profile) {
		p.MembershipTier = enums.MembershipTierMonthly
	})
	seedProfile(t, db, func(p *models.Profile) {
		p.MembershipExpiresAt = &past
	})

	rows, err := repo.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, expired.ID, rows[0].ID)

	changed, err := repo.Expire(ctx, nil, expired.ID, now)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.Expire(ctx, nil, expired.ID, now)
	require.NoError(t, err)
	require.False(t, changed, "second expire must be a no-op")

	got, err := repo.FindByID(ctx, nil, expired.ID)
	require.NoError(t, err)
	require.Equal(t, enums.MembershipTierFree, got.MembershipTier)
	require.Equal(t, enums.SubscriptionStatusExpired, got.Status())
	require.Nil(t, got.MembershipExpiresAt)
}

func TestSubscriptionPatchEmpty(t *testing.T) {
	var patch SubscriptionPatch
	if !patch.Empty() {
		t.Fatalf("expected zero patch to be empty")
	}
	patch.Status(enums.SubscriptionStatusPaused)
	if patch.Empty() || !patch.Has("subscription_status") || patch.Has("membership_tier") {
		t.Fatalf("unexpected patch columns %v", patch.Columns())
	}
}
