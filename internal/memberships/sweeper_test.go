package memberships

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/profiles"
	"github.com/nomasclub/nomas-backend/internal/webhooklogs"
	"github.com/nomasclub/nomas-backend/pkg/db"
	"github.com/nomasclub/nomas-backend/pkg/db/dbtest"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
)

type flakyExpiryStore struct {
	*profiles.Repository
	failFor uuid.UUID
}

func (f flakyExpiryStore) Expire(ctx context.Context, tx *gorm.DB, id uuid.UUID, now time.Time) (bool, error) {
	if id == f.failFor {
		return false, errors.New("row locked")
	}
	return f.Repository.Expire(ctx, tx, id, now)
}

func newTestSweeper(t *testing.T, conn *gorm.DB, store expiryStore) *Sweeper {
	t.Helper()
	if store == nil {
		store = profiles.NewRepository(conn)
	}
	sweeper, err := NewSweeper(SweeperParams{
		Profiles:          store,
		TransactionRunner: db.Wrap(conn),
		Outbox:            outbox.NewService(outbox.NewRepository(conn), nil),
		Audit:             webhooklogs.NewWriter(webhooklogs.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return sweeper
}

func seedMember(t *testing.T, conn *gorm.DB, tier enums.MembershipTier, expires *time.Time) *models.Profile {
	t.Helper()
	sub := "sub_" + uuid.NewString()[:8]
	profile := &models.Profile{
		ID:                   uuid.New(),
		Email:                uuid.NewString() + "@nomas.test",
		MembershipTier:       tier,
		SubscriptionStatus:   statusPtr(enums.SubscriptionStatusActive),
		StripeSubscriptionID: &sub,
		MembershipExpiresAt:  expires,
	}
	require.NoError(t, conn.Create(profile).Error)
	return profile
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	sweeper := newTestSweeper(t, conn, nil)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)

	lapsed := seedMember(t, conn, enums.MembershipTierMonthly, timePtr(now.Add(-48*time.Hour)))
	current := seedMember(t, conn, enums.MembershipTierQuarterly, timePtr(now.Add(48*time.Hour)))
	openEnded := seedMember(t, conn, enums.MembershipTierSemiannual, nil)

	first, err := sweeper.SweepExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)
	require.Equal(t, 1, first.Succeeded)
	require.Equal(t, 0, first.Failed)
	require.NoError(t, first.Err)
	require.Len(t, first.Details, 1)
	require.Equal(t, lapsed.ID, first.Details[0].UserID)

	second, err := sweeper.SweepExpired(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, second.Processed)
	require.Empty(t, second.Details)

	var got models.Profile
	require.NoError(t, conn.First(&got, "id = ?", lapsed.ID).Error)
	require.Equal(t, enums.MembershipTierFree, got.MembershipTier)
	require.Equal(t, enums.SubscriptionStatusExpired, got.Status())
	require.Nil(t, got.StripeSubscriptionID)
	require.Nil(t, got.MembershipExpiresAt)

	for _, untouched := range []*models.Profile{current, openEnded} {
		var row models.Profile
		require.NoError(t, conn.First(&row, "id = ?", untouched.ID).Error)
		require.Equal(t, untouched.MembershipTier, row.MembershipTier)
	}

	var logs []models.WebhookLog
	require.NoError(t, conn.Where("event_type = ?", ExpiryCheckEventType).Order("processed_at").Find(&logs).Error)
	require.Len(t, logs, 2)
	require.Equal(t, "system", logs[0].CustomerID)
	require.Equal(t, "Processed 1 expired subscriptions. Success: 1, Failed: 0", logs[0].Details)
	require.Equal(t, "Processed 0 expired subscriptions. Success: 0, Failed: 0", logs[1].Details)

	var events []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", enums.EventMembershipExpired).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, lapsed.ID, events[0].AggregateID)
}

func TestSweepExpiredContinuesPastRowFailure(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
	broken := seedMember(t, conn, enums.MembershipTierMonthly, timePtr(now.Add(-time.Hour)))
	healthy := seedMember(t, conn, enums.MembershipTierMonthly, timePtr(now.Add(-2*time.Hour)))

	store := flakyExpiryStore{Repository: profiles.NewRepository(conn), failFor: broken.ID}
	sweeper := newTestSweeper(t, conn, store)

	result, err := sweeper.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "row locked")

	var row models.Profile
	require.NoError(t, conn.First(&row, "id = ?", healthy.ID).Error)
	require.Equal(t, enums.MembershipTierFree, row.MembershipTier)

	var summary models.WebhookLog
	require.NoError(t, conn.Where("event_type = ?", ExpiryCheckEventType).First(&summary).Error)
	require.Equal(t, enums.WebhookLogStatusError, summary.Status)
	require.Equal(t, "Processed 2 expired subscriptions. Success: 1, Failed: 1", summary.Details)
}

func TestNewSweeperValidatesDependencies(t *testing.T) {
	if _, err := NewSweeper(SweeperParams{}); err == nil {
		t.Fatalf("expected missing dependencies to be rejected")
	}
}
