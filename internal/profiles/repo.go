package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nomasclub/nomas-backend/internal/repo"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// Repository exposes profile persistence. Methods taking a tx run inside the
// caller's transaction; a nil tx falls back to the base connection.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads the profile owned by the user.
func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.Conn(ctx, tx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByCustomerIDForUpdate loads the profile linked to a Stripe customer and
// locks the row for the rest of the transaction.
func (r *Repository) FindByCustomerIDForUpdate(ctx context.Context, tx *gorm.DB, customerID string) (*models.Profile, error) {
	var profile models.Profile
	err := r.Conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_customer_id = ?", customerID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetStripeCustomerID links the profile to its Stripe customer.
func (r *Repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	res := r.DB(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stripe_customer_id": customerID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateEmail overwrites the stored email.
func (r *Repository) UpdateEmail(ctx context.Context, tx *gorm.DB, id uuid.UUID, email string) error {
	return r.Conn(ctx, tx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email":      email,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ApplySubscription writes the patched subscription columns.
func (r *Repository) ApplySubscription(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch SubscriptionPatch) error {
	if patch.Empty() {
		return nil
	}
	columns := patch.Columns()
	columns["updated_at"] = time.Now().UTC()
	return r.Conn(ctx, tx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(columns).Error
}

// ListExpired returns paid profiles whose membership_expires_at is before now.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]models.Profile, error) {
	var rows []models.Profile
	err := r.expiredScope(r.DB(ctx), now).
		Order("membership_expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// Expire downgrades one profile to the free tier. The update only applies while
// the row is still expired, so a concurrent sweep or renewal wins cleanly and
// the caller sees false.
func (r *Repository) Expire(ctx context.Context, tx *gorm.DB, id uuid.UUID, now time.Time) (bool, error) {
	res := r.expiredScope(r.Conn(ctx, tx).Model(&models.Profile{}), now).
		Where("id = ?", id).
		Updates(map[string]any{
			"membership_tier":        enums.MembershipTierFree,
			"subscription_status":    enums.SubscriptionStatusExpired,
			"stripe_subscription_id": nil,
			"membership_expires_at":  nil,
			"updated_at":             now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) expiredScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.
		Where("membership_tier <> ?", enums.MembershipTierFree).
		Where("membership_expires_at IS NOT NULL").
		Where("membership_expires_at < ?", now.UTC())
}
