package plans

import (
	"context"

	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/db/models"
)

// Repository reads membership_plans.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]models.MembershipPlan, error) {
	var rows []models.MembershipPlan
	err := r.db.WithContext(ctx).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

type planLister interface {
	List(ctx context.Context) ([]models.MembershipPlan, error)
}

// Load reads every plan row and builds the catalog.
func Load(ctx context.Context, repo planLister) (*Catalog, error) {
	rows, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(rows)
}
