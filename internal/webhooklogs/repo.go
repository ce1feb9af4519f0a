package webhooklogs

import (
	"context"

	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/repo"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
)

// Repository appends rows to webhook_logs. Nothing in the service reads them back.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, entry *models.WebhookLog) error {
	return r.DB(ctx).Create(entry).Error
}
