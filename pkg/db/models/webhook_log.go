package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// WebhookLog is the append-only audit trail of webhook deliveries and sweeps.
type WebhookLog struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType   string                 `gorm:"column:event_type;not null"`
	CustomerID  string                 `gorm:"column:customer_id;not null"`
	Status      enums.WebhookLogStatus `gorm:"column:status;type:webhook_log_status;not null"`
	Details     string                 `gorm:"column:details"`
	ProcessedAt time.Time              `gorm:"column:processed_at;not null"`
}

func (w *WebhookLog) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.ProcessedAt.IsZero() {
		w.ProcessedAt = time.Now().UTC()
	}
	return nil
}
