package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/enums"
)

// UnlimitedSlots is stored in max_slots for events without a capacity cap.
const UnlimitedSlots = math.MaxInt32

// Event is a bookable club session. Core logic only reads it.
// IsFree carries no gorm default so an explicit false is written on insert;
// the column default lives in the migration.
type Event struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title          string          `gorm:"column:title;not null"`
	Type           enums.EventType `gorm:"column:type;type:event_type;not null"`
	Date           time.Time       `gorm:"column:date;not null"`
	Duration       string          `gorm:"column:duration"`
	Location       string          `gorm:"column:location"`
	MaxSlots       int             `gorm:"column:max_slots;not null"`
	IsFree         bool            `gorm:"column:is_free;not null"`
	PriceCents     int64           `gorm:"column:price_cents;not null;default:0"`
	IsPremiumEvent bool            `gorm:"column:is_premium_event;not null;default:false"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsUnlimited reports whether the event accepts any number of confirmed bookings.
func (e Event) IsUnlimited() bool {
	return e.MaxSlots >= UnlimitedSlots
}
