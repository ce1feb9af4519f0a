package bookings

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

// Repository owns the events and bookings queries used by admission.
// Methods taking a tx join the caller's transaction; nil uses the base connection.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindEvent loads an event without locking it.
func (r *Repository) FindEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.Conn(ctx, tx).First(&event, "id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// LockEvent loads the event with SELECT ... FOR UPDATE so capacity checks on
// it serialize until the transaction ends.
func (r *Repository) LockEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.Conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&event, "id = ?", eventID).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByUserAndEvent returns the member's booking for the event.
func (r *Repository) FindByUserAndEvent(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.Conn(ctx, tx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindOwned returns the booking only if it belongs to the user.
func (r *Repository) FindOwned(ctx context.Context, tx *gorm.DB, userID, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.Conn(ctx, tx).
		Where("id = ? AND user_id = ?", bookingID, userID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *Repository) CountConfirmed(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.Conn(ctx, tx).
		Model(&models.Booking{}).
		Where("event_id = ? AND status = ?", eventID, enums.BookingStatusConfirmed).
		Count(&count).Error
	return count, err
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return r.Conn(ctx, tx).Create(booking).Error
}

// Delete removes a booking row and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (bool, error) {
	res := r.Conn(ctx, tx).Where("id = ?", bookingID).Delete(&models.Booking{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PaymentUpdate scopes a PaymentIntent outcome to exactly one booking.
type PaymentUpdate struct {
	EventID         uuid.UUID
	UserID          uuid.UUID
	PaymentIntentID string
	Status          enums.PaymentStatus
	AmountCents     *int64
}

// ApplyPayment sets the payment status on the booking matching
// (event_id, user_id, stripe_payment_intent_id). A nil booking means nothing matched.
func (r *Repository) ApplyPayment(ctx context.Context, tx *gorm.DB, update PaymentUpdate) (*models.Booking, error) {
	db := r.Conn(ctx, tx)
	columns := map[string]any{
		"payment_status": update.Status,
		"updated_at":     time.Now().UTC(),
	}
	if update.AmountCents != nil {
		columns["amount_paid_cents"] = *update.AmountCents
	}
	scope := func() *gorm.DB {
		return db.Model(&models.Booking{}).
			Where("event_id = ? AND user_id = ? AND stripe_payment_intent_id = ?",
				update.EventID, update.UserID, update.PaymentIntentID)
	}
	res := scope().Updates(columns)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var booking models.Booking
	if err := scope().First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListStalePayments returns bookings still pending or failed that were created before cutoff.
func (r *Repository) ListStalePayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	var rows []models.Booking
	q := r.staleScope(r.DB(ctx), cutoff).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// DeleteStalePayment removes the booking only if it is still unpaid and stale,
// so a payment that landed after the listing is kept.
func (r *Repository) DeleteStalePayment(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, cutoff time.Time) (bool, error) {
	res := r.staleScope(r.Conn(ctx, tx), cutoff).
		Where("id = ?", bookingID).
		Delete(&models.Booking{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) staleScope(db *gorm.DB, cutoff time.Time) *gorm.DB {
	return db.
		Where("payment_status IN ?", []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}).
		Where("created_at < ?", cutoff.UTC())
}

// BookingView is a member's booking joined with its event.
type BookingView struct {
	ID              uuid.UUID           `json:"id"`
	EventID         uuid.UUID           `json:"event_id"`
	EventTitle      string              `json:"event_title"`
	EventType       enums.EventType     `json:"event_type"`
	EventDate       time.Time           `json:"event_date"`
	EventLocation   string              `json:"event_location"`
	Status          enums.BookingStatus `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	AmountPaidCents int64               `json:"amount_paid_cents"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ListByUser returns the member's bookings, newest event first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]BookingView, error) {
	rows := []BookingView{}
	err := r.DB(ctx).
		Table("bookings").
		Select(`bookings.id, bookings.event_id, events.title AS event_title, events.type AS event_type,
			events.date AS event_date, events.location AS event_location, bookings.status,
			bookings.payment_status, bookings.amount_paid_cents, bookings.created_at`).
		Joins("JOIN events ON events.id = bookings.event_id").
		Where("bookings.user_id = ?", userID).
		Order("events.date DESC").
		Scan(&rows).Error
	return rows, err
}
