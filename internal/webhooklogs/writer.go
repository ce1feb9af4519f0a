package webhooklogs

import (
	"context"
	"time"

	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

type creator interface {
	Create(ctx context.Context, entry *models.WebhookLog) error
}

// Entry is one audit row.
type Entry struct {
	EventType  string
	CustomerID string
	Status     enums.WebhookLogStatus
	Details    string
	At         time.Time
}

// Writer records audit rows on a best-effort basis: a failed insert is
// logged and swallowed so it never changes the outcome of the caller.
type Writer struct {
	repo creator
	logg *logger.Logger
}

func NewWriter(repo creator, logg *logger.Logger) *Writer {
	return &Writer{repo: repo, logg: logg}
}

func (w *Writer) Record(ctx context.Context, entry Entry) {
	if w == nil || w.repo == nil {
		return
	}
	if entry.CustomerID == "" {
		entry.CustomerID = "unknown"
	}
	row := &models.WebhookLog{
		EventType:   entry.EventType,
		CustomerID:  entry.CustomerID,
		Status:      entry.Status,
		Details:     entry.Details,
		ProcessedAt: entry.At.UTC(),
	}
	if err := w.repo.Create(ctx, row); err != nil && w.logg != nil {
		logCtx := w.logg.WithFields(ctx, map[string]any{
			"webhook_event_type": entry.EventType,
			"customer_id":        entry.CustomerID,
		})
		w.logg.Error(logCtx, "failed to write webhook log", err)
	}
}

// Success is shorthand for a success row.
func (w *Writer) Success(ctx context.Context, eventType, customerID, details string) {
	w.Record(ctx, Entry{EventType: eventType, CustomerID: customerID, Status: enums.WebhookLogStatusSuccess, Details: details})
}

// Failure is shorthand for an error row.
func (w *Writer) Failure(ctx context.Context, eventType, customerID, details string) {
	w.Record(ctx, Entry{EventType: eventType, CustomerID: customerID, Status: enums.WebhookLogStatusError, Details: details})
}
