package webhooklogs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nomasclub/nomas-backend/pkg/db/dbtest"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

type failingCreator struct{}

func (failingCreator) Create(context.Context, *models.WebhookLog) error {
	return errors.New("db down")
}

func TestWriterPersistsRows(t *testing.T) {
	db := dbtest.Open(t)
	writer := NewWriter(NewRepository(db), nil)

	writer.Success(context.Background(), "invoice.payment_succeeded", "cus_1", "Updated profile")
	writer.Failure(context.Background(), "customer.subscription.updated", "", "boom")

	var rows []models.WebhookLog
	if err := db.Order("event_type").Find(&rows).Error; err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Status != enums.WebhookLogStatusError || rows[0].CustomerID != "unknown" {
		t.Fatalf("unexpected error row %+v", rows[0])
	}
	if rows[1].Status != enums.WebhookLogStatusSuccess || rows[1].CustomerID != "cus_1" {
		t.Fatalf("unexpected success row %+v", rows[1])
	}
	if rows[1].ProcessedAt.IsZero() {
		t.Fatalf("expected processed_at to be stamped")
	}
}

func TestWriterSwallowsInsertFailure(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	writer := NewWriter(failingCreator{}, logg)

	writer.Success(context.Background(), "charge.dispute.created", "cus_1", "")

	if !strings.Contains(buf.String(), "failed to write webhook log") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}
