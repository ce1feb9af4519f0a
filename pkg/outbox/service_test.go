package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/pkg/db/dbtest"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	aggregate := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingConfirmed,
			AggregateType: enums.AggregateBooking,
			AggregateID:   aggregate,
			Actor:         &ActorRef{UserID: aggregate, Role: "member"},
			Data:          map[string]string{"status": "confirmed"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, aggregate, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.JSONEq(t, `{"status":"confirmed"}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventMembershipChanged,
			AggregateType: enums.AggregateProfile,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	err := svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateID: uuid.New()})
	require.Error(t, err)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventBookingCancelled}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	first := seedOutboxRow(t, conn, time.Now().UTC().Add(-2*time.Minute))
	second := seedOutboxRow(t, conn, time.Now().UTC().Add(-time.Minute))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, first.ID, rows[0].ID)

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	require.NoError(t, repo.MarkTerminalTx(conn, second.ID, errors.New("bad payload"), 3))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)

	var terminal models.OutboxEvent
	require.NoError(t, conn.First(&terminal, "id = ?", second.ID).Error)
	require.Equal(t, 3, terminal.AttemptCount)
	require.NotNil(t, terminal.LastError)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	old := seedOutboxRow(t, conn, now.Add(-48*time.Hour))
	require.NoError(t, repo.MarkPublishedTx(conn, old.ID))
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", old.ID).
		Update("published_at", now.Add(-47*time.Hour)).Error)
	pending := seedOutboxRow(t, conn, now.Add(-48*time.Hour))
	dead := seedOutboxRow(t, conn, now.Add(-48*time.Hour))
	require.NoError(t, repo.MarkTerminalTx(conn, dead.ID, errors.New("gone"), 10))

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, now.Add(-24*time.Hour), 5)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, pending.ID, remaining[0].ID)
}

func TestDLQRepositoryTruncatesMessage(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	eventID := uuid.New()
	long := strings.Repeat("x", 4096)

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventBookingConfirmed,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, *found.ErrorMessage, maxLastErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func seedOutboxRow(t *testing.T, conn *gorm.DB, createdAt time.Time) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:     enums.EventBookingConfirmed,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}
