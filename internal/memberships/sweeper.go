package memberships

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nomasclub/nomas-backend/internal/webhooklogs"
	"github.com/nomasclub/nomas-backend/pkg/db/models"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/outbox/payloads"
)

// ExpiryCheckEventType is the webhook_logs event_type of the sweep summary row.
const ExpiryCheckEventType = "subscription_expiry_check"

const systemCustomer = "system"

type expiryStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]models.Profile, error)
	Expire(ctx context.Context, tx *gorm.DB, id uuid.UUID, now time.Time) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditWriter interface {
	Record(ctx context.Context, entry webhooklogs.Entry)
}

// SweepDetail is the per-profile outcome of a sweep.
type SweepDetail struct {
	UserID  uuid.UUID `json:"user_id"`
	Success bool      `json:"success"`
	Skipped bool      `json:"skipped,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type SweepResult struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"successful"`
	Failed    int           `json:"failed"`
	Details   []SweepDetail `json:"details"`

	// Err combines the per-row failures; the batch itself still completed.
	Err error `json:"-"`
}

// Summary is the text stored on the audit row.
func (r SweepResult) Summary() string {
	return fmt.Sprintf("Processed %d expired subscriptions. Success: %d, Failed: %d", r.Processed, r.Succeeded, r.Failed)
}

type SweeperParams struct {
	Profiles          expiryStore
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Audit             auditWriter
	Logger            *logger.Logger
}

// Sweeper downgrades memberships whose expiry passed without a renewal webhook.
type Sweeper struct {
	profiles expiryStore
	tx       txRunner
	outbox   outbox.Emitter
	audit    auditWriter
	logg     *logger.Logger
}

func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit writer required")
	}
	return &Sweeper{
		profiles: params.Profiles,
		tx:       params.TransactionRunner,
		outbox:   params.Outbox,
		audit:    params.Audit,
		logg:     params.Logger,
	}, nil
}

// SweepExpired downgrades every expired profile independently. A failing row
// is recorded in the result and does not stop the batch; only a failed
// candidate query is returned as an error.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	result := SweepResult{Details: []SweepDetail{}}

	candidates, err := s.profiles.ListExpired(ctx, now)
	if err != nil {
		s.audit.Record(ctx, webhooklogs.Entry{
			EventType:  ExpiryCheckEventType,
			CustomerID: systemCustomer,
			Status:     enums.WebhookLogStatusError,
			Details:    "System error: " + err.Error(),
			At:         now,
		})
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired memberships")
	}

	for i := range candidates {
		profile := candidates[i]
		detail := SweepDetail{UserID: profile.ID}
		changed, rowErr := s.expireOne(ctx, profile, now)
		result.Processed++
		if rowErr != nil {
			result.Failed++
			detail.Error = rowErr.Error()
			result.Err = multierr.Append(result.Err, fmt.Errorf("expire %s: %w", profile.ID, rowErr))
			s.logError(ctx, profile.ID, rowErr)
		} else {
			result.Succeeded++
			detail.Success = true
			detail.Skipped = !changed
		}
		result.Details = append(result.Details, detail)
	}

	status := enums.WebhookLogStatusSuccess
	if result.Failed > 0 {
		status = enums.WebhookLogStatusError
	}
	s.audit.Record(ctx, webhooklogs.Entry{
		EventType:  ExpiryCheckEventType,
		CustomerID: systemCustomer,
		Status:     status,
		Details:    result.Summary(),
		At:         now,
	})

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		})
		s.logg.Info(logCtx, "membership expiry sweep completed")
	}
	return result, nil
}

func (s *Sweeper) expireOne(ctx context.Context, profile models.Profile, now time.Time) (bool, error) {
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.profiles.Expire(ctx, tx, profile.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMembershipExpired,
			AggregateType: enums.AggregateProfile,
			AggregateID:   profile.ID,
			Actor:         outbox.SystemActor("expiry_sweeper"),
			Data: payloads.MembershipExpiredEvent{
				UserID:       profile.ID,
				Email:        profile.Email,
				PreviousTier: profile.MembershipTier,
				ExpiredAt:    now,
			},
			OccurredAt: now,
		})
	})
	return changed, err
}

func (s *Sweeper) logError(ctx context.Context, userID uuid.UUID, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "failed to expire membership", err)
}
