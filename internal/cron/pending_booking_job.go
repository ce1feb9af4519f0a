package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

const PendingBookingJobName = "pending-booking-expiry"

type pendingBookingCleaner interface {
	Run(ctx context.Context, now time.Time) (payments.CleanupResult, error)
}

type PendingBookingJobParams struct {
	Logger  *logger.Logger
	Cleaner pendingBookingCleaner
	Metrics itemRecorder
}

// NewPendingBookingJob frees places held by paid bookings whose payment never settled.
func NewPendingBookingJob(params PendingBookingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cleaner == nil {
		return nil, fmt.Errorf("pending booking cleaner required")
	}
	return &pendingBookingJob{
		logg:    params.Logger,
		cleaner: params.Cleaner,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type pendingBookingJob struct {
	logg    *logger.Logger
	cleaner pendingBookingCleaner
	metrics itemRecorder
	now     func() time.Time
}

func (j *pendingBookingJob) Name() string { return PendingBookingJobName }

func (j *pendingBookingJob) Run(ctx context.Context) error {
	result, err := j.cleaner.Run(ctx, j.now().UTC())
	if j.metrics != nil {
		j.metrics.AddItems(j.Name(), "deleted", result.Deleted)
		j.metrics.AddItems(j.Name(), "failed", result.Failed)
	}
	if err != nil {
		return fmt.Errorf("pending booking expiry: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"deleted": result.Deleted,
	})
	j.logg.Info(logCtx, "pending booking expiry complete")
	return nil
}
