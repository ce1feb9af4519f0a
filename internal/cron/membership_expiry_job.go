package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nomasclub/nomas-backend/internal/memberships"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

const MembershipExpiryJobName = "membership-expiry-sweep"

type expirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (memberships.SweepResult, error)
}

// itemRecorder counts per-row outcomes of a job run.
type itemRecorder interface {
	AddItems(job, outcome string, n int)
}

type MembershipExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper expirySweeper
	Metrics itemRecorder
}

func NewMembershipExpiryJob(params MembershipExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("expiry sweeper required")
	}
	return &membershipExpiryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type membershipExpiryJob struct {
	logg    *logger.Logger
	sweeper expirySweeper
	metrics itemRecorder
	now     func() time.Time
}

func (j *membershipExpiryJob) Name() string { return MembershipExpiryJobName }

// Run sweeps once. Row failures fail the job after the whole batch ran so the
// failure counter moves; the next tick retries them.
func (j *membershipExpiryJob) Run(ctx context.Context) error {
	result, err := j.sweeper.SweepExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("membership expiry sweep: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddItems(j.Name(), "succeeded", result.Succeeded)
		j.metrics.AddItems(j.Name(), "failed", result.Failed)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	if result.Err != nil {
		return fmt.Errorf("membership expiry sweep: %d of %d rows failed: %w", result.Failed, result.Processed, result.Err)
	}
	j.logg.Info(logCtx, "membership expiry sweep complete")
	return nil
}
