package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/nomasclub/nomas-backend/internal/memberships"
	"github.com/nomasclub/nomas-backend/internal/payments"
)

type fakeSweeper struct {
	now    time.Time
	result memberships.SweepResult
	err    error
}

func (f *fakeSweeper) SweepExpired(ctx context.Context, now time.Time) (memberships.SweepResult, error) {
	f.now = now
	return f.result, f.err
}

type fakeCleaner struct {
	now    time.Time
	result payments.CleanupResult
	err    error
}

func (f *fakeCleaner) Run(ctx context.Context, now time.Time) (payments.CleanupResult, error) {
	f.now = now
	return f.result, f.err
}

func TestMembershipExpiryJobRecordsOutcomes(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{result: memberships.SweepResult{Processed: 3, Succeeded: 3}}
	items := &fakeItems{}
	jobIface, err := NewMembershipExpiryJob(MembershipExpiryJobParams{Logger: testLogger(), Sweeper: sweeper, Metrics: items})
	if err != nil {
		t.Fatalf("NewMembershipExpiryJob: %v", err)
	}
	job := jobIface.(*membershipExpiryJob)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sweeper.now.Equal(fixed) {
		t.Fatalf("expected sweep at %s, got %s", fixed, sweeper.now)
	}
	if items.counts[MembershipExpiryJobName+"/succeeded"] != 3 {
		t.Fatalf("expected 3 succeeded items, got %v", items.counts)
	}
}

func TestMembershipExpiryJobFailsOnRowErrors(t *testing.T) {
	rowErr := multierr.Append(
		errors.New("expire "+uuid.NewString()+": locked"),
		errors.New("expire "+uuid.NewString()+": locked"),
	)
	sweeper := &fakeSweeper{result: memberships.SweepResult{Processed: 5, Succeeded: 3, Failed: 2, Err: rowErr}}
	items := &fakeItems{}
	job, err := NewMembershipExpiryJob(MembershipExpiryJobParams{Logger: testLogger(), Sweeper: sweeper, Metrics: items})
	if err != nil {
		t.Fatalf("NewMembershipExpiryJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "2 of 5 rows failed") {
		t.Fatalf("expected partial failure error, got %v", err)
	}
	if items.counts[MembershipExpiryJobName+"/failed"] != 2 || items.counts[MembershipExpiryJobName+"/succeeded"] != 3 {
		t.Fatalf("unexpected item counts %v", items.counts)
	}
}

func TestMembershipExpiryJobCandidateQueryError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("connection refused")}
	job, err := NewMembershipExpiryJob(MembershipExpiryJobParams{Logger: testLogger(), Sweeper: sweeper})
	if err != nil {
		t.Fatalf("NewMembershipExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPendingBookingJobRunsCleaner(t *testing.T) {
	cleaner := &fakeCleaner{result: payments.CleanupResult{Scanned: 4, Deleted: 4}}
	items := &fakeItems{}
	job, err := NewPendingBookingJob(PendingBookingJobParams{Logger: testLogger(), Cleaner: cleaner, Metrics: items})
	if err != nil {
		t.Fatalf("NewPendingBookingJob: %v", err)
	}
	if job.Name() != PendingBookingJobName {
		t.Fatalf("unexpected name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cleaner.now.IsZero() {
		t.Fatal("cleaner not invoked")
	}
	if items.counts[PendingBookingJobName+"/deleted"] != 4 {
		t.Fatalf("expected 4 deleted items, got %v", items.counts)
	}
}

func TestPendingBookingJobPropagatesRowFailures(t *testing.T) {
	cleaner := &fakeCleaner{
		result: payments.CleanupResult{Scanned: 2, Deleted: 1, Failed: 1},
		err:    errors.New("booking x: deadlock"),
	}
	items := &fakeItems{}
	job, err := NewPendingBookingJob(PendingBookingJobParams{Logger: testLogger(), Cleaner: cleaner, Metrics: items})
	if err != nil {
		t.Fatalf("NewPendingBookingJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if items.counts[PendingBookingJobName+"/deleted"] != 1 {
		t.Fatalf("partial deletes should still be counted, got %v", items.counts)
	}
}

func TestJobConstructorsValidate(t *testing.T) {
	if _, err := NewMembershipExpiryJob(MembershipExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected sweeper required")
	}
	if _, err := NewPendingBookingJob(PendingBookingJobParams{Cleaner: &fakeCleaner{}}); err == nil {
		t.Fatal("expected logger required")
	}
}
