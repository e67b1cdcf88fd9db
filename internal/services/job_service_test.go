package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/domain/job"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

func newTestJobService(h *harness, schedules map[job.JobType]string) *JobService {
	return NewJobService(h.billingRepo, h.store, JobOptions{
		Schedules:      schedules,
		EventRetention: 30 * 24 * time.Hour,
	}, logger.Nop())
}

func TestJobService_PruneBillingEvents(t *testing.T) {
	h := newHarness(t)
	svc := newTestJobService(h, nil)
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-60 * 24 * time.Hour)
	ok, err := h.billingRepo.ClaimEvent(ctx, "evt_old", billing.EventCheckoutCompleted, old, old.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.billingRepo.MarkEventProcessed(ctx, "evt_old", old))

	ok, err = h.billingRepo.ClaimEvent(ctx, "evt_recent", billing.EventCheckoutCompleted, now, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.billingRepo.MarkEventProcessed(ctx, "evt_recent", now))

	exec, err := svc.Trigger(ctx, job.JobTypePruneBillingEvents)
	require.NoError(t, err)
	assert.Equal(t, job.ExecutionStatusCompleted, exec.Status)
	assert.EqualValues(t, 1, exec.Affected)
	require.NotNil(t, exec.CompletedAt)

	last := svc.LastExecution(job.JobTypePruneBillingEvents)
	require.NotNil(t, last)
	assert.EqualValues(t, 1, last.Affected)
	assert.Nil(t, svc.LastExecution(job.JobTypeSweepTransient))
}

func TestJobService_SweepTransient(t *testing.T) {
	h := newHarness(t)
	svc := newTestJobService(h, nil)
	ctx := context.Background()

	now := time.Now()
	h.store.SetClock(func() time.Time { return now })
	require.NoError(t, h.store.Set(ctx, "device:abandoned", "{}", time.Minute))
	require.NoError(t, h.store.Set(ctx, "device:live", "{}", time.Hour))

	now = now.Add(5 * time.Minute)
	exec, err := svc.Trigger(ctx, job.JobTypeSweepTransient)
	require.NoError(t, err)
	assert.EqualValues(t, 1, exec.Affected)
	assert.Equal(t, 1, h.store.Len())
}

func TestJobService_TriggerUnknownType(t *testing.T) {
	h := newHarness(t)
	svc := newTestJobService(h, nil)

	_, err := svc.Trigger(context.Background(), job.JobType("resource_sync"))
	require.Error(t, err)
}

func TestJobService_StartStop(t *testing.T) {
	h := newHarness(t)

	t.Run("rejects bad schedule", func(t *testing.T) {
		svc := newTestJobService(h, map[job.JobType]string{
			job.JobTypePruneBillingEvents: "every tuesday",
		})
		require.Error(t, svc.Start(context.Background()))
		assert.False(t, svc.IsRunning())
	})

	t.Run("starts once", func(t *testing.T) {
		svc := newTestJobService(h, job.DefaultSchedules)
		require.NoError(t, svc.Start(context.Background()))
		assert.True(t, svc.IsRunning())
		assert.Error(t, svc.Start(context.Background()))

		require.NoError(t, svc.Stop())
		assert.False(t, svc.IsRunning())
		require.NoError(t, svc.Stop())
	})
}
