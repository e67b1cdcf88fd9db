package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kybernus/license-api/internal/domain/billing"
	"github.com/kybernus/license-api/internal/domain/job"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
)

// JobOptions configures the maintenance scheduler
type JobOptions struct {
	// Schedules maps each job to a standard cron expression. Jobs without an
	// entry are only run through Trigger.
	Schedules      map[job.JobType]string
	EventRetention time.Duration
}

// JobService implements job.Service
type JobService struct {
	billingRepo billing.Repository
	sweeper     kv.Sweeper
	opts        JobOptions
	logger      *logger.Logger
	now         func() time.Time

	scheduler    *cron.Cron
	cronEntries  map[job.JobType]cron.EntryID
	last         map[job.JobType]*job.Execution
	entriesMutex sync.RWMutex
	isRunning    bool
	runningMutex sync.RWMutex
}

// NewJobService creates the scheduler. Store sweeping is only scheduled when
// the store keeps expired entries around.
func NewJobService(billingRepo billing.Repository, store kv.Store, opts JobOptions, log *logger.Logger) *JobService {
	s := &JobService{
		billingRepo: billingRepo,
		opts:        opts,
		logger:      log,
		now:         time.Now,
		cronEntries: make(map[job.JobType]cron.EntryID),
		last:        make(map[job.JobType]*job.Execution),
	}
	if sw, ok := store.(kv.Sweeper); ok {
		s.sweeper = sw
	}
	return s
}

// Start starts the job scheduler. Scheduled runs use ctx, so cancelling it
// aborts in-flight database work.
func (s *JobService) Start(ctx context.Context) error {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	s.scheduler = cron.New()

	for jobType, schedule := range s.opts.Schedules {
		if schedule == "" {
			continue
		}
		if !jobType.IsValid() {
			return fmt.Errorf("invalid job type: %s", jobType)
		}
		if jobType == job.JobTypeSweepTransient && s.sweeper == nil {
			continue
		}
		if err := s.scheduleJob(ctx, jobType, schedule); err != nil {
			return err
		}
	}

	s.scheduler.Start()
	s.isRunning = true

	s.logger.WithFields(map[string]interface{}{
		"jobs_scheduled": len(s.cronEntries),
	}).Info("Job scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to return
func (s *JobService) Stop() error {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if !s.isRunning {
		return nil
	}

	<-s.scheduler.Stop().Done()
	s.isRunning = false

	s.entriesMutex.Lock()
	s.cronEntries = make(map[job.JobType]cron.EntryID)
	s.entriesMutex.Unlock()

	s.logger.Info("Job scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *JobService) IsRunning() bool {
	s.runningMutex.RLock()
	defer s.runningMutex.RUnlock()
	return s.isRunning
}

// Trigger runs a job synchronously and records the execution
func (s *JobService) Trigger(ctx context.Context, jobType job.JobType) (*job.Execution, error) {
	if !jobType.IsValid() {
		return nil, fmt.Errorf("invalid job type: %s", jobType)
	}

	started := s.now()
	execution := &job.Execution{
		JobType:   jobType,
		Status:    job.ExecutionStatusRunning,
		StartedAt: started,
	}

	affected, err := s.runJobLogic(ctx, jobType)

	completed := s.now()
	execution.CompletedAt = &completed
	execution.DurationMs = completed.Sub(started).Milliseconds()
	execution.Affected = affected

	log := s.logger.WithFields(map[string]interface{}{
		"job_type":    jobType,
		"affected":    affected,
		"duration_ms": execution.DurationMs,
	})
	if err != nil {
		execution.Status = job.ExecutionStatusFailed
		execution.ErrorMessage = err.Error()
		log.ErrorWithErr(err, "Job execution failed")
	} else {
		execution.Status = job.ExecutionStatusCompleted
		log.Info("Job execution completed")
	}
	metrics.RecordJobRun(string(jobType), string(execution.Status))

	s.entriesMutex.Lock()
	s.last[jobType] = execution
	s.entriesMutex.Unlock()

	return execution, err
}

// LastExecution returns a copy of the latest run of jobType
func (s *JobService) LastExecution(jobType job.JobType) *job.Execution {
	s.entriesMutex.RLock()
	defer s.entriesMutex.RUnlock()

	e, ok := s.last[jobType]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// scheduleJob adds a job to the cron scheduler. Callers hold runningMutex.
func (s *JobService) scheduleJob(ctx context.Context, jobType job.JobType, schedule string) error {
	s.entriesMutex.Lock()
	defer s.entriesMutex.Unlock()

	entryID, err := s.scheduler.AddFunc(schedule, func() {
		// Trigger logs failures itself
		_, _ = s.Trigger(ctx, jobType)
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", schedule, jobType, err)
	}

	s.cronEntries[jobType] = entryID

	s.logger.WithFields(map[string]interface{}{
		"job_type": jobType,
		"schedule": schedule,
	}).Info("Job scheduled")
	return nil
}

func (s *JobService) runJobLogic(ctx context.Context, jobType job.JobType) (int64, error) {
	switch jobType {
	case job.JobTypePruneBillingEvents:
		return s.billingRepo.PruneEvents(ctx, s.now().Add(-s.opts.EventRetention))
	case job.JobTypeSweepTransient:
		if s.sweeper == nil {
			return 0, nil
		}
		return s.sweeper.Sweep(ctx)
	default:
		return 0, fmt.Errorf("unknown job type: %s", jobType)
	}
}

var _ job.Service = (*JobService)(nil)
