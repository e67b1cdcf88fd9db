package job

import "context"

// Service schedules and runs maintenance jobs
type Service interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool

	// Trigger runs a job now, outside its schedule
	Trigger(ctx context.Context, jobType JobType) (*Execution, error)

	// LastExecution returns the most recent run of a job, or nil
	LastExecution(jobType JobType) *Execution
}
