package job

import "time"

// JobType names a maintenance task
type JobType string

const (
	// JobTypePruneBillingEvents deletes processed webhook records past retention
	JobTypePruneBillingEvents JobType = "prune_billing_events"
	// JobTypeSweepTransient drops expired pairing sessions and counters from an
	// in-process store
	JobTypeSweepTransient JobType = "sweep_transient"
)

// IsValid checks if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypePruneBillingEvents, JobTypeSweepTransient:
		return true
	}
	return false
}

// ExecutionStatus represents the status of a job execution
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// DefaultSchedules are standard cron expressions
var DefaultSchedules = map[JobType]string{
	JobTypePruneBillingEvents: "0 3 * * *",    // Daily at 3 AM
	JobTypeSweepTransient:     "*/5 * * * *", // Every 5 minutes
}

// Execution is the record of one run
type Execution struct {
	JobType      JobType         `json:"job_type"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	Affected     int64           `json:"affected"`
	ErrorMessage string          `json:"error_message,omitempty"`
}
