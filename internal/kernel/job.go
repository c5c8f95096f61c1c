package kernel

import "time"

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobCreated    JobStatus = "CREATED"
	JobSubmitted  JobStatus = "SUBMITTED"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelled  JobStatus = "CANCELLED"
)

var jobTransitions = map[JobStatus]map[JobStatus]bool{
	JobCreated:    {JobSubmitted: true, JobCancelled: true},
	JobSubmitted:  {JobProcessing: true, JobCancelled: true},
	JobProcessing: {JobCompleted: true, JobFailed: true, JobCancelled: true},
	JobCompleted:  {},
	JobFailed:     {},
	JobCancelled:  {},
}

// Job is a user's submission; it may own many Runs, each a distinct
// parameter combination executed against the simulator.
type Job struct {
	ID             int64
	UserID         int64
	Tags           []string
	Status         JobStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	InputLocation  string
	ConfigLocation string
	Metadata       map[string]interface{}
}

// IsActive reports whether the job is in a non-terminal state.
func (j *Job) IsActive() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return false
	default:
		return true
	}
}

// Transition moves the job to the given status, or returns
// InvalidTransitionError if the move isn't allowed by the state machine.
func (j *Job) Transition(to JobStatus) error {
	allowed, ok := jobTransitions[j.Status]
	if !ok || !allowed[to] {
		return &InvalidTransitionError{Entity: "job", From: string(j.Status), To: string(to)}
	}
	j.Status = to
	return nil
}

// NewJob constructs an unpersisted job in CREATED for the given caller.
func NewJob(userID int64, tags []string) *Job {
	cp := make([]string, len(tags))
	copy(cp, tags)
	return &Job{
		UserID: userID,
		Tags:   cp,
		Status: JobCreated,
	}
}
