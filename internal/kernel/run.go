package kernel

import "time"

// RunStatus is the canonical, client-facing status of a Run.
type RunStatus string

const (
	RunQueued     RunStatus = "QUEUED"
	RunNotStarted RunStatus = "NOT_STARTED"
	RunRunning    RunStatus = "RUNNING"
	RunDone       RunStatus = "DONE"
	RunError      RunStatus = "ERROR"
)

// PodPhase mirrors the executor's notion of container lifecycle.
type PodPhase string

const (
	PodPending   PodPhase = "Pending"
	PodRunning   PodPhase = "Running"
	PodSucceeded PodPhase = "Succeeded"
	PodFailed    PodPhase = "Failed"
	PodUnknown   PodPhase = "Unknown"
)

// legacyRunStatusAliases round-trips historical records that used an older
// vocabulary. Never produced by new code; accepted only when normalizing
// data read from the repository.
var legacyRunStatusAliases = map[RunStatus]RunStatus{
	"SUBMITTED": RunQueued,
	"FAILED":    RunError,
	"CANCELLED": RunError,
}

// NormalizeLegacyRunStatus maps a possibly-legacy status value to its
// canonical form. Non-legacy values pass through unchanged.
func NormalizeLegacyRunStatus(s RunStatus) RunStatus {
	if canonical, ok := legacyRunStatusAliases[s]; ok {
		return canonical
	}
	return s
}

// Run is one execution of the simulator with a specific parameter set.
type Run struct {
	ID                 int64
	JobID              int64
	UserID             int64
	Request            map[string]interface{}
	Status             RunStatus
	PodPhase           PodPhase
	ContainerStatus    string
	EpxClientVersion   string
	ConfigURL          string
	ResultsURL         string
	ResultsUploadedAt  time.Time
	BatchExecutorID    string
	UserDeleted        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UpdateStatus atomically replaces the run's status and pod phase.
func (r *Run) UpdateStatus(status RunStatus, phase PodPhase) {
	r.Status = status
	r.PodPhase = phase
}

// IsDone reports whether the run has reached a results-bearing terminal state.
func (r *Run) IsDone() bool { return r.Status == RunDone }
