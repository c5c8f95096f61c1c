package kernel

import "github.com/sirupsen/logrus"

// MapExecutorStatus translates a raw batch-executor status string into the
// canonical (RunStatus, PodPhase) pair. Unknown values degrade to
// (ERROR, Unknown) and log a warning rather than failing the caller.
func MapExecutorStatus(executorStatus string) (RunStatus, PodPhase) {
	switch executorStatus {
	case "SUBMITTED", "PENDING", "RUNNABLE":
		return RunQueued, PodPending
	case "STARTING", "RUNNING":
		return RunRunning, PodRunning
	case "SUCCEEDED":
		return RunDone, PodSucceeded
	case "FAILED":
		return RunError, PodFailed
	default:
		logrus.WithField("executorStatus", executorStatus).Warn("unrecognized executor status, mapping to ERROR/Unknown")
		return RunError, PodUnknown
	}
}

// PodPhaseToStatus maps a pod phase to the client-facing RunStatus exposed
// at the HTTP boundary. It agrees with MapExecutorStatus on every phase
// that function can produce.
func PodPhaseToStatus(phase PodPhase) RunStatus {
	switch phase {
	case PodPending:
		return RunQueued
	case PodRunning:
		return RunRunning
	case PodSucceeded:
		return RunDone
	case PodFailed:
		return RunError
	default:
		return RunError
	}
}
