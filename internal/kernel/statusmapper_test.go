package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapExecutorStatus(t *testing.T) {
	cases := []struct {
		in     string
		status RunStatus
		phase  PodPhase
	}{
		{"SUBMITTED", RunQueued, PodPending},
		{"PENDING", RunQueued, PodPending},
		{"RUNNABLE", RunQueued, PodPending},
		{"STARTING", RunRunning, PodRunning},
		{"RUNNING", RunRunning, PodRunning},
		{"SUCCEEDED", RunDone, PodSucceeded},
		{"FAILED", RunError, PodFailed},
		{"GARBAGE", RunError, PodUnknown},
	}
	for _, c := range cases {
		status, phase := MapExecutorStatus(c.in)
		assert.Equal(t, c.status, status, c.in)
		assert.Equal(t, c.phase, phase, c.in)
	}
}

func TestPodPhaseToStatusAgreesWithMapper(t *testing.T) {
	known := []string{"SUBMITTED", "STARTING", "SUCCEEDED", "FAILED"}
	for _, s := range known {
		status, phase := MapExecutorStatus(s)
		assert.Equal(t, status, PodPhaseToStatus(phase), s)
	}
}
