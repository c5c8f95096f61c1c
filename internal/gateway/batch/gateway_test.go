package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
)

func TestDummyGatewaySubmitAssignsExecutorID(t *testing.T) {
	g := NewDummyGateway()
	run := &kernel.Run{ID: 7, JobID: 1}
	require.NoError(t, g.SubmitRun(nil, run))
	assert.Equal(t, "dummy-exec-7", run.BatchExecutorID)
	assert.Equal(t, 1, g.SubmittedCount())
}

func TestDummyGatewayDescribeMapsStatus(t *testing.T) {
	g := NewDummyGateway()
	g.NextStatus = "SUCCEEDED"
	detail, err := g.DescribeRun(nil, &kernel.Run{ID: 1, BatchExecutorID: "x"})
	require.NoError(t, err)
	assert.Equal(t, kernel.RunDone, detail.Status)
	assert.Equal(t, kernel.PodSucceeded, detail.PodPhase)
}

func TestDummyGatewayDescribeErrorIsGraceful(t *testing.T) {
	g := NewDummyGateway()
	g.Err = assertError{}
	detail, err := g.DescribeRun(nil, &kernel.Run{ID: 1, BatchExecutorID: "x"})
	require.NoError(t, err)
	assert.Equal(t, kernel.RunError, detail.Status)
	assert.Equal(t, kernel.PodUnknown, detail.PodPhase)
	assert.Contains(t, detail.Message, "AWS Batch API error")
}

type assertError struct{}

func (assertError) Error() string { return "simulated outage" }

func TestAWSBatchGatewaySetTargetSwapsQueueAndDefinition(t *testing.T) {
	g := NewAWSBatchGateway(nil, "queue-a", "def-a")
	g.SetTarget("queue-b", "def-b")
	queue, def := g.target()
	assert.Equal(t, "queue-b", queue)
	assert.Equal(t, "def-b", def)
}
