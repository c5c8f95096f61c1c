// Package batch implements the batch-executor gateway (C7): submit,
// describe, and cancel runs against an AWS-Batch-like external service.
// Grounded in aws-sdk-go v1's batch client, mirroring how the reference
// service's common/aws package wraps a single AWS API behind a narrow
// domain interface.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/batch"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/platform/sanitize"
)

// RunStatusDetail is the result of describing a run against the executor.
type RunStatusDetail struct {
	Status   kernel.RunStatus
	PodPhase kernel.PodPhase
	Message  string
}

// Gateway is the batch-executor gateway contract (C7).
type Gateway interface {
	SubmitRun(ctx context.Context, run *kernel.Run) error
	DescribeRun(ctx context.Context, run *kernel.Run) (RunStatusDetail, error)
	CancelRun(ctx context.Context, run *kernel.Run) error
}

// AWSBatchGateway is the production implementation. jobQueue and jobDefName
// are guarded by mu so SetTarget can be called concurrently with in-flight
// submissions when the control plane's batch config is hot-reloaded.
type AWSBatchGateway struct {
	client *batch.Batch

	mu         sync.RWMutex
	jobQueue   string
	jobDefName string
}

func NewAWSBatchGateway(sess *session.Session, jobQueue, jobDefinition string) *AWSBatchGateway {
	return &AWSBatchGateway{client: batch.New(sess), jobQueue: jobQueue, jobDefName: jobDefinition}
}

// SetTarget swaps the job queue and job definition used for future
// submissions. It does not affect runs already submitted.
func (g *AWSBatchGateway) SetTarget(jobQueue, jobDefinition string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.jobQueue = jobQueue
	g.jobDefName = jobDefinition
}

func (g *AWSBatchGateway) target() (string, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.jobQueue, g.jobDefName
}

func (g *AWSBatchGateway) SubmitRun(ctx context.Context, run *kernel.Run) error {
	jobQueue, jobDefName := g.target()
	jobName := fmt.Sprintf("job-%d-run-%d", run.JobID, run.ID)
	out, err := g.client.SubmitJobWithContext(ctx, &batch.SubmitJobInput{
		JobName:       aws.String(jobName),
		JobQueue:      aws.String(jobQueue),
		JobDefinition: aws.String(jobDefName),
		ContainerOverrides: &batch.ContainerOverrides{
			Environment: []*batch.KeyValuePair{
				{Name: aws.String("JOB_ID"), Value: aws.String(fmt.Sprintf("%d", run.JobID))},
				{Name: aws.String("RUN_ID"), Value: aws.String(fmt.Sprintf("%d", run.ID))},
			},
		},
	})
	if err != nil {
		wrapped := errors.Wrap(err, "batch submit failed")
		return fmt.Errorf("%s", sanitize.Message(wrapped.Error()))
	}
	run.BatchExecutorID = aws.StringValue(out.JobId)
	return nil
}

func (g *AWSBatchGateway) DescribeRun(ctx context.Context, run *kernel.Run) (RunStatusDetail, error) {
	if run.BatchExecutorID == "" {
		return RunStatusDetail{}, kernel.NewValidationError("run %d has no batch executor id", run.ID)
	}
	out, err := g.client.DescribeJobsWithContext(ctx, &batch.DescribeJobsInput{Jobs: []*string{aws.String(run.BatchExecutorID)}})
	if err != nil {
		cause := errors.New(sanitize.Message(err.Error()))
		msg := (&kernel.ExecutorUnavailableError{Cause: cause}).Error()
		logrus.WithField("runId", run.ID).Warn(msg)
		return RunStatusDetail{Status: kernel.RunError, PodPhase: kernel.PodUnknown, Message: msg}, nil
	}
	if len(out.Jobs) == 0 {
		cause := fmt.Errorf("job %s not found", run.BatchExecutorID)
		msg := (&kernel.ExecutorUnavailableError{Cause: cause}).Error()
		return RunStatusDetail{Status: kernel.RunError, PodPhase: kernel.PodUnknown, Message: msg}, nil
	}
	job := out.Jobs[0]
	status, phase := kernel.MapExecutorStatus(aws.StringValue(job.Status))
	return RunStatusDetail{Status: status, PodPhase: phase, Message: aws.StringValue(job.StatusReason)}, nil
}

func (g *AWSBatchGateway) CancelRun(ctx context.Context, run *kernel.Run) error {
	if run.BatchExecutorID == "" {
		return kernel.NewValidationError("run %d has no batch executor id", run.ID)
	}
	_, err := g.client.TerminateJobWithContext(ctx, &batch.TerminateJobInput{
		JobId:  aws.String(run.BatchExecutorID),
		Reason: aws.String("User requested cancellation"),
	})
	if err != nil {
		wrapped := errors.Wrap(err, "batch cancel failed")
		return fmt.Errorf("%s", sanitize.Message(wrapped.Error()))
	}
	return nil
}

// DummyGateway is a deterministic test double used under ENVIRONMENT=TESTING.
type DummyGateway struct {
	NextStatus string
	Err        error
	submitted  int
}

func NewDummyGateway() *DummyGateway { return &DummyGateway{NextStatus: "RUNNABLE"} }

func (g *DummyGateway) SubmitRun(ctx context.Context, run *kernel.Run) error {
	g.submitted++
	run.BatchExecutorID = fmt.Sprintf("dummy-exec-%d", run.ID)
	return nil
}

func (g *DummyGateway) DescribeRun(ctx context.Context, run *kernel.Run) (RunStatusDetail, error) {
	if g.Err != nil {
		msg := (&kernel.ExecutorUnavailableError{Cause: g.Err}).Error()
		return RunStatusDetail{Status: kernel.RunError, PodPhase: kernel.PodUnknown, Message: msg}, nil
	}
	status, phase := kernel.MapExecutorStatus(g.NextStatus)
	return RunStatusDetail{Status: status, PodPhase: phase}, nil
}

func (g *DummyGateway) CancelRun(ctx context.Context, run *kernel.Run) error { return nil }

func (g *DummyGateway) SubmittedCount() int { return g.submitted }
