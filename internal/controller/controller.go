package controller

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/gateway/batch"
	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/packaging"
	"github.com/epistemix-platform/simcontrol/internal/usecase"
)

// Controller is the facade every transport (HTTP, CLI) talks to.
type Controller struct {
	deps  *usecase.Deps
	batch batch.Gateway
}

func New(deps *usecase.Deps, batchGateway batch.Gateway) *Controller {
	return &Controller{deps: deps, batch: batchGateway}
}

func (c *Controller) RegisterJob(ctx context.Context, token *kernel.IdentityToken, tags []string) Result[*kernel.Job] {
	job, err := usecase.RegisterJob(ctx, c.deps, token, tags)
	if err != nil {
		return FromError[*kernel.Job](err)
	}
	return Success(job)
}

func (c *Controller) SubmitJob(ctx context.Context, jobID int64) Result[*kernel.UploadLocation] {
	loc, err := usecase.SubmitJob(ctx, c.deps, jobID)
	if err != nil {
		return FromError[*kernel.UploadLocation](err)
	}
	return Success(loc)
}

func (c *Controller) SubmitJobConfig(ctx context.Context, jobID int64) Result[*kernel.UploadLocation] {
	loc, err := usecase.SubmitJobConfig(ctx, c.deps, jobID)
	if err != nil {
		return FromError[*kernel.UploadLocation](err)
	}
	return Success(loc)
}

func (c *Controller) SubmitRunConfig(ctx context.Context, runID int64) Result[*kernel.UploadLocation] {
	loc, err := usecase.SubmitRunConfig(ctx, c.deps, runID)
	if err != nil {
		return FromError[*kernel.UploadLocation](err)
	}
	return Success(loc)
}

// RunResponse is the client-facing shape of one submitted run.
type RunResponse struct {
	RunID   int64
	JobID   int64
	Status  kernel.RunStatus
	Errors  []string
	Request map[string]interface{}
}

// SubmitRuns persists each run and dispatches it to the batch executor.
// Persistence and dispatch are both attempted for every run; if dispatch
// fails partway, the caller sees Failure and no runResponses are exposed
// (see SPEC_FULL.md §4.9).
func (c *Controller) SubmitRuns(ctx context.Context, reqs []usecase.RunRequest, clientVersion string) Result[[]RunResponse] {
	runs, err := usecase.SubmitRuns(ctx, c.deps, reqs, clientVersion)
	if err != nil {
		return FromError[[]RunResponse](err)
	}
	for _, run := range runs {
		if err := c.batch.SubmitRun(ctx, run); err != nil {
			logrus.WithField("runId", run.ID).WithError(err).Error("batch submission failed")
			return FromError[[]RunResponse](err)
		}
		if _, err := c.deps.Runs.Save(run); err != nil {
			return FromError[[]RunResponse](err)
		}
	}
	responses := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, RunResponse{RunID: run.ID, JobID: run.JobID, Status: run.Status, Request: run.Request})
	}
	return Success(responses)
}

// GetRuns reconciles every run's status against the batch executor before
// returning, per SPEC_FULL.md §4.9.
func (c *Controller) GetRuns(ctx context.Context, jobID int64) Result[[]*kernel.Run] {
	runs, err := usecase.GetRunsByJobID(ctx, c.deps, jobID)
	if err != nil {
		return FromError[[]*kernel.Run](err)
	}
	for _, run := range runs {
		if run.BatchExecutorID == "" {
			continue
		}
		detail, err := c.batch.DescribeRun(ctx, run)
		if err != nil {
			logrus.WithField("runId", run.ID).WithError(err).Warn("executor describe failed, keeping stored status")
			continue
		}
		if strings.Contains(detail.Message, kernel.ExecutorUnavailableMarker) {
			logrus.WithField("runId", run.ID).Warn("executor unavailable, using stale DB status: " + detail.Message)
			continue
		}
		if run.Status != detail.Status || run.PodPhase != detail.PodPhase {
			logrus.WithFields(logrus.Fields{
				"runId": run.ID, "from": run.Status, "to": detail.Status,
			}).Info("run status transition observed")
			run.UpdateStatus(detail.Status, detail.PodPhase)
			if _, err := c.deps.Runs.Save(run); err != nil {
				return FromError[[]*kernel.Run](err)
			}
		}
	}
	return Success(runs)
}

func (c *Controller) GetJob(ctx context.Context, jobID int64) Result[*kernel.Job] {
	job, err := usecase.GetJob(ctx, c.deps, jobID)
	if err != nil {
		return FromError[*kernel.Job](err)
	}
	return Success(job)
}

func (c *Controller) ListJobs(ctx context.Context, limit, offset int) Result[[]*kernel.Job] {
	jobs, err := usecase.ListJobs(ctx, c.deps, limit, offset)
	if err != nil {
		return FromError[[]*kernel.Job](err)
	}
	return Success(jobs)
}

func (c *Controller) GetJobUploads(ctx context.Context, jobID int64, includeContent bool) Result[[]*kernel.JobUpload] {
	uploads, err := usecase.GetJobUploads(ctx, c.deps, jobID, includeContent)
	if err != nil {
		return FromError[[]*kernel.JobUpload](err)
	}
	return Success(uploads)
}

func (c *Controller) ArchiveUploads(ctx context.Context, locations []*kernel.UploadLocation, days, hours int, dryRun bool) Result[[]*kernel.UploadLocation] {
	var threshold *time.Time
	if days > 0 || hours > 0 {
		t := time.Now().UTC().Add(-time.Duration(days)*24*time.Hour - time.Duration(hours)*time.Hour)
		threshold = &t
	}
	archived, err := usecase.ArchiveUploads(ctx, c.deps, locations, threshold, dryRun)
	if err != nil {
		return FromError[[]*kernel.UploadLocation](err)
	}
	return Success(archived)
}

// UploadResults accepts an already-packaged results archive, used by the
// control-plane HTTP handler when the runner packages its own results
// directory and ships the bytes over the wire rather than sharing a
// filesystem with the control plane.
func (c *Controller) UploadResults(ctx context.Context, jobID, runID int64, zipBytes []byte) Result[string] {
	url, err := usecase.UploadResults(ctx, c.deps, jobID, runID, zipBytes)
	if err != nil {
		return FromError[string](err)
	}
	return Success(url)
}

func (c *Controller) UploadResultsFromDirectory(ctx context.Context, jobID, runID int64, resultsDir string) Result[string] {
	packaged, err := packaging.PackageDirectory(resultsDir)
	if err != nil {
		return FromError[string](err)
	}
	url, err := usecase.UploadResults(ctx, c.deps, jobID, runID, packaged.Bytes)
	if err != nil {
		return FromError[string](err)
	}
	return Success(url)
}

func (c *Controller) GetRunResults(ctx context.Context, jobID int64, expiration time.Duration) Result[[]usecase.RunResultURL] {
	urls, err := usecase.GetRunResults(ctx, c.deps, jobID, expiration)
	if err != nil {
		return FromError[[]usecase.RunResultURL](err)
	}
	return Success(urls)
}
