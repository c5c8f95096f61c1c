// Package usecase implements the orchestration layer (C8): stateless
// functions wiring repositories and gateways together to satisfy one
// operation each. Each function performs its writes in a single logical
// unit of work and lets underlying errors propagate as plain Go errors;
// only the controller boundary (internal/controller) converts these into
// Result[T].
package usecase

import (
	"context"
	"time"

	"github.com/blang/semver"

	"github.com/epistemix-platform/simcontrol/internal/gateway/results"
	"github.com/epistemix-platform/simcontrol/internal/gateway/upload"
	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/repository"
)

// Deps bundles every collaborator the use-case layer needs. It is
// constructed once at process start (see cmd/controlplaned) and injected
// into every use case call.
type Deps struct {
	Jobs    repository.JobRepository
	Runs    repository.RunRepository
	Uploads upload.Gateway
	Results results.Gateway
}

func RegisterJob(ctx context.Context, d *Deps, token *kernel.IdentityToken, tags []string) (*kernel.Job, error) {
	job := kernel.NewJob(token.UserID, tags)
	return d.Jobs.Save(job)
}

func SubmitJob(ctx context.Context, d *Deps, jobID int64) (*kernel.UploadLocation, error) {
	job, err := d.Jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != kernel.JobCreated {
		return nil, &kernel.InvalidTransitionError{Entity: "job", From: string(job.Status), To: string(kernel.JobSubmitted)}
	}
	prefix := kernel.NewKeyPrefix(job)
	loc, err := d.Uploads.GetUploadLocation(ctx, kernel.JobUpload{Context: kernel.ContextJob, Type: kernel.UploadInput, JobID: jobID}, prefix)
	if err != nil {
		return nil, err
	}
	job.InputLocation = loc.URL
	if err := job.Transition(kernel.JobSubmitted); err != nil {
		return nil, err
	}
	if _, err := d.Jobs.Save(job); err != nil {
		return nil, err
	}
	return loc, nil
}

func SubmitJobConfig(ctx context.Context, d *Deps, jobID int64) (*kernel.UploadLocation, error) {
	job, err := d.Jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	prefix := kernel.NewKeyPrefix(job)
	loc, err := d.Uploads.GetUploadLocation(ctx, kernel.JobUpload{Context: kernel.ContextJob, Type: kernel.UploadConfig, JobID: jobID}, prefix)
	if err != nil {
		return nil, err
	}
	job.ConfigLocation = loc.URL
	if _, err := d.Jobs.Save(job); err != nil {
		return nil, err
	}
	return loc, nil
}

// RunRequest is one element of a SubmitRuns call: the caller-supplied
// payload for a single run.
type RunRequest struct {
	JobID   int64
	Request map[string]interface{}
}

func SubmitRuns(ctx context.Context, d *Deps, reqs []RunRequest, clientVersion string) ([]*kernel.Run, error) {
	out := make([]*kernel.Run, 0, len(reqs))
	for _, req := range reqs {
		job, err := d.Jobs.FindByID(req.JobID)
		if err != nil {
			return nil, err
		}
		run := &kernel.Run{
			JobID:            req.JobID,
			UserID:           job.UserID,
			Request:          req.Request,
			Status:           kernel.RunQueued,
			PodPhase:         kernel.PodPending,
			EpxClientVersion: parseClientVersion(clientVersion),
		}
		saved, err := d.Runs.Save(run)
		if err != nil {
			return nil, err
		}
		prefix := kernel.NewKeyPrefix(job)
		loc, err := d.Uploads.GetUploadLocation(ctx, kernel.JobUpload{Context: kernel.ContextRun, Type: kernel.UploadConfig, JobID: req.JobID, RunID: saved.ID}, prefix)
		if err != nil {
			return nil, err
		}
		saved.ConfigURL = loc.URL
		saved, err = d.Runs.Save(saved)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// parseClientVersion normalizes an epx_client_version string to its
// canonical semver form. The value is a compatibility/logging field, not a
// gate on submission, so an unparseable version is stored as-is rather than
// rejected.
func parseClientVersion(raw string) string {
	if raw == "" {
		return raw
	}
	v, err := semver.ParseTolerant(raw)
	if err != nil {
		return raw
	}
	return v.String()
}

func SubmitRunConfig(ctx context.Context, d *Deps, runID int64) (*kernel.UploadLocation, error) {
	run, err := d.Runs.FindByID(runID)
	if err != nil {
		return nil, err
	}
	job, err := d.Jobs.FindByID(run.JobID)
	if err != nil {
		return nil, err
	}
	prefix := kernel.NewKeyPrefix(job)
	loc, err := d.Uploads.GetUploadLocation(ctx, kernel.JobUpload{Context: kernel.ContextRun, Type: kernel.UploadConfig, JobID: job.ID, RunID: runID}, prefix)
	if err != nil {
		return nil, err
	}
	run.ConfigURL = loc.URL
	if _, err := d.Runs.Save(run); err != nil {
		return nil, err
	}
	return loc, nil
}

func GetRunsByJobID(ctx context.Context, d *Deps, jobID int64) ([]*kernel.Run, error) {
	return d.Runs.FindByJobID(jobID)
}

// GetJob loads a single job by id, used by the CLI's `jobs info` command.
func GetJob(ctx context.Context, d *Deps, jobID int64) (*kernel.Job, error) {
	return d.Jobs.FindByID(jobID)
}

// ListJobs returns the most recently created jobs, newest first, used by the
// CLI's `jobs list` command.
func ListJobs(ctx context.Context, d *Deps, limit, offset int) ([]*kernel.Job, error) {
	return d.Jobs.FindAll(limit, offset)
}

func GetJobUploads(ctx context.Context, d *Deps, jobID int64, includeContent bool) ([]*kernel.JobUpload, error) {
	job, err := d.Jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	var uploads []*kernel.JobUpload
	if job.InputLocation != "" {
		uploads = append(uploads, &kernel.JobUpload{Context: kernel.ContextJob, Type: kernel.UploadInput, JobID: jobID, Location: &kernel.UploadLocation{URL: job.InputLocation}})
	}
	if job.ConfigLocation != "" {
		uploads = append(uploads, &kernel.JobUpload{Context: kernel.ContextJob, Type: kernel.UploadConfig, JobID: jobID, Location: &kernel.UploadLocation{URL: job.ConfigLocation}})
	}
	runs, err := d.Runs.FindByJobID(jobID)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.ConfigURL != "" {
			uploads = append(uploads, &kernel.JobUpload{Context: kernel.ContextRun, Type: kernel.UploadConfig, JobID: jobID, RunID: run.ID, Location: &kernel.UploadLocation{URL: run.ConfigURL}})
		}
	}
	if includeContent {
		for _, u := range uploads {
			content, err := d.Uploads.ReadContent(ctx, u.Location)
			if err != nil {
				continue
			}
			u.Content = content
		}
	}
	return uploads, nil
}

func ArchiveUploads(ctx context.Context, d *Deps, locations []*kernel.UploadLocation, ageThreshold *time.Time, dryRun bool) ([]*kernel.UploadLocation, error) {
	deduped := dedupeLocations(locations)
	if dryRun {
		if ageThreshold == nil {
			return deduped, nil
		}
		return d.Uploads.FilterByAge(ctx, deduped, *ageThreshold)
	}
	return d.Uploads.ArchiveUploads(ctx, deduped, ageThreshold)
}

func dedupeLocations(locations []*kernel.UploadLocation) []*kernel.UploadLocation {
	seen := map[string]bool{}
	out := make([]*kernel.UploadLocation, 0, len(locations))
	for _, l := range locations {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}

func UploadResults(ctx context.Context, d *Deps, jobID, runID int64, zipBytes []byte) (string, error) {
	run, err := d.Runs.FindByID(runID)
	if err != nil {
		return "", err
	}
	if run.JobID != jobID {
		return "", kernel.NewValidationError("run %d does not belong to job %d", runID, jobID)
	}
	job, err := d.Jobs.FindByID(jobID)
	if err != nil {
		return "", err
	}
	prefix := kernel.NewKeyPrefix(job)
	loc, err := d.Results.UploadResults(ctx, jobID, runID, zipBytes, prefix)
	if err != nil {
		return "", err
	}
	run.ResultsURL = loc.StrippedURL()
	run.ResultsUploadedAt = time.Now().UTC()
	run.UpdateStatus(kernel.RunDone, kernel.PodSucceeded)
	if _, err := d.Runs.Save(run); err != nil {
		return "", err
	}
	return run.ResultsURL, nil
}

// RunResultURL pairs a run id with its presigned download URL.
type RunResultURL struct {
	RunID int64
	URL   string
}

func GetRunResults(ctx context.Context, d *Deps, jobID int64, expiration time.Duration) ([]RunResultURL, error) {
	job, err := d.Jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	runs, err := d.Runs.FindByJobID(jobID)
	if err != nil {
		return nil, err
	}
	prefix := kernel.NewKeyPrefix(job)
	out := make([]RunResultURL, 0, len(runs))
	for _, run := range runs {
		canonicalURL := "https://bucket.s3.amazonaws.com/" + prefix.RunResultsKey(run.ID)
		loc, err := d.Results.GetDownloadURL(ctx, canonicalURL, expiration)
		if err != nil {
			return nil, err
		}
		out = append(out, RunResultURL{RunID: run.ID, URL: loc.URL})
	}
	return out, nil
}
