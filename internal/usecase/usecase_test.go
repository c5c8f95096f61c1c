package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistemix-platform/simcontrol/internal/gateway/results"
	"github.com/epistemix-platform/simcontrol/internal/gateway/upload"
	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/repository"
)

func newTestDeps() *Deps {
	return &Deps{
		Jobs:    repository.NewInMemoryJobRepository(),
		Runs:    repository.NewInMemoryRunRepository(),
		Uploads: upload.NewDummyGateway(),
		Results: results.NewDummyGateway(),
	}
}

func TestRegisterJobHappyPath(t *testing.T) {
	d := newTestDeps()
	tok := &kernel.IdentityToken{UserID: 123}
	job, err := RegisterJob(context.Background(), d, tok, []string{"info_job"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.ID)
	assert.Equal(t, kernel.JobCreated, job.Status)
}

func TestSubmitJobSetsInputLocationAndTransitions(t *testing.T) {
	d := newTestDeps()
	job, _ := RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 1}, nil)

	loc, err := SubmitJob(context.Background(), d, job.ID)
	require.NoError(t, err)
	assert.Contains(t, loc.URL, "job_input.zip")

	reloaded, err := d.Jobs.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, kernel.JobSubmitted, reloaded.Status)
	assert.NotEmpty(t, reloaded.InputLocation)
}

func TestSubmitJobRejectsWrongState(t *testing.T) {
	d := newTestDeps()
	job, _ := RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 1}, nil)
	_, err := SubmitJob(context.Background(), d, job.ID)
	require.NoError(t, err)

	_, err = SubmitJob(context.Background(), d, job.ID)
	require.Error(t, err)
}

func TestSubmitRunsAssignsConfigURL(t *testing.T) {
	d := newTestDeps()
	job, _ := RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 1}, nil)

	runs, err := SubmitRuns(context.Background(), d, []RunRequest{{JobID: job.ID, Request: map[string]interface{}{"seed": 1}}}, "1.2.3")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, kernel.RunQueued, runs[0].Status)
	assert.NotEmpty(t, runs[0].ConfigURL)
}

func TestSubmitRunsEmptyReturnsEmpty(t *testing.T) {
	d := newTestDeps()
	runs, err := SubmitRuns(context.Background(), d, nil, "1.0.0")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestUploadResultsSetsDoneAndURL(t *testing.T) {
	d := newTestDeps()
	job, _ := RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 1}, nil)
	runs, _ := SubmitRuns(context.Background(), d, []RunRequest{{JobID: job.ID}}, "1.0.0")

	url, err := UploadResults(context.Background(), d, job.ID, runs[0].ID, []byte("zip-bytes"))
	require.NoError(t, err)
	assert.Contains(t, url, "_results.zip")

	reloaded, err := d.Runs.FindByID(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, kernel.RunDone, reloaded.Status)
	assert.False(t, reloaded.ResultsUploadedAt.IsZero())
}

func TestGetRunResultsReturnsOnePerRun(t *testing.T) {
	d := newTestDeps()
	job, _ := RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 1}, nil)
	_, _ = SubmitRuns(context.Background(), d, []RunRequest{{JobID: job.ID}, {JobID: job.ID}}, "1.0.0")

	urls, err := GetRunResults(context.Background(), d, job.ID, 0)
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestArchiveUploadsDedupesInput(t *testing.T) {
	d := newTestDeps()
	loc := &kernel.UploadLocation{URL: "https://bucket.s3.amazonaws.com/jobs/1/job_input.zip"}
	archived, err := ArchiveUploads(context.Background(), d, []*kernel.UploadLocation{loc, loc}, nil, false)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestArchiveUploadsEmptyInputShortCircuits(t *testing.T) {
	d := newTestDeps()
	archived, err := ArchiveUploads(context.Background(), d, nil, nil, false)
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestGetJobReturnsStoredJob(t *testing.T) {
	d := newTestDeps()
	job, _ := RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 42}, []string{"x"})

	got, err := GetJob(context.Background(), d, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
}

func TestListJobsOrdersNewestFirst(t *testing.T) {
	d := newTestDeps()
	_, _ = RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 1}, nil)
	_, _ = RegisterJob(context.Background(), d, &kernel.IdentityToken{UserID: 2}, nil)

	jobs, err := ListJobs(context.Background(), d, 0, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestParseClientVersionNormalizesAndFallsBack(t *testing.T) {
	assert.Equal(t, "1.2.3", parseClientVersion("v1.2.3"))
	assert.Equal(t, "not-a-version", parseClientVersion("not-a-version"))
	assert.Equal(t, "", parseClientVersion(""))
}
