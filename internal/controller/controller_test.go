package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gbatch "github.com/epistemix-platform/simcontrol/internal/gateway/batch"
	"github.com/epistemix-platform/simcontrol/internal/gateway/results"
	"github.com/epistemix-platform/simcontrol/internal/gateway/upload"
	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/repository"
	"github.com/epistemix-platform/simcontrol/internal/usecase"
)

func newTestController() (*Controller, *gbatch.DummyGateway) {
	deps := &usecase.Deps{
		Jobs:    repository.NewInMemoryJobRepository(),
		Runs:    repository.NewInMemoryRunRepository(),
		Uploads: upload.NewDummyGateway(),
		Results: results.NewDummyGateway(),
	}
	bg := gbatch.NewDummyGateway()
	return New(deps, bg), bg
}

// S1 — happy path register.
func TestScenarioRegisterJob(t *testing.T) {
	c, _ := newTestController()
	res := c.RegisterJob(context.Background(), &kernel.IdentityToken{UserID: 123}, []string{"info_job"})
	require.True(t, res.IsSuccess())
	assert.Equal(t, int64(1), res.Value().ID)
	assert.Equal(t, int64(123), res.Value().UserID)
}

// S2 — submit and upload URL.
func TestScenarioSubmitJobSetsInputLocation(t *testing.T) {
	c, _ := newTestController()
	job := c.RegisterJob(context.Background(), &kernel.IdentityToken{UserID: 1}, nil).Value()

	res := c.SubmitJob(context.Background(), job.ID)
	require.True(t, res.IsSuccess())
	assert.Contains(t, res.Value().URL, "job_input.zip")
}

// S3 — submit runs + dispatch.
func TestScenarioSubmitRunsDispatches(t *testing.T) {
	c, bg := newTestController()
	job := c.RegisterJob(context.Background(), &kernel.IdentityToken{UserID: 1}, nil).Value()

	res := c.SubmitRuns(context.Background(), []usecase.RunRequest{{JobID: job.ID}}, "1.0.0")
	require.True(t, res.IsSuccess())
	require.Len(t, res.Value(), 1)
	assert.Equal(t, kernel.RunQueued, res.Value()[0].Status)
	assert.Equal(t, 1, bg.SubmittedCount())
}

// S4 — reconciliation with transition.
func TestScenarioGetRunsReconcilesTransition(t *testing.T) {
	c, bg := newTestController()
	job := c.RegisterJob(context.Background(), &kernel.IdentityToken{UserID: 1}, nil).Value()
	c.SubmitRuns(context.Background(), []usecase.RunRequest{{JobID: job.ID}}, "1.0.0")

	bg.NextStatus = "RUNNING"
	res := c.GetRuns(context.Background(), job.ID)
	require.True(t, res.IsSuccess())
	assert.Equal(t, kernel.RunRunning, res.Value()[0].Status)
	assert.Equal(t, kernel.PodRunning, res.Value()[0].PodPhase)
}

// S5 — reconciliation under executor outage: stale status preserved.
func TestScenarioGetRunsSurvivesExecutorOutage(t *testing.T) {
	c, bg := newTestController()
	job := c.RegisterJob(context.Background(), &kernel.IdentityToken{UserID: 1}, nil).Value()
	c.SubmitRuns(context.Background(), []usecase.RunRequest{{JobID: job.ID}}, "1.0.0")

	bg.NextStatus = "RUNNING"
	c.GetRuns(context.Background(), job.ID)

	bg.Err = assertErr{}
	res := c.GetRuns(context.Background(), job.ID)
	require.True(t, res.IsSuccess())
	assert.Equal(t, kernel.RunRunning, res.Value()[0].Status)
}

// S6 — results upload.
func TestScenarioUploadResultsFromDirectory(t *testing.T) {
	c, _ := newTestController()
	job := c.RegisterJob(context.Background(), &kernel.IdentityToken{UserID: 1}, nil).Value()
	runs := c.SubmitRuns(context.Background(), []usecase.RunRequest{{JobID: job.ID}}, "1.0.0").Value()

	dir := t.TempDir() + "/RUN4"
	writeTestFile(t, dir+"/out.csv", "a,b\n")

	res := c.UploadResultsFromDirectory(context.Background(), job.ID, runs[0].ID, dir)
	require.True(t, res.IsSuccess())
	assert.Contains(t, res.Value(), "_results.zip")
}

func TestGetRunsUnknownJobIsFailure(t *testing.T) {
	c, _ := newTestController()
	res := c.GetRuns(context.Background(), 999)
	assert.True(t, res.IsSuccess()) // an unknown job simply has zero runs, not an error
	assert.Empty(t, res.Value())
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated outage" }

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
