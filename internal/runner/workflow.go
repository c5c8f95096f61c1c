// Package runner implements the simulation runner (C10): a per-run pipeline
// invoked by the batch executor that downloads job uploads, rewrites the
// FRED 10 configuration, validates and executes the simulator, and uploads
// results. Grounded in the original source's SimulationWorkflow, carried
// over to the teacher's logrus-based structured logging and error style.
package runner

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/packaging"
	"github.com/epistemix-platform/simcontrol/internal/transport/client"
)

// preparedRun is one run's state as it moves through the pipeline stages.
type preparedRun struct {
	RunID      int64
	ConfigPath string
	RunNumber  int
	OutputDir  string
}

// Workflow orchestrates the C10 pipeline for one job (and optionally one
// specific run within it).
type Workflow struct {
	Config *Config
	Client *client.Client

	log *logrus.Entry
}

// NewWorkflow builds a Workflow, constructing its control-plane client from
// cfg's server URL, identity token, and client version.
func NewWorkflow(cfg *Config) (*Workflow, error) {
	c, err := client.NewClient(cfg.ServerURL, cfg.IdentityToken, cfg.ClientVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to create control-plane client: %w", err)
	}
	return &Workflow{
		Config: cfg,
		Client: c,
		log:    logrus.WithField("jobId", cfg.JobID),
	}, nil
}

// Execute runs the full pipeline in order, aborting at the first failing
// stage. It returns the workspace directory on success.
func (w *Workflow) Execute(ctx context.Context) (string, error) {
	if errs := w.Config.Validate(); len(errs) > 0 {
		return "", fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	if err := w.download(ctx); err != nil {
		return "", err
	}
	if err := w.extract(); err != nil {
		return "", err
	}
	prepared, err := w.prepare()
	if err != nil {
		return "", err
	}
	if err := w.validate(ctx, prepared); err != nil {
		return "", err
	}
	if err := w.run(ctx, prepared); err != nil {
		return "", err
	}
	if err := w.upload(ctx, prepared); err != nil {
		return "", err
	}

	w.log.WithField("completedRuns", len(prepared)).Info("workflow completed")
	return w.Config.WorkspaceDir, nil
}

func (w *Workflow) download(ctx context.Context) error {
	const stage = "download"
	w.log.Info("starting download")

	dctx, cancel := context.WithTimeout(ctx, time.Duration(w.Config.DownloadTimeoutSeconds)*time.Second)
	defer cancel()

	if err := os.MkdirAll(w.Config.WorkspaceDir, 0o755); err != nil {
		return wrapStageError(stage, err, "failed to create workspace directory %s", w.Config.WorkspaceDir)
	}

	files, err := w.Client.DownloadJobUploads(dctx, w.Config.JobID, w.Config.WorkspaceDir, true)
	if err != nil {
		return wrapStageError(stage, err, "failed to download uploads for job %d", w.Config.JobID)
	}
	if len(files) == 0 {
		return newStageError(stage, "no files downloaded for job %d", w.Config.JobID)
	}

	w.log.WithField("fileCount", len(files)).Info("files downloaded")
	return nil
}

func (w *Workflow) extract() error {
	const stage = "extract"
	jobInputZip := filepath.Join(w.Config.WorkspaceDir, "job_input.zip")
	if _, err := os.Stat(jobInputZip); os.IsNotExist(err) {
		w.log.Info("no job_input.zip to extract")
		return nil
	}

	w.log.WithField("archive", jobInputZip).Info("extracting archive")
	r, err := zip.OpenReader(jobInputZip)
	if err != nil {
		return wrapStageError(stage, err, "invalid zip file: %s", jobInputZip)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractZipEntry(f, w.Config.WorkspaceDir); err != nil {
			return wrapStageError(stage, err, "failed to extract %s", jobInputZip)
		}
	}
	w.log.Info("archive extracted")
	return nil
}

func extractZipEntry(f *zip.File, destDir string) error {
	path := filepath.Join(destDir, f.Name)
	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

func (w *Workflow) prepare() ([]*preparedRun, error) {
	const stage = "prepare"

	configPaths, err := w.runConfigPaths()
	if err != nil {
		return nil, err
	}
	if len(configPaths) == 0 {
		return nil, newStageError(stage, "no run config files found in %s", w.Config.WorkspaceDir)
	}

	mainFRED := filepath.Join(w.Config.WorkspaceDir, "main.fred")
	if _, err := os.Stat(mainFRED); err != nil {
		return nil, newStageError(stage, "main.fred not found in %s", w.Config.WorkspaceDir)
	}

	w.log.WithField("runCount", len(configPaths)).Info("preparing FRED configs")

	prepared := make([]*preparedRun, 0, len(configPaths))
	for _, configPath := range configPaths {
		runID, err := runIDFromConfigFilename(configPath)
		if err != nil {
			return nil, wrapStageError(stage, err, "could not determine run id for %s", configPath)
		}

		params, err := loadRunConfigParams(configPath)
		if err != nil {
			return nil, wrapStageError(stage, err, "failed to prepare config for run %d", runID)
		}

		builder, err := fredConfigBuilderFromRunConfig(params, mainFRED)
		if err != nil {
			return nil, wrapStageError(stage, err, "failed to prepare config for run %d", runID)
		}

		preparedFRED := filepath.Join(w.Config.WorkspaceDir, fmt.Sprintf("run_%d_prepared.fred", runID))
		if err := builder.build(preparedFRED); err != nil {
			return nil, wrapStageError(stage, err, "failed to prepare config for run %d", runID)
		}

		prepared = append(prepared, &preparedRun{RunID: runID, ConfigPath: preparedFRED, RunNumber: builder.runNumber()})
		w.log.WithFields(logrus.Fields{"runId": runID, "output": preparedFRED}).Info("prepared config")
	}

	return prepared, nil
}

// runConfigPaths returns the run_{id}_config.json files to process: just the
// target run's file if Config.RunID is set, otherwise every matching file in
// the workspace, sorted for deterministic ordering.
func (w *Workflow) runConfigPaths() ([]string, error) {
	if w.Config.RunID != nil {
		path := filepath.Join(w.Config.WorkspaceDir, fmt.Sprintf("run_%d_config.json", *w.Config.RunID))
		if _, err := os.Stat(path); err != nil {
			return nil, newStageError("prepare", "run config not found: %s", path)
		}
		return []string{path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(w.Config.WorkspaceDir, "run_*_config.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func runIDFromConfigFilename(path string) (int64, error) {
	stem := strings.TrimSuffix(filepath.Base(path), "_config.json")
	parts := strings.SplitN(stem, "_", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("unexpected run config filename: %s", path)
	}
	return strconv.ParseInt(parts[1], 10, 64)
}

func loadRunConfigParams(path string) (runConfigParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return runConfigParams{}, fmt.Errorf("failed to load run config from %s: %w", path, err)
	}
	var cfg runConfigFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return runConfigParams{}, fmt.Errorf("failed to load run config from %s: %w", path, err)
	}
	return cfg.Params, nil
}

func (w *Workflow) validate(ctx context.Context, prepared []*preparedRun) error {
	const stage = "validate"
	fredBinary, _ := w.Config.fredBinary()

	w.log.WithField("runCount", len(prepared)).Info("validating configs")

	for _, run := range prepared {
		logPath := filepath.Join(w.Config.WorkspaceDir, fmt.Sprintf("run_%d_validation.log", run.RunID))
		vctx, cancel := context.WithTimeout(ctx, time.Duration(w.Config.ValidationTimeoutSeconds)*time.Second)
		out, err := runCommand(vctx, fredBinary, w.Config.FREDHome, "-p", run.ConfigPath, "-c")
		cancel()
		if writeErr := os.WriteFile(logPath, out, 0o644); writeErr != nil {
			return wrapStageError(stage, writeErr, "failed to write validation log for run %d", run.RunID)
		}
		if err != nil {
			return wrapStageError(stage, err, "FRED validation failed for run %d, see %s", run.RunID, logPath)
		}
		w.log.WithFields(logrus.Fields{"runId": run.RunID, "log": logPath}).Info("validation passed")
	}
	return nil
}

func (w *Workflow) run(ctx context.Context, prepared []*preparedRun) error {
	const stage = "execute"
	fredBinary, _ := w.Config.fredBinary()

	w.log.WithField("runCount", len(prepared)).Info("running simulations")

	for _, run := range prepared {
		run.OutputDir = filepath.Join(w.Config.WorkspaceDir, "OUT", fmt.Sprintf("run_%d", run.RunID))
		if err := os.MkdirAll(run.OutputDir, 0o755); err != nil {
			return wrapStageError(stage, err, "failed to create output directory for run %d", run.RunID)
		}
		logPath := filepath.Join(w.Config.WorkspaceDir, fmt.Sprintf("run_%d_simulation.log", run.RunID))

		w.log.WithFields(logrus.Fields{"runId": run.RunID, "runNumber": run.RunNumber}).Info("starting simulation")

		sctx, cancel := context.WithTimeout(ctx, time.Duration(w.Config.SimulationTimeoutSeconds)*time.Second)
		out, err := runCommand(sctx, fredBinary, w.Config.FREDHome, "-p", run.ConfigPath, "-r", strconv.Itoa(run.RunNumber), "-d", run.OutputDir)
		cancel()
		if writeErr := os.WriteFile(logPath, out, 0o644); writeErr != nil {
			return wrapStageError(stage, writeErr, "failed to write simulation log for run %d", run.RunID)
		}
		if err != nil {
			return wrapStageError(stage, err, "FRED simulation failed for run %d, see %s", run.RunID, logPath)
		}
		w.log.WithFields(logrus.Fields{"runId": run.RunID, "log": logPath}).Info("simulation completed")
	}
	return nil
}

func (w *Workflow) upload(ctx context.Context, prepared []*preparedRun) error {
	const stage = "upload"
	for _, run := range prepared {
		packed, err := packaging.PackageDirectory(run.OutputDir)
		if err != nil {
			return wrapStageError(stage, err, "failed to package results for run %d", run.RunID)
		}
		if err := w.Client.UploadResults(ctx, w.Config.JobID, run.RunID, packed.Bytes); err != nil {
			return wrapStageError(stage, err, "failed to upload results for run %d", run.RunID)
		}
		w.log.WithFields(logrus.Fields{"runId": run.RunID, "fileCount": packed.FileCount}).Info("results uploaded")
	}
	return nil
}

func runCommand(ctx context.Context, binary, fredHome string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), "FRED_HOME="+fredHome)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("timed out after %s", timeoutOf(ctx))
	}
	return out, err
}

func timeoutOf(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline).Round(time.Second)
}
