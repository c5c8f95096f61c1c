package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	uuid "github.com/satori/go.uuid"
)

// Config is the simulation runner's process configuration (C10), loaded
// from environment variables by the batch executor's container spec.
// Grounded in the original source's SimulationConfig.from_env.
type Config struct {
	JobID int64
	// RunID is nil when every run_*_config.json in the workspace should be
	// processed rather than one specific run.
	RunID *int64

	FREDHome     string
	WorkspaceDir string

	ServerURL     string
	IdentityToken string
	ClientVersion string

	// ValidationTimeoutSeconds and SimulationTimeoutSeconds default to the
	// pipeline's documented one-minute/one-hour bounds; they are exposed so
	// tests can shrink them.
	ValidationTimeoutSeconds int
	SimulationTimeoutSeconds int
	DownloadTimeoutSeconds   int
}

const (
	defaultDownloadTimeoutSeconds   = 300
	defaultValidationTimeoutSeconds = 60
	defaultSimulationTimeoutSeconds = 3600
)

// ConfigFromEnv builds a Config from the process environment. JOB_ID is
// required; RUN_ID is optional. A fresh UUIDv1-suffixed workspace directory
// is minted under WORKSPACE_ROOT (default /workspace) unless WORKSPACE_DIR
// is set explicitly, so concurrent runner processes on the same host never
// collide on a shared path.
func ConfigFromEnv() (*Config, error) {
	jobIDStr := os.Getenv("JOB_ID")
	if jobIDStr == "" {
		return nil, fmt.Errorf("JOB_ID environment variable is required")
	}
	jobID, err := strconv.ParseInt(jobIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_ID %q: %w", jobIDStr, err)
	}

	var runID *int64
	if raw := os.Getenv("RUN_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RUN_ID %q: %w", raw, err)
		}
		runID = &id
	}

	fredHome := os.Getenv("FRED_HOME")
	if fredHome == "" {
		return nil, fmt.Errorf("FRED_HOME environment variable is required")
	}

	workspaceDir := os.Getenv("WORKSPACE_DIR")
	if workspaceDir == "" {
		root := os.Getenv("WORKSPACE_ROOT")
		if root == "" {
			root = "/workspace"
		}
		workspaceDir = filepath.Join(root, fmt.Sprintf("job_%d_%s", jobID, uuid.NewV1().String()))
	}

	cfg := &Config{
		JobID:                    jobID,
		RunID:                    runID,
		FREDHome:                 fredHome,
		WorkspaceDir:             workspaceDir,
		ServerURL:                os.Getenv("CONTROL_PLANE_URL"),
		IdentityToken:            os.Getenv("OFFLINE_TOKEN"),
		ClientVersion:            envOr("EPX_CLIENT_VERSION", "dev"),
		DownloadTimeoutSeconds:   defaultDownloadTimeoutSeconds,
		ValidationTimeoutSeconds: defaultValidationTimeoutSeconds,
		SimulationTimeoutSeconds: defaultSimulationTimeoutSeconds,
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate reports every problem that would prevent the pipeline from
// running, matching the original source's fail-fast, collect-everything
// validate() rather than stopping at the first error.
func (c *Config) Validate() []string {
	var errs []string

	if _, err := os.Stat(c.FREDHome); err != nil {
		errs = append(errs, fmt.Sprintf("FRED_HOME does not exist: %s", c.FREDHome))
	}
	if _, err := c.fredBinary(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := os.Stat(filepath.Join(c.FREDHome, "data")); err != nil {
		errs = append(errs, fmt.Sprintf("FRED data directory not found: %s", filepath.Join(c.FREDHome, "data")))
	}
	if c.JobID <= 0 {
		errs = append(errs, fmt.Sprintf("job_id must be positive, got: %d", c.JobID))
	}
	if c.RunID != nil && *c.RunID <= 0 {
		errs = append(errs, fmt.Sprintf("run_id must be positive, got: %d", *c.RunID))
	}
	if c.ServerURL == "" {
		errs = append(errs, "CONTROL_PLANE_URL environment variable is required")
	}
	return errs
}

// fredBinary returns the simulator binary path, checking FRED_HOME/bin/FRED
// before falling back to a well-known system install location.
func (c *Config) fredBinary() (string, error) {
	primary := filepath.Join(c.FREDHome, "bin", "FRED")
	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}
	const fallback = "/usr/local/bin/FRED"
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return "", fmt.Errorf("FRED binary not found at %s or %s", primary, fallback)
}
