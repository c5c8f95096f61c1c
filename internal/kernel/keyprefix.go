package kernel

import "fmt"

// KeyPrefix is the deterministic object-store path rooted at
// jobs/{id}/{yyyy}/{mm}/{dd}/{HHMMSS}, derived from a job's id and creation
// timestamp. It is a pure value object: never persisted, always
// recomputable from the job that produced it.
type KeyPrefix struct {
	prefix string
}

// NewKeyPrefix derives the canonical prefix for a job. The job must already
// carry a persisted id and a CreatedAt timestamp.
func NewKeyPrefix(j *Job) KeyPrefix {
	ts := j.CreatedAt.UTC()
	return KeyPrefix{
		prefix: fmt.Sprintf("jobs/%d/%04d/%02d/%02d/%02d%02d%02d",
			j.ID, ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second()),
	}
}

// String returns the raw prefix, e.g. "jobs/1/2026/07/31/134502".
func (k KeyPrefix) String() string { return k.prefix }

func (k KeyPrefix) JobConfigKey() string { return k.prefix + "/job_config.json" }
func (k KeyPrefix) JobInputKey() string  { return k.prefix + "/job_input.zip" }

func (k KeyPrefix) RunConfigKey(runID int64) string {
	return fmt.Sprintf("%s/run_%d_config.json", k.prefix, runID)
}

func (k KeyPrefix) RunResultsKey(runID int64) string {
	return fmt.Sprintf("%s/run_%d_results.zip", k.prefix, runID)
}

func (k KeyPrefix) RunLogsKey(runID int64) string {
	return fmt.Sprintf("%s/run_%d_logs.log", k.prefix, runID)
}
