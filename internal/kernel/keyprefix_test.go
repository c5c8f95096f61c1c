package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefixLeadingZeros(t *testing.T) {
	j := &Job{ID: 1, CreatedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}
	p := NewKeyPrefix(j)
	assert.Equal(t, "jobs/1/2026/01/05/000000", p.String())
}

func TestKeyPrefixArtifactKeysSharePrefix(t *testing.T) {
	j := &Job{ID: 42, CreatedAt: time.Date(2026, 7, 31, 13, 45, 2, 0, time.UTC)}
	p := NewKeyPrefix(j)
	require.Equal(t, "jobs/42/2026/07/31/134502", p.String())

	for _, key := range []string{
		p.JobConfigKey(), p.JobInputKey(), p.RunConfigKey(7), p.RunResultsKey(7), p.RunLogsKey(7),
	} {
		assert.Contains(t, key, "jobs/42/")
	}
	assert.Equal(t, "jobs/42/2026/07/31/134502/run_7_results.zip", p.RunResultsKey(7))
}

func TestKeyPrefixStableAcrossEvaluations(t *testing.T) {
	j := &Job{ID: 9, CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	assert.Equal(t, NewKeyPrefix(j).String(), NewKeyPrefix(j).String())
}
