package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
)

func mustPrefix() kernel.KeyPrefix {
	return kernel.NewKeyPrefix(&kernel.Job{ID: 1})
}

func TestExtractResultsKeyVariants(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"s3://bucket/jobs/1/run_1_results.zip", "jobs/1/run_1_results.zip"},
		{"https://bucket.s3.amazonaws.com/jobs/1/run_1_results.zip", "jobs/1/run_1_results.zip"},
		{"https://s3.amazonaws.com/bucket/jobs/1/run_1_results.zip", "jobs/1/run_1_results.zip"},
	}
	for _, c := range cases {
		got, err := extractResultsKey(c.url, "bucket")
		require.NoError(t, err, c.url)
		assert.Equal(t, c.want, got, c.url)
	}
}

func TestDummyGatewayUploadThenDownload(t *testing.T) {
	g := NewDummyGateway()
	loc, err := g.UploadResults(nil, 1, 1, []byte("zipdata"), mustPrefix())
	require.NoError(t, err)
	assert.Contains(t, loc.URL, "run_1_results.zip")

	dl, err := g.GetDownloadURL(nil, loc.URL, 0)
	require.NoError(t, err)
	assert.Contains(t, dl.URL, "X-Amz-Signature")
}
