package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
)

func TestExtractKeyVariants(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"s3://my-bucket/jobs/1/foo.json", "jobs/1/foo.json"},
		{"https://my-bucket.s3.amazonaws.com/jobs/1/foo.json", "jobs/1/foo.json"},
		{"https://s3.amazonaws.com/my-bucket/jobs/1/foo.json", "jobs/1/foo.json"},
		{"https://my-bucket.s3.amazonaws.com/jobs/1/foo.json?X-Amz-Signature=abc", "jobs/1/foo.json"},
		{"jobs/1/foo.json", "jobs/1/foo.json"},
	}
	for _, c := range cases {
		got, err := extractKey(c.url, "my-bucket")
		require.NoError(t, err, c.url)
		assert.Equal(t, c.want, got, c.url)
	}
}

func TestClassifyContentDetectsZip(t *testing.T) {
	content, err := classifyContent("job_input.zip", []byte{'P', 'K', 0x03, 0x04, 0, 0})
	require.NoError(t, err)
	require.NotNil(t, content.Zip)
}

func TestClassifyContentDetectsJSON(t *testing.T) {
	content, err := classifyContent("run_1_config.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.NotNil(t, content.JSON)
}

func TestClassifyContentFallsBackToText(t *testing.T) {
	content, err := classifyContent("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	require.NotNil(t, content.Text)
	assert.Equal(t, "utf-8", content.Text.Encoding)
}

func TestDummyGatewayGetUploadLocation(t *testing.T) {
	g := NewDummyGateway()
	prefix := kernel.NewKeyPrefix(&kernel.Job{ID: 1})
	loc, err := g.GetUploadLocation(nil, kernel.JobUpload{Context: kernel.ContextJob, Type: kernel.UploadInput}, prefix)
	require.NoError(t, err)
	assert.Contains(t, loc.URL, "job_input.zip")
}
