package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterJobHappyPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/register", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get(headerIdentityToken))
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 7, "userId": 1, "tags": []string{"a"}})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, "tok", "1.0.0")
	require.NoError(t, err)

	job, err := c.RegisterJob(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.ID)
	assert.Equal(t, []string{"a"}, job.Tags)
}

func TestRegisterJobRequiresContext(t *testing.T) {
	c, err := NewClient("http://example.invalid", "tok", "1.0.0")
	require.NoError(t, err)
	_, err = c.RegisterJob(nil, nil)
	assert.Equal(t, ErrContextRequired, err)
}

func TestGetRunsNotFoundMapsToSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, "tok", "1.0.0")
	require.NoError(t, err)

	_, err = c.GetRuns(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitRunsDecodesResponses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RunRequests []RunRequest `json:"runRequests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		require.Len(t, body.RunRequests, 1)
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"runResponses": []map[string]interface{}{
				{"runId": 1, "jobId": body.RunRequests[0].JobID, "status": "QUEUED"},
			},
		})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, "tok", "1.0.0")
	require.NoError(t, err)

	runs, err := c.SubmitRuns(context.Background(), []RunRequest{{JobID: 5}})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(5), runs[0].JobID)
	assert.Equal(t, "QUEUED", runs[0].Status)
}

func TestUploadResultsSendsRawBytesWithQueryParams(t *testing.T) {
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs/results", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("job_id"))
		assert.Equal(t, "9", r.URL.Query().Get("run_id"))
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"url":"https://bucket/jobs/3/runs/9_results.zip"}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, "tok", "1.0.0")
	require.NoError(t, err)

	err = c.UploadResults(context.Background(), 3, 9, []byte("zip-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), gotBody)
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	_, err := NewClient("not-a-url", "tok", "1.0.0")
	assert.Error(t, err)
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	_, err := NewClient("", "tok", "1.0.0")
	assert.Error(t, err)
}
