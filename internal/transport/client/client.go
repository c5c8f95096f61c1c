// Package client implements the control-plane client SDK (C13): a thin HTTP
// client wrapping the control plane's REST surface, used by both the CLI
// (C12) and the simulation runner (C10). Grounded in the teacher's
// boskos/client.Client: a retrying dialer, typed sentinel errors, and one
// private method per endpoint building query values / JSON bodies and
// decoding typed responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"syscall"
	"time"
)

var (
	// ErrNotFound is returned when the control plane reports no such job/run.
	ErrNotFound = errors.New("job or run not found")
	// ErrValidation is returned when the control plane rejects the request body.
	ErrValidation = errors.New("request rejected by control plane")
	// ErrContextRequired is returned by context-taking calls invoked with nil.
	ErrContextRequired = errors.New("context required")
)

const (
	headerIdentityToken = "Offline-Token"
	headerClientVersion = "Fredcli-Version"
)

// Client is the public control-plane client object.
type Client struct {
	// Dialer is the net.Dialer used to establish connections to the remote
	// control-plane endpoint.
	Dialer DialerWithRetry

	http http.Client

	baseURL       string
	identityToken string
	clientVersion string
}

// NewClient creates a control-plane client pointed at baseURL, authenticating
// every request with the given identity token and advertising clientVersion
// via the Fredcli-Version header.
//
// Clients created with this function default to retrying failed connection
// attempts three times with a ten second pause between each attempt.
func NewClient(baseURL, identityToken, clientVersion string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL:       baseURL,
		identityToken: identityToken,
		clientVersion: clientVersion,
	}

	c.Dialer.RetryCount = 3
	c.Dialer.RetrySleep = 10 * time.Second
	c.Dialer.Timeout = 30 * time.Second
	c.Dialer.KeepAlive = 30 * time.Second

	c.http.Transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		Dial:                  c.Dialer.Dial,
		DialContext:           c.Dialer.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c.http.Timeout = 60 * time.Second

	return c, nil
}

// RegisteredJob is the decoded response of RegisterJob.
type RegisteredJob struct {
	ID     int64    `json:"id"`
	UserID int64    `json:"userId"`
	Tags   []string `json:"tags"`
}

func (c *Client) RegisterJob(ctx context.Context, tags []string) (*RegisteredJob, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	body, _ := json.Marshal(map[string]interface{}{"tags": tags})
	resp, err := c.doJSON(ctx, http.MethodPost, "/jobs/register", nil, body)
	if err != nil {
		return nil, err
	}
	var out RegisteredJob
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding register response: %w", err)
	}
	return &out, nil
}

// UploadLocation is the decoded response of a presigned-upload request.
type UploadLocation struct {
	URL string `json:"url"`
}

func (c *Client) SubmitJob(ctx context.Context, jobID int64) (*UploadLocation, error) {
	return c.submitArtifact(ctx, jobID, "job", "input", 0)
}

func (c *Client) SubmitJobConfig(ctx context.Context, jobID int64) (*UploadLocation, error) {
	return c.submitArtifact(ctx, jobID, "job", "config", 0)
}

func (c *Client) SubmitRunConfig(ctx context.Context, runID int64) (*UploadLocation, error) {
	return c.submitArtifact(ctx, 0, "run", "config", runID)
}

func (c *Client) submitArtifact(ctx context.Context, jobID int64, artifactContext, typ string, runID int64) (*UploadLocation, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	body, _ := json.Marshal(map[string]interface{}{
		"jobId": jobID, "context": artifactContext, "type": typ, "runId": runID,
	})
	resp, err := c.doJSON(ctx, http.MethodPost, "/jobs", nil, body)
	if err != nil {
		return nil, err
	}
	var out UploadLocation
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding upload-location response: %w", err)
	}
	return &out, nil
}

// RunRequest is one element of a SubmitRuns call.
type RunRequest struct {
	JobID   int64                  `json:"jobId"`
	Request map[string]interface{} `json:"request"`
}

// RunResponse is one element of a SubmitRuns response.
type RunResponse struct {
	RunID      int64                  `json:"runId"`
	JobID      int64                  `json:"jobId"`
	Status     string                 `json:"status"`
	Errors     []string               `json:"errors"`
	RunRequest map[string]interface{} `json:"runRequest"`
}

func (c *Client) SubmitRuns(ctx context.Context, reqs []RunRequest) ([]RunResponse, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	body, _ := json.Marshal(map[string]interface{}{"runRequests": reqs})
	resp, err := c.doJSON(ctx, http.MethodPost, "/runs", nil, body)
	if err != nil {
		return nil, err
	}
	var out struct {
		RunResponses []RunResponse `json:"runResponses"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding submit-runs response: %w", err)
	}
	return out.RunResponses, nil
}

// RunView is the wire shape of one run as returned by GET /runs.
type RunView struct {
	ID                int64                  `json:"id"`
	JobID             int64                  `json:"jobId"`
	UserID            int64                  `json:"userId"`
	CreatedTs         string                 `json:"createdTs"`
	Request           map[string]interface{} `json:"request"`
	PodPhase          string                 `json:"podPhase"`
	ContainerStatus   string                 `json:"containerStatus"`
	Status            string                 `json:"status"`
	UserDeleted       bool                   `json:"userDeleted"`
	EpxClientVersion  string                 `json:"epxClientVersion"`
	ConfigURL         string                 `json:"config_url"`
	ResultsURL        string                 `json:"results_url"`
	ResultsUploadedAt *string                `json:"results_uploaded_at"`
}

func (c *Client) GetRuns(ctx context.Context, jobID int64) ([]RunView, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	values := url.Values{}
	values.Set("job_id", strconv.FormatInt(jobID, 10))
	resp, err := c.doJSON(ctx, http.MethodGet, "/runs", values, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Runs []RunView `json:"runs"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding get-runs response: %w", err)
	}
	return out.Runs, nil
}

// ResultURL pairs a run id with its presigned results-download URL.
type ResultURL struct {
	RunID int64  `json:"run_id"`
	URL   string `json:"url"`
}

func (c *Client) GetJobResults(ctx context.Context, jobID int64) ([]ResultURL, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	values := url.Values{}
	values.Set("job_id", strconv.FormatInt(jobID, 10))
	resp, err := c.doJSON(ctx, http.MethodGet, "/jobs/results", values, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		URLs []ResultURL `json:"urls"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding get-results response: %w", err)
	}
	return out.URLs, nil
}

// JobView is the wire shape of one job as returned by GET /jobs/info and
// GET /jobs/list.
type JobView struct {
	ID             int64    `json:"id"`
	UserID         int64    `json:"userId"`
	Tags           []string `json:"tags"`
	Status         string   `json:"status"`
	CreatedTs      string   `json:"createdTs"`
	InputLocation  string   `json:"inputLocation"`
	ConfigLocation string   `json:"configLocation"`
}

func (c *Client) GetJob(ctx context.Context, jobID int64) (*JobView, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	values := url.Values{}
	values.Set("job_id", strconv.FormatInt(jobID, 10))
	resp, err := c.doJSON(ctx, http.MethodGet, "/jobs/info", values, nil)
	if err != nil {
		return nil, err
	}
	var out JobView
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding get-job response: %w", err)
	}
	return &out, nil
}

func (c *Client) ListJobs(ctx context.Context, limit, offset int) ([]JobView, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}
	resp, err := c.doJSON(ctx, http.MethodGet, "/jobs/list", values, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Jobs []JobView `json:"jobs"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding list-jobs response: %w", err)
	}
	return out.Jobs, nil
}

// UploadView is the wire shape of one job/run artifact slot as returned by
// GET /jobs/uploads.
type UploadView struct {
	Context string                 `json:"context"`
	Type    string                 `json:"type"`
	JobID   int64                  `json:"jobId"`
	RunID   int64                  `json:"runId"`
	URL     string                 `json:"url"`
	Errors  []string               `json:"errors"`
	Content map[string]interface{} `json:"content"`
}

func (c *Client) GetJobUploads(ctx context.Context, jobID int64, includeContent bool) ([]UploadView, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	values := url.Values{}
	values.Set("job_id", strconv.FormatInt(jobID, 10))
	if includeContent {
		values.Set("include_content", "true")
	}
	resp, err := c.doJSON(ctx, http.MethodGet, "/jobs/uploads", values, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Uploads []UploadView `json:"uploads"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding get-job-uploads response: %w", err)
	}
	return out.Uploads, nil
}

// ArchivedLocation is the wire shape of one archived upload location.
type ArchivedLocation struct {
	URL    string   `json:"url"`
	Errors []string `json:"errors"`
}

func (c *Client) ArchiveUploads(ctx context.Context, urls []string, days, hours int, dryRun bool) ([]ArchivedLocation, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	locations := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		locations = append(locations, map[string]string{"url": u})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"locations": locations, "days": days, "hours": hours, "dryRun": dryRun,
	})
	resp, err := c.doJSON(ctx, http.MethodPost, "/jobs/uploads/archive", nil, body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Locations []ArchivedLocation `json:"locations"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decoding archive-uploads response: %w", err)
	}
	return out.Locations, nil
}

// UploadResults ships an already-packaged results archive for runID to the
// control plane, used by the simulation runner's Upload stage once it has
// zipped its own output directory.
func (c *Client) UploadResults(ctx context.Context, jobID, runID int64, zipBytes []byte) error {
	if ctx == nil {
		return ErrContextRequired
	}
	values := url.Values{}
	values.Set("job_id", strconv.FormatInt(jobID, 10))
	values.Set("run_id", strconv.FormatInt(runID, 10))
	_, err := c.doJSON(ctx, http.MethodPost, "/runs/results", values, zipBytes)
	return err
}

// doJSON issues a request against path, attaching the identity/version
// headers on every call, and maps well-known status codes onto the package's
// sentinel errors.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if c.identityToken != "" {
		req.Header.Set(headerIdentityToken, c.identityToken)
	}
	if c.clientVersion != "" {
		req.Header.Set(headerClientVersion, c.clientVersion)
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrValidation, string(respBody))
	default:
		return nil, fmt.Errorf("status %s: %s", resp.Status, string(respBody))
	}
}

// DialerWithRetry is a composite version of the net.Dialer that retries
// connection attempts, matching the control plane's own reference client.
type DialerWithRetry struct {
	net.Dialer

	// RetryCount is the number of times to retry a connection attempt.
	RetryCount uint

	// RetrySleep is the length of time to pause between retry attempts.
	RetrySleep time.Duration
}

func (d *DialerWithRetry) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}

func (d *DialerWithRetry) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	count := d.RetryCount + 1
	i := uint(0)
	for {
		conn, err := d.Dialer.DialContext(ctx, network, address)
		if err != nil {
			if isDialErrorRetriable(err) && i < count-1 {
				select {
				case <-time.After(d.RetrySleep):
					i++
					continue
				case <-ctx.Done():
					return nil, err
				}
			}
			return nil, err
		}
		return conn, nil
	}
}

// isDialErrorRetriable reports whether a failed dial attempt looks transient:
// a timeout, a temporary network error, or ECONNREFUSED/ECONNRESET.
func isDialErrorRetriable(err error) bool {
	opErr, isOpErr := err.(*net.OpError)
	if !isOpErr {
		return false
	}
	if opErr.Timeout() || opErr.Temporary() {
		return true
	}
	sysErr, isSysErr := opErr.Err.(*os.SyscallError)
	if !isSysErr {
		return false
	}
	switch sysErr.Err {
	case syscall.ECONNREFUSED, syscall.ECONNRESET:
		return true
	}
	return false
}
