// Package httpapi implements the HTTP transport (C11): one handler per route,
// each doing method/header validation, delegating to the controller, and
// JSON-encoding the result. Grounded in the reference service's handlers
// package (method check -> validate -> delegate -> encode, with a shared
// error-to-status dispatch and per-handler contextual logging).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/controller"
	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/usecase"
)

const (
	headerIdentityToken = "Offline-Token"
	headerClientVersion = "Fredcli-Version"
)

// Handler wires a Controller to net/http. It owns a small bounded cache of
// decoded identity tokens, keyed by the raw bearer string -- a pure,
// stateless decode, so caching it never touches object-store content and
// does not conflict with the platform's no-content-caching policy.
type Handler struct {
	ctrl        *controller.Controller
	tokenCache  *lru.Cache
	mux         *http.ServeMux
}

func NewHandler(ctrl *controller.Controller) *Handler {
	cache, _ := lru.New(1024)
	h := &Handler{ctrl: ctrl, tokenCache: cache, mux: http.NewServeMux()}
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) routes() {
	h.mux.HandleFunc("/jobs/register", h.handleRegisterJob)
	h.mux.HandleFunc("/jobs", h.handleSubmitArtifact)
	h.mux.HandleFunc("/runs", h.handleRuns)
	h.mux.HandleFunc("/jobs/results", h.handleGetResults)
	h.mux.HandleFunc("/jobs/list", h.handleListJobs)
	h.mux.HandleFunc("/jobs/info", h.handleGetJob)
	h.mux.HandleFunc("/jobs/uploads", h.handleJobUploads)
	h.mux.HandleFunc("/jobs/uploads/archive", h.handleArchiveUploads)
	h.mux.HandleFunc("/runs/results", h.handleUploadResults)
	h.mux.HandleFunc("/health", h.handleHealth)
}

func (h *Handler) decodeToken(r *http.Request) (*kernel.IdentityToken, error) {
	header := r.Header.Get(headerIdentityToken)
	if cached, ok := h.tokenCache.Get(header); ok {
		return cached.(*kernel.IdentityToken), nil
	}
	tok, err := kernel.DecodeIdentityToken(header)
	if err != nil {
		return nil, err
	}
	h.tokenCache.Add(header, tok)
	return tok, nil
}

func (h *Handler) handleRegisterJob(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "registerJob")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tok, err := h.decodeToken(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		returnAndLogError(w, log, kernel.NewValidationError("invalid request body: %s", err))
		return
	}
	res := h.ctrl.RegisterJob(r.Context(), tok, body.Tags)
	writeResult(w, log, res, func(job *kernel.Job) interface{} {
		return map[string]interface{}{"id": job.ID, "userId": job.UserID, "tags": job.Tags}
	})
}

func (h *Handler) handleSubmitArtifact(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "submitArtifact")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.decodeToken(r); err != nil {
		returnAndLogError(w, log, err)
		return
	}
	var body struct {
		JobID   int64  `json:"jobId"`
		Context string `json:"context"`
		Type    string `json:"type"`
		RunID   int64  `json:"runId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		returnAndLogError(w, log, kernel.NewValidationError("invalid request body: %s", err))
		return
	}
	ctx, typ := kernel.UploadContext(body.Context), kernel.UploadType(body.Type)
	var res controller.Result[*kernel.UploadLocation]
	switch {
	case ctx == kernel.ContextJob && typ == kernel.UploadInput:
		res = h.ctrl.SubmitJob(r.Context(), body.JobID)
	case ctx == kernel.ContextJob && typ == kernel.UploadConfig:
		res = h.ctrl.SubmitJobConfig(r.Context(), body.JobID)
	case ctx == kernel.ContextRun && typ == kernel.UploadConfig:
		res = h.ctrl.SubmitRunConfig(r.Context(), body.RunID)
	default:
		returnAndLogError(w, log, kernel.NewValidationError("unsupported context/type pair: %s/%s", body.Context, body.Type))
		return
	}
	writeResult(w, log, res, func(loc *kernel.UploadLocation) interface{} {
		return map[string]interface{}{"url": loc.URL}
	})
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "runs")
	switch r.Method {
	case http.MethodPost:
		h.handleSubmitRuns(w, r, log)
	case http.MethodGet:
		h.handleGetRuns(w, r, log)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSubmitRuns(w http.ResponseWriter, r *http.Request, log *logrus.Entry) {
	if _, err := h.decodeToken(r); err != nil {
		returnAndLogError(w, log, err)
		return
	}
	var body struct {
		RunRequests []struct {
			JobID   int64                  `json:"jobId"`
			Request map[string]interface{} `json:"request"`
		} `json:"runRequests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		returnAndLogError(w, log, kernel.NewValidationError("invalid request body: %s", err))
		return
	}
	reqs := make([]usecase.RunRequest, 0, len(body.RunRequests))
	for _, rr := range body.RunRequests {
		reqs = append(reqs, usecase.RunRequest{JobID: rr.JobID, Request: rr.Request})
	}
	res := h.ctrl.SubmitRuns(r.Context(), reqs, r.Header.Get(headerClientVersion))
	writeResult(w, log, res, func(responses []controller.RunResponse) interface{} {
		out := make([]map[string]interface{}, 0, len(responses))
		for _, rr := range responses {
			out = append(out, map[string]interface{}{
				"runId": rr.RunID, "jobId": rr.JobID, "status": rr.Status, "errors": rr.Errors, "runRequest": rr.Request,
			})
		}
		return map[string]interface{}{"runResponses": out}
	})
}

func (h *Handler) handleGetRuns(w http.ResponseWriter, r *http.Request, log *logrus.Entry) {
	jobID, err := parseJobIDQuery(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	res := h.ctrl.GetRuns(r.Context(), jobID)
	writeResult(w, log, res, func(runs []*kernel.Run) interface{} {
		out := make([]map[string]interface{}, 0, len(runs))
		for _, run := range runs {
			out = append(out, serializeRun(run))
		}
		return map[string]interface{}{"runs": out}
	})
}

func serializeRun(run *kernel.Run) map[string]interface{} {
	return map[string]interface{}{
		"id": run.ID, "jobId": run.JobID, "userId": run.UserID,
		"createdTs": run.CreatedAt.Format(time.RFC3339),
		"request":   run.Request,
		"podPhase":  run.PodPhase, "containerStatus": run.ContainerStatus,
		"status": kernel.PodPhaseToStatus(run.PodPhase), "userDeleted": run.UserDeleted,
		"epxClientVersion": run.EpxClientVersion, "config_url": run.ConfigURL,
		"results_url": run.ResultsURL, "results_uploaded_at": formatOptionalTime(run.ResultsUploadedAt),
	}
}

func formatOptionalTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func (h *Handler) handleGetResults(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "getResults")
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID, err := parseJobIDQuery(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	res := h.ctrl.GetRunResults(r.Context(), jobID, 24*time.Hour)
	writeResult(w, log, res, func(urls []usecase.RunResultURL) interface{} {
		out := make([]map[string]interface{}, 0, len(urls))
		for _, u := range urls {
			out = append(out, map[string]interface{}{"run_id": u.RunID, "url": u.URL})
		}
		return map[string]interface{}{"urls": out}
	})
}

// handleUploadResults accepts an already-packaged results archive from the
// simulation runner (C10's Upload stage) as a raw application/zip body and
// stores it via the results gateway. The runner packages its own output
// directory locally so no filesystem is shared with the control plane.
func (h *Handler) handleUploadResults(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "uploadResults")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.decodeToken(r); err != nil {
		returnAndLogError(w, log, err)
		return
	}
	jobID, err := parseJobIDQuery(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	runID, err := parseRunIDQuery(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	zipBytes, err := io.ReadAll(r.Body)
	if err != nil {
		returnAndLogError(w, log, kernel.NewValidationError("failed to read request body: %s", err))
		return
	}
	res := h.ctrl.UploadResults(r.Context(), jobID, runID, zipBytes)
	writeResult(w, log, res, func(url string) interface{} {
		return map[string]interface{}{"url": url}
	})
}

func parseRunIDQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("run_id")
	if raw == "" {
		return 0, kernel.NewValidationError("missing run_id query parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, kernel.NewValidationError("invalid run_id query parameter: %s", raw)
	}
	return id, nil
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "listJobs")
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, offset := parsePagination(r)
	res := h.ctrl.ListJobs(r.Context(), limit, offset)
	writeResult(w, log, res, func(jobs []*kernel.Job) interface{} {
		out := make([]map[string]interface{}, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, serializeJob(job))
		}
		return map[string]interface{}{"jobs": out}
	})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "getJob")
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID, err := parseJobIDQuery(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	res := h.ctrl.GetJob(r.Context(), jobID)
	writeResult(w, log, res, func(job *kernel.Job) interface{} { return serializeJob(job) })
}

func serializeJob(job *kernel.Job) map[string]interface{} {
	return map[string]interface{}{
		"id": job.ID, "userId": job.UserID, "tags": job.Tags, "status": job.Status,
		"createdTs": job.CreatedAt.Format(time.RFC3339), "inputLocation": job.InputLocation,
		"configLocation": job.ConfigLocation,
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func (h *Handler) handleJobUploads(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "jobUploads")
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID, err := parseJobIDQuery(r)
	if err != nil {
		returnAndLogError(w, log, err)
		return
	}
	includeContent := r.URL.Query().Get("include_content") == "true"
	res := h.ctrl.GetJobUploads(r.Context(), jobID, includeContent)
	writeResult(w, log, res, func(uploads []*kernel.JobUpload) interface{} {
		out := make([]map[string]interface{}, 0, len(uploads))
		for _, u := range uploads {
			out = append(out, serializeJobUpload(u))
		}
		return map[string]interface{}{"uploads": out}
	})
}

func serializeJobUpload(u *kernel.JobUpload) map[string]interface{} {
	m := map[string]interface{}{
		"context": u.Context, "type": u.Type, "jobId": u.JobID, "runId": u.RunID,
	}
	if u.Location != nil {
		m["url"] = u.Location.URL
		m["errors"] = u.Location.Errors
	}
	if u.Content != nil {
		m["content"] = serializeUploadContent(u.Content)
	}
	return m
}

func serializeUploadContent(c *kernel.UploadContent) map[string]interface{} {
	switch {
	case c.Text != nil:
		return map[string]interface{}{"kind": "text", "body": c.Text.Body, "encoding": c.Text.Encoding}
	case c.JSON != nil:
		return map[string]interface{}{"kind": "json", "body": c.JSON.Body}
	case c.Binary != nil:
		return map[string]interface{}{"kind": "binary", "hexPreview": c.Binary.HexPreview}
	case c.Zip != nil:
		return map[string]interface{}{"kind": "zip", "summary": c.Zip.Summary, "entries": c.Zip.Entries}
	default:
		return map[string]interface{}{"kind": "empty"}
	}
}

func (h *Handler) handleArchiveUploads(w http.ResponseWriter, r *http.Request) {
	log := logrus.WithField("handler", "archiveUploads")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.decodeToken(r); err != nil {
		returnAndLogError(w, log, err)
		return
	}
	var body struct {
		Locations []struct {
			URL string `json:"url"`
		} `json:"locations"`
		Days   int  `json:"days"`
		Hours  int  `json:"hours"`
		DryRun bool `json:"dryRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		returnAndLogError(w, log, kernel.NewValidationError("invalid request body: %s", err))
		return
	}
	locations := make([]*kernel.UploadLocation, 0, len(body.Locations))
	for _, l := range body.Locations {
		locations = append(locations, &kernel.UploadLocation{URL: l.URL})
	}
	res := h.ctrl.ArchiveUploads(r.Context(), locations, body.Days, body.Hours, body.DryRun)
	writeResult(w, log, res, func(archived []*kernel.UploadLocation) interface{} {
		out := make([]map[string]interface{}, 0, len(archived))
		for _, l := range archived {
			out = append(out, map[string]interface{}{"url": l.URL, "errors": l.Errors})
		}
		return map[string]interface{}{"locations": out}
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

func parseJobIDQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("job_id")
	if raw == "" {
		return 0, kernel.NewValidationError("missing job_id query parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, kernel.NewValidationError("invalid job_id query parameter: %s", raw)
	}
	return id, nil
}
