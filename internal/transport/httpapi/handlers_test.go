package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gbatch "github.com/epistemix-platform/simcontrol/internal/gateway/batch"
	"github.com/epistemix-platform/simcontrol/internal/gateway/results"
	"github.com/epistemix-platform/simcontrol/internal/gateway/upload"
	"github.com/epistemix-platform/simcontrol/internal/controller"
	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/repository"
	"github.com/epistemix-platform/simcontrol/internal/usecase"
)

func newTestHandler() *Handler {
	deps := &usecase.Deps{
		Jobs:    repository.NewInMemoryJobRepository(),
		Runs:    repository.NewInMemoryRunRepository(),
		Uploads: upload.NewDummyGateway(),
		Results: results.NewDummyGateway(),
	}
	ctrl := controller.New(deps, gbatch.NewDummyGateway())
	return NewHandler(ctrl)
}

func bearerFor(userID int64) string {
	return kernel.EncodeIdentityToken(userID, "")
}

func TestHandleRegisterJob(t *testing.T) {
	h := newTestHandler()
	body, _ := json.Marshal(map[string]interface{}{"tags": []string{"info_job"}})
	req := httptest.NewRequest("POST", "/jobs/register", bytes.NewReader(body))
	req.Header.Set(headerIdentityToken, bearerFor(123))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, float64(1), out["id"])
	assert.Equal(t, float64(123), out["userId"])
}

func TestHandleRegisterJobRejectsBadToken(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("POST", "/jobs/register", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(headerIdentityToken, "garbage")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestHandleGetRunsMissingJobID(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/runs", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestHandleSubmitJobEndToEnd(t *testing.T) {
	h := newTestHandler()

	regBody, _ := json.Marshal(map[string]interface{}{"tags": []string{}})
	regReq := httptest.NewRequest("POST", "/jobs/register", bytes.NewReader(regBody))
	regReq.Header.Set(headerIdentityToken, bearerFor(1))
	regRec := httptest.NewRecorder()
	h.ServeHTTP(regRec, regReq)
	var job map[string]interface{}
	require.NoError(t, json.Unmarshal(regRec.Body.Bytes(), &job))
	jobID := job["id"].(float64)

	submitBody, _ := json.Marshal(map[string]interface{}{"jobId": jobID, "context": "job", "type": "input"})
	submitReq := httptest.NewRequest("POST", "/jobs", bytes.NewReader(submitBody))
	submitReq.Header.Set(headerIdentityToken, bearerFor(1))
	submitRec := httptest.NewRecorder()
	h.ServeHTTP(submitRec, submitReq)

	require.Equal(t, 200, submitRec.Code)
	var loc map[string]interface{}
	require.NoError(t, json.Unmarshal(submitRec.Body.Bytes(), &loc))
	assert.Contains(t, loc["url"], "job_input.zip")
}

func TestHandleListAndGetJob(t *testing.T) {
	h := newTestHandler()

	regBody, _ := json.Marshal(map[string]interface{}{"tags": []string{"a"}})
	regReq := httptest.NewRequest("POST", "/jobs/register", bytes.NewReader(regBody))
	regReq.Header.Set(headerIdentityToken, bearerFor(9))
	regRec := httptest.NewRecorder()
	h.ServeHTTP(regRec, regReq)

	listReq := httptest.NewRequest("GET", "/jobs/list", nil)
	listRec := httptest.NewRecorder()
	h.ServeHTTP(listRec, listReq)
	require.Equal(t, 200, listRec.Code)
	var listOut map[string]interface{}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listOut))
	assert.Len(t, listOut["jobs"], 1)

	infoReq := httptest.NewRequest("GET", "/jobs/info?job_id=1", nil)
	infoRec := httptest.NewRecorder()
	h.ServeHTTP(infoRec, infoReq)
	require.Equal(t, 200, infoRec.Code)
	var infoOut map[string]interface{}
	require.NoError(t, json.Unmarshal(infoRec.Body.Bytes(), &infoOut))
	assert.Equal(t, float64(9), infoOut["userId"])
}

func TestHandleGetJobUnknownIsNotFound(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/jobs/info?job_id=999", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestHandleArchiveUploadsEmptyInput(t *testing.T) {
	h := newTestHandler()
	body, _ := json.Marshal(map[string]interface{}{"locations": []interface{}{}})
	req := httptest.NewRequest("POST", "/jobs/uploads/archive", bytes.NewReader(body))
	req.Header.Set(headerIdentityToken, bearerFor(1))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out["locations"])
}
