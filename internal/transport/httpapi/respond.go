package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/controller"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeResult encodes a Result[T] as JSON on success, or dispatches the
// failure message to the appropriate status code via errorToStatus.
func writeResult[T any](w http.ResponseWriter, log *logrus.Entry, res controller.Result[T], toBody func(T) interface{}) {
	if res.IsSuccess() {
		writeJSON(w, http.StatusOK, toBody(res.Value()))
		return
	}
	status := errorToStatus(res.Error())
	returnAndLogErrorMsg(w, log, res.Error(), status)
}

// errorToStatus classifies a failure message into an HTTP status, mirroring
// the reference service's handlers.errorToStatus switch-by-error pattern,
// adapted here to switch on message shape since Result[T] carries only a
// string at the transport boundary.
func errorToStatus(msg string) int {
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "invalid job transition") || strings.Contains(msg, "invalid run transition"):
		return http.StatusConflict
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "missing") || strings.Contains(msg, "not a RUN*"):
		return http.StatusBadRequest
	case msg == "An unexpected error occurred while processing the request.":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func returnAndLogError(w http.ResponseWriter, log *logrus.Entry, err error) {
	returnAndLogErrorMsg(w, log, err.Error(), errorToStatus(err.Error()))
}

func returnAndLogErrorMsg(w http.ResponseWriter, log *logrus.Entry, msg string, status int) {
	if status > 499 {
		log.WithField("status", status).Error(msg)
	} else {
		log.WithField("status", status).Debug(msg)
	}
	http.Error(w, msg, status)
}
