package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorToStatusClassifiesMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want int
	}{
		{"job 7 not found", http.StatusNotFound},
		{"invalid job transition from CREATED to SUBMITTED", http.StatusConflict},
		{"invalid run transition from QUEUED to RUNNING", http.StatusConflict},
		{"invalid context/type pair: job/results", http.StatusBadRequest},
		{"missing server-url", http.StatusBadRequest},
		{"An unexpected error occurred while processing the request.", http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, errorToStatus(c.msg), c.msg)
	}
}
