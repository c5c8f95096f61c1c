package controller

import (
	"errors"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/packaging"
)

// classify turns a kernel-level error into the message a caller sees.
// Validation, not-found, and state-machine errors propagate verbatim;
// anything else becomes a generic message so raw internals never escape.
func classify(err error) string {
	if err == nil {
		return ""
	}
	var ve *kernel.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var nfe *kernel.NotFoundError
	if errors.As(err, &nfe) {
		return nfe.Error()
	}
	var ite *kernel.InvalidTransitionError
	if errors.As(err, &ite) {
		return ite.Error()
	}
	var irde *packaging.InvalidResultsDirectoryError
	if errors.As(err, &irde) {
		return irde.Error()
	}
	return "An unexpected error occurred while processing the request."
}
