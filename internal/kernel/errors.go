package kernel

import "fmt"

// ValidationError signals malformed input: a bad token, an unknown
// context/type pair, a non-positive identifier.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError signals that a job or run id is unknown to the repository.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InvalidTransitionError signals a state-machine violation, e.g. submitting
// a job that isn't in CREATED.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

// ExecutorUnavailableMarker prefixes every ExecutorUnavailableError message.
// Callers that only have the rendered string (e.g. a reconciliation loop
// reading RunStatusDetail.Message) can detect the condition with
// strings.Contains(msg, ExecutorUnavailableMarker) rather than inspecting
// the error value itself.
const ExecutorUnavailableMarker = "AWS Batch API error"

// ExecutorUnavailableError wraps a batch-executor gateway failure. It is
// never fatal when encountered during a read-time reconciliation; callers
// that read it only log a warning and keep the stored state. Cause is
// expected to already be sanitized by the gateway (platform/sanitize does
// the actual credential redaction) before it reaches this type.
type ExecutorUnavailableError struct {
	Cause error
}

func (e *ExecutorUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ExecutorUnavailableMarker, e.Cause.Error())
}

func (e *ExecutorUnavailableError) Unwrap() error { return e.Cause }
