package runner

import "fmt"

// StageError reports which pipeline stage failed and why. The runner's exit
// code is always 1 regardless of which stage raised it; the stage name is
// carried for logging, not branching.
type StageError struct {
	Stage string
	Msg   string
	Cause error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

func (e *StageError) Unwrap() error { return e.Cause }

func newStageError(stage, format string, args ...interface{}) error {
	return &StageError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

func wrapStageError(stage string, cause error, format string, args ...interface{}) error {
	return &StageError{Stage: stage, Msg: fmt.Sprintf(format, args...), Cause: cause}
}
