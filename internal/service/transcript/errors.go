// Package transcript turns recognition results into client events, chat
// messages and room broadcasts.
package transcript

import "fmt"

// Stage names the pipeline step that failed.
type Stage string

const (
	StageRecognition Stage = "recognition"
	StageStorage     Stage = "storage"
)

// StageError is the only form in which backend failures reach clients.
// Err is rendered as a free-form reason for operators.
type StageError struct {
	Stage Stage
	Err   error
}

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Stage) + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Reason returns the operator-facing reason string.
func (e *StageError) Reason() string {
	if e.Err == nil {
		return string(e.Stage) + " failed"
	}
	return e.Err.Error()
}
