package pipeline

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is against any error returned by Execute.
var (
	ErrTranscriptRead     = errors.New("transcript read error")
	ErrSynthesis          = errors.New("synthesis error")
	ErrTranscode          = errors.New("transcode error")
	ErrConcatenation      = errors.New("concatenation error")
	ErrInvariantViolation = errors.New("invariant violation")
)

// StageError reports which stage, utterance and file a run failed on.
// Index is -1 when the failure is not tied to one utterance.
type StageError struct {
	Kind  error
	Stage string
	Index int
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%v: stage=%s", e.Kind, e.Stage)
	if e.Index >= 0 {
		msg += fmt.Sprintf(" utterance=%d", e.Index)
	}
	if e.Path != "" {
		msg += " path=" + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Is(target error) bool { return target == e.Kind }

func (e *StageError) Unwrap() error { return e.Err }
