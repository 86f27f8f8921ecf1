package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"conversation-stream/internal/transcript"
	"conversation-stream/internal/types"
)

// State is a Run's position in the stage sequence.
type State string

const (
	StateStart        State = "start"
	StateExtracted    State = "extracted"
	StateSynthesized  State = "synthesized"
	StateNormalized   State = "normalized"
	StateMapped       State = "mapped"
	StateConcatenated State = "concatenated"
	StateFailed       State = "failed"
)

// Run is the context of one transcript's trip through the pipeline. Its
// WorkDir is keyed by ID so concurrent runs never share scratch files.
type Run struct {
	ID         string
	Transcript string
	WorkDir    string
	OutputPath string
	Utterances []types.Utterance
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time

	log *logrus.Entry
}

func newRun(transcriptPath, workRoot, outputDir string, log *logrus.Entry) (*Run, error) {
	id := uuid.New().String()
	r := &Run{
		ID:         id,
		Transcript: transcriptPath,
		WorkDir:    filepath.Join(workRoot, id),
		OutputPath: filepath.Join(outputDir, transcript.BaseName(transcriptPath)+clipExt),
		State:      StateStart,
		StartedAt:  time.Now(),
		log: log.WithFields(logrus.Fields{
			"run_id":     id,
			"transcript": transcriptPath,
		}),
	}
	if err := os.MkdirAll(r.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return r, nil
}

func (r *Run) advance(s State) {
	r.log.WithFields(logrus.Fields{"from": r.State, "to": s}).Debug("stage complete")
	r.State = s
	if s == StateConcatenated {
		r.FinishedAt = time.Now()
	}
}

func (r *Run) fail(err error) error {
	r.log.WithField("state", r.State).WithField("error", err.Error()).Error("run failed")
	r.State = StateFailed
	r.Err = err
	r.FinishedAt = time.Now()
	return err
}

// Cleanup removes the run's working directory. Failed runs keep their
// intermediate clips until the caller calls this.
func (r *Run) Cleanup() error {
	return os.RemoveAll(r.WorkDir)
}
