// Package pipeline renders a ticket transcript into a two-channel call
// recording: synthesize each utterance, upmix to stereo, pan by speaker
// role, then stream-copy the clips together in transcript order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"conversation-stream/internal/logger"
	"conversation-stream/internal/media"
	"conversation-stream/internal/transcript"
	"conversation-stream/internal/tts"
	"conversation-stream/internal/types"
)

// Synthesizer renders one utterance's text to an audio file at out.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice tts.Voice, out string) error
}

// Transcoder performs the ffmpeg operations the pipeline needs.
type Transcoder interface {
	ToStereo(ctx context.Context, in, out string) error
	Pan(ctx context.Context, in, out string, side media.Side) error
	ConcatList(ctx context.Context, manifest, out string) error
}

// Options configures where runs write and which voices they use.
type Options struct {
	WorkRoot      string
	OutputDir     string
	AgentVoice    tts.Voice
	CustomerVoice tts.Voice
	// Concurrency bounds parallel synthesis; values below 1 mean 1.
	Concurrency int
}

// Pipeline turns transcripts into call recordings. It holds no per-run
// state and may execute several transcripts concurrently.
type Pipeline struct {
	opts  Options
	synth Synthesizer
	tc    Transcoder
	log   *logrus.Entry
}

// New builds a Pipeline around the given synthesizer and transcoder.
func New(opts Options, synth Synthesizer, tc Transcoder, log *logger.Logger) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{opts: opts, synth: synth, tc: tc, log: log.WithComponent("pipeline")}
}

const manifestName = "concat_list.txt"

// Execute runs every stage for one transcript. On success the returned
// Run's OutputPath exists and is non-empty and its WorkDir has been
// removed. On failure the Run (when one
// was created) is in StateFailed and its WorkDir is left for inspection.
func (p *Pipeline) Execute(ctx context.Context, transcriptPath string) (*Run, error) {
	run, err := newRun(transcriptPath, p.opts.WorkRoot, p.opts.OutputDir, p.log)
	if err != nil {
		return nil, err
	}
	run.log.Info("starting audio conversion")

	stages := []struct {
		name string
		next State
		fn   func(context.Context, *Run) error
	}{
		{"extract", StateExtracted, p.extract},
		{"synthesize", StateSynthesized, p.synthesize},
		{"normalize", StateNormalized, p.normalize},
		{"map", StateMapped, p.mapChannels},
		{"concatenate", StateConcatenated, p.concatenate},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return run, run.fail(&StageError{Kind: err, Stage: s.name, Index: -1, Path: run.WorkDir})
		}
		if err := s.fn(ctx, run); err != nil {
			return run, run.fail(err)
		}
		run.advance(s.next)
	}
	run.log.WithFields(logrus.Fields{
		"output":     run.OutputPath,
		"utterances": len(run.Utterances),
		"elapsed_ms": run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}).Info("audio processing completed")
	return run, nil
}

func (p *Pipeline) extract(_ context.Context, run *Run) error {
	utts, err := transcript.Read(run.Transcript)
	if err != nil {
		return &StageError{Kind: ErrTranscriptRead, Stage: "extract", Index: -1, Path: run.Transcript, Err: err}
	}
	run.Utterances = utts
	run.log.WithField("utterances", len(utts)).Info("messages extracted")
	return nil
}

func (p *Pipeline) voiceFor(r types.Role) tts.Voice {
	if r == types.RoleCustomer {
		return p.opts.CustomerVoice
	}
	return p.opts.AgentVoice
}

func (p *Pipeline) synthesize(ctx context.Context, run *Run) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, u := range run.Utterances {
		g.Go(func() error {
			if gctx.Err() != nil {
				// a sibling already failed
				return nil
			}
			clip := At(types.Clip{Index: u.Index, Role: u.Role()}, run.WorkDir, types.StageRaw)
			run.log.WithFields(logrus.Fields{"utterance": u.Index, "role": clip.Role}).Debug("synthesizing")
			if err := p.synth.Synthesize(gctx, u.Message, p.voiceFor(clip.Role), clip.Path); err != nil {
				return &StageError{Kind: ErrSynthesis, Stage: "synthesize", Index: u.Index, Path: clip.Path, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &StageError{Kind: ErrSynthesis, Stage: "synthesize", Index: -1, Err: err}
	}
	run.log.WithField("clips", len(run.Utterances)).Info("all messages synthesized")
	return nil
}

// normalize upmixes every raw clip. Clips converted before a failure are
// kept so the run can be inspected.
func (p *Pipeline) normalize(ctx context.Context, run *Run) error {
	clips, err := Collect(run.WorkDir, types.StageRaw)
	if err != nil {
		return &StageError{Kind: ErrTranscode, Stage: "normalize", Index: -1, Path: run.WorkDir, Err: err}
	}
	if len(clips) == 0 {
		run.log.Warn("no raw clips to convert to stereo")
		return nil
	}
	for _, c := range clips {
		out := At(c, run.WorkDir, types.StageStereo)
		if err := p.tc.ToStereo(ctx, c.Path, out.Path); err != nil {
			return &StageError{Kind: ErrTranscode, Stage: "normalize", Index: c.Index, Path: c.Path, Err: err}
		}
		if err := os.Remove(c.Path); err != nil {
			return &StageError{Kind: ErrTranscode, Stage: "normalize", Index: c.Index, Path: c.Path, Err: err}
		}
	}
	run.log.WithField("clips", len(clips)).Info("clips converted to stereo")
	return nil
}

// mapChannels pans each stereo clip by the role in its file name.
func (p *Pipeline) mapChannels(ctx context.Context, run *Run) error {
	clips, err := Collect(run.WorkDir, types.StageStereo)
	if err != nil {
		return &StageError{Kind: ErrTranscode, Stage: "map", Index: -1, Path: run.WorkDir, Err: err}
	}
	if len(clips) == 0 {
		run.log.Warn("no stereo clips to remap")
		return nil
	}
	for _, c := range clips {
		side, err := SideFor(c.Role)
		if err != nil {
			return &StageError{Kind: ErrTranscode, Stage: "map", Index: c.Index, Path: c.Path, Err: err}
		}
		out := At(c, run.WorkDir, types.StageMapped)
		if err := p.tc.Pan(ctx, c.Path, out.Path, side); err != nil {
			return &StageError{Kind: ErrTranscode, Stage: "map", Index: c.Index, Path: c.Path, Err: err}
		}
		if err := os.Remove(c.Path); err != nil {
			return &StageError{Kind: ErrTranscode, Stage: "map", Index: c.Index, Path: c.Path, Err: err}
		}
	}
	run.log.WithField("clips", len(clips)).Info("clips remapped, agent left and customer right")
	return nil
}

func (p *Pipeline) concatenate(ctx context.Context, run *Run) error {
	fail := func(kind error, path string, err error) error {
		return &StageError{Kind: kind, Stage: "concatenate", Index: -1, Path: path, Err: err}
	}

	clips, err := Collect(run.WorkDir, types.StageMapped)
	if err != nil {
		return fail(ErrConcatenation, run.WorkDir, err)
	}
	if len(clips) == 0 {
		return fail(ErrConcatenation, run.WorkDir, errors.New("no mapped clips found"))
	}
	if len(clips) != len(run.Utterances) {
		return fail(ErrInvariantViolation, run.WorkDir,
			fmt.Errorf("found %d mapped clips for %d utterances", len(clips), len(run.Utterances)))
	}
	inputs := make([]string, len(clips))
	for i, c := range clips {
		if c.Index != i || c.Role != run.Utterances[i].Role() {
			return fail(ErrInvariantViolation, c.Path,
				fmt.Errorf("clip %d (%s) does not match utterance %d (%s)", c.Index, c.Role, i, run.Utterances[i].Role()))
		}
		inputs[i] = c.Path
	}

	manifest := filepath.Join(run.WorkDir, manifestName)
	if err := media.WriteConcatList(manifest, inputs); err != nil {
		return fail(ErrConcatenation, manifest, err)
	}
	if err := os.MkdirAll(filepath.Dir(run.OutputPath), 0o755); err != nil {
		return fail(ErrConcatenation, run.OutputPath, err)
	}

	// Same directory as the output so the rename stays atomic.
	tmp := filepath.Join(filepath.Dir(run.OutputPath), "."+run.ID+".partial"+clipExt)
	if err := p.tc.ConcatList(ctx, manifest, tmp); err != nil {
		_ = os.Remove(tmp)
		return fail(ErrConcatenation, tmp, err)
	}
	fi, err := os.Stat(tmp)
	if err != nil {
		return fail(ErrConcatenation, tmp, fmt.Errorf("temporary output missing: %w", err))
	}
	if fi.Size() == 0 {
		_ = os.Remove(tmp)
		return fail(ErrConcatenation, tmp, errors.New("temporary output is empty"))
	}
	if err := os.Rename(tmp, run.OutputPath); err != nil {
		_ = os.Remove(tmp)
		return fail(ErrConcatenation, run.OutputPath, err)
	}
	if _, err := os.Stat(run.OutputPath); err != nil {
		return fail(ErrConcatenation, run.OutputPath, fmt.Errorf("final output not found: %w", err))
	}

	for _, path := range append([]string{manifest}, inputs...) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			run.log.WithField("path", path).WithField("error", err.Error()).Warn("cleanup failed")
		}
	}
	if err := os.Remove(run.WorkDir); err != nil {
		run.log.WithField("path", run.WorkDir).WithField("error", err.Error()).Warn("work dir not removed")
	}
	run.log.WithField("output", run.OutputPath).Info("final output file moved")
	return nil
}
