package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Side is the stereo channel an utterance is isolated on.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// PanFilter returns the ffmpeg pan expression that copies the front-left
// channel onto side and leaves the other channel silent.
func PanFilter(side Side) (string, error) {
	switch side {
	case Left:
		return "pan=stereo|c0=FL", nil
	case Right:
		return "pan=stereo|c1=FL", nil
	default:
		return "", fmt.Errorf("unknown pan side %q", side)
	}
}

// ToolError is a non-zero exit from ffmpeg or ffprobe.
type ToolError struct {
	Tool   string
	Args   []string
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, msg)
}

func (e *ToolError) Unwrap() error { return e.Err }

// stderrTail keeps the last lines of tool output for error messages.
const stderrTail = 2048

// Prober reports the playback length of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

var _ Prober = (*FFmpeg)(nil)

// FFmpeg shells out to the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	Bin      string
	ProbeBin string
	log      *logrus.Entry
}

func NewFFmpeg(bin, probeBin string, log *logrus.Entry) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if probeBin == "" {
		probeBin = "ffprobe"
	}
	return &FFmpeg{Bin: bin, ProbeBin: probeBin, log: log.WithField("component", "media.ffmpeg")}
}

// ToStereo duplicates the mono input across two channels.
func (f *FFmpeg) ToStereo(ctx context.Context, in, out string) error {
	return f.run(ctx, f.Bin, "-hide_banner", "-loglevel", "error", "-y", "-i", in, "-ac", "2", out)
}

// Pan isolates the input on one side of the stereo field.
func (f *FFmpeg) Pan(ctx context.Context, in, out string, side Side) error {
	filter, err := PanFilter(side)
	if err != nil {
		return err
	}
	return f.run(ctx, f.Bin, "-hide_banner", "-loglevel", "error", "-y", "-i", in, "-af", filter, out)
}

// ConcatList joins the files named in a concat manifest without
// re-encoding.
func (f *FFmpeg) ConcatList(ctx context.Context, manifest, out string) error {
	return f.run(ctx, f.Bin, "-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", manifest, "-c", "copy", out)
}

// Duration reports the container duration of path.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ProbeBin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, &ToolError{Tool: f.ProbeBin, Args: args, Err: err, Stderr: tail(stderr.String())}
	}
	return ParseDuration(stdout.String())
}

// ParseDuration reads ffprobe's bare format=duration output.
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("unable to retrieve audio duration")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", d)
	}
	return d, nil
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	f.log.WithField("args", strings.Join(args, " ")).Debug("exec")
	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: bin, Args: args, Err: err, Stderr: tail(stderr.String())}
	}
	return nil
}

func tail(s string) string {
	if len(s) <= stderrTail {
		return s
	}
	return s[len(s)-stderrTail:]
}
