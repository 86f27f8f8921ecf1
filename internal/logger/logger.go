package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

func New() *Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput builds the logger against w; tests pass io.Discard or a buffer.
func NewWithOutput(w io.Writer) *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     w == os.Stdout,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(w)
	base.SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// ParseLevel maps the LOG_LEVEL values we accept; anything else is info.
func ParseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel overrides the level picked from the environment.
func (l *Logger) SetLevel(level string) {
	l.Logger.SetLevel(ParseLevel(level))
}

// WithRun attaches pipeline run metadata and returns an entry
func (l *Logger) WithRun(runID, transcript string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"run_id":     runID,
		"transcript": transcript,
	})
}

// WithComponent tags an entry with the emitting package.
func (l *Logger) WithComponent(name string) *logrus.Entry {
	return l.WithField("component", name)
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *Logger {
	return NewWithOutput(io.Discard)
}
