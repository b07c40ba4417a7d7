// Package logging configures taskforge's structured logger. Grounded on
// manifold's logger.go (dual stdout+file writer, level from LOG_LEVEL,
// JSON formatting), rewritten against zerolog — the logging library
// actually declared in go.mod — instead of the teacher's logrus import.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the base logger. level is a zerolog level name
// (trace/debug/info/warn/error); unrecognized values fall back to info.
// When logPath is non-empty, output is duplicated to that file the way
// manifold's logger.go writes to manifold.log.
func New(level, logPath string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			writers = append(writers, f)
		}
	}

	return zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
}

// ForPlan returns a child logger carrying plan_id/request_id fields, so
// every log line emitted during one plan's execution is trivially
// correlatable (§A Ambient stack: "one *zerolog.Logger injected per plan
// run, never a bare global").
func ForPlan(base zerolog.Logger, planID, requestID string) zerolog.Logger {
	return base.With().Str("plan_id", planID).Str("request_id", requestID).Logger()
}
