// Package logging builds the process-wide zerolog logger and carries the
// correlation fields every turn-scoped log line must include.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log output.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string
	// File, when set, receives JSON log lines instead of stderr.
	File string
	// Pretty enables the human-readable console writer. Ignored when
	// File is set: files always get JSON.
	Pretty bool
}

// New builds a logger from cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("opening log file: %w", err)
		}
		w = f
	} else if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel maps a config string onto a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// WithTurn returns a logger carrying the correlation identity for one
// conversational turn. Every line logged through it is attributable to a
// user, conversation, and (when mission-originated) mission run.
func WithTurn(log zerolog.Logger, userID, conversationID, missionRunID, turnID string) zerolog.Logger {
	ctx := log.With().
		Str("user_id", userID).
		Str("conversation_id", conversationID).
		Str("turn_id", turnID)
	if missionRunID != "" {
		ctx = ctx.Str("mission_run_id", missionRunID)
	}
	return ctx.Logger()
}
