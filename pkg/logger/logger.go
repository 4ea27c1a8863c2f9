// Package logger configures the gateway's structured, leveled logging on
// top of zerolog, keeping the teacher's Config/New/ParseLevel shape while
// swapping the slog backend for zerolog (spec §2 component K).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level mirrors the CLI's -loglevel vocabulary (spec §6): critical, error,
// warning, info, debug.
type Level string

const (
	LevelCritical Level = "critical"
	LevelError    Level = "error"
	LevelWarning  Level = "warning"
	LevelInfo     Level = "info"
	LevelDebug    Level = "debug"
)

// ParseLevel converts a CLI string to Level, defaulting unrecognized input
// to info rather than erroring, matching the teacher's lenient fallback
// for unrecognized flag values.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "critical", "crit":
		return LevelCritical
	case "error", "err":
		return LevelError
	case "warning", "warn":
		return LevelWarning
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// zerologLevel maps Level to zerolog.Level. zerolog has no distinct
// critical tier, so critical pins to FatalLevel, the level just above error.
func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case LevelCritical:
		return zerolog.FatalLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds the gateway's logging configuration (spec §6).
type Config struct {
	Level  Level
	Output io.Writer
}

// NewConfig returns the default configuration: info level to stderr.
func NewConfig() *Config {
	return &Config{Level: LevelInfo, Output: os.Stderr}
}

// New builds a zerolog.Logger from cfg: one free-form line per event,
// matching spec §6's "free-form log lines" interface.
func New(cfg *Config) zerolog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).
		Level(cfg.Level.zerologLevel()).
		With().
		Timestamp().
		Logger()
}

// NALUnitTypeName names an H.264 NAL unit type for debug-level logging,
// grounded on the teacher's getNALUTypeName lookup.
func NALUnitTypeName(naluType uint8) string {
	switch naluType {
	case 1:
		return "P-frame"
	case 5:
		return "IDR"
	case 6:
		return "SEI"
	case 7:
		return "SPS"
	case 8:
		return "PPS"
	case 9:
		return "AUD"
	case 28:
		return "FU-A"
	default:
		return fmt.Sprintf("unknown(%d)", naluType)
	}
}
