// Package sysutil holds process-level helpers shared by cmd/server and
// cmd/prayctl: global zerolog setup and small env parsing helpers.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a configured level name to a zerolog level. "warning" is
// accepted for warn; blank or unknown names mean info, and so do the levels
// that would silence the queue entirely (disabled, trace).
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel || lvl == zerolog.Disabled || lvl == zerolog.TraceLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel sets the global zerolog level from a level name and returns
// the level applied.
func SetLogLevel(s string) zerolog.Level {
	lvl := ParseLevel(s)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// NewLogger builds a timestamped logger tagged with service. pretty selects
// the console writer, colored unless color output is off (NO_COLOR or no
// terminal); otherwise JSON lines go to w.
func NewLogger(w io.Writer, pretty bool, service string) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: color.NoColor}
	}
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// ConfigureLogging applies level and installs a stderr logger as the global
// logger, which is also returned.
func ConfigureLogging(level string, pretty bool, service string) zerolog.Logger {
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = NewLogger(os.Stderr, pretty, service)
	return log.Logger
}

// IsTruthy reports whether v reads as an enabled flag: 1, true, yes, y or
// on, in any case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank, unchanged.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
