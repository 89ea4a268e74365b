// Package logging builds the structured loggers used by the wikichain commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel returns the slog level named by s. "off" and "none" report
// enabled=false. The empty string means info.
func ParseLevel(s string) (lvl slog.Level, enabled bool, err error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return slog.LevelInfo, true, nil
	case "off", "none":
		return 0, false, nil
	}
	lvl, ok := levels[name]
	if !ok {
		return 0, false, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, true, nil
}

// ValidFormat reports whether format is accepted by New.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", FormatText, FormatJSON:
		return true
	}
	return false
}

// New creates a logger writing to w (os.Stderr when nil). An unknown level
// falls back to info and an unknown format to text.
func New(format, level string, w io.Writer) *slog.Logger {
	lvl, enabled, err := ParseLevel(level)
	if err != nil {
		lvl, enabled = slog.LevelInfo, true
	}
	if !enabled {
		return Discard()
	}
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
