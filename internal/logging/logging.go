// Package logging builds the charmbracelet/log logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

type Options struct {
	Level  string
	Format string
	Prefix string
}

func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: "text",
		Prefix: "todobot",
	}
}

func New(w io.Writer, opts Options) (*log.Logger, error) {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}
	formatter, err := parseFormatter(opts.Format)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          opts.Prefix,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Pseudonym shortens a pseudonym for log lines.
func Pseudonym(p string) string {
	if len(p) <= 8 {
		return p
	}
	return p[:8]
}

func parseFormatter(raw string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("unknown log format %q", raw)
	}
}
