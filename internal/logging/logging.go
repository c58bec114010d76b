// Package logging builds the process-wide slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level, format and optional rotated log file.
type Options struct {
	Level      string // debug, info, warn or error
	Format     string // text or json
	File       string // empty means stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger writing to stdout and, when opts.File is set, to a
// lumberjack-rotated file as well. The returned close func flushes and
// closes the file; it is a no-op when there is none.
func New(opts Options) (*slog.Logger, func() error, error) {
	return newWithStdout(opts, os.Stdout)
}

func newWithStdout(opts Options, stdout io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := stdout
	closeFn := func() error { return nil }
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, rotator)
		closeFn = rotator.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		h = slog.NewJSONHandler(out, handlerOpts)
	case "", "text":
		h = slog.NewTextHandler(out, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	return slog.New(h), closeFn, nil
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
	return level, nil
}
