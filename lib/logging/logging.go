// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Options selects the handler and level.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string

	// Format is auto, text or json. Auto (or empty) uses text when the
	// output is a terminal and JSON otherwise.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a logger from options. When stderr is a terminal the text
// handler keeps it readable; under a supervisor (systemd, runit, a
// container) the JSON handler keeps it machine-parseable.
func New(options Options) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	output := options.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	switch options.Format {
	case "", "auto":
		if isTerminal(output) {
			return slog.New(slog.NewTextHandler(output, handlerOptions)), nil
		}
		return slog.New(slog.NewJSONHandler(output, handlerOptions)), nil
	case "text":
		return slog.New(slog.NewTextHandler(output, handlerOptions)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(output, handlerOptions)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want auto, text or json)", options.Format)
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func isTerminal(output io.Writer) bool {
	file, ok := output.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
