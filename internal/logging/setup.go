package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls how the CLI's root logger is assembled. It is the only
// point where the ambient logging stack touches flags/env, keeping every
// other package ignorant of configuration sources (spec §1 core/CLI
// boundary).
type Options struct {
	Debug   bool
	LogFile string // empty disables the rotating file sink
}

// NewRootLogger builds the process-wide MultiSlogger: a stderr handler
// (JSON, leveled by Debug) plus, when LogFile is set, a second JSON handler
// backed by a lumberjack rotating writer.
func NewRootLogger(opts Options) *MultiSlogger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	ms := New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if opts.LogFile != "" {
		var w io.Writer = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		ms.AddHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return ms
}
