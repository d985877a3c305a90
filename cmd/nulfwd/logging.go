package main

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds a text slog logger writing to stderr, or to a
// lumberjack-rotated file when cfg.File is set. The returned closer releases
// the file.
func newLogger(cfg LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		w = lj
		closer = lj
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

// setupLogging installs the configured logger as the slog default and returns
// a function that restores the previous default and closes the log file.
func setupLogging(cfg LogConfig, stderr io.Writer) (func(), error) {
	logger, closer, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}
	prev := slog.Default()
	slog.SetDefault(logger)
	return func() {
		slog.SetDefault(prev)
		_ = closer.Close()
	}, nil
}
