// Package logger builds the slog handlers used across the pipeline: a
// console handler plus the per-run and shared incremental log files.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds the logger configuration.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`

	// LogDir is where run-specific and incremental log files live.
	LogDir string `mapstructure:"log_dir"`
}

// NewLogger initializes a new slog logger based on the provided configuration.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	var handler slog.Handler

	if output == nil {
		switch cfg.Output {
		case "stdout":
			output = os.Stdout
		case "stderr":
			output = os.Stderr
		default:
			output = os.Stdout
		}
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = new(slog.Level)
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level: level,
		})
	case "text":
		fallthrough
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// RunLogFiles opens the run-specific log file plus the shared incremental
// logs, and returns a logger that writes to all of them alongside the given
// base writer. The returned close function flushes and closes the files.
func RunLogFiles(cfg Config, runID string, base io.Writer) (*slog.Logger, func(), error) {
	dir := cfg.LogDir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	}

	runFile, err := open(runID + ".log")
	if err != nil {
		return nil, nil, fmt.Errorf("open run log: %w", err)
	}
	incFile, err := open("incremental.log")
	if err != nil {
		_ = runFile.Close()
		return nil, nil, fmt.Errorf("open incremental log: %w", err)
	}
	errFile, err := open("incremental.error.log")
	if err != nil {
		_ = runFile.Close()
		_ = incFile.Close()
		return nil, nil, fmt.Errorf("open incremental error log: %w", err)
	}

	writers := []io.Writer{runFile, incFile}
	if base != nil {
		writers = append(writers, base)
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = new(slog.Level)
	}

	handler := newTeeHandler(
		slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level}),
		slog.NewTextHandler(errFile, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	closeAll := func() {
		_ = runFile.Close()
		_ = incFile.Close()
		_ = errFile.Close()
	}
	return slog.New(handler), closeAll, nil
}
