// Package logger provides the structured slog logger used across the
// notifier. All logs are written in JSON format, either to stderr or to a
// size-rotated log file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 50
	maxBackups = 5
	maxAgeDays = 28
)

// New creates a JSON slog.Logger. With an empty logFile it writes to stderr;
// otherwise it writes to logFile, rotating it by size. The returned closer
// releases the file and must be called on shutdown.
func New(logFile string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if logFile == "" {
		return NewWithWriter(os.Stderr, level), io.NopCloser(nil), nil
	}

	dir := filepath.Dir(logFile)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %q: %w", dir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return NewWithWriter(rotator, level), rotator, nil
}

// NewWithWriter creates a JSON slog.Logger writing to w.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
