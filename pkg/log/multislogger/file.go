package multislogger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileHandler returns a JSON handler writing to a size rotated log
// file. The closer flushes and closes the file.
func FileHandler(path string, level slog.Leveler) (slog.Handler, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		Compress:   false,
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), w, nil
}

// NewCLI returns a multislogger for command line use: text to stderr,
// plus a rotated JSON file when path is set. Close the returned closer
// on exit.
func NewCLI(stderr io.Writer, path string, debug bool) (*MultiSlogger, io.Closer, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	ms := New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if path == "" {
		return ms, closerFunc(func() error { return nil }), nil
	}

	fh, fileCloser, err := FileHandler(path, slog.LevelDebug)
	if err != nil {
		return nil, nil, err
	}
	ms.AddHandler(fh)

	return ms, fileCloser, nil
}
