// Package log adapts the console output of installer engines (ISCC, and
// the wix tools) into structured log lines.
package log

import (
	"bytes"
	"regexp"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// EngineLogAdapter is an io.Writer that logs each line an engine writes.
type EngineLogAdapter struct {
	logger       kitlog.Logger
	levelFunc    func(kitlog.Logger) kitlog.Logger
	extraKeyVals []interface{} // log.With expects an interface, not string
	partial      []byte
}

type Option func(*EngineLogAdapter)

func WithKeyValue(key, value string) Option {
	return func(l *EngineLogAdapter) {
		l.extraKeyVals = append(l.extraKeyVals, key, value)
	}
}

func WithLevelFunc(lf func(kitlog.Logger) kitlog.Logger) Option {
	return func(l *EngineLogAdapter) {
		l.levelFunc = lf
	}
}

// ISCC reports `Error on line 12 in C:\build\setup.iss: ...`, candle and
// light report `C:\build\Installer.wxs(12) : error CNDL0104 : ...`.
var (
	isccLineRegexp = regexp.MustCompile(`(?i)\bline (\d+)\b`)
	wixLineRegexp  = regexp.MustCompile(`\.wxs\((\d+)\)`)
	wixCodeRegexp  = regexp.MustCompile(`\b(?:error|warning) ([A-Z]+\d{4})\b`)
)

// extractScriptLine finds the descriptor line a message refers to.
func extractScriptLine(msg string) string {
	if m := wixLineRegexp.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := isccLineRegexp.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

func NewEngineLogAdapter(logger kitlog.Logger, opts ...Option) *EngineLogAdapter {
	l := &EngineLogAdapter{
		logger:       logger,
		levelFunc:    level.Debug,
		extraKeyVals: []interface{}{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *EngineLogAdapter) Write(p []byte) (int, error) {
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		line := l.partial[:i]
		l.partial = l.partial[i+1:]
		if err := l.logLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush logs a trailing line that had no newline.
func (l *EngineLogAdapter) Flush() error {
	line := l.partial
	l.partial = nil
	return l.logLine(line)
}

func (l *EngineLogAdapter) logLine(line []byte) error {
	msg := strings.TrimSpace(string(line))
	if msg == "" {
		return nil
	}

	lf := l.levelFunc
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "error") || strings.Contains(lower, ": error "):
		lf = level.Error
	case strings.HasPrefix(lower, "warning") || strings.Contains(lower, ": warning "):
		lf = level.Warn
	}

	kv := append([]interface{}{}, l.extraKeyVals...)
	kv = append(kv, "msg", msg)
	if line := extractScriptLine(msg); line != "" {
		kv = append(kv, "line", line)
	}
	if m := wixCodeRegexp.FindStringSubmatch(msg); m != nil {
		kv = append(kv, "code", m[1])
	}
	return lf(l.logger).Log(kv...)
}
