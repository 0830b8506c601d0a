// Package multislogger fans slog records out to several handlers. The
// install engine logs to stderr and, optionally, to a rotating file.
package multislogger

import (
	"context"
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

type contextKey string

func (c contextKey) String() string {
	return string(c)
}

const (
	// OperationKey names the engine operation, install or uninstall
	OperationKey    contextKey = "operation"
	ProductKey      contextKey = "product"
	SpanIdKey       contextKey = "span_id"
	TraceIdKey      contextKey = "trace_id"
	TraceSampledKey contextKey = "trace_sampled"
)

// ctxValueKeysToAdd is a list of context keys that will be
// added as log attributes
var ctxValueKeysToAdd = []contextKey{
	OperationKey,
	ProductKey,
	SpanIdKey,
	TraceIdKey,
	TraceSampledKey,
}

type MultiSlogger struct {
	*slog.Logger
	handlers []slog.Handler
}

// New creates a new multislogger if no handlers are passed in, it will
// create a logger that discards all logs
func New(h ...slog.Handler) *MultiSlogger {
	ms := new(MultiSlogger)

	if len(h) == 0 {
		// do not add the discard handler to the handlers so it will not be
		// included when a handler is added
		ms.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return ms
	}

	ms.AddHandler(h...)
	return ms
}

// AddHandler adds a handler to the multislogger. This builds a new
// slog.Logger under the hood, so attributes added with Logger.With are
// lost.
func (m *MultiSlogger) AddHandler(handler ...slog.Handler) {
	m.handlers = append(m.handlers, handler...)

	// slogmulti cannot add handlers to an existing Fanout
	m.Logger = slog.New(
		slogmulti.
			Pipe(slogmulti.NewHandleInlineMiddleware(utcTimeMiddleware)).
			Pipe(slogmulti.NewHandleInlineMiddleware(ctxValuesMiddleWare)).
			Handler(slogmulti.Fanout(m.handlers...)),
	)
}

func utcTimeMiddleware(ctx context.Context, record slog.Record, next func(context.Context, slog.Record) error) error {
	record.Time = record.Time.UTC()
	return next(ctx, record)
}

func ctxValuesMiddleWare(ctx context.Context, record slog.Record, next func(context.Context, slog.Record) error) error {
	for _, key := range ctxValueKeysToAdd {
		if v := ctx.Value(key); v != nil {
			record.AddAttrs(slog.Attr{
				Key:   key.String(),
				Value: slog.AnyValue(v),
			})
		}
	}

	return next(ctx, record)
}
