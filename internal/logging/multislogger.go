// Package logging provides the ambient structured-logging shape shared by
// every subsystem: a fan-out *slog.Logger that can have handlers attached
// at runtime, modeled on kolide-launcher's
// pkg/log/multislogger.
package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ctxKey is unexported so only this package can mint context values.
type ctxKey struct{}

// MultiSlogger owns a fan-out slog.Handler that dispatches every record to
// every attached handler. Handlers can be added after construction (e.g.
// once --log-file is parsed) without losing records logged beforehand.
type MultiSlogger struct {
	Logger *slog.Logger

	mu       sync.Mutex
	handlers []slog.Handler
}

// New builds a MultiSlogger fanning out to the given handlers. With no
// handlers, logging is a silent no-op (matches multislogger.New()'s
// zero-value behavior in the teacher).
func New(handlers ...slog.Handler) *MultiSlogger {
	ms := &MultiSlogger{handlers: append([]slog.Handler{}, handlers...)}
	ms.Logger = slog.New(&fanoutHandler{ms: ms})
	return ms
}

// AddHandler attaches another handler to the fan-out set.
func (ms *MultiSlogger) AddHandler(h slog.Handler) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers = append(ms.handlers, h)
}

type fanoutHandler struct {
	ms *MultiSlogger
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	f.ms.mu.Lock()
	defer f.ms.mu.Unlock()
	for _, h := range f.ms.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	f.ms.mu.Lock()
	handlers := append([]slog.Handler{}, f.ms.handlers...)
	f.ms.mu.Unlock()

	var firstErr error
	for _, h := range handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	f.ms.mu.Lock()
	defer f.ms.mu.Unlock()
	next := &MultiSlogger{handlers: make([]slog.Handler, len(f.ms.handlers))}
	for i, h := range f.ms.handlers {
		next.handlers[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{ms: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	f.ms.mu.Lock()
	defer f.ms.mu.Unlock()
	next := &MultiSlogger{handlers: make([]slog.Handler, len(f.ms.handlers))}
	for i, h := range f.ms.handlers {
		next.handlers[i] = h.WithGroup(name)
	}
	return &fanoutHandler{ms: next}
}

// NewContext returns a child of ctx carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx, or slog.Default() if none
// was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
