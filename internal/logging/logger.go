// Package logging mirrors compiler messages into slog and keeps them as diagnostics for the caller.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Diagnostic is one message logged during a run.
type Diagnostic struct {
	Level   slog.Level
	Message string
}

func (d Diagnostic) String() string {
	return d.Level.String() + " " + d.Message
}

type Logger struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
	slog        *slog.Logger
}

// New returns a Logger writing through base. A nil base uses slog.Default().
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	l := &Logger{}
	l.slog = slog.New(&recorder{logger: l, next: base.Handler()})
	return l
}

// Slog returns a slog.Logger whose records are also kept as diagnostics.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

func (l *Logger) Debug(message string, args ...any) {
	l.slog.Debug(message, args...)
}

func (l *Logger) Info(message string, args ...any) {
	l.slog.Info(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.slog.Warn(message, args...)
}

func (l *Logger) Error(message string, err error) {
	l.slog.Error(message, "error", err)
}

// Diagnostics returns everything logged so far, in order.
func (l *Logger) Diagnostics() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Diagnostic(nil), l.diagnostics...)
}

func (l *Logger) log(level slog.Level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.diagnostics = append(l.diagnostics, Diagnostic{Level: level, Message: message})
}

// recorder keeps every record regardless of the level next is enabled for.
type recorder struct {
	logger *Logger
	next   slog.Handler
	attrs  []slog.Attr
}

func (r *recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

func (r *recorder) Handle(ctx context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	write := func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range r.attrs {
		write(a)
	}
	rec.Attrs(write)
	r.logger.log(rec.Level, b.String())

	if !r.next.Enabled(ctx, rec.Level) {
		return nil
	}
	return r.next.Handle(ctx, rec)
}

func (r *recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recorder{
		logger: r.logger,
		next:   r.next.WithAttrs(attrs),
		attrs:  append(append([]slog.Attr(nil), r.attrs...), attrs...),
	}
}

func (r *recorder) WithGroup(name string) slog.Handler {
	return &recorder{logger: r.logger, next: r.next.WithGroup(name), attrs: r.attrs}
}
