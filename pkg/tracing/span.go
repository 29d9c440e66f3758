// Package tracing times the stages of a request. Spans nest through
// context.Context; the root span renders its whole tree as one structured
// slog record when logged.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span times one stage of a request. A Span is safe for concurrent use.
type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attrs    []slog.Attr
	children []*Span
}

// StartSpan opens a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and only visible through the returned context.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{name: name, start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		child.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// TraceID is inherited from the root span; detached spans have none.
func (s *Span) TraceID() string { return s.traceID }

// End fixes the span's duration; later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
}

// Duration is the elapsed time so far for an open span.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.duration
	}
	return time.Since(s.start)
}

// SetAttr records a key/value rendered alongside the span's timing.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Children returns a copy of the spans opened under s, in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// LogValue renders the span and its children as nested groups.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, len(s.attrs)+1+len(s.children))
	attrs = append(attrs, slog.Float64("ms", float64(s.durationLocked().Microseconds())/1000))
	attrs = append(attrs, s.attrs...)
	s.mu.Unlock()

	for _, c := range s.Children() {
		attrs = append(attrs, slog.Any(c.name, c))
	}
	return slog.GroupValue(attrs...)
}

func (s *Span) durationLocked() time.Duration {
	if s.ended {
		return s.duration
	}
	return time.Since(s.start)
}

// Log emits the span tree as a single debug record.
func (s *Span) Log(logger *slog.Logger) {
	logger.Debug("trace", "trace_id", s.TraceID(), s.name, s)
}
