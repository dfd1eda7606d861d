package trace

import (
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 { return globalSpans.Add(1) }

func enabled(t Tracer, scope Scope) bool {
	return t != nil && t.Enabled() && t.Level().ShouldEmit(scope)
}

// Span tracks one operation from Begin to End. Attributes given to Begin
// are repeated on the end event so either line stands on its own.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	attrs   []Attr
}

// Begin emits a span-begin event and returns the span. A disabled tracer
// or a scope below the tracer's level yields an inert span.
func Begin(t Tracer, scope Scope, name string, parent uint64, attrs ...Attr) *Span {
	if !enabled(t, scope) {
		return &Span{}
	}
	s := &Span{
		tracer:  t,
		id:      NextSpanID(),
		parent:  parent,
		scope:   scope,
		name:    name,
		started: time.Now(),
		attrs:   attrs,
	}
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Attrs:    s.attrs,
	}
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.tracer.Enabled()
}

// With adds attributes to the end event.
func (s *Span) With(attrs ...Attr) *Span {
	if s.live() {
		s.attrs = append(s.attrs[:len(s.attrs):len(s.attrs)], attrs...)
	}
	return s
}

// Child begins a span under s in the same tracer.
func (s *Span) Child(scope Scope, name string, attrs ...Attr) *Span {
	if !s.live() {
		return &Span{}
	}
	return Begin(s.tracer, scope, name, s.id, attrs...)
}

// End emits the span-end event and returns the elapsed time.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	now := time.Now()
	s.tracer.Emit(s.event(KindSpanEnd, now, detail))
	return now.Sub(s.started)
}

// ID returns the span ID, 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string, attrs ...Attr) {
	if !enabled(t, scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Name:   name,
		Detail: detail,
		Attrs:  attrs,
	})
}
