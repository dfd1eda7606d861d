package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the last N events in memory.
type RingTracer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	head     int
	full     bool
	level    Level
}

// NewRingTracer creates a RingTracer holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{
		events:   make([]Event, capacity),
		capacity: capacity,
		level:    level,
	}
}

// Emit stores a copy of ev, overwriting the oldest when full.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *ev
	stored.Seq = NextSeq()
	t.events[t.head] = stored
	t.head = (t.head + 1) % t.capacity
	if t.head == 0 {
		t.full = true
	}
}

// Snapshot returns the stored events oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.head]...)
	}
	out := make([]Event, 0, t.capacity)
	out = append(out, t.events[t.head:]...)
	return append(out, t.events[:t.head]...)
}

// Activation returns the stored events of one activation, oldest first.
// id is the value of the act attribute.
func (t *RingTracer) Activation(id string) []Event {
	var out []Event
	for _, ev := range t.Snapshot() {
		if act, ok := ev.Attr("act"); ok && act == id {
			out = append(out, ev)
		}
	}
	return out
}

// Body returns the stored events of a function body: those naming it
// and every event of the activations they belong to. Resumes and
// timeouts of a suspended activation only carry its id, so they are
// found through the activation.
func (t *RingTracer) Body(name string) []Event {
	events := t.Snapshot()
	acts := make(map[string]bool)
	for i := range events {
		if b, ok := events[i].Attr("body"); !ok || b != name {
			continue
		}
		if act, ok := events[i].Attr("act"); ok {
			acts[act] = true
		}
	}
	var out []Event
	for _, ev := range events {
		b, named := ev.Attr("body")
		act, _ := ev.Attr("act")
		if (named && b == name) || acts[act] {
			out = append(out, ev)
		}
	}
	return out
}

// Dump writes the stored events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	return DumpEvents(w, t.Snapshot(), format)
}

// DumpEvents writes events to w in the given format.
func DumpEvents(w io.Writer, events []Event, format Format) error {
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
