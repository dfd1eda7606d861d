package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers whole-program operations.
	ScopeDriver Scope = iota + 1
	// ScopeBody covers one function body: compile, activation, resume.
	ScopeBody
	// ScopeConstruct covers lowering of single constructs and scheduler
	// bookkeeping.
	ScopeConstruct
	// ScopeInstr covers single executed instructions.
	ScopeInstr
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeBody:
		return "body"
	case ScopeConstruct:
		return "construct"
	case ScopeInstr:
		return "instr"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // assigned by the tracer that stores the event
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // e.g. "compile", "when", "call"
	Detail   string
	Attrs    []Attr
}

// Attr returns the value of the first attribute named key.
func (ev *Event) Attr(key string) (string, bool) {
	for _, a := range ev.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
