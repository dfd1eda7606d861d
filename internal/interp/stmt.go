// Package interp defines the execution contract shared by every runnable
// body, compiled or not, and the tree-walking expression evaluator used
// where compiled code falls back to interpretation.
package interp

import (
	"time"

	"zam/internal/frame"
	"zam/internal/val"
)

// Flow tells the caller how a statement finished.
type Flow uint8

const (
	// FlowFallThrough means execution ran off the end of the body.
	FlowFallThrough Flow = iota
	// FlowReturn means an explicit return; Result.Val holds the value.
	FlowReturn
	// FlowSuspend means the body is parked at a wait; Result.Resume
	// continues it.
	FlowSuspend
	// FlowBreak and FlowNext escape a loop or switch body. They never
	// leave a compiled body.
	FlowBreak
	FlowNext
)

func (f Flow) String() string {
	switch f {
	case FlowFallThrough:
		return "fallthrough"
	case FlowReturn:
		return "return"
	case FlowSuspend:
		return "suspend"
	case FlowBreak:
		return "break"
	case FlowNext:
		return "next"
	default:
		return "flow?"
	}
}

// Result is the outcome of executing a statement.
type Result struct {
	Val    val.Value
	Flow   Flow
	Resume Continuation
}

// Suspended reports whether the statement parked.
func (r Result) Suspended() bool { return r.Flow == FlowSuspend }

// Stmt is anything that runs against a frame.
type Stmt interface {
	Exec(f *frame.Frame) (Result, error)
}

// Continuation resumes a suspended body. Exactly one of Timeout or Cancel
// ends it unless a Resume runs it to completion first.
type Continuation interface {
	// Resume re-evaluates the wait condition. If it still fails the
	// result is another suspension with the same continuation.
	Resume() (Result, error)
	// Timeout runs the timeout body, if any, and completes.
	Timeout() (Result, error)
	// Cancel releases the suspended frame without running anything.
	Cancel()
	// Deadline returns the wait's timeout interval, if it has one.
	Deadline() (time.Duration, bool)
}
