// Package frame implements the activation record compiled bodies run in:
// a fixed array of tagged slots that track whether they own the value
// they hold.
package frame

import (
	"fmt"

	"zam/internal/types"
	"zam/internal/val"
)

// Ownership records whether a slot holds a reference it must release.
type Ownership uint8

const (
	// Borrowed slots point at a value someone else keeps alive.
	Borrowed Ownership = iota
	// Owned slots release their value before overwrite and on teardown.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Cache is the state of a slot that caches a global.
type Cache uint8

const (
	// Stale slots must be reloaded from the global store before use.
	Stale Cache = iota
	// Clean slots hold the store's current value.
	Clean
	// Dirty slots hold a value the store has not seen yet.
	Dirty
)

func (c Cache) String() string {
	switch c {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	default:
		return "stale"
	}
}

// Slot is one frame cell.
type Slot struct {
	V     val.Value
	Own   Ownership
	Tag   types.Tag // declared tag; managed tags get cleared on setup
	Name  string    // debug name
	Cache Cache     // only meaningful for slots caching a global
}

// Frame is an activation record.
type Frame struct {
	Slots  []Slot
	params int
	torn   bool
}

// New allocates a frame with n slots.
func New(n int) *Frame {
	return &Frame{Slots: make([]Slot, n)}
}

// Size returns the number of slots.
func (f *Frame) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Slots)
}

// Declare records the static tag and debug name of slot i.
func (f *Frame) Declare(i int, name string, tag types.Tag) {
	f.Slots[i].Name = name
	f.Slots[i].Tag = tag
}

// Setup binds args to the leading slots and clears every managed
// non-parameter slot. Arguments are borrowed from the caller.
func (f *Frame) Setup(args []val.Value) error {
	if len(args) > len(f.Slots) {
		return fmt.Errorf("frame: %d arguments for %d slots", len(args), len(f.Slots))
	}
	f.torn = false
	f.params = len(args)
	for i := range f.Slots {
		f.Slots[i].Cache = Stale
	}
	for i, a := range args {
		f.release(i)
		f.Slots[i].V = a
		f.Slots[i].Own = Borrowed
	}
	for i := len(args); i < len(f.Slots); i++ {
		if f.Slots[i].Tag.Managed() || f.Slots[i].V.Managed() {
			f.release(i)
			f.Slots[i].V = val.Void
		}
	}
	return nil
}

// Params returns how many leading slots hold arguments.
func (f *Frame) Params() int { return f.params }

// Get returns the value in slot i without transferring a reference.
func (f *Frame) Get(i int) val.Value {
	return f.Slots[i].V
}

// Set stores v in slot i, consuming the caller's reference to it. The
// previous value is released first if the slot owned it.
func (f *Frame) Set(i int, v val.Value) {
	f.release(i)
	f.Slots[i].V = v
	f.Slots[i].Own = Owned
}

// Copy stores the value of slot src into dst, adding a reference.
func (f *Frame) Copy(dst, src int) {
	if dst == src {
		return
	}
	f.Set(dst, val.Retain(f.Slots[src].V))
}

// Take moves the value out of slot i. The caller receives an owned
// reference and the slot is left void.
func (f *Frame) Take(i int) val.Value {
	s := &f.Slots[i]
	v := s.V
	if s.Own == Borrowed {
		v = val.Retain(v)
	}
	s.V = val.Void
	s.Own = Borrowed
	return v
}

// Clear releases slot i and leaves it void.
func (f *Frame) Clear(i int) {
	f.release(i)
	f.Slots[i].V = val.Void
}

// Adopt turns every borrowed managed value into an owned one. A frame
// that outlives the call that set it up must adopt its arguments.
func (f *Frame) Adopt() {
	for i := range f.Slots {
		s := &f.Slots[i]
		if s.Own == Borrowed && s.V.Managed() {
			s.V = val.Retain(s.V)
			s.Own = Owned
		}
	}
}

// Teardown releases every owned slot in reverse order. Calling it again is
// a no-op.
func (f *Frame) Teardown() {
	if f == nil || f.torn {
		return
	}
	for i := len(f.Slots) - 1; i >= 0; i-- {
		f.release(i)
		f.Slots[i].V = val.Void
		f.Slots[i].Own = Borrowed
	}
	f.torn = true
}

// TornDown reports whether Teardown has run since the last Setup.
func (f *Frame) TornDown() bool { return f.torn }

func (f *Frame) release(i int) {
	s := &f.Slots[i]
	if s.Own == Owned {
		val.Release(s.V)
	}
	s.Own = Borrowed
}
