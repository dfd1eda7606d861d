package zam

import (
	"errors"
	"fmt"
	"time"

	"zam/internal/globals"
	"zam/internal/tree"
	"zam/internal/val"
)

// ErrNotSupported is returned by environments lacking a facility.
var ErrNotSupported = errors.New("zam: not supported by environment")

// Env is what a running body sees of the outside world. Argument slices
// are borrowed; implementations retain what they keep.
type Env interface {
	Globals() *globals.Store
	Now() time.Time
	// Emit queues an event for its handlers.
	Emit(h *tree.EventHandler, args []val.Value) error
	// Schedule queues an event to be raised at the given time.
	Schedule(at time.Time, h *tree.EventHandler, args []val.Value) error
	// Park takes over a suspended activation started by a call.
	Park(r *Resumption)
}

// LocalEnv runs event handlers synchronously and keeps parked
// activations in a slice. It has no timers.
type LocalEnv struct {
	Store  *globals.Store
	Clock  func() time.Time
	Parked []*Resumption
}

// NewLocalEnv returns an environment with a fresh global store.
func NewLocalEnv() *LocalEnv {
	return &LocalEnv{Store: globals.NewStore(), Clock: time.Now}
}

func (e *LocalEnv) Globals() *globals.Store { return e.Store }

func (e *LocalEnv) Now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

func (e *LocalEnv) Emit(h *tree.EventHandler, args []val.Value) error {
	for _, c := range h.Handlers {
		r, err := c.Call(args)
		if err != nil {
			return fmt.Errorf("zam: event %s: %w", h.Name, err)
		}
		val.Release(r)
	}
	return nil
}

func (e *LocalEnv) Schedule(time.Time, *tree.EventHandler, []val.Value) error {
	return ErrNotSupported
}

func (e *LocalEnv) Park(r *Resumption) {
	e.Parked = append(e.Parked, r)
}
