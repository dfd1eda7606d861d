package zam

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zam/internal/frame"
	"zam/internal/interp"
	"zam/internal/trace"
)

// BodyID identifies a machine within an arena.
type BodyID int

// Arena owns compiled bodies. Resumptions refer to their machine through
// it rather than holding the machine directly.
type Arena struct {
	mu     sync.RWMutex
	bodies []*Machine
	names  map[string]BodyID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{names: make(map[string]BodyID)}
}

// Add registers m and returns its id. Adding a machine twice returns the
// same id.
func (a *Arena) Add(m *Machine) BodyID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m.arena == a {
		return m.id
	}
	id := BodyID(len(a.bodies))
	a.bodies = append(a.bodies, m)
	a.names[m.name] = id
	m.arena = a
	m.id = id
	return id
}

// Get returns the machine with the given id.
func (a *Arena) Get(id BodyID) (*Machine, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 0 || int(id) >= len(a.bodies) {
		return nil, false
	}
	return a.bodies[id], true
}

// Lookup returns the machine most recently added under name.
func (a *Arena) Lookup(name string) (*Machine, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.names[name]
	if !ok {
		return nil, false
	}
	return a.bodies[id], true
}

// Len returns the number of bodies.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bodies)
}

// Bodies returns the machines in id order.
func (a *Arena) Bodies() []*Machine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Machine, len(a.bodies))
	copy(out, a.bodies)
	return out
}

// State is the execution state of an activation.
type State uint8

const (
	StateFresh State = iota
	StateRunning
	StateSuspended
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Resumption is a suspended activation. It re-enters its machine at the
// stored position, on the frame it suspended with. Once the activation
// completes, times out or is cancelled the resumption is dead.
type Resumption struct {
	arena *Arena
	body  BodyID
	act   *activation

	mu         sync.Mutex
	state      State
	pc         int
	timeoutPC  int
	timeout    time.Duration
	hasTimeout bool
	timedOut   bool
	occurrence uint64
}

var _ interp.Continuation = (*Resumption)(nil)

func (m *Machine) newResumption(act *activation) *Resumption {
	a := m.ensureArena()
	return &Resumption{arena: a, body: m.id, act: act, state: StateRunning}
}

// ensureArena adds m to a private arena if it has none.
func (m *Machine) ensureArena() *Arena {
	m.arenaMu.Lock()
	defer m.arenaMu.Unlock()
	if m.arena == nil {
		NewArena().Add(m)
	}
	return m.arena
}

// park records where to continue and marks the resumption suspended.
// again is set when a resume found the same wait still false.
func (r *Resumption) park(pc, timeoutPC int, timeout time.Duration, hasTimeout, again bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !again {
		r.occurrence++
	}
	r.pc = pc
	r.timeoutPC = timeoutPC
	r.timeout = timeout
	r.hasTimeout = hasTimeout
	r.state = StateSuspended
}

// State returns the current state.
func (r *Resumption) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Body returns the id of the suspended body.
func (r *Resumption) Body() BodyID { return r.body }

// ActivationID identifies the suspended activation in traces.
func (r *Resumption) ActivationID() uuid.UUID { return r.act.id }

// PC returns the re-entry position.
func (r *Resumption) PC() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pc
}

// Occurrence counts the waits the activation has reached. It stays the
// same while a resume keeps finding the pending wait's condition false,
// and advances when the activation suspends anywhere else, including on
// the same wait in a later loop iteration.
func (r *Resumption) Occurrence() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occurrence
}

// TimedOut reports whether the timeout of the last wait fired.
func (r *Resumption) TimedOut() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timedOut
}

// Deadline returns the timeout of the pending wait, if it has one.
func (r *Resumption) Deadline() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateSuspended {
		return 0, false
	}
	return r.timeout, r.hasTimeout
}

// Frame returns the frame the activation runs on.
func (r *Resumption) Frame() *frame.Frame { return r.act.f }

// begin moves a suspended resumption to running and returns the machine
// and the position to continue at.
func (r *Resumption) begin(op string, timeout bool) (*Machine, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.arena.Get(r.body)
	if !ok {
		return nil, 0, &ExecError{Code: ErrBadResumption, Pos: -1, Msg: fmt.Sprintf("%s: body %d not in arena", op, r.body)}
	}
	if r.state != StateSuspended {
		return nil, 0, m.fault(-1, ErrBadResumption, nil, "%s of %s activation", op, r.state)
	}
	r.state = StateRunning
	if timeout {
		r.timedOut = true
		return m, r.timeoutPC, nil
	}
	return m, r.pc, nil
}

// Resume re-evaluates the wait condition and continues if it holds. If
// it does not the activation suspends again and the same resumption is
// returned.
func (r *Resumption) Resume() (interp.Result, error) {
	m, pc, err := r.begin("resume", false)
	if err != nil {
		return interp.Result{}, err
	}
	trace.Point(m.tracer, trace.ScopeBody, "resume", m.name, trace.Act(r.act.id), trace.PC(pc))
	r.act.retest = true
	return r.settle(m.run(r.act, pc))
}

// Timeout runs the timeout body of the pending wait. The wait itself is
// never re-entered.
func (r *Resumption) Timeout() (interp.Result, error) {
	m, pc, err := r.begin("timeout", true)
	if err != nil {
		return interp.Result{}, err
	}
	trace.Point(m.tracer, trace.ScopeBody, "timeout", m.name, trace.Act(r.act.id), trace.PC(pc))
	return r.settle(m.run(r.act, pc))
}

// Cancel abandons a suspended activation and releases its frame. It is a
// no-op in any other state.
func (r *Resumption) Cancel() {
	r.mu.Lock()
	if r.state != StateSuspended {
		r.mu.Unlock()
		return
	}
	r.state = StateCompleted
	r.mu.Unlock()
	if m, ok := r.arena.Get(r.body); ok {
		trace.Point(m.tracer, trace.ScopeBody, "cancel", m.name, trace.Act(r.act.id))
	}
	r.act.f.Teardown()
}

// Exec resumes the activation. f must be nil or the suspended frame.
func (r *Resumption) Exec(f *frame.Frame) (interp.Result, error) {
	if f != nil && f != r.act.f {
		return interp.Result{}, &ExecError{Code: ErrBadResumption, Pos: -1, Msg: "resumed on a foreign frame"}
	}
	return r.Resume()
}

func (r *Resumption) settle(res interp.Result, err error) (interp.Result, error) {
	if err == nil && res.Suspended() {
		return res, nil
	}
	r.mu.Lock()
	r.state = StateCompleted
	r.mu.Unlock()
	r.act.f.Teardown()
	return res, err
}
