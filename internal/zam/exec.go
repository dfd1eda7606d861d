package zam

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"zam/internal/compile"
	"zam/internal/frame"
	"zam/internal/interp"
	"zam/internal/trace"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// activation is one run of a body. It survives suspension.
type activation struct {
	id     uuid.UUID
	f      *frame.Frame
	resume *Resumption
	// retest is set while a resume has not yet passed the pending wait.
	retest bool
}

// Exec runs the body from the start on f, which the caller has set up.
// If the result is suspended the returned resumption owns f from then on.
func (m *Machine) Exec(f *frame.Frame) (interp.Result, error) {
	if f.Size() < m.layout.Size() {
		return interp.Result{}, m.fault(-1, ErrFrameSize, nil, "frame has %d slots, body needs %d", f.Size(), m.layout.Size())
	}
	act := &activation{id: uuid.New(), f: f}
	span := trace.Begin(m.tracer, trace.ScopeBody, "exec", 0, trace.Body(m.name), trace.Act(act.id))
	res, err := m.run(act, 0)
	detail := res.Flow.String()
	if err != nil {
		detail = err.Error()
	}
	span.End(detail)
	return res, err
}

// Call runs the body on a fresh frame. An activation that suspends is
// handed to the environment and the call yields void.
func (m *Machine) Call(args []val.Value) (val.Value, error) {
	scope, err := frame.Enter(m.NewFrame(), args)
	if err != nil {
		return val.Void, fmt.Errorf("zam: call %s: %w", m.name, err)
	}
	res, err := m.Exec(scope.Frame())
	if err != nil {
		scope.Close()
		return val.Void, err
	}
	if res.Suspended() {
		scope.Keep()
		if r, ok := res.Resume.(*Resumption); ok {
			m.env.Park(r)
		}
		return val.Void, nil
	}
	scope.Close()
	return res.Val, nil
}

// run dispatches instructions from pc until the body returns, falls off
// the end, suspends or faults.
func (m *Machine) run(act *activation, pc int) (interp.Result, error) {
	f := act.f
	debug := m.tracer.Enabled() && m.tracer.Level().ShouldEmit(trace.ScopeInstr)
	for pc < len(m.code) {
		in := &m.code[pc]
		if debug {
			trace.Point(m.tracer, trace.ScopeInstr, in.Op.String(), m.instrString(in),
				trace.Act(act.id), trace.PC(pc))
		}
		next := pc + 1
		switch in.Op {
		case OpNop:

		case OpError:
			return interp.Result{}, m.fault(pc, ErrCompileFailed, nil, "%s", m.errors[in.Aux].Message)

		case OpGoto:
			next = in.A

		case OpBranchFalse, OpBranchTrue:
			b, err := f.Get(in.A).AsBool()
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "branch condition")
			}
			if b == (in.Op == OpBranchTrue) {
				next = in.B
			}

		case OpAssign:
			m.set(f, in.A, val.Retain(m.arg(f, in, in.B)))

		case OpBinary:
			v, err := val.Binary(val.Op(in.Aux), m.arg(f, in, in.B), m.arg(f, in, in.C)) //nolint:gosec // op codes are emitted from val.Op
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrArith, err, "")
			}
			m.set(f, in.A, v)

		case OpUnary:
			v, err := val.Unary(val.Op(in.Aux), m.arg(f, in, in.B)) //nolint:gosec // op codes are emitted from val.Op
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrArith, err, "")
			}
			m.set(f, in.A, v)

		case OpIn:
			ok, err := val.In(m.arg(f, in, in.B), f.Get(in.C))
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "")
			}
			m.set(f, in.A, val.Bool(ok))

		case OpIndex:
			v, err := val.Index(f.Get(in.B), m.vals(f, m.operands[in.Aux])...)
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrOutOfBounds, err, "")
			}
			m.set(f, in.A, val.Retain(v))

		case OpField:
			v, err := f.Get(in.B).Field(in.C)
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrOutOfBounds, err, "")
			}
			m.set(f, in.A, val.Retain(v))

		case OpCoerce:
			v, err := interp.Coerce(tree.CoerceKind(in.C), m.arg(f, in, in.B), m.types[in.Aux]) //nolint:gosec // kinds are emitted from tree.CoerceKind
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "")
			}
			m.set(f, in.A, v)

		case OpLoadGlobal:
			m.load(f, in.A, m.layout.globals[in.Aux])

		case OpStoreGlobal:
			m.store(f, in.A, m.layout.globals[in.Aux])

		case OpCall:
			site := &m.calls[in.Aux]
			r, err := site.fn.Call(m.vals(f, site.args))
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrCall, err, "call %s", site.fn.Name())
			}
			if site.coerce != nil {
				c, cerr := val.Coerce(r, site.coerce.Tag)
				if cerr != nil {
					val.Release(r)
					return interp.Result{}, m.fault(pc, ErrTypeMismatch, cerr, "result of %s", site.fn.Name())
				}
				r = c
			}
			if in.A == NoSlot {
				val.Release(r)
			} else {
				m.set(f, in.A, r)
			}
			m.invalidate(f)

		case OpEvent:
			site := &m.events[in.Aux]
			if err := m.env.Emit(site.handler, m.vals(f, site.args)); err != nil {
				return interp.Result{}, m.fault(pc, ErrCall, err, "event %s", site.handler.Name)
			}
			m.invalidate(f)

		case OpSchedule:
			if err := m.schedule(f, &m.scheds[in.Aux]); err != nil {
				code := ErrCall
				if errors.Is(err, ErrNotSupported) {
					code = ErrNoScheduler
				}
				return interp.Result{}, m.fault(pc, code, err, "schedule %s", m.scheds[in.Aux].handler.Name)
			}
			m.invalidate(f)

		case OpInitRecord:
			m.set(f, in.A, val.NewRecord(m.inits[in.Aux].t))

		case OpInitVector:
			m.set(f, in.A, val.NewVector(m.inits[in.Aux].t))

		case OpInitTable:
			site := m.inits[in.Aux]
			m.set(f, in.A, val.NewTable(site.t, site.attrs, m.env.Now))

		case OpAssignVecElem:
			ops := m.operands[in.Aux]
			idx, ok := m.operandVal(f, ops[0]).AsInt()
			if !ok || idx < 0 || idx > math.MaxInt32 {
				return interp.Result{}, m.fault(pc, ErrOutOfBounds, nil, "bad vector index %s", m.operandVal(f, ops[0]))
			}
			if err := f.Get(in.A).SetElem(int(idx), m.operandVal(f, ops[1])); err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "")
			}

		case OpInterpret:
			if in.C != 0 {
				m.flush(f)
			}
			v, err := interp.Eval(frameEnv{m: m, f: f}, m.exprs[in.Aux].e)
			if in.C != 0 {
				m.flush(f)
				m.invalidate(f)
			}
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "interpreted expression")
			}
			if in.A == NoSlot {
				val.Release(v)
			} else {
				m.set(f, in.A, v)
			}

		case OpBranchSwitch:
			tbl := m.switches[in.Aux]
			if c, ok := tbl.Lookup(Category(in.C), f.Get(in.A)); ok { //nolint:gosec // categories are emitted from Category
				next = tbl.Targets[c]
			} else {
				next = in.B
			}

		case OpBranchType:
			if val.Matches(f.Get(in.A), m.types[in.Aux]) {
				next = in.B
			}

		case OpInitIter:
			it, err := newIter(iterKind(in.C), f.Get(in.B)) //nolint:gosec // kinds are emitted from iterKind
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "")
			}
			m.set(f, in.A, it)

		case OpStepIter:
			more, err := m.step(f, in.A, &m.iters[in.Aux])
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "")
			}
			if !more {
				next = in.B
			}

		case OpEndLoop:
			f.Clear(in.A)

		case OpWait:
			b, err := f.Get(in.A).AsBool()
			if err != nil {
				return interp.Result{}, m.fault(pc, ErrTypeMismatch, err, "wait condition")
			}
			if b {
				act.retest = false
				break
			}
			var timeout time.Duration
			if in.B != NoSlot {
				secs, ok := f.Get(in.B).AsFloat()
				if !ok {
					return interp.Result{}, m.fault(pc, ErrTypeMismatch, nil, "timeout is %s", f.Get(in.B).Tag)
				}
				timeout = seconds(secs)
			}
			return m.suspend(act, in, timeout), nil

		case OpReturn:
			return interp.Result{Val: val.Retain(m.arg(f, in, in.A)), Flow: interp.FlowReturn}, nil

		default:
			return interp.Result{}, m.fault(pc, ErrUnimplemented, nil, "op %d", in.Op)
		}
		pc = next
	}
	return interp.Result{Flow: interp.FlowFallThrough}, nil
}

// suspend parks the activation at a wait whose condition is false.
func (m *Machine) suspend(act *activation, in *Instr, timeout time.Duration) interp.Result {
	f := act.f
	m.flush(f)
	m.invalidate(f)
	f.Adopt()
	r := act.resume
	if r == nil {
		r = m.newResumption(act)
		act.resume = r
	}
	again := act.retest && r.PC() == in.Aux
	act.retest = false
	r.park(in.Aux, in.C, timeout, in.B != NoSlot, again)
	trace.Point(m.tracer, trace.ScopeBody, "suspend", m.name, trace.Act(act.id), trace.PC(in.Pos))
	return interp.Result{Flow: interp.FlowSuspend, Resume: r}
}

func (m *Machine) arg(f *frame.Frame, in *Instr, field int) val.Value {
	if field == LitOperand {
		return in.Lit
	}
	return f.Get(field)
}

func (m *Machine) operandVal(f *frame.Frame, op compile.Operand) val.Value {
	if op.IsLit {
		return op.Lit
	}
	return f.Get(op.Slot)
}

// vals returns borrowed operand values.
func (m *Machine) vals(f *frame.Frame, ops []compile.Operand) []val.Value {
	out := make([]val.Value, len(ops))
	for i, op := range ops {
		out[i] = m.operandVal(f, op)
	}
	return out
}

// set stores an owned value, marking a cached global dirty.
func (m *Machine) set(f *frame.Frame, s int, v val.Value) {
	f.Set(s, v)
	if m.layout.isGlobalSlot(s) {
		f.Slots[s].Cache = frame.Dirty
	}
}

func (m *Machine) load(f *frame.Frame, s int, g *tree.ID) {
	if f.Slots[s].Cache != frame.Stale {
		return
	}
	f.Set(s, m.env.Globals().Load(g))
	f.Slots[s].Cache = frame.Clean
}

func (m *Machine) store(f *frame.Frame, s int, g *tree.ID) {
	if f.Slots[s].Cache != frame.Dirty {
		return
	}
	m.env.Globals().Store(g, val.Retain(f.Get(s)))
	f.Slots[s].Cache = frame.Clean
}

// flush writes back every dirty cached global.
func (m *Machine) flush(f *frame.Frame) {
	for _, g := range m.layout.globals {
		m.store(f, m.layout.slots[g], g)
	}
}

// invalidate forgets clean cached globals after something else may have
// changed the store.
func (m *Machine) invalidate(f *frame.Frame) {
	for _, g := range m.layout.globals {
		s := &f.Slots[m.layout.slots[g]]
		if s.Cache == frame.Clean {
			s.Cache = frame.Stale
		}
	}
}

func (m *Machine) schedule(f *frame.Frame, site *schedSite) error {
	when := m.operandVal(f, site.when)
	secs, ok := when.AsFloat()
	if !ok {
		return fmt.Errorf("zam: schedule time is %s", when.Tag)
	}
	var at time.Time
	if site.interval || when.Tag == types.TagInterval {
		at = m.env.Now().Add(seconds(secs))
	} else {
		whole, frac := math.Modf(secs)
		at = time.Unix(int64(whole), int64(frac*1e9))
	}
	return m.env.Schedule(at, site.handler, m.vals(f, site.args))
}

// seconds converts an interval to a duration. Negative and NaN intervals
// are zero and intervals past the duration range saturate.
func seconds(secs float64) time.Duration {
	switch {
	case math.IsNaN(secs) || secs <= 0:
		return 0
	case secs >= float64(math.MaxInt64)/float64(time.Second):
		return math.MaxInt64
	}
	return time.Duration(secs * float64(time.Second))
}

func newIter(kind iterKind, over val.Value) (val.Value, error) {
	switch kind {
	case iterTable:
		return val.NewTableIter(over)
	case iterVector:
		return val.NewVectorIter(over)
	default:
		return val.NewStringIter(over)
	}
}

// step advances the iterator in slot info and assigns the loop
// variables. It reports false once the iterator is exhausted, leaving the
// variables untouched.
func (m *Machine) step(f *frame.Frame, info int, site *iterSite) (bool, error) {
	it := f.Get(info)
	if it.Obj == nil {
		return false, fmt.Errorf("zam: loop iterator missing")
	}
	switch it := it.Obj.Opaque.(type) {
	case *val.TableIter:
		key, v, ok := it.Next()
		if !ok {
			return false, nil
		}
		for i, s := range site.vars {
			if i < len(key) {
				m.set(f, s, val.Retain(key[i]))
			}
		}
		if site.value != NoSlot {
			m.set(f, site.value, val.Retain(v))
		}
	case *val.VectorIter:
		idx, v, ok := it.Next()
		if !ok {
			return false, nil
		}
		iv, err := m.indexValue(site.vars[0], idx)
		if err != nil {
			return false, err
		}
		m.set(f, site.vars[0], iv)
		if site.value != NoSlot {
			m.set(f, site.value, val.Retain(v))
		}
	case *val.StringIter:
		seg, _, ok := it.Next()
		if !ok {
			return false, nil
		}
		m.set(f, site.vars[0], val.Str(seg))
	default:
		return false, fmt.Errorf("zam: slot %d holds no iterator", info)
	}
	return true, nil
}

// indexValue converts a vector index to the loop variable's type.
func (m *Machine) indexValue(slot, idx int) (val.Value, error) {
	c := val.Count(uint64(idx)) //nolint:gosec // vector indexes are non-negative
	d, _ := m.layout.Denizen(slot)
	if d.Tag.Arithmetic() {
		return val.Coerce(c, d.Tag)
	}
	return c, nil
}

// frameEnv lets the tree evaluator read and write the frame.
type frameEnv struct {
	m *Machine
	f *frame.Frame
}

func (e frameEnv) Lookup(id *tree.ID) (val.Value, error) {
	s, ok := e.m.layout.Lookup(id)
	if !ok {
		return val.Void, fmt.Errorf("zam: %s has no slot", id)
	}
	if id.Global {
		e.m.load(e.f, s, id)
	}
	return e.f.Get(s), nil
}

func (e frameEnv) Assign(id *tree.ID, v val.Value) error {
	s, ok := e.m.layout.Lookup(id)
	if !ok {
		val.Release(v)
		return fmt.Errorf("zam: %s has no slot", id)
	}
	e.m.set(e.f, s, v)
	return nil
}

func (e frameEnv) Now() time.Time { return e.m.env.Now() }
