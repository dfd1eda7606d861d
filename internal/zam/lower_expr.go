package zam

import (
	"zam/internal/compile"
	"zam/internal/diag"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// readSlot returns the slot holding n's value, refreshing a cached global
// first unless only local assignments can reach this read.
func (m *Machine) readSlot(n *tree.NameExpr) int {
	s := m.layout.Slot(n.ID)
	if n.ID.Global && !m.cachedOnly(n) {
		m.emit(Instr{Op: OpLoadGlobal, A: s, Aux: m.layout.globalIndex(n.ID)})
	}
	return s
}

func (m *Machine) cachedOnly(n *tree.NameExpr) bool {
	if m.an.RD == nil {
		return false
	}
	st, ok := m.an.RD.Before(n)
	return ok && st.OnlyLocal(n.ID)
}

// operand returns e as an instruction operand.
func (m *Machine) operand(e tree.Expr) compile.Operand {
	switch e := e.(type) {
	case *tree.NameExpr:
		return compile.Operand{Slot: m.readSlot(e)}
	case *tree.ConstExpr:
		if !e.Val.Managed() {
			return compile.Operand{Lit: e.Val, IsLit: true}
		}
	}
	r := m.layout.Register(tagOf(e.Type()))
	m.exprInto(r, e)
	return compile.Operand{Slot: r}
}

// slotOf returns a slot holding e's value.
func (m *Machine) slotOf(e tree.Expr) int {
	op := m.operand(e)
	if !op.IsLit {
		return op.Slot
	}
	r := m.layout.Register(op.Lit.Tag)
	m.emit(Instr{Op: OpAssign, A: r, B: LitOperand, Lit: op.Lit})
	return r
}

// setOperand fills field k of in from op. Only one field per instruction
// may be literal; later literals are moved into registers.
func (m *Machine) setOperand(in *Instr, k int, op compile.Operand) {
	if !op.IsLit {
		*in.field(k) = op.Slot
		return
	}
	if !in.Lit.IsVoid() {
		r := m.layout.Register(op.Lit.Tag)
		m.emit(Instr{Op: OpAssign, A: r, B: LitOperand, Lit: op.Lit})
		*in.field(k) = r
		return
	}
	in.Lit = op.Lit
	*in.field(k) = LitOperand
}

// exprInto emits code computing e into slot dst.
func (m *Machine) exprInto(dst int, e tree.Expr) {
	switch e := e.(type) {
	case *tree.NameExpr:
		src := m.readSlot(e)
		if src != dst {
			m.emit(Instr{Op: OpAssign, A: dst, B: src})
		}
	case *tree.ConstExpr:
		m.emit(Instr{Op: OpAssign, A: dst, B: LitOperand, Lit: e.Val})
	case *tree.BinaryExpr:
		if e.Op == val.OpAnd || e.Op == val.OpOr {
			m.logicInto(dst, e)
			return
		}
		x, y := m.operand(e.X), m.operand(e.Y)
		in := Instr{Op: OpBinary, A: dst, Aux: int(e.Op)}
		m.setOperand(&in, 1, x)
		m.setOperand(&in, 2, y)
		m.emit(in)
	case *tree.UnaryExpr:
		in := Instr{Op: OpUnary, A: dst, Aux: int(e.Op)}
		m.setOperand(&in, 1, m.operand(e.X))
		m.emit(in)
	case *tree.InExpr:
		if _, ok := e.Elem.(*tree.ListExpr); ok {
			m.interpretInto(dst, e)
			return
		}
		elem := m.operand(e.Elem)
		in := Instr{Op: OpIn, A: dst, C: m.slotOf(e.Set)}
		m.setOperand(&in, 1, elem)
		m.emit(in)
	case *tree.IndexExpr:
		agg := m.slotOf(e.Agg)
		idx := m.BuildVals(e.Index)
		m.emit(Instr{Op: OpIndex, A: dst, B: agg, Aux: m.addOperands(idx)})
	case *tree.FieldExpr:
		m.emit(Instr{Op: OpField, A: dst, B: m.slotOf(e.Rec), C: e.Field})
	case *tree.CoerceExpr:
		in := Instr{Op: OpCoerce, A: dst, C: int(e.Kind), Aux: m.addType(e.T)}
		m.setOperand(&in, 1, m.operand(e.X))
		m.emit(in)
	case *tree.CallExpr:
		m.callInto(dst, e, nil)
	default:
		m.interpretInto(dst, e)
	}
}

// logicInto short-circuits && and || through a register so dst is not
// clobbered before the right operand reads it.
func (m *Machine) logicInto(dst int, e *tree.BinaryExpr) {
	r := m.layout.Register(types.TagBool)
	m.exprInto(r, e.X)
	op := OpBranchFalse
	if e.Op == val.OpOr {
		op = OpBranchTrue
	}
	skip := m.pending(Instr{Op: op, A: r}, 1)
	m.exprInto(r, e.Y)
	m.resolve(skip, m.here())
	m.emit(Instr{Op: OpAssign, A: dst, B: r})
}

// condSlot returns a slot holding the boolean value of e.
func (m *Machine) condSlot(e tree.Expr) int {
	return m.slotOf(e)
}

// AssignExpr stores e into target, natively where the expression has an
// instruction form and through the evaluator otherwise.
func (m *Machine) AssignExpr(target *tree.NameExpr, e tree.Expr) compile.CompiledStmt {
	if m.elideDead(target.ID) && pure(e) {
		return m.elided()
	}
	m.exprInto(m.layout.Slot(target.ID), e)
	return m.last()
}

// elided stands in for a statement that needs no code.
func (m *Machine) elided() compile.CompiledStmt {
	if m.NullStmtOK() {
		return compile.None
	}
	return m.last()
}

func (m *Machine) coerce(target *tree.NameExpr, e *tree.CoerceExpr) compile.CompiledStmt {
	if m.elideDead(target.ID) && pure(e.X) {
		return m.elided()
	}
	m.exprInto(m.layout.Slot(target.ID), e)
	return m.last()
}

func (m *Machine) ArithCoerce(target *tree.NameExpr, e *tree.CoerceExpr) compile.CompiledStmt {
	return m.coerce(target, e)
}

func (m *Machine) RecordCoerce(target *tree.NameExpr, e *tree.CoerceExpr) compile.CompiledStmt {
	return m.coerce(target, e)
}

func (m *Machine) TableCoerce(target *tree.NameExpr, e *tree.CoerceExpr) compile.CompiledStmt {
	return m.coerce(target, e)
}

func (m *Machine) VectorCoerce(target *tree.NameExpr, e *tree.CoerceExpr) compile.CompiledStmt {
	return m.coerce(target, e)
}

// InterpretExpr evaluates e for effect through the tree evaluator.
func (m *Machine) InterpretExpr(e tree.Expr) compile.CompiledStmt {
	m.interpretInto(NoSlot, e)
	return m.last()
}

func (m *Machine) interpretInto(dst int, e tree.Expr) {
	calls := 0
	tree.Inspect(e, func(n tree.Node) bool {
		switch n := n.(type) {
		case *tree.NameExpr:
			m.layout.Slot(n.ID)
		case *tree.CallExpr, *tree.EventExpr, *tree.ScheduleExpr:
			calls = 1
		}
		return true
	})
	if calls != 0 {
		m.SyncGlobals(m.curr)
	}
	m.exprs = append(m.exprs, exprSite{e: e})
	m.emit(Instr{Op: OpInterpret, A: dst, C: calls, Aux: len(m.exprs) - 1})
}

// CallStmt emits a call whose result is discarded.
func (m *Machine) CallStmt(e *tree.CallExpr) compile.CompiledStmt {
	m.callInto(NoSlot, e, nil)
	return m.last()
}

// AssignToCall stores a call's result into target, coerced if asked.
func (m *Machine) AssignToCall(target *tree.NameExpr, e *tree.CallExpr, coerce *tree.CoerceExpr) compile.CompiledStmt {
	dst := m.layout.Slot(target.ID)
	if m.elideDead(target.ID) {
		dst = NoSlot
	}
	m.callInto(dst, e, coerce)
	return m.last()
}

func (m *Machine) callInto(dst int, e *tree.CallExpr, coerce *tree.CoerceExpr) {
	site := callSite{fn: e.Func, args: m.BuildVals(e.Args)}
	if coerce != nil {
		site.coerce = coerce.T
	}
	m.SyncGlobals(e)
	m.calls = append(m.calls, site)
	m.emit(Instr{Op: OpCall, A: dst, Aux: len(m.calls) - 1})
}

// AssignVecElems stores into a vector element in place.
func (m *Machine) AssignVecElems(e *tree.IndexAssignExpr) compile.CompiledStmt {
	if len(e.Index) != 1 {
		return m.ErrorStmt(e.Location(), diag.CmpBadAssignTarget, "vector element assignment needs one index")
	}
	agg := m.readSlot(e.Agg)
	ops := m.BuildVals([]tree.Expr{e.Index[0], e.Value})
	m.emit(Instr{Op: OpAssignVecElem, A: agg, Aux: m.addOperands(ops)})
	return m.last()
}

func (m *Machine) initAggregate(op Op, id *tree.ID, t *types.Type, attrs *types.Attrs) compile.CompiledStmt {
	m.inits = append(m.inits, initSite{t: t, attrs: attrs})
	m.emit(Instr{Op: op, A: m.layout.Slot(id), Aux: len(m.inits) - 1})
	return m.last()
}

func (m *Machine) InitRecord(id *tree.ID, t *types.Type) compile.CompiledStmt {
	return m.initAggregate(OpInitRecord, id, t, nil)
}

func (m *Machine) InitVector(id *tree.ID, t *types.Type) compile.CompiledStmt {
	return m.initAggregate(OpInitVector, id, t, nil)
}

func (m *Machine) InitTable(id *tree.ID, t *types.Type, attrs *types.Attrs) compile.CompiledStmt {
	return m.initAggregate(OpInitTable, id, t, attrs)
}

// Event queues an event after syncing globals.
func (m *Machine) Event(e *tree.EventExpr) compile.CompiledStmt {
	m.point("event")
	site := eventSite{handler: e.Handler, args: m.BuildVals(e.Args)}
	m.SyncGlobals(e)
	m.events = append(m.events, site)
	m.emit(Instr{Op: OpEvent, Aux: len(m.events) - 1})
	return m.last()
}

// Schedule queues an event for a later time.
func (m *Machine) Schedule(e *tree.ScheduleExpr) compile.CompiledStmt {
	m.point("schedule")
	site := schedSite{when: m.operand(e.When), interval: e.Interval, handler: e.Event}
	site.args = m.BuildVals(e.Args)
	m.SyncGlobals(e)
	m.scheds = append(m.scheds, site)
	m.emit(Instr{Op: OpSchedule, Aux: len(m.scheds) - 1})
	return m.last()
}

// pure reports whether evaluating e has no effect beyond its value.
func pure(e tree.Expr) bool {
	ok := true
	tree.Inspect(e, func(n tree.Node) bool {
		switch n.(type) {
		case *tree.CallExpr, *tree.AssignExpr, *tree.IndexAssignExpr, *tree.FieldAssignExpr,
			*tree.EventExpr, *tree.ScheduleExpr:
			ok = false
		}
		return ok
	})
	return ok
}
