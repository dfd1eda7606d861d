package zam

import (
	"fmt"

	"zam/internal/compile"
	"zam/internal/diag"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// IfElse lowers to: cond; if-false else; then; goto end; else.
func (m *Machine) IfElse(s *tree.IfStmt) compile.CompiledStmt {
	m.point("if")
	cond := m.condSlot(s.Cond)
	toElse := m.pending(Instr{Op: OpBranchFalse, A: cond}, 1)
	m.lowerNested(s.Then)
	if s.Else == nil {
		m.resolve(toElse, m.here())
		return m.last()
	}
	toEnd := m.gotoPending()
	m.resolve(toElse, m.here())
	m.lowerNested(s.Else)
	m.resolve(toEnd, m.here())
	return m.last()
}

// lowerNested compiles a sub-statement and restores the current
// statement afterwards.
func (m *Machine) lowerNested(s tree.Stmt) {
	outer := m.curr
	if s == nil {
		m.EmptyStmt()
	} else if !compile.Lower(m, s).Valid() {
		m.EmptyStmt()
	}
	m.curr = outer
}

// While tests at the top, or at the bottom for the post-checked form.
func (m *Machine) While(s *tree.WhileStmt) compile.CompiledStmt {
	m.point("while")
	brk := m.pushList(&m.breaks, "break")
	nxt := m.pushList(&m.nexts, "next")
	top := m.here()

	if !s.PostCheck {
		if s.CondStmt != nil {
			m.lowerNested(s.CondStmt)
		}
		exit := m.pending(Instr{Op: OpBranchFalse, A: m.condSlot(s.Cond)}, 1)
		m.lowerNested(s.Body)
		m.emit(Instr{Op: OpGoto, A: top})
		m.resolve(exit, m.here())
		m.resolveList(nxt, top)
	} else {
		m.lowerNested(s.Body)
		test := m.here()
		if s.CondStmt != nil {
			m.lowerNested(s.CondStmt)
		}
		m.emit(Instr{Op: OpBranchTrue, A: m.condSlot(s.Cond), B: top})
		m.resolveList(nxt, test)
	}
	m.resolveList(brk, m.here())
	m.popList(&m.nexts, nxt)
	m.popList(&m.breaks, brk)
	return m.last()
}

// Loop runs its body until a break or return.
func (m *Machine) Loop(s *tree.LoopStmt) compile.CompiledStmt {
	m.point("loop")
	brk := m.pushList(&m.breaks, "break")
	nxt := m.pushList(&m.nexts, "next")
	top := m.here()
	m.lowerNested(s.Body)
	m.emit(Instr{Op: OpGoto, A: top})
	m.resolveList(nxt, top)
	m.resolveList(brk, m.here())
	m.popList(&m.nexts, nxt)
	m.popList(&m.breaks, brk)
	return m.last()
}

// For lowers to: init-iter; L: step-iter (exhausted: end); body; goto L;
// end: end-loop.
func (m *Machine) For(s *tree.ForStmt) compile.CompiledStmt {
	m.point("for")
	var kind iterKind
	switch t := s.Over.Type(); {
	case t == nil:
		return m.ErrorStmt(s.Location(), diag.CmpBadLoopOperand, "loop over untyped value")
	case t.Tag == types.TagTable:
		kind = iterTable
	case t.Tag == types.TagVector:
		kind = iterVector
	case t.Tag == types.TagString:
		kind = iterString
	default:
		return m.ErrorStmt(s.Location(), diag.CmpBadLoopOperand, fmt.Sprintf("cannot loop over %s", t))
	}
	if kind != iterTable && len(s.Vars) != 1 {
		return m.ErrorStmt(s.Location(), diag.CmpBadLoopOperand,
			fmt.Sprintf("%s loop takes one variable, got %d", kind, len(s.Vars)))
	}
	if kind == iterString && s.Value != nil {
		return m.ErrorStmt(s.Location(), diag.CmpBadLoopOperand, "string loop has no value variable")
	}

	over := m.slotOf(s.Over)
	info := m.layout.Register(types.TagOpaque)
	m.emit(Instr{Op: OpInitIter, A: info, B: over, C: int(kind)})

	site := iterSite{kind: kind, value: NoSlot}
	for _, v := range s.Vars {
		site.vars = append(site.vars, m.layout.Slot(v))
	}
	if s.Value != nil {
		site.value = m.layout.Slot(s.Value)
	}
	m.iters = append(m.iters, site)

	brk := m.pushList(&m.breaks, "break")
	nxt := m.pushList(&m.nexts, "next")
	step := m.pending(Instr{Op: OpStepIter, A: info, Aux: len(m.iters) - 1}, 1)
	m.lowerNested(s.Body)
	m.emit(Instr{Op: OpGoto, A: step.Pos()})
	end := m.emit(Instr{Op: OpEndLoop, A: info})
	m.resolve(step, end)
	m.resolveList(brk, end)
	m.resolveList(nxt, step.Pos())
	m.popList(&m.nexts, nxt)
	m.popList(&m.breaks, brk)
	return m.last()
}

// When compiles an inline body for a literal true condition, and a wait
// otherwise: sync; L: cond stmts; wait (timeout: T); body; goto end;
// T: timeout body. A return-when ends the activation after either body,
// so statements past it only run for a plain when.
func (m *Machine) When(s *tree.WhenStmt) compile.CompiledStmt {
	m.point("when")
	if isTrueConst(s.Cond) {
		if s.CondStmt != nil {
			m.lowerNested(s.CondStmt)
		}
		m.lowerNested(s.Body)
		m.whenExit(s)
		return m.last()
	}
	if s.TimeoutBody != nil && s.Timeout == nil {
		return m.ErrorStmt(s.Location(), diag.CmpBadWhen, "timeout body without a timeout")
	}

	m.SyncGlobals(s)
	reentry := m.here()
	if s.CondStmt != nil {
		m.lowerNested(s.CondStmt)
	}
	in := Instr{Op: OpWait, A: m.condSlot(s.Cond), B: NoSlot, Aux: reentry}
	if s.Timeout != nil {
		in.B = m.slotOf(s.Timeout)
	}
	wait := m.pending(in, 2)
	m.lowerNested(s.Body)
	m.whenExit(s)
	if s.TimeoutBody == nil {
		m.resolve(wait, m.here())
		if s.IsReturn {
			// A timeout without a body still ends the activation.
			m.whenExit(s)
		}
		return m.last()
	}
	toEnd := m.gotoPending()
	m.resolve(wait, m.here())
	m.lowerNested(s.TimeoutBody)
	m.whenExit(s)
	m.resolve(toEnd, m.here())
	return m.last()
}

// whenExit returns void from a return-when whose body fell through.
func (m *Machine) whenExit(s *tree.WhenStmt) {
	if !s.IsReturn {
		return
	}
	m.SyncGlobals(nil)
	m.emit(Instr{Op: OpReturn, A: LitOperand, Lit: val.Void})
}

// Return syncs globals after computing the value.
func (m *Machine) Return(s *tree.ReturnStmt) compile.CompiledStmt {
	in := Instr{Op: OpReturn, A: LitOperand}
	if s.Value != nil {
		m.setOperand(&in, 0, m.operand(s.Value))
	}
	m.SyncGlobals(s)
	m.emit(in)
	return m.last()
}

func (m *Machine) Next() compile.CompiledStmt {
	m.jumpTo(m.nexts, "next")
	return m.last()
}

func (m *Machine) Break() compile.CompiledStmt {
	m.jumpTo(m.breaks, "break")
	return m.last()
}

func (m *Machine) FallThrough() compile.CompiledStmt {
	m.jumpTo(m.falls, "fallthrough")
	return m.last()
}

func isTrueConst(e tree.Expr) bool {
	c, ok := e.(*tree.ConstExpr)
	if !ok {
		return false
	}
	b, err := c.Val.AsBool()
	return err == nil && b
}
