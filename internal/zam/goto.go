package zam

import "fmt"

// PendingGoto is a branch whose target is not known yet. It is resolved
// exactly once.
type PendingGoto struct {
	pos      int
	field    int // which operand of the instruction holds the target
	resolved bool
}

// Pos returns the position of the branch instruction.
func (g *PendingGoto) Pos() int { return g.pos }

// Resolved reports whether the target has been patched in.
func (g *PendingGoto) Resolved() bool { return g.resolved }

// GotoList collects the pending gotos of one kind for one construct.
type GotoList struct {
	kind  string
	gotos []*PendingGoto
}

func newGotoList(kind string) *GotoList {
	return &GotoList{kind: kind}
}

// Len returns the number of unresolved entries.
func (l *GotoList) Len() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, g := range l.gotos {
		if !g.resolved {
			n++
		}
	}
	return n
}

// InternalError reports a broken compiler invariant. It is raised with
// panic since no input can legitimately produce it.
type InternalError struct {
	Body string
	Msg  string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("zam: internal error in %s: %s", e.Body, e.Msg)
}

// pending emits op with an unpatched target in the given field.
func (m *Machine) pending(in Instr, field int) *PendingGoto {
	*in.field(field) = unpatched
	pos := m.emit(in)
	return &PendingGoto{pos: pos, field: field}
}

// gotoPending emits an unconditional jump to be patched later.
func (m *Machine) gotoPending() *PendingGoto {
	return m.pending(Instr{Op: OpGoto}, 0)
}

// resolve patches g to jump to target.
func (m *Machine) resolve(g *PendingGoto, target int) {
	if g.resolved {
		m.internal("goto at %d resolved twice", g.pos)
	}
	*m.code[g.pos].field(g.field) = target
	g.resolved = true
}

// resolveList patches every entry of l to target and empties it.
func (m *Machine) resolveList(l *GotoList, target int) {
	for _, g := range l.gotos {
		if !g.resolved {
			m.resolve(g, target)
		}
	}
	l.gotos = nil
}

func (m *Machine) pushList(stack *[]*GotoList, kind string) *GotoList {
	l := newGotoList(kind)
	*stack = append(*stack, l)
	return l
}

func (m *Machine) popList(stack *[]*GotoList, l *GotoList) {
	s := *stack
	if len(s) == 0 || s[len(s)-1] != l {
		m.internal("%s list popped out of order", l.kind)
	}
	if l.Len() != 0 {
		m.internal("%d unresolved %s gotos", l.Len(), l.kind)
	}
	*stack = s[:len(s)-1]
}

// jumpTo adds a pending goto to the innermost list of stack.
func (m *Machine) jumpTo(stack []*GotoList, kind string) *PendingGoto {
	if len(stack) == 0 {
		m.internal("%s outside of any enclosing construct", kind)
	}
	l := stack[len(stack)-1]
	g := m.gotoPending()
	l.gotos = append(l.gotos, g)
	return g
}

func (m *Machine) internal(format string, args ...any) {
	panic(&InternalError{Body: m.name, Msg: fmt.Sprintf(format, args...)})
}
