package analysis

import (
	"sort"

	"zam/internal/tree"
)

// DefKind classifies a definition site.
type DefKind uint8

const (
	// DefEntry is the value an identifier has on entry: a parameter's
	// argument or a global's stored value.
	DefEntry DefKind = iota
	// DefAssign is an assignment inside the body.
	DefAssign
	// DefSync marks a global whose local copy was written back and may
	// since have been changed elsewhere.
	DefSync
)

// Def is one definition reaching a program point.
type Def struct {
	Kind DefKind
	Node tree.Node
}

// DefSet is a set of definitions.
type DefSet map[Def]struct{}

// State maps identifiers to the definitions that reach one point.
// States handed out by ReachingDefs must not be modified.
type State map[*tree.ID]DefSet

// Defs returns the definitions of id.
func (s State) Defs(id *tree.ID) DefSet { return s[id] }

// LocallyDefined reports whether some assignment inside the body reaches.
func (s State) LocallyDefined(id *tree.ID) bool {
	for d := range s[id] {
		if d.Kind == DefAssign {
			return true
		}
	}
	return false
}

// OnlyLocal reports whether every reaching definition is an assignment
// inside the body.
func (s State) OnlyLocal(id *tree.ID) bool {
	if len(s[id]) == 0 {
		return false
	}
	for d := range s[id] {
		if d.Kind != DefAssign {
			return false
		}
	}
	return true
}

// ModifiedGlobals returns the globals with a reaching local assignment,
// sorted by name.
func (s State) ModifiedGlobals() []*tree.ID {
	var out []*tree.ID
	for id := range s {
		if id.Global && s.LocallyDefined(id) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s State) clone() State {
	out := make(State, len(s))
	for id, ds := range s {
		out[id] = ds
	}
	return out
}

func (s State) define(id *tree.ID, d Def) State {
	out := s.clone()
	out[id] = DefSet{d: {}}
	return out
}

func join(a, b State) State {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := a.clone()
	for id, ds := range b {
		cur, ok := out[id]
		if !ok {
			out[id] = ds
			continue
		}
		merged := make(DefSet, len(cur)+len(ds))
		for d := range cur {
			merged[d] = struct{}{}
		}
		for d := range ds {
			merged[d] = struct{}{}
		}
		out[id] = merged
	}
	return out
}

func equal(a, b State) bool {
	if len(a) != len(b) {
		return false
	}
	for id, ds := range a {
		other, ok := b[id]
		if !ok || len(other) != len(ds) {
			return false
		}
		for d := range ds {
			if _, ok := other[d]; !ok {
				return false
			}
		}
	}
	return true
}

// ReachingDefs holds the definitions reaching each statement, each global
// read and each synchronization point of one body. A nil state flows
// along paths that cannot be reached.
type ReachingDefs struct {
	at   map[tree.Node]State
	exit State
}

// Before returns the state just before n executes. For call, event,
// schedule, when and return nodes this is the state at the
// synchronization point, after operands were evaluated.
func (rd *ReachingDefs) Before(n tree.Node) (State, bool) {
	s, ok := rd.at[n]
	return s, ok
}

// Exit returns the state when execution runs off the end of the body.
func (rd *ReachingDefs) Exit() State { return rd.exit }

type rdFlow struct {
	loop          bool
	brk, next, ft State
}

type rdWalker struct {
	rd    *ReachingDefs
	flows []*rdFlow
	ft    []*rdFlow
}

// NewReachingDefs analyzes fn. Every global in prof and every parameter
// starts with an entry definition.
func NewReachingDefs(fn *tree.Function, prof *Profile) *ReachingDefs {
	rd := &ReachingDefs{at: make(map[tree.Node]State)}
	entry := State{}
	for _, p := range fn.Params {
		entry[p] = DefSet{{Kind: DefEntry}: {}}
	}
	for _, g := range prof.Globals {
		entry[g] = DefSet{{Kind: DefEntry}: {}}
	}
	w := &rdWalker{rd: rd}
	rd.exit = w.stmt(fn.Body, entry)
	return rd
}

func (w *rdWalker) record(n tree.Node, s State) {
	if s == nil {
		return
	}
	if prev, ok := w.rd.at[n]; ok {
		s = join(prev, s)
	}
	w.rd.at[n] = s
}

// sync replaces every global's definitions with a sync marker.
func (w *rdWalker) sync(n tree.Node, s State) State {
	if s == nil {
		return nil
	}
	out := s.clone()
	for id := range s {
		if id.Global {
			out[id] = DefSet{{Kind: DefSync, Node: n}: {}}
		}
	}
	return out
}

func (w *rdWalker) stmt(s tree.Stmt, in State) State {
	if s == nil || in == nil {
		return in
	}
	w.record(s, in)
	switch s := s.(type) {
	case *tree.StmtList:
		cur := in
		for _, st := range s.Stmts {
			cur = w.stmt(st, cur)
		}
		return cur
	case *tree.ExprStmt:
		return w.expr(s.E, in)
	case *tree.IfStmt:
		c := w.expr(s.Cond, in)
		return join(w.stmt(s.Then, c), w.stmt(s.Else, c))
	case *tree.WhileStmt:
		return w.loop(in, func(head State) (State, State) {
			c := w.expr(s.Cond, w.stmt(s.CondStmt, head))
			if s.PostCheck {
				// body runs first; the test leads back to the head
				return nil, c
			}
			return c, c
		}, s.Body, s.PostCheck)
	case *tree.LoopStmt:
		return w.loop(in, nil, s.Body, false)
	case *tree.ForStmt:
		over := w.expr(s.Over, in)
		return w.loop(over, func(head State) (State, State) {
			body := head
			for _, v := range s.Vars {
				body = body.define(v, Def{Kind: DefAssign, Node: s})
			}
			if s.Value != nil {
				body = body.define(s.Value, Def{Kind: DefAssign, Node: s})
			}
			return body, head
		}, s.Body, false)
	case *tree.SwitchStmt:
		return w.switchStmt(s, in)
	case *tree.WhenStmt:
		cur := in
		if !isTrueConst(s.Cond) {
			cur = w.sync(s, in)
		}
		cur = w.expr(s.Cond, w.stmt(s.CondStmt, cur))
		if s.Timeout != nil {
			cur = w.expr(s.Timeout, cur)
		}
		body := w.stmt(s.Body, cur)
		if s.TimeoutBody == nil {
			if s.Timeout != nil {
				return join(body, cur)
			}
			return body
		}
		return join(body, w.stmt(s.TimeoutBody, cur))
	case *tree.ReturnStmt:
		cur := in
		if s.Value != nil {
			cur = w.expr(s.Value, in)
		}
		w.record(s, cur)
		return nil
	case *tree.BreakStmt:
		if f := w.top(); f != nil {
			f.brk = join(f.brk, in)
		}
		return nil
	case *tree.NextStmt:
		for i := len(w.flows) - 1; i >= 0; i-- {
			if w.flows[i].loop {
				w.flows[i].next = join(w.flows[i].next, in)
				break
			}
		}
		return nil
	case *tree.FallthroughStmt:
		if n := len(w.ft); n > 0 {
			w.ft[n-1].ft = join(w.ft[n-1].ft, in)
		}
		return nil
	case *tree.InitStmt:
		cur := in
		for _, id := range s.IDs {
			cur = cur.define(id, Def{Kind: DefAssign, Node: s})
		}
		return cur
	}
	return in
}

func (w *rdWalker) top() *rdFlow {
	if len(w.flows) == 0 {
		return nil
	}
	return w.flows[len(w.flows)-1]
}

// loop iterates a loop to a fixed point. test maps the head state to the
// state entering the body and the state leaving through the exit test;
// a nil test is an unconditional loop.
func (w *rdWalker) loop(in State, test func(head State) (body, exit State), body tree.Stmt, postCheck bool) State {
	head := in
	for {
		f := &rdFlow{loop: true}
		w.flows = append(w.flows, f)
		var bodyIn, exit State
		switch {
		case test == nil:
			bodyIn = head
		case postCheck:
			bodyIn = head
		default:
			bodyIn, exit = test(head)
		}
		bodyOut := w.stmt(body, bodyIn)
		w.flows = w.flows[:len(w.flows)-1]
		back := join(bodyOut, f.next)
		if postCheck {
			_, back = test(back)
			exit = back
		}
		next := join(in, back)
		if equal(next, head) {
			return join(exit, f.brk)
		}
		head = next
	}
}

func (w *rdWalker) switchStmt(s *tree.SwitchStmt, in State) State {
	v := w.expr(s.Value, in)
	f := &rdFlow{}
	w.flows = append(w.flows, f)
	var out State
	var carry State
	for i, c := range s.Cases {
		entry := v
		for _, tc := range c.Types {
			if tc.ID != nil {
				entry = entry.define(tc.ID, Def{Kind: DefAssign, Node: s})
			}
		}
		entry = join(entry, carry)
		ft := &rdFlow{}
		w.ft = append(w.ft, ft)
		end := w.stmt(c.Body, entry)
		w.ft = w.ft[:len(w.ft)-1]
		carry = ft.ft
		if i == len(s.Cases)-1 {
			out = join(out, carry)
		}
		out = join(out, end)
	}
	w.flows = w.flows[:len(w.flows)-1]
	if s.Default < 0 {
		out = join(out, v)
	}
	return join(out, f.brk)
}

func (w *rdWalker) exprs(es []tree.Expr, in State) State {
	cur := in
	for _, e := range es {
		cur = w.expr(e, cur)
	}
	return cur
}

func (w *rdWalker) expr(e tree.Expr, in State) State {
	if e == nil || in == nil {
		return in
	}
	switch e := e.(type) {
	case *tree.NameExpr:
		if e.ID.Global {
			w.record(e, in)
		}
		return in
	case *tree.BinaryExpr:
		return w.expr(e.Y, w.expr(e.X, in))
	case *tree.UnaryExpr:
		return w.expr(e.X, in)
	case *tree.CoerceExpr:
		return w.expr(e.X, in)
	case *tree.InExpr:
		return w.expr(e.Set, w.expr(e.Elem, in))
	case *tree.IndexExpr:
		return w.exprs(e.Index, w.expr(e.Agg, in))
	case *tree.FieldExpr:
		return w.expr(e.Rec, in)
	case *tree.ListExpr:
		return w.exprs(e.Exprs, in)
	case *tree.CondExpr:
		c := w.expr(e.Cond, in)
		return join(w.expr(e.Then, c), w.expr(e.Else, c))
	case *tree.RecordConstructorExpr:
		return w.exprs(e.Fields, in)
	case *tree.AssignExpr:
		cur := w.expr(e.Value, in)
		return cur.define(e.Target.ID, Def{Kind: DefAssign, Node: e})
	case *tree.IndexAssignExpr:
		cur := w.expr(e.Agg, in)
		return w.expr(e.Value, w.exprs(e.Index, cur))
	case *tree.FieldAssignExpr:
		return w.expr(e.Value, w.expr(e.Rec, in))
	case *tree.CallExpr:
		cur := w.exprs(e.Args, in)
		w.record(e, cur)
		return w.sync(e, cur)
	case *tree.EventExpr:
		cur := w.exprs(e.Args, in)
		w.record(e, cur)
		return w.sync(e, cur)
	case *tree.ScheduleExpr:
		cur := w.exprs(e.Args, w.expr(e.When, in))
		w.record(e, cur)
		return w.sync(e, cur)
	}
	return in
}

func isTrueConst(e tree.Expr) bool {
	c, ok := e.(*tree.ConstExpr)
	if !ok {
		return false
	}
	b, err := c.Val.AsBool()
	return err == nil && b
}
