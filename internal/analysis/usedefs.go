package analysis

import "zam/internal/tree"

type idSet map[*tree.ID]struct{}

func (s idSet) union(o idSet) idSet {
	out := make(idSet, len(s)+len(o))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range o {
		out[id] = struct{}{}
	}
	return out
}

func (s idSet) without(ids ...*tree.ID) idSet {
	out := make(idSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	for _, id := range ids {
		delete(out, id)
	}
	return out
}

func (s idSet) same(o idSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

// UseDefs answers liveness questions: whether an identifier's value can
// still be read after a statement. Globals are always live.
type UseDefs struct {
	liveOut map[tree.Stmt]idSet
}

// NewUseDefs computes liveness for fn.
func NewUseDefs(fn *tree.Function) *UseDefs {
	ud := &UseDefs{liveOut: make(map[tree.Stmt]idSet)}
	lw := &liveWalker{ud: ud}
	lw.stmt(fn.Body, idSet{})
	return ud
}

// IsUnused reports whether id's value is dead after where. Unknown
// statements are treated as live.
func (ud *UseDefs) IsUnused(id *tree.ID, where tree.Stmt) bool {
	if ud == nil || id == nil || id.Global {
		return false
	}
	live, ok := ud.liveOut[where]
	if !ok {
		return false
	}
	_, used := live[id]
	return !used
}

type liveCtx struct {
	brk, next idSet
	loop      bool
}

type liveWalker struct {
	ud  *UseDefs
	ctx []liveCtx
	ft  []idSet
}

func (lw *liveWalker) setOut(s tree.Stmt, out idSet) {
	if prev, ok := lw.ud.liveOut[s]; ok {
		out = prev.union(out)
	}
	lw.ud.liveOut[s] = out
}

func (lw *liveWalker) stmt(s tree.Stmt, after idSet) idSet {
	if s == nil {
		return after
	}
	lw.setOut(s, after)
	switch s := s.(type) {
	case *tree.StmtList:
		cur := after
		for i := len(s.Stmts) - 1; i >= 0; i-- {
			cur = lw.stmt(s.Stmts[i], cur)
		}
		return cur
	case *tree.ExprStmt:
		return exprLive(s.E, after)
	case *tree.IfStmt:
		in := lw.stmt(s.Then, after).union(lw.stmt(s.Else, after))
		return in.union(uses(s.Cond))
	case *tree.WhileStmt:
		test := uses(s.Cond).union(after)
		if !s.PostCheck {
			return lw.loop(after, nil, func(head idSet) idSet {
				body := lw.stmt(s.Body, head)
				return lw.stmt(s.CondStmt, uses(s.Cond).union(after).union(body))
			})
		}
		// next jumps to the test at the bottom
		return lw.loop(after, func(idSet) idSet { return test }, func(head idSet) idSet {
			test = test.union(lw.stmt(s.CondStmt, uses(s.Cond).union(after).union(head)))
			return lw.stmt(s.Body, test)
		})
	case *tree.LoopStmt:
		return lw.loop(after, nil, func(head idSet) idSet {
			return lw.stmt(s.Body, head)
		})
	case *tree.ForStmt:
		head := lw.loop(after, nil, func(head idSet) idSet {
			vars := append([]*tree.ID{s.Value}, s.Vars...)
			return lw.stmt(s.Body, head).without(vars...).union(after)
		})
		return head.union(uses(s.Over))
	case *tree.SwitchStmt:
		lw.ctx = append(lw.ctx, liveCtx{brk: after})
		in := idSet{}
		next := after
		for i := len(s.Cases) - 1; i >= 0; i-- {
			c := s.Cases[i]
			lw.ft = append(lw.ft, next)
			caseIn := lw.stmt(c.Body, after)
			lw.ft = lw.ft[:len(lw.ft)-1]
			for _, tc := range c.Types {
				caseIn = caseIn.without(tc.ID)
			}
			in = in.union(caseIn)
			next = caseIn
		}
		lw.ctx = lw.ctx[:len(lw.ctx)-1]
		if s.Default < 0 {
			in = in.union(after)
		}
		return in.union(uses(s.Value))
	case *tree.WhenStmt:
		in := lw.stmt(s.Body, after).union(lw.stmt(s.TimeoutBody, after))
		if s.Timeout != nil && s.TimeoutBody == nil {
			in = in.union(after)
		}
		in = in.union(uses(s.Cond)).union(uses(s.Timeout))
		return lw.stmt(s.CondStmt, in)
	case *tree.ReturnStmt:
		return uses(s.Value)
	case *tree.BreakStmt:
		if n := len(lw.ctx); n > 0 {
			return lw.ctx[n-1].brk
		}
		return idSet{}
	case *tree.NextStmt:
		for i := len(lw.ctx) - 1; i >= 0; i-- {
			if lw.ctx[i].loop {
				return lw.ctx[i].next
			}
		}
		return idSet{}
	case *tree.FallthroughStmt:
		if n := len(lw.ft); n > 0 {
			return lw.ft[n-1]
		}
		return after
	case *tree.InitStmt:
		return after.without(s.IDs...)
	}
	return after
}

// loop iterates body to a fixed point. body maps the live set at the loop
// head to the live set entering the loop. next, if set, gives the live set
// at the target of a next statement; by default it is the head.
func (lw *liveWalker) loop(after idSet, next func(head idSet) idSet, body func(head idSet) idSet) idSet {
	head := after
	for {
		nextLive := head
		if next != nil {
			nextLive = next(head).union(head)
		}
		lw.ctx = append(lw.ctx, liveCtx{brk: after, next: nextLive, loop: true})
		in := body(head)
		lw.ctx = lw.ctx[:len(lw.ctx)-1]
		grown := head.union(in)
		if grown.same(head) {
			return grown
		}
		head = grown
	}
}

// exprLive is the live set before e given the live set after it. A
// top-level assignment kills its target.
func exprLive(e tree.Expr, after idSet) idSet {
	if a, ok := e.(*tree.AssignExpr); ok {
		return after.without(a.Target.ID).union(uses(a.Value))
	}
	return after.union(uses(e))
}

// uses returns the identifiers e reads. Assignment targets are not reads.
func uses(e tree.Expr) idSet {
	out := idSet{}
	if e == nil {
		return out
	}
	tree.Inspect(e, func(n tree.Node) bool {
		switch n := n.(type) {
		case *tree.AssignExpr:
			for id := range uses(n.Value) {
				out[id] = struct{}{}
			}
			return false
		case *tree.NameExpr:
			if !n.ID.Global {
				out[n.ID] = struct{}{}
			}
		}
		return true
	})
	return out
}
