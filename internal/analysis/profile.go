// Package analysis computes the read-only facts the compiler consumes:
// a function profile, reaching definitions and liveness.
package analysis

import "zam/internal/tree"

// Profile summarizes a function body.
type Profile struct {
	Params   []*tree.ID
	Locals   []*tree.ID // in order of first appearance, parameters excluded
	Globals  []*tree.ID // in order of first appearance
	Assigned map[*tree.ID]bool

	Calls    int
	Events   int
	Whens    int
	Loops    int
	Switches int
	Returns  int
}

// NewProfile walks fn once and records what it touches.
func NewProfile(fn *tree.Function) *Profile {
	p := &Profile{
		Params:   fn.Params,
		Assigned: make(map[*tree.ID]bool),
	}
	seen := make(map[*tree.ID]bool, len(fn.Params))
	for _, id := range fn.Params {
		seen[id] = true
	}
	note := func(id *tree.ID) {
		if id == nil || seen[id] {
			return
		}
		seen[id] = true
		if id.Global {
			p.Globals = append(p.Globals, id)
		} else {
			p.Locals = append(p.Locals, id)
		}
	}
	tree.Inspect(fn.Body, func(n tree.Node) bool {
		switch n := n.(type) {
		case *tree.NameExpr:
			note(n.ID)
		case *tree.AssignExpr:
			p.Assigned[n.Target.ID] = true
		case *tree.ForStmt:
			p.Loops++
			for _, v := range n.Vars {
				note(v)
				p.Assigned[v] = true
			}
			if n.Value != nil {
				note(n.Value)
				p.Assigned[n.Value] = true
			}
		case *tree.WhileStmt, *tree.LoopStmt:
			p.Loops++
		case *tree.SwitchStmt:
			p.Switches++
			for _, c := range n.Cases {
				for _, tc := range c.Types {
					if tc.ID != nil {
						note(tc.ID)
						p.Assigned[tc.ID] = true
					}
				}
			}
		case *tree.InitStmt:
			for _, id := range n.IDs {
				note(id)
				p.Assigned[id] = true
			}
		case *tree.CallExpr:
			p.Calls++
		case *tree.EventExpr, *tree.ScheduleExpr:
			p.Events++
		case *tree.WhenStmt:
			p.Whens++
		case *tree.ReturnStmt:
			p.Returns++
		}
		return true
	})
	return p
}

// HasSyncPoints reports whether the body calls out, emits events or waits,
// any of which require globals to be written back.
func (p *Profile) HasSyncPoints() bool {
	return p.Calls > 0 || p.Events > 0 || p.Whens > 0
}
