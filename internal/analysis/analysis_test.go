package analysis_test

import (
	"testing"

	"zam/internal/analysis"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

var nop = &tree.Builtin{FnName: "nop", Fn: func([]val.Value) (val.Value, error) { return val.Void, nil }}

func call() *tree.ExprStmt {
	return &tree.ExprStmt{E: &tree.CallExpr{Func: nop, T: types.Void}}
}

func TestReachingDefsKillGlobalsAtCalls(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	c := call()
	read := tree.Name(g)
	ret := &tree.ReturnStmt{Value: read}
	fn := &tree.Function{Name: "f", Body: tree.List(tree.Assign(g, tree.Const(val.Int(1))), c, ret)}
	rd := analysis.NewReachingDefs(fn, analysis.NewProfile(fn))

	atCall, ok := rd.Before(c.E)
	if !ok || !atCall.OnlyLocal(g) {
		t.Fatalf("local def of g should reach the call: %v", atCall.Defs(g))
	}
	atRead, ok := rd.Before(read)
	if !ok || atRead.LocallyDefined(g) {
		t.Fatalf("call should kill the local def of g: %v", atRead.Defs(g))
	}
}

func TestReachingDefsJoinBranches(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	h := tree.NewGlobal("h", types.Int)
	p := tree.NewLocal("p", types.Bool)
	read := tree.Name(h)
	fn := &tree.Function{
		Name:   "f",
		Params: []*tree.ID{p},
		Body: tree.List(
			&tree.IfStmt{Cond: tree.Name(p), Then: tree.Assign(g, tree.Const(val.Int(1)))},
			&tree.ExprStmt{E: read},
		),
	}
	rd := analysis.NewReachingDefs(fn, analysis.NewProfile(fn))
	exit := rd.Exit()
	if !exit.LocallyDefined(g) || exit.OnlyLocal(g) {
		t.Fatalf("g should be possibly, not definitely, modified: %v", exit.Defs(g))
	}
	mod := exit.ModifiedGlobals()
	if len(mod) != 1 || mod[0] != g {
		t.Fatalf("modified globals = %v", mod)
	}
	if _, ok := rd.Before(read); !ok {
		t.Fatalf("global read not recorded")
	}
}

func TestReachingDefsLoopReachesHead(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	cond := tree.Bin(val.OpLt, tree.Name(g), tree.Const(val.Int(3)))
	fn := &tree.Function{Name: "f", Body: &tree.WhileStmt{
		Cond: cond,
		Body: tree.Assign(g, tree.Bin(val.OpAdd, tree.Name(g), tree.Const(val.Int(1)))),
	}}
	rd := analysis.NewReachingDefs(fn, analysis.NewProfile(fn))
	st, _ := rd.Before(cond.X)
	if !st.LocallyDefined(g) || st.OnlyLocal(g) {
		t.Fatalf("loop test should see entry and back-edge defs: %v", st.Defs(g))
	}
}

func TestUseDefsLiveness(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	y := tree.NewLocal("y", types.Int)
	s1 := tree.Assign(x, tree.Const(val.Int(1)))
	s2 := tree.Assign(y, tree.Name(x))
	fn := &tree.Function{Name: "f", Body: tree.List(s1, s2, &tree.ReturnStmt{Value: tree.Name(y)})}
	ud := analysis.NewUseDefs(fn)
	if ud.IsUnused(x, s1) {
		t.Fatalf("x is read by the next statement")
	}
	if !ud.IsUnused(x, s2) {
		t.Fatalf("x is dead after its last read")
	}
	if ud.IsUnused(y, s2) {
		t.Fatalf("y is returned")
	}
}

func TestUseDefsLoopCarriedValueIsLive(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	inc := tree.Assign(x, tree.Bin(val.OpAdd, tree.Name(x), tree.Const(val.Int(1))))
	fn := &tree.Function{Name: "f", Body: tree.List(
		tree.Assign(x, tree.Const(val.Int(0))),
		&tree.WhileStmt{Cond: tree.Bin(val.OpLt, tree.Name(x), tree.Const(val.Int(3))), Body: inc},
	)}
	if analysis.NewUseDefs(fn).IsUnused(x, inc) {
		t.Fatalf("x is read by the loop test after the increment")
	}
}

func TestUseDefsGlobalsAlwaysLive(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	s := tree.Assign(g, tree.Const(val.Int(1)))
	fn := &tree.Function{Name: "f", Body: s}
	if analysis.NewUseDefs(fn).IsUnused(g, s) {
		t.Fatalf("globals must never be reported unused")
	}
}

func TestProfileCountsConstructs(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	x := tree.NewLocal("x", types.Int)
	fn := &tree.Function{Name: "f", Body: tree.List(
		tree.Assign(x, tree.Name(g)),
		call(),
		&tree.LoopStmt{Body: &tree.BreakStmt{}},
		&tree.ReturnStmt{},
	)}
	p := analysis.NewProfile(fn)
	if len(p.Locals) != 1 || len(p.Globals) != 1 || p.Calls != 1 || p.Loops != 1 || p.Returns != 1 {
		t.Fatalf("profile = %+v", p)
	}
	if !p.HasSyncPoints() || !p.Assigned[x] {
		t.Fatalf("profile misses sync points or assignment")
	}
}
