package tree_test

import (
	"bytes"
	"testing"
	"time"

	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

type resolver struct {
	fns    map[string]tree.Callable
	events map[string]*tree.EventHandler
}

func (r resolver) Callable(name string) (tree.Callable, bool) {
	c, ok := r.fns[name]
	return c, ok
}

func (r resolver) Event(name string) (*tree.EventHandler, bool) {
	e, ok := r.events[name]
	return e, ok
}

func sampleFunction() (*tree.Function, *tree.Builtin, *tree.EventHandler) {
	double := &tree.Builtin{FnName: "double", Fn: func(args []val.Value) (val.Value, error) {
		return val.Int(args[0].I * 2), nil
	}}
	tick := &tree.EventHandler{Name: "tick"}
	n := tree.NewLocal("n", types.Int)
	acc := tree.NewLocal("acc", types.Int)
	seen := tree.NewLocal("seen", types.NewTable(nil, types.Int))
	g := tree.NewGlobal("total", types.Int)

	body := tree.List(
		&tree.InitStmt{IDs: []*tree.ID{seen}, Attrs: &types.Attrs{ExpireAfter: 5 * time.Second}},
		tree.Assign(acc, tree.Const(val.Int(0))),
		&tree.WhileStmt{
			Cond: tree.Bin(val.OpLt, tree.Name(acc), tree.Name(n)),
			Body: tree.List(
				tree.Assign(acc, &tree.CallExpr{Func: double, Args: []tree.Expr{tree.Name(acc)}, T: types.Int}),
				&tree.ExprStmt{E: &tree.EventExpr{Handler: tick, Args: []tree.Expr{tree.Name(acc)}}},
			),
		},
		&tree.SwitchStmt{
			Value:   tree.Name(acc),
			Default: 1,
			Cases: []*tree.Case{
				{Values: []*tree.ConstExpr{tree.Const(val.Int(8))}, Body: &tree.BreakStmt{}},
				{Body: tree.Assign(g, tree.Name(acc))},
			},
		},
		&tree.ReturnStmt{Value: tree.Name(acc)},
	)
	return &tree.Function{Name: "f", Params: []*tree.ID{n}, Result: types.Int, Body: body}, double, tick
}

func TestWireRoundTripPreservesShape(t *testing.T) {
	fn, double, tick := sampleFunction()
	var buf bytes.Buffer
	if err := tree.Encode(&buf, fn); err != nil {
		t.Fatalf("encode: %v", err)
	}
	res := resolver{
		fns:    map[string]tree.Callable{"double": double},
		events: map[string]*tree.EventHandler{"tick": tick},
	}
	got, err := tree.Decode(&buf, res)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "f" || len(got[0].Params) != 1 {
		t.Fatalf("unexpected functions: %+v", got)
	}
	body, ok := got[0].Body.(*tree.StmtList)
	if !ok || len(body.Stmts) != 5 {
		t.Fatalf("body shape: %#v", got[0].Body)
	}
	init := body.Stmts[0].(*tree.InitStmt)
	if init.Attrs == nil || init.Attrs.ExpireAfter != 5*time.Second {
		t.Fatalf("attrs lost: %+v", init.Attrs)
	}
	if init.IDs[0].Type.Tag != types.TagTable {
		t.Fatalf("table type lost: %s", init.IDs[0].Type)
	}

	// The parameter and every later reference must share one *ID.
	param := got[0].Params[0]
	loop := body.Stmts[2].(*tree.WhileStmt)
	cond := loop.Cond.(*tree.BinaryExpr)
	if cond.Y.(*tree.NameExpr).ID != param {
		t.Fatalf("identifier identity not preserved")
	}
	call := loop.Body.(*tree.StmtList).Stmts[0].(*tree.ExprStmt).E.(*tree.AssignExpr).Value.(*tree.CallExpr)
	if call.Func != double {
		t.Fatalf("callable not resolved")
	}
	sw := body.Stmts[3].(*tree.SwitchStmt)
	if sw.Default != 1 || sw.Cases[0].Values[0].Val.I != 8 {
		t.Fatalf("switch shape: %+v", sw)
	}
	if !sw.Cases[1].Body.(*tree.ExprStmt).E.(*tree.AssignExpr).Target.ID.Global {
		t.Fatalf("global flag lost")
	}
}

func TestDecodeRejectsUnknownCallable(t *testing.T) {
	fn, _, tick := sampleFunction()
	var buf bytes.Buffer
	if err := tree.Encode(&buf, fn); err != nil {
		t.Fatalf("encode: %v", err)
	}
	res := resolver{events: map[string]*tree.EventHandler{"tick": tick}}
	if _, err := tree.Decode(&buf, res); err == nil {
		t.Fatalf("expected unknown function error")
	}
}

func TestEncodeRejectsAggregateConstant(t *testing.T) {
	v := val.NewVector(types.NewVector(types.Int))
	defer val.Release(v)
	fn := &tree.Function{Name: "bad", Body: &tree.ReturnStmt{Value: tree.Const(v)}}
	if err := tree.Encode(&bytes.Buffer{}, fn); err == nil {
		t.Fatalf("expected error for aggregate constant")
	}
}

func TestInspectVisitsEveryName(t *testing.T) {
	fn, _, _ := sampleFunction()
	names := map[string]int{}
	tree.Inspect(fn.Body, func(n tree.Node) bool {
		if ne, ok := n.(*tree.NameExpr); ok {
			names[ne.ID.Name]++
		}
		return true
	})
	if names["acc"] != 8 || names["n"] != 1 || names["total"] != 1 {
		t.Fatalf("name counts: %v", names)
	}
}
