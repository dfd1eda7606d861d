package zam_test

import (
	"testing"

	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
	"zam/internal/zam"
)

func function(name string, params []*tree.ID, body ...tree.Stmt) *tree.Function {
	return &tree.Function{Name: name, Params: params, Body: tree.List(body...)}
}

func ret(e tree.Expr) *tree.ReturnStmt { return &tree.ReturnStmt{Value: e} }

func num(i int64) *tree.ConstExpr { return &tree.ConstExpr{Val: val.Int(i), T: types.Int} }

func str(s string) *tree.ConstExpr { return &tree.ConstExpr{Val: val.Str(s), T: types.String} }

func add(x, y tree.Expr) *tree.BinaryExpr { return tree.Bin(val.OpAdd, x, y) }

func mustCompile(t *testing.T, fn *tree.Function, env zam.Env) *zam.Machine {
	t.Helper()
	m, err := zam.Compile(fn, zam.Options{Env: env})
	if err != nil {
		t.Fatalf("compile %s: %v", fn.Name, err)
	}
	if err := zam.Validate(m); err != nil {
		t.Fatalf("validate %s: %v\n%s", fn.Name, err, m.Describe())
	}
	return m
}

func mustCall(t *testing.T, m *zam.Machine, args ...val.Value) val.Value {
	t.Helper()
	v, err := m.Call(args)
	if err != nil {
		t.Fatalf("call %s: %v\n%s", m.Name(), err, m.Describe())
	}
	return v
}

func countOps(m *zam.Machine, op zam.Op) int {
	n := 0
	for _, in := range m.Code() {
		if in.Op == op {
			n++
		}
	}
	return n
}
