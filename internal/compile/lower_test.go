package compile

import (
	"reflect"
	"testing"

	"zam/internal/diag"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// recorder is a backend that logs the operations Lower selects.
type recorder struct {
	ops     []string
	emitted int
}

func (r *recorder) op(name string) CompiledStmt {
	r.ops = append(r.ops, name)
	r.emitted++
	return At(r.emitted - 1)
}

func (r *recorder) SetCurrStmt(tree.Stmt)                             {}
func (r *recorder) InterpretExpr(tree.Expr) CompiledStmt              { return r.op("interp") }
func (r *recorder) AssignExpr(*tree.NameExpr, tree.Expr) CompiledStmt { return r.op("assign") }
func (r *recorder) ArithCoerce(*tree.NameExpr, *tree.CoerceExpr) CompiledStmt {
	return r.op("arith")
}
func (r *recorder) RecordCoerce(*tree.NameExpr, *tree.CoerceExpr) CompiledStmt {
	return r.op("record")
}
func (r *recorder) TableCoerce(*tree.NameExpr, *tree.CoerceExpr) CompiledStmt {
	return r.op("table")
}
func (r *recorder) VectorCoerce(*tree.NameExpr, *tree.CoerceExpr) CompiledStmt {
	return r.op("vector")
}
func (r *recorder) IfElse(*tree.IfStmt) CompiledStmt     { return r.op("if") }
func (r *recorder) While(*tree.WhileStmt) CompiledStmt   { return r.op("while") }
func (r *recorder) Loop(*tree.LoopStmt) CompiledStmt     { return r.op("loop") }
func (r *recorder) When(*tree.WhenStmt) CompiledStmt     { return r.op("when") }
func (r *recorder) Switch(*tree.SwitchStmt) CompiledStmt { return r.op("switch") }
func (r *recorder) For(*tree.ForStmt) CompiledStmt       { return r.op("for") }
func (r *recorder) CallStmt(*tree.CallExpr) CompiledStmt { return r.op("call") }
func (r *recorder) AssignToCall(_ *tree.NameExpr, _ *tree.CallExpr, c *tree.CoerceExpr) CompiledStmt {
	if c != nil {
		return r.op("assign-call-coerce")
	}
	return r.op("assign-call")
}
func (r *recorder) AssignVecElems(*tree.IndexAssignExpr) CompiledStmt { return r.op("vec-elems") }
func (r *recorder) InitRecord(*tree.ID, *types.Type) CompiledStmt     { return r.op("init-record") }
func (r *recorder) InitVector(*tree.ID, *types.Type) CompiledStmt     { return r.op("init-vector") }
func (r *recorder) InitTable(*tree.ID, *types.Type, *types.Attrs) CompiledStmt {
	return r.op("init-table")
}
func (r *recorder) Return(*tree.ReturnStmt) CompiledStmt     { return r.op("return") }
func (r *recorder) Schedule(*tree.ScheduleExpr) CompiledStmt { return r.op("schedule") }
func (r *recorder) Event(*tree.EventExpr) CompiledStmt       { return r.op("event") }
func (r *recorder) Next() CompiledStmt                       { return r.op("next") }
func (r *recorder) Break() CompiledStmt                      { return r.op("break") }
func (r *recorder) FallThrough() CompiledStmt                { return r.op("fallthrough") }
func (r *recorder) StartingBlock() CompiledStmt              { return At(r.emitted) }
func (r *recorder) FinishBlock(CompiledStmt) CompiledStmt    { return At(r.emitted - 1) }
func (r *recorder) NullStmtOK() bool                         { return r.emitted == 0 }
func (r *recorder) EmptyStmt() CompiledStmt                  { return r.op("nop") }
func (r *recorder) ErrorStmt(_ tree.Loc, code diag.Code, _ string) CompiledStmt {
	return r.op("error:" + code.ID())
}
func (r *recorder) IsUnused(*tree.ID, tree.Stmt) bool { return false }
func (r *recorder) SyncGlobals(tree.Node)             {}
func (r *recorder) BuildVals([]tree.Expr) []Operand   { return nil }

func TestLowerSelectsOperations(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	d := tree.NewLocal("d", types.Double)
	v := tree.NewLocal("v", types.NewVector(types.Int))
	tbl := tree.NewLocal("t", types.NewTable(types.Int, types.String))
	f := &tree.Builtin{FnName: "f"}
	call := &tree.CallExpr{Func: f, T: types.Int}

	body := tree.List(
		tree.Assign(x, tree.Const(val.Int(1))),
		tree.Assign(x, call),
		tree.Assign(d, &tree.CoerceExpr{Kind: tree.CoerceArith, X: call, T: types.Double}),
		tree.Assign(d, &tree.CoerceExpr{Kind: tree.CoerceArith, X: tree.Name(x), T: types.Double}),
		&tree.ExprStmt{E: call},
		&tree.ExprStmt{E: &tree.IndexAssignExpr{Agg: tree.Name(v), Index: []tree.Expr{tree.Const(val.Int(0))}, Value: tree.Name(x)}},
		&tree.ExprStmt{E: &tree.IndexAssignExpr{Agg: tree.Name(tbl), Index: []tree.Expr{tree.Const(val.Str("k"))}, Value: tree.Name(x)}},
		&tree.InitStmt{IDs: []*tree.ID{v, tbl}},
		&tree.NullStmt{},
		&tree.ReturnStmt{},
	)

	r := &recorder{}
	last := Lower(r, body)
	want := []string{
		"assign", "assign-call", "assign-call-coerce", "arith", "call",
		"vec-elems", "interp", "init-vector", "init-table", "nop", "return",
	}
	if !reflect.DeepEqual(r.ops, want) {
		t.Fatalf("ops = %v, want %v", r.ops, want)
	}
	if last.Pos() != len(want)-1 {
		t.Fatalf("last = %v, want @%d", last, len(want)-1)
	}
}

func TestLowerNullAtStartIsEmpty(t *testing.T) {
	r := &recorder{}
	if got := Lower(r, &tree.NullStmt{}); got.Valid() {
		t.Fatalf("got %v, want none", got)
	}
	if got := Lower(r, tree.List()); got.Valid() || len(r.ops) != 0 {
		t.Fatalf("empty list emitted %v", r.ops)
	}
}

func TestLowerInitRejectsAtomic(t *testing.T) {
	r := &recorder{}
	Lower(r, &tree.InitStmt{IDs: []*tree.ID{tree.NewLocal("n", types.Int)}})
	if len(r.ops) != 1 || r.ops[0] != "error:"+diag.CmpBadAssignTarget.ID() {
		t.Fatalf("ops = %v", r.ops)
	}
}
