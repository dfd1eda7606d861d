package zam_test

import (
	"errors"
	"strings"
	"testing"

	"zam/internal/diag"
	"zam/internal/frame"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
	"zam/internal/zam"
)

func switchFn() (*tree.Function, *tree.ID) {
	x := tree.NewLocal("x", types.Int)
	r := tree.NewLocal("r", types.String)
	sw := &tree.SwitchStmt{
		Value:   tree.Name(x),
		Default: 2,
		Cases: []*tree.Case{
			{Values: []*tree.ConstExpr{num(1)}, Body: tree.Assign(r, str("A"))},
			{Values: []*tree.ConstExpr{num(2)}, Body: tree.Assign(r, str("B"))},
			{Body: tree.Assign(r, str("C"))},
		},
	}
	return function("pick", []*tree.ID{x}, sw, ret(tree.Name(r))), x
}

func TestValueSwitchDispatch(t *testing.T) {
	fn, _ := switchFn()
	m := mustCompile(t, fn, nil)
	for in, want := range map[int64]string{1: "A", 2: "B", 5: "C"} {
		if got := mustCall(t, m, val.Int(in)); got.S != want {
			t.Errorf("pick(%d) = %s, want %q", in, got, want)
		}
	}
	if n := countOps(m, zam.OpBranchSwitch); n != 1 {
		t.Errorf("%d dispatch instructions, want 1", n)
	}
}

func TestSwitchDispatchesPerCategory(t *testing.T) {
	x := tree.NewLocal("x", types.Any)
	r := tree.NewLocal("r", types.Int)
	sw := &tree.SwitchStmt{
		Value:   tree.Name(x),
		Default: -1,
		Cases: []*tree.Case{
			{Values: []*tree.ConstExpr{num(1)}, Body: tree.Assign(r, num(10))},
			{Values: []*tree.ConstExpr{str("one")}, Body: tree.Assign(r, num(20))},
		},
	}
	m := mustCompile(t, function("cat", []*tree.ID{x}, tree.Assign(r, num(0)), sw, ret(tree.Name(r))), nil)
	if n := countOps(m, zam.OpBranchSwitch); n != 2 {
		t.Fatalf("%d dispatch instructions, want 2", n)
	}
	cases := []struct {
		in   val.Value
		want int64
	}{
		{val.Int(1), 10},
		{val.Str("one"), 20},
		{val.Str("two"), 0},
		{val.Double(1), 0},
	}
	for _, c := range cases {
		if got := mustCall(t, m, c.in); got.I != c.want {
			t.Errorf("cat(%s) = %s, want %d", c.in, got, c.want)
		}
	}
}

func TestDuplicateCaseLabelIsCompileError(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	sw := &tree.SwitchStmt{
		Value:   tree.Name(x),
		Default: -1,
		Cases: []*tree.Case{
			{Values: []*tree.ConstExpr{num(1)}, Body: ret(num(1))},
			{Values: []*tree.ConstExpr{num(1)}, Body: ret(num(2))},
		},
	}
	m, err := zam.Compile(function("dup", []*tree.ID{x}, sw), zam.Options{})
	if err == nil {
		t.Fatal("expected a compile error")
	}
	ds := m.Diagnostics()
	if len(ds) != 1 || ds[0].Code != diag.CmpDuplicateCase {
		t.Fatalf("diagnostics = %v", ds)
	}
	if err := zam.Validate(m); err != nil {
		t.Fatalf("body with construct errors should still be well formed: %v", err)
	}
	_, err = m.Call([]val.Value{val.Int(1)})
	if code, ok := zam.CodeOf(err); !ok || code != zam.ErrCompileFailed {
		t.Fatalf("running a failed body: %v", err)
	}
}

func TestFallthroughEntersNextCase(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	r := tree.NewLocal("r", types.Int)
	sw := &tree.SwitchStmt{
		Value:   tree.Name(x),
		Default: 2,
		Cases: []*tree.Case{
			{Values: []*tree.ConstExpr{num(1)}, Body: tree.List(tree.Assign(r, add(tree.Name(r), num(1))), &tree.FallthroughStmt{})},
			{Values: []*tree.ConstExpr{num(2)}, Body: tree.Assign(r, add(tree.Name(r), num(10)))},
			{Body: tree.Assign(r, num(100))},
		},
	}
	m := mustCompile(t, function("ft", []*tree.ID{x}, tree.Assign(r, num(0)), sw, ret(tree.Name(r))), nil)
	for in, want := range map[int64]int64{1: 11, 2: 10, 9: 100} {
		if got := mustCall(t, m, val.Int(in)); got.I != want {
			t.Errorf("ft(%d) = %s, want %d", in, got, want)
		}
	}
}

func TestTypeSwitchBindsPattern(t *testing.T) {
	v := tree.NewLocal("v", types.Any)
	n := tree.NewLocal("n", types.Int)
	sw := &tree.SwitchStmt{
		Value:   tree.Name(v),
		Default: 2,
		Cases: []*tree.Case{
			{Types: []tree.TypeCase{{ID: n, Type: types.Int}}, Body: ret(add(tree.Name(n), num(1)))},
			{Types: []tree.TypeCase{{Type: types.String}}, Body: ret(num(0))},
			{Body: ret(num(-1))},
		},
	}
	m := mustCompile(t, function("kind", []*tree.ID{v}, sw), nil)
	cases := []struct {
		in   val.Value
		want int64
	}{
		{val.Int(41), 42},
		{val.Str("x"), 0},
		{val.Double(1.5), -1},
	}
	for _, c := range cases {
		if got := mustCall(t, m, c.in); got.I != c.want {
			t.Errorf("kind(%s) = %s, want %d", c.in, got, c.want)
		}
	}
}

func TestMixedSwitchRejected(t *testing.T) {
	v := tree.NewLocal("v", types.Any)
	sw := &tree.SwitchStmt{
		Value:   tree.Name(v),
		Default: -1,
		Cases: []*tree.Case{
			{Values: []*tree.ConstExpr{num(1)}, Body: &tree.NullStmt{}},
			{Types: []tree.TypeCase{{Type: types.String}}, Body: &tree.NullStmt{}},
		},
	}
	m, err := zam.Compile(function("mixed", []*tree.ID{v}, sw), zam.Options{})
	if err == nil || m.Diagnostics()[0].Code != diag.CmpMixedSwitch {
		t.Fatalf("err = %v", err)
	}
}

func TestWhileNextAndBreak(t *testing.T) {
	i := tree.NewLocal("i", types.Int)
	s := tree.NewLocal("s", types.Int)
	loop := &tree.WhileStmt{
		Cond: tree.Bin(val.OpLt, tree.Name(i), num(10)),
		Body: tree.List(
			tree.Assign(i, add(tree.Name(i), num(1))),
			&tree.IfStmt{Cond: tree.Bin(val.OpEq, tree.Name(i), num(3)), Then: &tree.NextStmt{}},
			&tree.IfStmt{Cond: tree.Bin(val.OpEq, tree.Name(i), num(6)), Then: &tree.BreakStmt{}},
			tree.Assign(s, add(tree.Name(s), tree.Name(i))),
		),
	}
	m := mustCompile(t, function("sum", nil,
		tree.Assign(i, num(0)), tree.Assign(s, num(0)), loop, ret(tree.Name(s))), nil)
	if got := mustCall(t, m); got.I != 12 {
		t.Fatalf("sum = %s, want 12", got)
	}
}

func TestPostCheckedWhileRunsOnce(t *testing.T) {
	i := tree.NewLocal("i", types.Int)
	loop := &tree.WhileStmt{
		Cond:      tree.Bin(val.OpLt, tree.Name(i), num(0)),
		Body:      tree.Assign(i, add(tree.Name(i), num(1))),
		PostCheck: true,
	}
	m := mustCompile(t, function("once", nil, tree.Assign(i, num(0)), loop, ret(tree.Name(i))), nil)
	if got := mustCall(t, m); got.I != 1 {
		t.Fatalf("once = %s, want 1", got)
	}
}

func TestLoopUntilBreak(t *testing.T) {
	i := tree.NewLocal("i", types.Int)
	loop := &tree.LoopStmt{Body: tree.List(
		tree.Assign(i, add(tree.Name(i), num(2))),
		&tree.IfStmt{Cond: tree.Bin(val.OpGe, tree.Name(i), num(7)), Then: &tree.BreakStmt{}},
	)}
	m := mustCompile(t, function("loop", nil, tree.Assign(i, num(0)), loop, ret(tree.Name(i))), nil)
	if got := mustCall(t, m); got.I != 8 {
		t.Fatalf("loop = %s, want 8", got)
	}
}

func vectorLoop(retIdx bool) *tree.Function {
	v := tree.NewLocal("v", types.NewVector(types.Int))
	i := tree.NewLocal("i", types.Count)
	e := tree.NewLocal("e", types.Int)
	s := tree.NewLocal("s", types.Int)
	result := tree.Expr(tree.Name(s))
	if retIdx {
		result = tree.Name(i)
	}
	return function("vsum", []*tree.ID{v},
		tree.Assign(i, &tree.ConstExpr{Val: val.Count(7), T: types.Count}),
		tree.Assign(s, num(0)),
		&tree.ForStmt{Vars: []*tree.ID{i}, Value: e, Over: tree.Name(v),
			Body: tree.Assign(s, add(tree.Name(s), tree.Name(e)))},
		ret(result),
	)
}

func TestForOverEmptyVectorRunsZeroTimes(t *testing.T) {
	base := val.Live()
	vec := val.NewVector(types.NewVector(types.Int))
	for _, retIdx := range []bool{false, true} {
		m := mustCompile(t, vectorLoop(retIdx), nil)
		got := mustCall(t, m, vec)
		switch {
		case !retIdx && got.I != 0:
			t.Errorf("sum over empty vector = %s", got)
		case retIdx && got.U != 7:
			t.Errorf("loop variable changed to %s", got)
		}
	}
	val.Release(vec)
	if val.Live() != base {
		t.Fatalf("leaked %d objects", val.Live()-base)
	}
}

func TestForOverEmptyContainersLeavesLoopVarsVoid(t *testing.T) {
	tt := types.NewTable(types.Int, types.String)
	tab := tree.NewLocal("t", tt)
	text := tree.NewLocal("text", types.String)
	k := tree.NewLocal("k", types.String)
	v := tree.NewLocal("v", types.Int)
	c := tree.NewLocal("c", types.String)
	n := tree.NewLocal("n", types.Int)

	// loop builds a body that counts iterations over the parameter and
	// returns either the count or one of the loop variables.
	loop := func(over *tree.ID, vars []*tree.ID, value, result *tree.ID) *tree.Function {
		return function("empty", []*tree.ID{over},
			tree.Assign(n, num(0)),
			&tree.ForStmt{Vars: vars, Value: value, Over: tree.Name(over),
				Body: tree.Assign(n, add(tree.Name(n), num(1)))},
			ret(tree.Name(result)),
		)
	}

	base := val.Live()
	empty := val.NewTable(tt, nil, nil)
	cases := []struct {
		name  string
		fn    *tree.Function
		arg   val.Value
		count bool
	}{
		{"table count", loop(tab, []*tree.ID{k}, v, n), empty, true},
		{"table key", loop(tab, []*tree.ID{k}, v, k), empty, false},
		{"table value", loop(tab, []*tree.ID{k}, v, v), empty, false},
		{"string count", loop(text, []*tree.ID{c}, nil, n), val.Str(""), true},
		{"string char", loop(text, []*tree.ID{c}, nil, c), val.Str(""), false},
	}
	for _, tc := range cases {
		m := mustCompile(t, tc.fn, nil)
		got := mustCall(t, m, tc.arg)
		if tc.count {
			if got.I != 0 {
				t.Errorf("%s: %s iterations over an empty container", tc.name, got)
			}
			continue
		}
		if !got.IsVoid() {
			t.Errorf("%s: loop variable set to %s", tc.name, got)
		}
		val.Release(got)
	}
	val.Release(empty)
	if val.Live() != base {
		t.Fatalf("leaked %d objects", val.Live()-base)
	}
}

func TestForOverVector(t *testing.T) {
	vec := val.NewVector(types.NewVector(types.Int), val.Int(10), val.Int(20), val.Int(30))
	defer val.Release(vec)
	m := mustCompile(t, vectorLoop(false), nil)
	if got := mustCall(t, m, vec); got.I != 60 {
		t.Fatalf("vsum = %s, want 60", got)
	}
	if n := countOps(m, zam.OpEndLoop); n != 1 {
		t.Fatalf("%d end-loop instructions", n)
	}
}

func TestForOverStringWalksNormalizedCharacters(t *testing.T) {
	text := tree.NewLocal("text", types.String)
	c := tree.NewLocal("c", types.String)
	n := tree.NewLocal("n", types.Int)
	count := function("chars", []*tree.ID{text},
		tree.Assign(n, num(0)),
		&tree.ForStmt{Vars: []*tree.ID{c}, Over: tree.Name(text),
			Body: tree.Assign(n, add(tree.Name(n), num(1)))},
		ret(tree.Name(n)),
	)
	m := mustCompile(t, count, nil)
	// "e" plus a combining acute accent composes to one character.
	if got := mustCall(t, m, val.Str("ae\u0301z")); got.I != 3 {
		t.Fatalf("chars = %s, want 3", got)
	}
	if got := mustCall(t, m, val.Str("")); got.I != 0 {
		t.Fatalf("chars of empty string = %s", got)
	}

	last := function("last", []*tree.ID{text},
		tree.Assign(c, str("none")),
		&tree.ForStmt{Vars: []*tree.ID{c}, Over: tree.Name(text), Body: &tree.NullStmt{}},
		ret(tree.Name(c)),
	)
	m = mustCompile(t, last, nil)
	if got := mustCall(t, m, val.Str("ab\u00e9")); got.S != "\u00e9" {
		t.Fatalf("last = %q", got.S)
	}
}

func TestVectorCoercionIsOneInstruction(t *testing.T) {
	vi := types.NewVector(types.Int)
	vd := types.NewVector(types.Double)
	v := tree.NewLocal("v", vi)
	w := tree.NewLocal("w", vd)
	m := mustCompile(t, function("widen", []*tree.ID{v},
		tree.Assign(w, &tree.CoerceExpr{Kind: tree.CoerceVector, X: tree.Name(v), T: vd}),
		ret(tree.Name(w)),
	), nil)
	if n := countOps(m, zam.OpCoerce); n != 1 {
		t.Fatalf("%d coerce instructions, want 1", n)
	}

	base := val.Live()
	in := val.NewVector(vi, val.Int(1), val.Int(2))
	got := mustCall(t, m, in)
	if got.Tag != types.TagVector || len(got.Obj.Elems) != 2 {
		t.Fatalf("widen = %s", got)
	}
	if e := got.Obj.Elems[1]; e.Tag != types.TagDouble || e.F != 2 {
		t.Fatalf("element 1 = %s", e)
	}
	val.Release(got)
	val.Release(in)
	if val.Live() != base {
		t.Fatalf("leaked %d objects", val.Live()-base)
	}
}

func TestForOverTableWithInit(t *testing.T) {
	tt := types.NewTable(types.Int, types.String)
	tab := tree.NewLocal("t", tt)
	k := tree.NewLocal("k", types.String)
	v := tree.NewLocal("v", types.Int)
	s := tree.NewLocal("s", types.Int)
	put := func(key string, x int64) tree.Stmt {
		return &tree.ExprStmt{E: &tree.IndexAssignExpr{Agg: tree.Name(tab), Index: []tree.Expr{str(key)}, Value: num(x)}}
	}
	base := val.Live()
	m := mustCompile(t, function("tsum", nil,
		&tree.InitStmt{IDs: []*tree.ID{tab}},
		put("a", 1), put("b", 2),
		tree.Assign(s, num(0)),
		&tree.ForStmt{Vars: []*tree.ID{k}, Value: v, Over: tree.Name(tab),
			Body: tree.Assign(s, add(tree.Name(s), tree.Name(v)))},
		ret(tree.Name(s)),
	), nil)
	if got := mustCall(t, m); got.I != 3 {
		t.Fatalf("tsum = %s, want 3", got)
	}
	if val.Live() != base {
		t.Fatalf("leaked %d objects", val.Live()-base)
	}
}

func TestInterpretedConditional(t *testing.T) {
	p := tree.NewLocal("p", types.Bool)
	r := tree.NewLocal("r", types.Int)
	m := mustCompile(t, function("cond", []*tree.ID{p},
		tree.Assign(r, &tree.CondExpr{Cond: tree.Name(p), Then: num(1), Else: num(2)}),
		ret(tree.Name(r)),
	), nil)
	if countOps(m, zam.OpInterpret) != 1 {
		t.Fatalf("conditional not interpreted:\n%s", m.Describe())
	}
	if got := mustCall(t, m, val.Bool(false)); got.I != 2 {
		t.Fatalf("cond(F) = %s", got)
	}
}

func TestCallBetweenBodies(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	double := mustCompile(t, function("double", []*tree.ID{x}, ret(tree.Bin(val.OpMul, tree.Name(x), num(2)))), nil)
	r := tree.NewLocal("r", types.Double)
	call := &tree.CallExpr{Func: double, Args: []tree.Expr{num(21)}, T: types.Int}
	main := mustCompile(t, function("main", nil,
		tree.Assign(r, &tree.CoerceExpr{Kind: tree.CoerceArith, X: call, T: types.Double}),
		ret(tree.Name(r)),
	), nil)
	got := mustCall(t, main)
	if got.Tag != types.TagDouble || got.F != 42 {
		t.Fatalf("main = %s (%s), want 42 as double", got, got.Tag)
	}
	if countOps(main, zam.OpCoerce) != 0 {
		t.Fatalf("coercion of a call result should be inline:\n%s", main.Describe())
	}
}

func TestCallErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	fail := &tree.Builtin{FnName: "fail", Fn: func([]val.Value) (val.Value, error) { return val.Void, boom }}
	m := mustCompile(t, function("f", nil, &tree.ExprStmt{E: &tree.CallExpr{Func: fail, T: types.Void}}), nil)
	_, err := m.Call(nil)
	if code, _ := zam.CodeOf(err); code != zam.ErrCall || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestDeadStoreElided(t *testing.T) {
	x := tree.NewLocal("x", types.Int)
	fn := function("dead", nil, tree.Assign(x, num(1)), tree.Assign(x, num(2)), ret(tree.Name(x)))
	m := mustCompile(t, fn, nil)
	kept, err := zam.Compile(fn, zam.Options{KeepDead: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Code()) != len(kept.Code())-1 {
		t.Fatalf("elided %d instructions, want 1", len(kept.Code())-len(m.Code()))
	}
	if got := mustCall(t, m); got.I != 2 {
		t.Fatalf("dead = %s", got)
	}
}

func TestFrameTooSmall(t *testing.T) {
	fn, _ := switchFn()
	m := mustCompile(t, fn, nil)
	_, err := m.Exec(frame.New(0))
	if code, _ := zam.CodeOf(err); code != zam.ErrFrameSize {
		t.Fatalf("err = %v", err)
	}
}

func TestBreakOutsideLoopIsInternalError(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*zam.InternalError)
		if !ok {
			t.Fatalf("recovered %v, want *InternalError", r)
		}
		if !strings.Contains(ie.Error(), "break") {
			t.Fatalf("message = %q", ie.Error())
		}
	}()
	_, _ = zam.Compile(function("bad", nil, &tree.BreakStmt{}), zam.Options{})
}

func TestEmptyBodyCompilesToNothing(t *testing.T) {
	m := mustCompile(t, function("empty", nil, &tree.NullStmt{}), nil)
	if len(m.Code()) != 0 {
		t.Fatalf("empty body emitted:\n%s", m.Describe())
	}
	fr := m.NewFrame()
	res, err := m.Exec(fr)
	if err != nil || res.Flow.String() != "fallthrough" {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}
