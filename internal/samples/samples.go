// Package samples holds small function bodies built by hand, used by the
// zam command and by tests across the module.
package samples

import (
	"slices"

	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// Sample is a runnable program: a set of bodies and the entry to call.
type Sample struct {
	Name  string
	Doc   string
	Entry string
	Args  []val.Value
	// Want is the entry's result; void for samples that suspend.
	Want val.Value
	// Async samples need a scheduler to finish.
	Async bool
	Build func(res tree.Resolver) []*tree.Function
}

// All returns every sample sorted by name.
func All() []Sample {
	out := []Sample{fib, classify, wordCount, squares, ticker}
	slices.SortFunc(out, func(a, b Sample) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// Lookup returns the sample named name.
func Lookup(name string) (Sample, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}

func num(i int64) *tree.ConstExpr  { return &tree.ConstExpr{Val: val.Int(i), T: types.Int} }
func str(s string) *tree.ConstExpr { return &tree.ConstExpr{Val: val.Str(s), T: types.String} }
func secs(f float64) *tree.ConstExpr {
	return &tree.ConstExpr{Val: val.Interval(f), T: types.Interval}
}

func name(id *tree.ID) *tree.NameExpr { return tree.Name(id) }

func bin(op val.Op, x, y tree.Expr) *tree.BinaryExpr { return tree.Bin(op, x, y) }

func ret(e tree.Expr) *tree.ReturnStmt { return &tree.ReturnStmt{Value: e} }

func call(res tree.Resolver, fn string, t *types.Type, args ...tree.Expr) *tree.CallExpr {
	c, _ := res.Callable(fn)
	return &tree.CallExpr{Func: c, Args: args, T: t}
}

func stmt(e tree.Expr) *tree.ExprStmt { return &tree.ExprStmt{E: e} }

var fib = Sample{
	Name:  "fib",
	Doc:   "iterative Fibonacci with a pre-checked while loop",
	Entry: "fib",
	Args:  []val.Value{val.Int(20)},
	Want:  val.Int(6765),
	Build: func(tree.Resolver) []*tree.Function {
		n := tree.NewLocal("n", types.Int)
		a := tree.NewLocal("a", types.Int)
		b := tree.NewLocal("b", types.Int)
		t := tree.NewLocal("t", types.Int)
		return []*tree.Function{{
			Name: "fib", Params: []*tree.ID{n}, Result: types.Int,
			Body: tree.List(
				tree.Assign(a, num(0)),
				tree.Assign(b, num(1)),
				&tree.WhileStmt{
					Cond: bin(val.OpGt, name(n), num(0)),
					Body: tree.List(
						tree.Assign(t, bin(val.OpAdd, name(a), name(b))),
						tree.Assign(a, name(b)),
						tree.Assign(b, name(t)),
						tree.Assign(n, bin(val.OpSub, name(n), num(1))),
					),
				},
				ret(name(a)),
			),
		}}
	},
}

var classify = Sample{
	Name:  "classify",
	Doc:   "value and type switches with fallthrough, summed over several inputs",
	Entry: "main",
	Want:  val.Int(1 + 11 + 100 + 5 + 3),
	Build: func(res tree.Resolver) []*tree.Function {
		x := tree.NewLocal("x", types.Int)
		r := tree.NewLocal("r", types.Int)
		byValue := &tree.Function{
			Name: "by_value", Params: []*tree.ID{x}, Result: types.Int,
			Body: tree.List(
				tree.Assign(r, num(0)),
				&tree.SwitchStmt{
					Value:   name(x),
					Default: 2,
					Cases: []*tree.Case{
						{Values: []*tree.ConstExpr{num(1)}, Body: tree.Assign(r, num(1))},
						{Values: []*tree.ConstExpr{num(2), num(3)}, Body: tree.List(
							tree.Assign(r, num(1)), &tree.FallthroughStmt{})},
						{Body: tree.Assign(r, bin(val.OpAdd, name(r), num(10)))},
					},
				},
				ret(name(r)),
			),
		}
		v := tree.NewLocal("v", types.Any)
		n := tree.NewLocal("n", types.Int)
		s := tree.NewLocal("s", types.String)
		byType := &tree.Function{
			Name: "by_type", Params: []*tree.ID{v}, Result: types.Int,
			Body: &tree.SwitchStmt{
				Value:   name(v),
				Default: 2,
				Cases: []*tree.Case{
					{Types: []tree.TypeCase{{ID: n, Type: types.Int}}, Body: ret(name(n))},
					{Types: []tree.TypeCase{{ID: s, Type: types.String}}, Body: ret(num(3))},
					{Body: ret(num(0))},
				},
			},
		}
		total := tree.NewLocal("total", types.Int)
		last := tree.NewLocal("last", types.Int)
		add := func(e tree.Expr) tree.Stmt { return tree.Assign(total, bin(val.OpAdd, name(total), e)) }
		main := &tree.Function{
			Name: "main", Result: types.Int,
			Body: tree.List(
				tree.Assign(total, num(0)),
				add(call(res, "by_value", types.Int, num(1))),
				add(call(res, "by_value", types.Int, num(3))),
				tree.Assign(last, call(res, "by_value", types.Int, num(7))),
				&tree.IfStmt{Cond: bin(val.OpEq, name(last), num(10)), Then: add(num(100))},
				add(call(res, "by_type", types.Int, num(5))),
				add(call(res, "by_type", types.Int, str("five"))),
				ret(name(total)),
			),
		}
		return []*tree.Function{main, byValue, byType}
	},
}

var wordCount = Sample{
	Name:  "words",
	Doc:   "table initialisation, indexed updates and iteration over keys and values",
	Entry: "words",
	Want:  val.Int(3*100 + 2),
	Build: func(tree.Resolver) []*tree.Function {
		tt := types.NewTable(types.Int, types.String)
		counts := tree.NewLocal("counts", tt)
		words := tree.NewLocal("ws", types.NewVector(types.String))
		w := tree.NewLocal("w", types.String)
		i := tree.NewLocal("i", types.Count)
		k := tree.NewLocal("k", types.String)
		c := tree.NewLocal("c", types.Int)
		best := tree.NewLocal("best", types.Int)
		distinct := tree.NewLocal("distinct", types.Int)
		inc := &tree.IndexAssignExpr{
			Agg:   name(counts),
			Index: []tree.Expr{name(w)},
			Value: &tree.CondExpr{
				Cond: &tree.InExpr{Elem: name(w), Set: name(counts)},
				Then: bin(val.OpAdd, &tree.IndexExpr{Agg: name(counts), Index: []tree.Expr{name(w)}, T: types.Int}, num(1)),
				Else: num(1),
			},
		}
		return []*tree.Function{{
			Name: "words", Result: types.Int,
			Body: tree.List(
				&tree.InitStmt{IDs: []*tree.ID{counts, words}},
				stmt(&tree.IndexAssignExpr{Agg: name(words), Index: []tree.Expr{num(0)}, Value: str("go")}),
				stmt(&tree.IndexAssignExpr{Agg: name(words), Index: []tree.Expr{num(1)}, Value: str("zam")}),
				stmt(&tree.IndexAssignExpr{Agg: name(words), Index: []tree.Expr{num(2)}, Value: str("go")}),
				stmt(&tree.IndexAssignExpr{Agg: name(words), Index: []tree.Expr{num(3)}, Value: str("go")}),
				&tree.ForStmt{Vars: []*tree.ID{i}, Value: w, Over: name(words), Body: stmt(inc)},
				tree.Assign(best, num(0)),
				tree.Assign(distinct, num(0)),
				&tree.ForStmt{Vars: []*tree.ID{k}, Value: c, Over: name(counts), Body: tree.List(
					tree.Assign(distinct, bin(val.OpAdd, name(distinct), num(1))),
					&tree.IfStmt{Cond: bin(val.OpGt, name(c), name(best)), Then: tree.Assign(best, name(c))},
				)},
				ret(bin(val.OpAdd, bin(val.OpMul, name(best), num(100)), name(distinct))),
			),
		}}
	},
}

var squares = Sample{
	Name:  "squares",
	Doc:   "vector element stores and a loop with next and break",
	Entry: "squares",
	Args:  []val.Value{val.Int(10)},
	Want:  val.Int(0 + 4 + 16 + 36 + 64),
	Build: func(tree.Resolver) []*tree.Function {
		n := tree.NewLocal("n", types.Int)
		v := tree.NewLocal("v", types.NewVector(types.Int))
		i := tree.NewLocal("i", types.Int)
		j := tree.NewLocal("j", types.Count)
		e := tree.NewLocal("e", types.Int)
		sum := tree.NewLocal("sum", types.Int)
		return []*tree.Function{{
			Name: "squares", Params: []*tree.ID{n}, Result: types.Int,
			Body: tree.List(
				&tree.InitStmt{IDs: []*tree.ID{v}},
				tree.Assign(i, num(0)),
				&tree.LoopStmt{Body: tree.List(
					&tree.IfStmt{Cond: bin(val.OpGe, name(i), name(n)), Then: &tree.BreakStmt{}},
					stmt(&tree.IndexAssignExpr{Agg: name(v), Index: []tree.Expr{name(i)}, Value: bin(val.OpMul, name(i), name(i))}),
					tree.Assign(i, bin(val.OpAdd, name(i), num(1))),
				)},
				tree.Assign(sum, num(0)),
				&tree.ForStmt{Vars: []*tree.ID{j}, Value: e, Over: name(v), Body: tree.List(
					&tree.IfStmt{Cond: bin(val.OpNe, bin(val.OpMod, name(e), num(2)), num(0)), Then: &tree.NextStmt{}},
					&tree.IfStmt{Cond: bin(val.OpGt, name(e), num(70)), Then: &tree.BreakStmt{}},
					tree.Assign(sum, bin(val.OpAdd, name(sum), name(e))),
				)},
				ret(name(sum)),
			),
		}}
	},
}

// Ticks is the global the ticker sample counts in.
var Ticks = tree.NewGlobal("ticks", types.Int)

var ticker = Sample{
	Name:  "ticker",
	Doc:   "a wait released by scheduled events before its timeout",
	Entry: "main",
	Async: true,
	Build: func(res tree.Resolver) []*tree.Function {
		tick, _ := res.Event("tick")
		schedule := func() tree.Stmt {
			return stmt(&tree.ScheduleExpr{When: secs(1), Interval: true, Event: tick})
		}
		main := &tree.Function{
			Name: "main",
			Body: tree.List(
				tree.Assign(Ticks, num(0)),
				schedule(),
				&tree.WhenStmt{
					Cond:        bin(val.OpGe, name(Ticks), num(3)),
					Body:        stmt(call(res, "print", types.Void, str("done after"), name(Ticks), str("ticks"))),
					Timeout:     secs(10),
					TimeoutBody: stmt(call(res, "print", types.Void, str("timed out"))),
				},
			),
		}
		onTick := &tree.Function{
			Name: "on_tick",
			Body: tree.List(
				tree.Assign(Ticks, bin(val.OpAdd, name(Ticks), num(1))),
				&tree.IfStmt{Cond: bin(val.OpLt, name(Ticks), num(5)), Then: schedule()},
			),
		}
		return []*tree.Function{main, onTick}
	},
}
