package driver_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"zam/internal/diag"
	"zam/internal/driver"
	"zam/internal/observ"
	"zam/internal/sched"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
	"zam/internal/zam"
)

func num(i int64) *tree.ConstExpr { return &tree.ConstExpr{Val: val.Int(i), T: types.Int} }

func call(p *driver.Program, name string, t *types.Type, args ...tree.Expr) *tree.CallExpr {
	c, _ := p.Callable(name)
	return &tree.CallExpr{Func: c, Args: args, T: t}
}

// pair builds double(x) = x*2 and main() = double(21).
func pair(p *driver.Program) []*tree.Function {
	x := tree.NewLocal("x", types.Int)
	double := &tree.Function{Name: "double", Params: []*tree.ID{x},
		Body: &tree.ReturnStmt{Value: tree.Bin(val.OpMul, tree.Name(x), num(2))}}
	main := &tree.Function{Name: "main",
		Body: &tree.ReturnStmt{Value: call(p, "double", types.Int, num(21))}}
	return []*tree.Function{main, double}
}

func TestProgramCallsAcrossBodies(t *testing.T) {
	p := driver.New(driver.Options{Jobs: 2})
	if err := p.Add(pair(p)...); err != nil {
		t.Fatal(err)
	}
	if err := p.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := p.Call("main", nil)
	if err != nil || got.I != 42 {
		t.Fatalf("main = %s, %v", got, err)
	}
	if p.Arena().Len() != 2 {
		t.Fatalf("arena holds %d bodies", p.Arena().Len())
	}
	for i, b := range p.Bodies() {
		if b.ID != zam.BodyID(i) {
			t.Fatalf("%s has id %d, want %d", b.Name(), b.ID, i)
		}
		if m, ok := p.Arena().Lookup(b.Name()); !ok || m != b.Machine {
			t.Fatalf("arena lookup %s", b.Name())
		}
	}
}

func TestProgramRejectsDuplicatesAndUndefined(t *testing.T) {
	p := driver.New(driver.Options{})
	fns := pair(p)
	if err := p.Add(fns[0]); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(fns[0]); err == nil {
		t.Fatal("duplicate accepted")
	}
	if err := p.Add(&tree.Function{Name: "print", Body: &tree.NullStmt{}}); err == nil {
		t.Fatal("builtin shadowed")
	}
	err := p.Compile(context.Background())
	if !errors.Is(err, driver.ErrUndefined) || !strings.Contains(err.Error(), "double") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompileFailureKeepsOtherBodies(t *testing.T) {
	p := driver.New(driver.Options{})
	x := tree.NewLocal("x", types.Int)
	bad := &tree.Function{Name: "bad", Params: []*tree.ID{x}, Body: &tree.SwitchStmt{
		Value:   tree.Name(x),
		Default: -1,
		Cases: []*tree.Case{
			{Values: []*tree.ConstExpr{num(1)}, Body: &tree.NullStmt{}},
			{Values: []*tree.ConstExpr{num(1)}, Body: &tree.NullStmt{}},
		},
	}}
	if err := p.Add(append(pair(p), bad)...); err != nil {
		t.Fatal(err)
	}
	err := p.Compile(context.Background())
	if err == nil {
		t.Fatal("expected a compile failure")
	}
	b, _ := p.Body("bad")
	if b.Err == nil || b.Machine == nil {
		t.Fatalf("bad body: err=%v machine=%v", b.Err, b.Machine)
	}
	if !p.Diagnostics().HasErrors() || p.Diagnostics().Items()[0].Code != diag.CmpDuplicateCase {
		t.Fatalf("diagnostics = %v", p.Diagnostics().Items())
	}
	if got, err := p.Call("main", nil); err != nil || got.I != 42 {
		t.Fatalf("main = %s, %v", got, err)
	}
}

func TestHandlersBindByName(t *testing.T) {
	p := driver.New(driver.Options{})
	g := tree.NewGlobal("hits", types.Int)
	p.Env().Globals().Store(g, val.Int(0))
	if err := p.Add(&tree.Function{Name: "on_ping",
		Body: tree.Assign(g, tree.Bin(val.OpAdd, tree.Name(g), num(1)))}); err != nil {
		t.Fatal(err)
	}
	if err := p.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := p.Raise("ping", nil); err != nil {
			t.Fatal(err)
		}
	}
	if v := p.Env().Globals().Load(g); v.I != 3 {
		t.Fatalf("hits = %s", v)
	}
}

func TestLoadWireForm(t *testing.T) {
	src := driver.New(driver.Options{})
	var buf bytes.Buffer
	if err := tree.Encode(&buf, pair(src)...); err != nil {
		t.Fatal(err)
	}
	timer := observ.NewTimer()
	p := driver.New(driver.Options{Timer: timer})
	fns, err := p.Load(&buf)
	if err != nil || len(fns) != 2 {
		t.Fatalf("load: %d functions, %v", len(fns), err)
	}
	if err := p.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, err := p.Call("main", nil); err != nil || got.I != 42 {
		t.Fatalf("main = %s, %v", got, err)
	}
	found := false
	for _, d := range p.Diagnostics().Items() {
		if d.Code == diag.ObsTimings && d.Severity == diag.SevInfo && len(d.Notes) == 1 {
			found = strings.Contains(d.Notes[0].Msg, `"compile double"`)
		}
	}
	if !found {
		t.Fatalf("no timing diagnostic: %v", p.Diagnostics().Items())
	}
}

func TestPrintBuiltin(t *testing.T) {
	var out bytes.Buffer
	p := driver.New(driver.Options{Out: &out})
	msg := &tree.ConstExpr{Val: val.Str("hello"), T: types.String}
	if err := p.Add(&tree.Function{Name: "main",
		Body: &tree.ExprStmt{E: call(p, "print", types.Void, msg, num(7))}}); err != nil {
		t.Fatal(err)
	}
	if err := p.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Call("main", nil); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello 7\n" {
		t.Fatalf("printed %q", out.String())
	}
}

func TestProgramUnderScheduler(t *testing.T) {
	s := sched.New(nil, sched.Config{})
	p := driver.New(driver.Options{Env: s})
	g := tree.NewGlobal("ready", types.Bool)
	done := tree.NewGlobal("done", types.Int)
	s.Globals().Store(g, val.Bool(false))
	s.Globals().Store(done, val.Int(0))
	if err := p.Add(
		&tree.Function{Name: "main", Body: &tree.WhenStmt{
			Cond: tree.Name(g),
			Body: tree.Assign(done, num(1)),
		}},
		&tree.Function{Name: "on_go", Body: tree.Assign(g, &tree.ConstExpr{Val: val.Bool(true), T: types.Bool})},
	); err != nil {
		t.Fatal(err)
	}
	if err := p.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Call("main", nil); err != nil {
		t.Fatal(err)
	}
	if s.Pending() != 1 {
		t.Fatalf("pending = %d", s.Pending())
	}
	if err := p.Raise("go", nil); err != nil {
		t.Fatal(err)
	}
	s.Advance(time.Second)
	if v := s.Globals().Load(done); v.I != 1 || s.Pending() != 0 {
		t.Fatalf("done = %s, pending = %d", v, s.Pending())
	}
}

type recordSink struct {
	mu     sync.Mutex
	events []driver.Event
}

func (r *recordSink) OnEvent(ev driver.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestCompileReportsProgress(t *testing.T) {
	sink := &recordSink{}
	p := driver.New(driver.Options{Jobs: 2, Progress: sink})
	if err := p.Add(pair(p)...); err != nil {
		t.Fatal(err)
	}
	if err := p.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	last := map[string]driver.Event{}
	queued := 0
	for _, ev := range sink.events {
		if ev.Status == driver.StatusQueued {
			queued++
		}
		last[ev.Body] = ev
	}
	if queued != 2 {
		t.Fatalf("queued %d bodies, want 2", queued)
	}
	for _, name := range []string{"main", "double"} {
		ev := last[name]
		if ev.Status != driver.StatusDone || ev.Stage != driver.StageValidate {
			t.Fatalf("%s ended with %+v", name, ev)
		}
	}
	if ev := last[""]; ev.Stage != driver.StageBind {
		t.Fatalf("program event %+v", ev)
	}
}
