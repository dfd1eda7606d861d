package zam_test

import (
	"math"
	"testing"
	"time"

	"zam/internal/interp"
	"zam/internal/trace"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
	"zam/internal/zam"
)

// waitFn waits for g to turn positive, returning 1, or 2 after five
// seconds.
func waitFn(g *tree.ID, params ...*tree.ID) *tree.Function {
	return function("waiter", params, &tree.WhenStmt{
		Cond:        tree.Bin(val.OpGt, tree.Name(g), num(0)),
		Body:        ret(num(1)),
		Timeout:     &tree.ConstExpr{Val: val.Interval(5), T: types.Interval},
		TimeoutBody: ret(num(2)),
		IsReturn:    true,
	})
}

func suspendOnce(t *testing.T, m *zam.Machine, env *zam.LocalEnv, args ...val.Value) *zam.Resumption {
	t.Helper()
	v, err := m.Call(args)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsVoid() {
		t.Fatalf("suspended call yielded %s", v)
	}
	if len(env.Parked) != 1 {
		t.Fatalf("%d parked activations, want 1", len(env.Parked))
	}
	r := env.Parked[0]
	if r.State() != zam.StateSuspended {
		t.Fatalf("state = %s", r.State())
	}
	return r
}

func TestWhenTimeoutFiresOnce(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	env := zam.NewLocalEnv()
	env.Store.Store(g, val.Int(0))
	m := mustCompile(t, waitFn(g), env)
	r := suspendOnce(t, m, env)

	if d, ok := r.Deadline(); !ok || d != 5*time.Second {
		t.Fatalf("deadline = %v %v", d, ok)
	}
	res, err := r.Timeout()
	if err != nil {
		t.Fatal(err)
	}
	if res.Flow != interp.FlowReturn || res.Val.I != 2 {
		t.Fatalf("timeout result = %+v", res)
	}
	if !r.TimedOut() || r.State() != zam.StateCompleted || !r.Frame().TornDown() {
		t.Fatalf("after timeout: timedOut=%v state=%s torn=%v", r.TimedOut(), r.State(), r.Frame().TornDown())
	}
	if _, ok := r.Deadline(); ok {
		t.Fatal("completed activation still has a deadline")
	}
	for _, again := range []func() (interp.Result, error){r.Timeout, r.Resume} {
		_, err := again()
		if code, _ := zam.CodeOf(err); code != zam.ErrBadResumption {
			t.Fatalf("second continuation: %v", err)
		}
	}
}

func TestWhenResumesAfterGlobalChanges(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	env := zam.NewLocalEnv()
	env.Store.Store(g, val.Int(0))
	m := mustCompile(t, waitFn(g), env)
	r := suspendOnce(t, m, env)
	pc := r.PC()

	res, err := r.Resume()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Suspended() || res.Resume != interp.Continuation(r) {
		t.Fatalf("resume with false condition = %+v", res)
	}
	if r.PC() != pc {
		t.Fatalf("re-suspended at %d, first at %d", r.PC(), pc)
	}

	env.Store.Store(g, val.Int(3))
	res, err = r.Resume()
	if err != nil {
		t.Fatal(err)
	}
	if res.Flow != interp.FlowReturn || res.Val.I != 1 {
		t.Fatalf("resume = %+v", res)
	}
	if r.TimedOut() || r.State() != zam.StateCompleted {
		t.Fatalf("state = %s", r.State())
	}
	if _, err := r.Timeout(); err == nil {
		t.Fatal("timeout after completion succeeded")
	}
}

func TestWhenWithTrueConditionRunsInline(t *testing.T) {
	m := mustCompile(t, function("now", nil, &tree.WhenStmt{
		Cond: &tree.ConstExpr{Val: val.Bool(true), T: types.Bool},
		Body: ret(num(4)),
	}), nil)
	if countOps(m, zam.OpWait) != 0 {
		t.Fatalf("constant condition emitted a wait:\n%s", m.Describe())
	}
	if got := mustCall(t, m); got.I != 4 {
		t.Fatalf("now = %s", got)
	}
}

func TestCancelReleasesFrame(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	v := tree.NewLocal("v", types.NewVector(types.Int))
	env := zam.NewLocalEnv()
	env.Store.Store(g, val.Int(0))
	m := mustCompile(t, waitFn(g, v), env)

	base := val.Live()
	vec := val.NewVector(types.NewVector(types.Int), val.Int(1))
	r := suspendOnce(t, m, env, vec)
	val.Release(vec)
	if val.Live() == base {
		t.Fatal("suspended frame does not hold its argument")
	}
	r.Cancel()
	if val.Live() != base {
		t.Fatalf("leaked %d objects after cancel", val.Live()-base)
	}
	r.Cancel()
	if r.State() != zam.StateCompleted {
		t.Fatalf("state = %s", r.State())
	}
	if _, err := r.Resume(); err == nil {
		t.Fatal("resumed a cancelled activation")
	}
}

func TestResumptionRejectsForeignFrame(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	env := zam.NewLocalEnv()
	env.Store.Store(g, val.Int(0))
	m := mustCompile(t, waitFn(g), env)
	r := suspendOnce(t, m, env)
	defer r.Cancel()
	if _, err := r.Exec(m.NewFrame()); err == nil {
		t.Fatal("resumed on another frame")
	}
}

func TestGlobalsSyncedOnceAtExit(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	env := zam.NewLocalEnv()
	m := mustCompile(t, function("set", nil,
		tree.Assign(g, num(4)),
		tree.Assign(g, add(tree.Name(g), num(1))),
	), env)
	mustCall(t, m)
	if w := env.Store.Writes(g); w != 1 {
		t.Fatalf("%d writes, want 1", w)
	}
	if got := env.Store.Load(g); got.I != 5 {
		t.Fatalf("g = %s", got)
	}
}

func TestGlobalsSyncedAroundCalls(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	env := zam.NewLocalEnv()
	var seen val.Value
	peek := &tree.Builtin{FnName: "peek", Fn: func([]val.Value) (val.Value, error) {
		seen = env.Store.Load(g)
		return val.Void, nil
	}}
	m := mustCompile(t, function("set", nil,
		tree.Assign(g, num(5)),
		&tree.ExprStmt{E: &tree.CallExpr{Func: peek, T: types.Void}},
		tree.Assign(g, num(6)),
	), env)
	mustCall(t, m)
	if seen.I != 5 {
		t.Fatalf("callee saw g = %s", seen)
	}
	if w := env.Store.Writes(g); w != 2 {
		t.Fatalf("%d writes, want 2", w)
	}
}

func TestEventHandlerUpdatesGlobal(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	x := tree.NewLocal("x", types.Int)
	env := zam.NewLocalEnv()
	handler := mustCompile(t, function("on_ping", []*tree.ID{x}, tree.Assign(g, tree.Name(x))), env)
	ping := &tree.EventHandler{Name: "ping"}
	ping.Subscribe(handler)

	m := mustCompile(t, function("main", nil,
		&tree.ExprStmt{E: &tree.EventExpr{Handler: ping, Args: []tree.Expr{num(7)}}},
		ret(tree.Name(g)),
	), env)
	if got := mustCall(t, m); got.I != 7 {
		t.Fatalf("main = %s, want 7", got)
	}
}

func TestScheduleNeedsScheduler(t *testing.T) {
	ping := &tree.EventHandler{Name: "ping"}
	m := mustCompile(t, function("later", nil, &tree.ExprStmt{E: &tree.ScheduleExpr{
		When:     &tree.ConstExpr{Val: val.Interval(1), T: types.Interval},
		Interval: true,
		Event:    ping,
	}}), nil)
	_, err := m.Call(nil)
	if code, _ := zam.CodeOf(err); code != zam.ErrNoScheduler {
		t.Fatalf("err = %v", err)
	}
}

func TestReturnWhenEndsActivation(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	x := tree.NewLocal("x", types.Int)
	for _, isReturn := range []bool{false, true} {
		env := zam.NewLocalEnv()
		env.Store.Store(g, val.Int(0))
		fn := function("after", nil,
			tree.Assign(x, num(0)),
			&tree.WhenStmt{
				Cond:     tree.Bin(val.OpGt, tree.Name(g), num(0)),
				Body:     tree.Assign(x, num(1)),
				Timeout:  &tree.ConstExpr{Val: val.Interval(5), T: types.Interval},
				IsReturn: isReturn,
			},
			ret(add(tree.Name(x), num(6))),
		)
		m := mustCompile(t, fn, env)

		woken := suspendOnce(t, m, env)
		env.Store.Store(g, val.Int(1))
		res, err := woken.Resume()
		if err != nil {
			t.Fatal(err)
		}
		if res.Flow != interp.FlowReturn {
			t.Fatalf("return=%v: flow = %s", isReturn, res.Flow)
		}
		switch {
		case isReturn && !res.Val.IsVoid():
			t.Errorf("return-when ran past its body: %s", res.Val)
		case !isReturn && res.Val.I != 7:
			t.Errorf("plain when yielded %s, want 7", res.Val)
		}

		env.Parked = nil
		env.Store.Store(g, val.Int(0))
		expired := suspendOnce(t, m, env)
		res, err = expired.Timeout()
		if err != nil {
			t.Fatal(err)
		}
		switch {
		case isReturn && !res.Val.IsVoid():
			t.Errorf("return-when ran past its timeout: %s", res.Val)
		case !isReturn && res.Val.I != 6:
			t.Errorf("plain when after timeout yielded %s, want 6", res.Val)
		}
	}
}

func TestResumeTraceFollowsActivation(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	env := zam.NewLocalEnv()
	env.Store.Store(g, val.Int(0))
	ring := trace.NewRingTracer(64, trace.LevelPhase)
	m, err := zam.Compile(waitFn(g), zam.Options{Env: env, Tracer: ring})
	if err != nil {
		t.Fatal(err)
	}
	r := suspendOnce(t, m, env)
	env.Store.Store(g, val.Int(1))
	if _, err := r.Resume(); err != nil {
		t.Fatal(err)
	}

	events := ring.Activation(r.ActivationID().String())
	var resumed bool
	for _, ev := range events {
		if ev.Name == "resume" {
			resumed = true
		}
	}
	if !resumed {
		t.Fatalf("activation events lack the resume: %+v", events)
	}
	if got := ring.Body("waiter"); len(got) < len(events) {
		t.Fatalf("body view has %d events, activation %d", len(got), len(events))
	}
}

func TestWaitTimeoutSaturates(t *testing.T) {
	g := tree.NewGlobal("g", types.Int)
	cases := []struct {
		secs float64
		want time.Duration
	}{
		{1.5, 1500 * time.Millisecond},
		{-3, 0},
		{math.NaN(), 0},
		{1e300, time.Duration(math.MaxInt64)},
		{math.Inf(1), time.Duration(math.MaxInt64)},
	}
	for _, tc := range cases {
		env := zam.NewLocalEnv()
		env.Store.Store(g, val.Int(0))
		m := mustCompile(t, function("wait", nil, &tree.WhenStmt{
			Cond:    tree.Bin(val.OpGt, tree.Name(g), num(0)),
			Body:    ret(num(1)),
			Timeout: &tree.ConstExpr{Val: val.Interval(tc.secs), T: types.Interval},
		}), env)
		r := suspendOnce(t, m, env)
		if d, ok := r.Deadline(); !ok || d != tc.want {
			t.Errorf("timeout %v: deadline = %v %v, want %v", tc.secs, d, ok, tc.want)
		}
		r.Cancel()
	}
}
