package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestLevelGatesScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelPhase, ScopeBody, true},
		{LevelPhase, ScopeConstruct, false},
		{LevelDetail, ScopeConstruct, true},
		{LevelDetail, ScopeInstr, false},
		{LevelDebug, ScopeInstr, true},
		{LevelError, ScopeDriver, false},
	}
	for _, c := range cases {
		if got := c.level.ShouldEmit(c.scope); got != c.want {
			t.Errorf("%s.ShouldEmit(%s) = %v", c.level, c.scope, got)
		}
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)
	sp := Begin(tr, ScopeBody, "compile:f", 0)
	Point(tr, ScopeConstruct, "switch", "2 cases", Str("b", "2"), Int("a", 1))
	Point(tr, ScopeInstr, "op:nop", "")
	sp.With(Int("instrs", 12)).End("ok")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "→ compile:f") {
		t.Errorf("begin line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "• switch (2 cases) {b=2, a=1}") {
		t.Errorf("point line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "← compile:f (ok) {instrs=12}") {
		t.Errorf("end line: %q", lines[2])
	}
}

func TestRingTracerKeepsNewest(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeInstr, name, "")
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("snapshot = %+v", snap)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 2 || !strings.Contains(buf.String(), `"name":"c"`) {
		t.Fatalf("dump = %s", buf.String())
	}
}

type failing struct{ nopTracer }

func (failing) Close() error { return errors.New("boom") }

func TestMultiTracerCollectsErrors(t *testing.T) {
	m := NewMultiTracer(LevelPhase, failing{}, failing{}, NewRingTracer(4, LevelPhase))
	err := m.Close()
	if err == nil || strings.Count(err.Error(), "boom") != 2 {
		t.Fatalf("close err = %v", err)
	}
}

func TestContextPropagation(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != Nop {
		t.Fatalf("empty context should yield Nop")
	}
	r := NewRingTracer(4, LevelPhase)
	ctx = WithTracer(ctx, r)
	sp := Begin(FromContext(ctx), ScopeDriver, "run", 0)
	ctx = WithParent(ctx, sp)
	if ParentSpan(ctx) != sp.ID() || sp.ID() == 0 {
		t.Fatalf("parent span not propagated")
	}
}

func TestDisabledSpanIsInert(t *testing.T) {
	sp := Begin(Nop, ScopeDriver, "x", 0)
	if sp.ID() != 0 || sp.End("") != 0 {
		t.Fatalf("nop span should be inert")
	}
}

func TestSpanAttrsRepeatOnEnd(t *testing.T) {
	r := NewRingTracer(8, LevelDebug)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	sp := Begin(r, ScopeBody, "exec", 0, Body("f"), Act(id))
	child := sp.Child(ScopeInstr, "call", PC(3))
	child.End("")
	sp.With(Uint("steps", 9)).End("return")

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("got %d events", len(snap))
	}
	if snap[1].ParentID != snap[0].SpanID {
		t.Fatalf("child parent = %d, want %d", snap[1].ParentID, snap[0].SpanID)
	}
	if pc, _ := snap[2].Attr("pc"); pc != "3" {
		t.Fatalf("child end pc = %q", pc)
	}
	end := snap[3]
	if act, _ := end.Attr("act"); act != id.String() {
		t.Fatalf("end act = %q", act)
	}
	if steps, _ := end.Attr("steps"); steps != "9" {
		t.Fatalf("end steps = %q", steps)
	}
	if _, ok := snap[0].Attr("steps"); ok {
		t.Fatal("attribute added after begin leaked into the begin event")
	}

	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"attrs":{"act":"`+id.String()+`","body":"f"}`) {
		t.Fatalf("ndjson = %s", buf.String())
	}
}

func TestRingSelectsBodyThroughActivations(t *testing.T) {
	r := NewRingTracer(16, LevelDebug)
	waiter := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	other := uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	Begin(r, ScopeBody, "exec", 0, Body("waiter"), Act(waiter)).End("suspend")
	Begin(r, ScopeBody, "exec", 0, Body("main"), Act(other)).End("return")
	Point(r, ScopeDriver, "park", "", Act(waiter), PC(4))
	Point(r, ScopeBody, "resume", "waiter", Act(waiter), PC(4))
	Point(r, ScopeDriver, "event", "set")

	got := r.Body("waiter")
	var names []string
	for _, ev := range got {
		names = append(names, ev.Name)
	}
	if strings.Join(names, ",") != "exec,exec,park,resume" {
		t.Fatalf("waiter events = %v", names)
	}
	if n := len(r.Activation(other.String())); n != 2 {
		t.Fatalf("main activation has %d events", n)
	}
	if len(r.Body("missing")) != 0 {
		t.Fatal("unknown body matched events")
	}

	var buf bytes.Buffer
	if err := DumpEvents(&buf, got, FormatText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "main") {
		t.Fatalf("dump leaked another body:\n%s", buf.String())
	}
}
