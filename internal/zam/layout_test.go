package zam_test

import (
	"bytes"
	"strings"
	"testing"

	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
	"zam/internal/zam"
)

func TestLayoutSlotsAreInjective(t *testing.T) {
	a := tree.NewLocal("x", types.Int)
	b := tree.NewLocal("x", types.Int)
	g := tree.NewGlobal("g", types.String)
	l := zam.NewLayout([]*tree.ID{a})
	seen := map[int]*tree.ID{}
	for _, id := range []*tree.ID{a, b, g, a, b} {
		s := l.Slot(id)
		if prev, ok := seen[s]; ok && prev != id {
			t.Fatalf("slot %d shared by two identifiers", s)
		}
		seen[s] = id
	}
	if s, _ := l.Lookup(a); s != 0 {
		t.Fatalf("parameter in slot %d", s)
	}
	r := l.Register(types.TagInt)
	if _, ok := seen[r]; ok || l.Size() != 4 {
		t.Fatalf("register %d, size %d", r, l.Size())
	}
	if len(l.Globals()) != 1 || l.Globals()[0] != g {
		t.Fatalf("globals = %v", l.Globals())
	}
}

func TestListingNamesMatchLayout(t *testing.T) {
	fn, _ := switchFn()
	m := mustCompile(t, fn, nil)
	refs := 0
	for _, line := range m.Listing() {
		for _, ref := range line.Slots {
			d, ok := m.Layout().Denizen(ref.Slot)
			if !ok || d.Name != ref.Name {
				t.Fatalf("@%d: s%d named %q, layout has %q", line.Pos, ref.Slot, ref.Name, d.Name)
			}
			refs++
		}
	}
	if refs == 0 {
		t.Fatal("listing references no slots")
	}
}

func TestDumpSections(t *testing.T) {
	fn, _ := switchFn()
	m := mustCompile(t, fn, nil)
	var buf bytes.Buffer
	if err := m.Dump(&buf, zam.DumpOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"body pick", "frame:", "code:", "table#0:", "switch"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump lacks %q:\n%s", want, out)
		}
	}
}

func TestCompiledGotosAreResolved(t *testing.T) {
	i := tree.NewLocal("i", types.Int)
	body := &tree.WhileStmt{
		Cond: tree.Bin(val.OpLt, tree.Name(i), num(3)),
		Body: tree.List(
			&tree.IfStmt{Cond: tree.Bin(val.OpEq, tree.Name(i), num(1)), Then: &tree.BreakStmt{}, Else: &tree.NextStmt{}},
		),
	}
	m := mustCompile(t, function("gotos", nil, tree.Assign(i, num(0)), body), nil)
	for pos, in := range m.Code() {
		if in.Pos != pos {
			t.Fatalf("instruction %d claims position %d", pos, in.Pos)
		}
	}
}
