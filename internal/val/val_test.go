package val_test

import (
	"errors"
	"testing"
	"time"

	"zam/internal/types"
	"zam/internal/val"
)

func TestBinaryArithmetic(t *testing.T) {
	cases := []struct {
		name string
		op   val.Op
		a, b val.Value
		want val.Value
	}{
		{"int add", val.OpAdd, val.Int(2), val.Int(3), val.Int(5)},
		{"count mul", val.OpMul, val.Count(4), val.Count(5), val.Count(20)},
		{"double div", val.OpDiv, val.Double(1), val.Double(4), val.Double(0.25)},
		{"mixed promotes", val.OpAdd, val.Int(1), val.Double(0.5), val.Double(1.5)},
		{"string concat", val.OpAdd, val.Str("ab"), val.Str("cd"), val.Str("abcd")},
		{"time plus interval", val.OpAdd, val.Time(10), val.Interval(5), val.Time(15)},
		{"lt", val.OpLt, val.Int(1), val.Int(2), val.Bool(true)},
		{"ge", val.OpGe, val.Count(1), val.Count(2), val.Bool(false)},
		{"and", val.OpAnd, val.Bool(true), val.Bool(false), val.Bool(false)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := val.Binary(tc.op, tc.a, tc.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Tag != tc.want.Tag || !val.Equal(got, tc.want) {
				t.Fatalf("got %s (%s), want %s (%s)", got, got.Tag, tc.want, tc.want.Tag)
			}
		})
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := val.Binary(val.OpDiv, val.Int(1), val.Int(0))
	if !errors.Is(err, val.ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestCoerce(t *testing.T) {
	v, err := val.Coerce(val.Count(7), types.TagDouble)
	if err != nil || v.Tag != types.TagDouble || v.F != 7 {
		t.Fatalf("coerce count->double: %v %v", v, err)
	}
	if _, err := val.Coerce(val.Int(-1), types.TagCount); err == nil {
		t.Fatal("negative int to count should fail")
	}
	if _, err := val.Coerce(val.Str("x"), types.TagInt); err == nil {
		t.Fatal("string to int should fail")
	}
}

func TestRefCountingReleasesContents(t *testing.T) {
	before := val.Live()
	rt := types.NewRecord("r", types.Field{Name: "v", Type: types.NewVector(types.Int)})
	rec := val.NewRecord(rt)
	vec := val.NewVector(rt.Fields[0].Type, val.Int(1), val.Int(2))
	if err := rec.SetField(0, vec); err != nil {
		t.Fatal(err)
	}
	val.Release(vec)
	if got := val.Live() - before; got != 2 {
		t.Fatalf("expected 2 live objects, got %d", got)
	}
	val.Release(rec)
	if got := val.Live() - before; got != 0 {
		t.Fatalf("expected all objects released, %d remain", got)
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	v := val.NewVector(types.NewVector(types.Int))
	val.Release(v)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double release")
		}
	}()
	val.Release(v)
}

func TestTableInsertLookupDelete(t *testing.T) {
	tt := types.NewTable(types.Count, types.String)
	tab := val.NewTable(tt, nil, nil)
	defer val.Release(tab)

	tab.Obj.Table.Insert(val.Count(1), val.Str("a"))
	tab.Obj.Table.Insert(val.Count(2), val.Str("b"))
	tab.Obj.Table.Insert(val.Count(3), val.Str("a"))

	if n := tab.Len(); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	got, err := val.Index(tab, val.Str("a"))
	if err != nil || got.U != 3 {
		t.Fatalf("lookup a: %v %v", got, err)
	}
	if !tab.Obj.Table.Delete(val.Str("a")) {
		t.Fatal("delete should report presence")
	}
	keys := tab.Obj.Table.Keys()
	if len(keys) != 1 || keys[0][0].S != "b" {
		t.Fatalf("unexpected keys after delete: %v", keys)
	}
}

func TestTableExpire(t *testing.T) {
	now := time.Unix(100, 0)
	clock := func() time.Time { return now }
	tab := val.NewTable(types.NewTable(nil, types.Int), &types.Attrs{ExpireAfter: time.Minute}, clock)
	defer val.Release(tab)

	tab.Obj.Table.Insert(val.Void, val.Int(1))
	now = now.Add(30 * time.Second)
	tab.Obj.Table.Insert(val.Void, val.Int(2))

	if n := tab.Obj.Table.Expire(now.Add(31 * time.Second)); n != 1 {
		t.Fatalf("expected one expired entry, got %d", n)
	}
	if tab.Obj.Table.Has(val.Int(1)) || !tab.Obj.Table.Has(val.Int(2)) {
		t.Fatal("wrong entry expired")
	}
}

func TestMembership(t *testing.T) {
	in, err := val.In(val.MustAddr("10.1.2.3"), val.MustSubnet("10.0.0.0/8"))
	if err != nil || !in {
		t.Fatalf("addr in subnet: %v %v", in, err)
	}
	in, err = val.In(val.Str("ell"), val.Str("hello"))
	if err != nil || !in {
		t.Fatalf("substring: %v %v", in, err)
	}
}

func TestStringIterNormalizes(t *testing.T) {
	// "e" followed by a combining acute accent composes to one segment.
	s, err := val.NewStringIter(val.Str("e\u0301x"))
	if err != nil {
		t.Fatal(err)
	}
	defer val.Release(s)
	it := s.Obj.Opaque.(*val.StringIter)

	var segs []string
	for {
		seg, _, ok := it.Next()
		if !ok {
			break
		}
		segs = append(segs, seg)
	}
	if len(segs) != 2 || segs[0] != "\u00e9" || segs[1] != "x" {
		t.Fatalf("unexpected segments %q", segs)
	}
}

func TestCaseKeyNormalizes(t *testing.T) {
	if val.CaseKey(val.Str("\u00e9")) != val.CaseKey(val.Str("e\u0301")) {
		t.Fatal("canonically equal strings should share a case key")
	}
}

func TestMatches(t *testing.T) {
	rt := types.NewRecord("conn")
	rec := val.NewRecord(rt)
	defer val.Release(rec)
	if !val.Matches(rec, types.NewRecord("conn")) {
		t.Fatal("record should match its own type")
	}
	if val.Matches(rec, types.NewRecord("other")) {
		t.Fatal("record should not match a different record type")
	}
	if !val.Matches(val.Count(1), types.Count) || val.Matches(val.Count(1), types.Int) {
		t.Fatal("atomic matching by tag failed")
	}
}

func TestCoerceRecordCopiesByName(t *testing.T) {
	base := val.Live()
	from := types.NewRecord("a", types.Field{Name: "x", Type: types.Int}, types.Field{Name: "y", Type: types.String})
	to := types.NewRecord("b", types.Field{Name: "y", Type: types.String}, types.Field{Name: "x", Type: types.Double}, types.Field{Name: "z", Type: types.Bool})
	r := val.NewRecord(from)
	_ = r.SetField(0, val.Int(3))
	_ = r.SetField(1, val.Str("s"))
	out, err := val.CoerceRecord(r, to)
	if err != nil {
		t.Fatal(err)
	}
	y, _ := out.Field(0)
	x, _ := out.Field(1)
	z, _ := out.Field(2)
	if y.S != "s" || x.Tag != types.TagDouble || x.F != 3 || !z.IsVoid() {
		t.Fatalf("coerced record = %s", out)
	}
	val.Release(out)
	val.Release(r)
	if d := val.Live() - base; d != 0 {
		t.Fatalf("leaked %d objects", d)
	}
}

func TestCoerceVectorConvertsElements(t *testing.T) {
	v := val.NewVector(types.NewVector(types.Count), val.Count(1), val.Count(2))
	defer val.Release(v)
	out, err := val.CoerceVector(v, types.NewVector(types.Double))
	if err != nil {
		t.Fatal(err)
	}
	defer val.Release(out)
	if out.Len() != 2 || out.Obj.Elems[1].Tag != types.TagDouble {
		t.Fatalf("coerced vector = %s", out)
	}
}
