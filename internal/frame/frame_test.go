package frame_test

import (
	"testing"

	"zam/internal/frame"
	"zam/internal/types"
	"zam/internal/val"
)

func TestSetReleasesPreviousValue(t *testing.T) {
	base := val.Live()
	f := frame.New(2)
	f.Declare(0, "v", types.TagVector)
	if err := f.Setup(nil); err != nil {
		t.Fatal(err)
	}
	vt := types.NewVector(types.Int)
	f.Set(0, val.NewVector(vt))
	f.Set(0, val.NewVector(vt))
	if got := val.Live() - base; got != 1 {
		t.Fatalf("live objects after overwrite = %d, want 1", got)
	}
	f.Teardown()
	f.Teardown()
	if got := val.Live() - base; got != 0 {
		t.Fatalf("live objects after teardown = %d, want 0", got)
	}
}

func TestSetupClearsManagedLocalsButKeepsArgs(t *testing.T) {
	base := val.Live()
	vt := types.NewVector(types.Int)
	arg := val.NewVector(vt)
	f := frame.New(3)
	f.Declare(1, "tmp", types.TagVector)
	f.Set(1, val.NewVector(vt))
	f.Set(2, val.Int(7))

	if err := f.Setup([]val.Value{arg}); err != nil {
		t.Fatal(err)
	}
	if !f.Get(1).IsVoid() {
		t.Fatalf("managed slot not cleared: %v", f.Get(1))
	}
	if f.Get(2).I != 7 {
		t.Fatalf("unmanaged slot changed: %v", f.Get(2))
	}
	if f.Get(0).Obj != arg.Obj || f.Slots[0].Own != frame.Borrowed {
		t.Fatalf("argument not bound as borrowed")
	}
	f.Teardown()
	if arg.Obj.Refs() != 1 {
		t.Fatalf("teardown released a borrowed argument")
	}
	val.Release(arg)
	if got := val.Live() - base; got != 0 {
		t.Fatalf("leaked %d objects", got)
	}
}

func TestScopeKeepAdoptsArguments(t *testing.T) {
	base := val.Live()
	arg := val.NewVector(types.NewVector(types.Int))
	f := frame.New(1)
	sc, err := frame.Enter(f, []val.Value{arg})
	if err != nil {
		t.Fatal(err)
	}
	kept := sc.Keep()
	sc.Close()
	if kept.TornDown() {
		t.Fatalf("kept frame was torn down")
	}
	val.Release(arg) // caller's reference ends
	if arg.Obj.Refs() != 1 {
		t.Fatalf("frame did not adopt its argument")
	}
	kept.Teardown()
	if got := val.Live() - base; got != 0 {
		t.Fatalf("leaked %d objects", got)
	}
}

func TestTakeTransfersOwnership(t *testing.T) {
	base := val.Live()
	f := frame.New(1)
	f.Set(0, val.NewVector(types.NewVector(types.Int)))
	v := f.Take(0)
	f.Teardown()
	if v.Obj.Refs() != 1 {
		t.Fatalf("taken value refs = %d", v.Obj.Refs())
	}
	val.Release(v)
	if got := val.Live() - base; got != 0 {
		t.Fatalf("leaked %d objects", got)
	}
}

func TestSetupRejectsTooManyArgs(t *testing.T) {
	if err := frame.New(1).Setup([]val.Value{val.Int(1), val.Int(2)}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSetupMarksCachesStale(t *testing.T) {
	f := frame.New(2)
	f.Slots[1].Cache = frame.Dirty
	if err := f.Setup(nil); err != nil {
		t.Fatal(err)
	}
	if got := f.Slots[1].Cache; got != frame.Stale {
		t.Fatalf("cache = %s, want stale", got)
	}
}
