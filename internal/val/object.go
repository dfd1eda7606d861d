package val

import (
	"fmt"
	"strings"
	"sync/atomic"

	"zam/internal/types"
)

// Object is a reference-counted aggregate.
type Object struct {
	rc   atomic.Int32
	Type *types.Type

	Fields []Value // record
	Elems  []Value // vector, list
	Table  *Table  // table, set
	Opaque any     // iterator state and other non-value payloads

	// OnFree runs once when the last reference is released.
	OnFree func()
}

var live atomic.Int64

// Live returns the number of objects that have been allocated and not yet
// released. Tests use it to detect leaked or double-released references.
func Live() int64 { return live.Load() }

func newObject(t *types.Type) *Object {
	o := &Object{Type: t}
	o.rc.Store(1)
	live.Add(1)
	return o
}

// Refs returns the current reference count.
func (o *Object) Refs() int32 {
	if o == nil {
		return 0
	}
	return o.rc.Load()
}

// Retain adds a reference to v's object, if any, and returns v.
func Retain(v Value) Value {
	if v.Obj != nil {
		if v.Obj.rc.Add(1) <= 1 {
			panic(fmt.Sprintf("val: retain of released %s", v.Tag))
		}
	}
	return v
}

// Release drops a reference to v's object, freeing it and everything it
// holds when the count reaches zero.
func Release(v Value) {
	o := v.Obj
	if o == nil {
		return
	}
	n := o.rc.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("val: double release of %s", v.Tag))
	}
	if n > 0 {
		return
	}
	for _, f := range o.Fields {
		Release(f)
	}
	for _, e := range o.Elems {
		Release(e)
	}
	if o.Table != nil {
		o.Table.releaseAll()
	}
	if o.OnFree != nil {
		o.OnFree()
	}
	live.Add(-1)
}

// NewRecord builds a record of type t with all fields unset.
func NewRecord(t *types.Type) Value {
	o := newObject(t)
	o.Fields = make([]Value, len(t.Fields))
	return Value{Tag: types.TagRecord, Obj: o}
}

// NewVector builds a vector of type t holding elems. The vector retains the
// elements; the caller keeps its own references.
func NewVector(t *types.Type, elems ...Value) Value {
	o := newObject(t)
	o.Elems = make([]Value, len(elems))
	for i, e := range elems {
		o.Elems[i] = Retain(e)
	}
	return Value{Tag: types.TagVector, Obj: o}
}

// NewList builds an untyped value list, used for event and call arguments.
func NewList(elems ...Value) Value {
	o := newObject(&types.Type{Tag: types.TagList})
	o.Elems = make([]Value, len(elems))
	for i, e := range elems {
		o.Elems[i] = Retain(e)
	}
	return Value{Tag: types.TagList, Obj: o}
}

// NewOpaque wraps non-value state, such as a loop iterator, so it can be
// stored in a managed frame slot.
func NewOpaque(state any, onFree func()) Value {
	o := newObject(&types.Type{Tag: types.TagOpaque})
	o.Opaque = state
	o.OnFree = onFree
	return Value{Tag: types.TagOpaque, Obj: o}
}

// Field returns a borrowed record field.
func (v Value) Field(i int) (Value, error) {
	if v.Tag != types.TagRecord || v.Obj == nil {
		return Void, fmt.Errorf("val: field access on %s", v.Tag)
	}
	if i < 0 || i >= len(v.Obj.Fields) {
		return Void, fmt.Errorf("val: field %d out of range", i)
	}
	return v.Obj.Fields[i], nil
}

// SetField stores x into field i, retaining x and releasing the old value.
func (v Value) SetField(i int, x Value) error {
	if v.Tag != types.TagRecord || v.Obj == nil {
		return fmt.Errorf("val: field assignment on %s", v.Tag)
	}
	if i < 0 || i >= len(v.Obj.Fields) {
		return fmt.Errorf("val: field %d out of range", i)
	}
	old := v.Obj.Fields[i]
	v.Obj.Fields[i] = Retain(x)
	Release(old)
	return nil
}

// Len returns the number of elements of an aggregate or bytes of a string.
func (v Value) Len() int {
	switch v.Tag {
	case types.TagVector, types.TagList:
		return len(v.Obj.Elems)
	case types.TagTable:
		return v.Obj.Table.Len()
	case types.TagRecord:
		return len(v.Obj.Fields)
	case types.TagString:
		return len(v.S)
	default:
		return 0
	}
}

// SetElem stores x at index i of a vector, growing it with void holes as
// needed.
func (v Value) SetElem(i int, x Value) error {
	if v.Tag != types.TagVector || v.Obj == nil {
		return fmt.Errorf("val: element assignment on %s", v.Tag)
	}
	if i < 0 {
		return fmt.Errorf("val: negative vector index %d", i)
	}
	for len(v.Obj.Elems) <= i {
		v.Obj.Elems = append(v.Obj.Elems, Void)
	}
	old := v.Obj.Elems[i]
	v.Obj.Elems[i] = Retain(x)
	Release(old)
	return nil
}

func (o *Object) recordString() string {
	if o == nil {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteString("[")
	for i, f := range o.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		name := fmt.Sprintf("$%d", i)
		if o.Type != nil && i < len(o.Type.Fields) {
			name = o.Type.Fields[i].Name
		}
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(f.String())
	}
	sb.WriteString("]")
	return sb.String()
}
