package val

import (
	"fmt"

	"zam/internal/types"
)

// CoerceRecord builds a record of type to from v, copying fields that
// exist in both by name. Fields missing from v stay unset.
func CoerceRecord(v Value, to *types.Type) (Value, error) {
	if v.Tag != types.TagRecord || to == nil || to.Tag != types.TagRecord {
		return Void, fmt.Errorf("val: cannot coerce %s to record", v.Tag)
	}
	out := NewRecord(to)
	for i, f := range v.Obj.Type.Fields {
		j := to.FieldIndex(f.Name)
		if j < 0 {
			continue
		}
		x := v.Obj.Fields[i]
		if ft := to.Fields[j].Type; ft != nil && x.Tag.Arithmetic() && ft.Tag.Arithmetic() {
			c, err := Coerce(x, ft.Tag)
			if err != nil {
				Release(out)
				return Void, err
			}
			x = c
		}
		if err := out.SetField(j, x); err != nil {
			Release(out)
			return Void, err
		}
	}
	return out, nil
}

// CoerceVector builds a vector of type to holding v's elements, converting
// arithmetic elements to the target element type.
func CoerceVector(v Value, to *types.Type) (Value, error) {
	if v.Tag != types.TagVector || to == nil || to.Tag != types.TagVector {
		return Void, fmt.Errorf("val: cannot coerce %s to vector", v.Tag)
	}
	elems := make([]Value, len(v.Obj.Elems))
	for i, e := range v.Obj.Elems {
		if to.Elem != nil && e.Tag.Arithmetic() && to.Elem.Tag.Arithmetic() {
			c, err := Coerce(e, to.Elem.Tag)
			if err != nil {
				return Void, err
			}
			e = c
		}
		elems[i] = e
	}
	return NewVector(to, elems...), nil
}

// CoerceTable builds a table of type to holding v's entries. The policy
// attributes of v carry over.
func CoerceTable(v Value, to *types.Type) (Value, error) {
	if v.Tag != types.TagTable || to == nil || to.Tag != types.TagTable {
		return Void, fmt.Errorf("val: cannot coerce %s to table", v.Tag)
	}
	src := v.Obj.Table
	attrs := src.Attrs()
	out := NewTable(to, &attrs, src.clock)
	for _, key := range src.Keys() {
		e := src.entries[keyString(key)]
		out.Obj.Table.Insert(e.val, key...)
	}
	return out, nil
}
