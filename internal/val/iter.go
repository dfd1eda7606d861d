package val

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"zam/internal/types"
)

// TableIter walks a snapshot of a table's keys.
type TableIter struct {
	tab  Value
	keys [][]Value
	pos  int
}

// VectorIter walks vector indexes.
type VectorIter struct {
	vec Value
	pos int
}

// StringIter walks a string one normalization segment at a time.
type StringIter struct {
	it     norm.Iter
	offset int
}

// NewTableIter returns an opaque iterator value over t. The iterator holds
// its own reference to the table.
func NewTableIter(t Value) (Value, error) {
	if t.Tag != types.TagTable {
		return Void, fmt.Errorf("val: table loop over %s", t.Tag)
	}
	it := &TableIter{tab: Retain(t), keys: t.Obj.Table.Keys()}
	return NewOpaque(it, func() { Release(it.tab) }), nil
}

// NewVectorIter returns an opaque iterator value over v.
func NewVectorIter(v Value) (Value, error) {
	if v.Tag != types.TagVector {
		return Void, fmt.Errorf("val: vector loop over %s", v.Tag)
	}
	it := &VectorIter{vec: Retain(v)}
	return NewOpaque(it, func() { Release(it.vec) }), nil
}

// NewStringIter returns an opaque iterator value over the NFC form of s.
func NewStringIter(s Value) (Value, error) {
	if s.Tag != types.TagString {
		return Void, fmt.Errorf("val: string loop over %s", s.Tag)
	}
	it := &StringIter{}
	it.it.InitString(norm.NFC, s.S)
	return NewOpaque(it, nil), nil
}

// Next returns the next key and its value. ok is false once exhausted.
// Entries deleted after the snapshot was taken are skipped.
func (it *TableIter) Next() (key []Value, v Value, ok bool) {
	tab := it.tab.Obj.Table
	for it.pos < len(it.keys) {
		key = it.keys[it.pos]
		it.pos++
		if v, found := tab.entries[keyString(key)]; found {
			return key, v.val, true
		}
	}
	return nil, Void, false
}

// Next returns the next index and element. Void holes are skipped.
func (it *VectorIter) Next() (idx int, v Value, ok bool) {
	elems := it.vec.Obj.Elems
	for it.pos < len(elems) {
		idx = it.pos
		it.pos++
		if !elems[idx].IsVoid() {
			return idx, elems[idx], true
		}
	}
	return 0, Void, false
}

// Next returns the next segment and the byte offset it started at.
func (it *StringIter) Next() (seg string, offset int, ok bool) {
	if it.it.Done() {
		return "", it.offset, false
	}
	b := it.it.Next()
	offset = it.offset
	it.offset += len(b)
	return string(b), offset, true
}

// Offset returns the number of normalized bytes consumed so far.
func (it *StringIter) Offset() int { return it.offset }
