package val

import (
	"fmt"
	"strings"
	"time"

	"zam/internal/types"
)

type tableEntry struct {
	key   []Value
	val   Value
	stamp time.Time
}

// Table is an insertion-ordered associative container keyed by one or
// more atomic values.
type Table struct {
	attrs   types.Attrs
	clock   func() time.Time
	entries map[string]*tableEntry
	order   []string
}

// NewTable builds an empty table of type t. attrs may be nil. clock stamps
// entries for expiration; nil means time.Now.
func NewTable(t *types.Type, attrs *types.Attrs, clock func() time.Time) Value {
	o := newObject(t)
	tab := &Table{
		clock:   clock,
		entries: make(map[string]*tableEntry),
	}
	if attrs != nil {
		tab.attrs = *attrs
	}
	if tab.clock == nil {
		tab.clock = time.Now
	}
	o.Table = tab
	return Value{Tag: types.TagTable, Obj: o}
}

// Attrs returns the table's policy attributes.
func (t *Table) Attrs() types.Attrs { return t.attrs }

// Len returns the number of live entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func keyString(key []Value) string {
	var sb strings.Builder
	for i, k := range key {
		if i > 0 {
			sb.WriteByte(0)
		}
		sb.WriteString(k.Tag.String())
		sb.WriteByte(':')
		sb.WriteString(k.String())
	}
	return sb.String()
}

// Lookup returns the borrowed value stored under key.
func (t *Table) Lookup(key ...Value) (Value, bool) {
	e, ok := t.entries[keyString(key)]
	if !ok {
		return Void, false
	}
	if t.attrs.ReadExpire {
		e.stamp = t.clock()
	}
	return e.val, true
}

// Has reports whether key is present.
func (t *Table) Has(key ...Value) bool {
	_, ok := t.entries[keyString(key)]
	return ok
}

// Insert stores v under key, retaining both and releasing any value it
// replaces.
func (t *Table) Insert(v Value, key ...Value) {
	ks := keyString(key)
	if e, ok := t.entries[ks]; ok {
		old := e.val
		e.val = Retain(v)
		e.stamp = t.clock()
		Release(old)
		return
	}
	kcopy := make([]Value, len(key))
	for i, k := range key {
		kcopy[i] = Retain(k)
	}
	t.entries[ks] = &tableEntry{key: kcopy, val: Retain(v), stamp: t.clock()}
	t.order = append(t.order, ks)
}

// Delete removes key, reporting whether it was present.
func (t *Table) Delete(key ...Value) bool {
	ks := keyString(key)
	e, ok := t.entries[ks]
	if !ok {
		return false
	}
	delete(t.entries, ks)
	t.dropEntry(e)
	return true
}

func (t *Table) dropEntry(e *tableEntry) {
	for _, k := range e.key {
		Release(k)
	}
	Release(e.val)
}

// Keys returns a snapshot of the live keys in insertion order. Iteration
// over a snapshot is unaffected by later inserts and deletes.
func (t *Table) Keys() [][]Value {
	out := make([][]Value, 0, len(t.entries))
	live := t.order[:0]
	for _, ks := range t.order {
		e, ok := t.entries[ks]
		if !ok {
			continue
		}
		live = append(live, ks)
		out = append(out, e.key)
	}
	t.order = live
	return out
}

// Expire drops entries older than the create-expire policy and returns how
// many were removed.
func (t *Table) Expire(now time.Time) int {
	if t.attrs.ExpireAfter <= 0 {
		return 0
	}
	n := 0
	for ks, e := range t.entries {
		if now.Sub(e.stamp) >= t.attrs.ExpireAfter {
			delete(t.entries, ks)
			t.dropEntry(e)
			n++
		}
	}
	return n
}

func (t *Table) releaseAll() {
	for ks, e := range t.entries {
		delete(t.entries, ks)
		t.dropEntry(e)
	}
	t.order = nil
}

func (t *Table) String() string {
	if t == nil {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for _, key := range t.Keys() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		parts := make([]string, len(key))
		for i, k := range key {
			parts[i] = k.String()
		}
		sb.WriteString(strings.Join(parts, ","))
		if e := t.entries[keyString(key)]; e != nil && !e.val.IsVoid() {
			sb.WriteString(fmt.Sprintf(" = %s", e.val))
		}
	}
	sb.WriteString("}")
	return sb.String()
}
