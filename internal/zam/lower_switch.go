package zam

import (
	"fmt"
	"slices"

	"zam/internal/compile"
	"zam/internal/diag"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// Category is the atomic kind a switch table is keyed on.
type Category uint8

const (
	CatInt Category = iota
	CatUint
	CatDouble
	CatText
)

func (c Category) String() string {
	switch c {
	case CatInt:
		return "int"
	case CatUint:
		return "uint"
	case CatDouble:
		return "double"
	default:
		return "text"
	}
}

func categoryOf(v val.Value) (Category, bool) {
	switch v.Tag {
	case types.TagInt, types.TagBool, types.TagEnum:
		return CatInt, true
	case types.TagCount:
		return CatUint, true
	case types.TagDouble, types.TagTime, types.TagInterval:
		return CatDouble, true
	case types.TagString, types.TagAddr, types.TagSubnet:
		return CatText, true
	}
	return 0, false
}

// SwitchTable maps the case labels of one value switch to case indexes,
// with one map per category. Targets holds each case body's position.
type SwitchTable struct {
	Ints    map[int64]int
	Uints   map[uint64]int
	Doubles map[float64]int
	Texts   map[string]int
	Targets []int
	Default int
}

func newSwitchTable(def int) *SwitchTable {
	return &SwitchTable{
		Ints:    make(map[int64]int),
		Uints:   make(map[uint64]int),
		Doubles: make(map[float64]int),
		Texts:   make(map[string]int),
		Default: def,
	}
}

// add records label v for case c, reporting false for a duplicate.
func (t *SwitchTable) add(cat Category, v val.Value, c int) bool {
	switch cat {
	case CatInt:
		return addKey(t.Ints, v.I, c)
	case CatUint:
		return addKey(t.Uints, v.U, c)
	case CatDouble:
		return addKey(t.Doubles, v.F, c)
	default:
		return addKey(t.Texts, val.CaseKey(v), c)
	}
}

func addKey[K comparable](tab map[K]int, k K, c int) bool {
	if _, dup := tab[k]; dup {
		return false
	}
	tab[k] = c
	return true
}

// Lookup returns the case index v selects within category cat.
func (t *SwitchTable) Lookup(cat Category, v val.Value) (int, bool) {
	vc, ok := categoryOf(v)
	if !ok || vc != cat {
		return 0, false
	}
	var c int
	switch cat {
	case CatInt:
		c, ok = t.Ints[v.I]
	case CatUint:
		c, ok = t.Uints[v.U]
	case CatDouble:
		c, ok = t.Doubles[v.F]
	default:
		c, ok = t.Texts[val.CaseKey(v)]
	}
	return c, ok
}

// Switch lowers a value switch or a type switch.
func (m *Machine) Switch(s *tree.SwitchStmt) compile.CompiledStmt {
	m.point("switch")
	typed, valued := false, false
	for i, c := range s.Cases {
		if i == s.Default {
			continue
		}
		typed = typed || len(c.Types) > 0
		valued = valued || len(c.Values) > 0
	}
	if typed && valued {
		return m.ErrorStmt(s.Location(), diag.CmpMixedSwitch, "switch mixes value and type cases")
	}
	if typed {
		m.typeSwitch(s)
	} else {
		m.valueSwitch(s)
	}
	return m.last()
}

// valueSwitch emits one dispatch per label category, each falling to the
// next on a miss; the last miss goes to the default body or the end.
func (m *Machine) valueSwitch(s *tree.SwitchStmt) {
	v := m.slotOf(s.Value)
	tbl := newSwitchTable(s.Default)
	idx := len(m.switches)
	m.switches = append(m.switches, tbl)

	var cats []Category
	for i, c := range s.Cases {
		for _, lit := range c.Values {
			cat, ok := categoryOf(lit.Val)
			if !ok {
				m.ErrorStmt(lit.Location(), diag.CmpBadCaseLabel,
					fmt.Sprintf("%s is not a valid case label", lit.Val.Tag))
				continue
			}
			if !tbl.add(cat, lit.Val, i) {
				m.ErrorStmt(lit.Location(), diag.CmpDuplicateCase,
					fmt.Sprintf("duplicate case label %s", lit.Val))
				continue
			}
			if !slices.Contains(cats, cat) {
				cats = append(cats, cat)
			}
		}
	}

	var miss *PendingGoto
	for _, cat := range cats {
		g := m.pending(Instr{Op: OpBranchSwitch, A: v, C: int(cat), Aux: idx}, 1)
		if miss != nil {
			m.resolve(miss, g.Pos())
		}
		miss = g
	}
	if miss == nil {
		miss = m.gotoPending()
	}
	tbl.Targets = m.switchBodies(s, make([][]*PendingGoto, len(s.Cases)), miss)
}

// typeSwitch tests each pattern in source order. Patterns that bind an
// identifier go through a stub that assigns it before entering the body.
func (m *Machine) typeSwitch(s *tree.SwitchStmt) {
	v := m.slotOf(s.Value)
	entries := make([][]*PendingGoto, len(s.Cases))
	type stub struct {
		br  *PendingGoto
		id  *tree.ID
		cas int
	}
	var stubs []stub
	for i, c := range s.Cases {
		for _, tc := range c.Types {
			br := m.pending(Instr{Op: OpBranchType, A: v, Aux: m.addType(tc.Type)}, 1)
			if tc.ID == nil {
				entries[i] = append(entries[i], br)
			} else {
				stubs = append(stubs, stub{br: br, id: tc.ID, cas: i})
			}
		}
	}
	miss := m.gotoPending()
	for _, st := range stubs {
		m.resolve(st.br, m.here())
		m.emit(Instr{Op: OpAssign, A: m.layout.Slot(st.id), B: v})
		entries[st.cas] = append(entries[st.cas], m.gotoPending())
	}
	m.switchBodies(s, entries, miss)
}

// switchBodies lowers the case bodies in order and returns their start
// positions. entries[i] land on case i; miss lands on the default body or
// the end.
func (m *Machine) switchBodies(s *tree.SwitchStmt, entries [][]*PendingGoto, miss *PendingGoto) []int {
	brk := m.pushList(&m.breaks, "break")
	ft := m.pushList(&m.falls, "fallthrough")
	var ends []*PendingGoto
	starts := make([]int, len(s.Cases))
	for i, c := range s.Cases {
		start := m.here()
		starts[i] = start
		m.resolveList(ft, start)
		for _, g := range entries[i] {
			m.resolve(g, start)
		}
		if i == s.Default {
			m.resolve(miss, start)
		}
		m.lowerNested(c.Body)
		if i < len(s.Cases)-1 {
			ends = append(ends, m.gotoPending())
		}
	}
	end := m.here()
	m.resolveList(ft, end)
	for _, g := range ends {
		m.resolve(g, end)
	}
	if !miss.Resolved() {
		m.resolve(miss, end)
	}
	m.resolveList(brk, end)
	m.popList(&m.falls, ft)
	m.popList(&m.breaks, brk)
	return starts
}
