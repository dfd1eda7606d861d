package zam

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"zam/internal/compile"
	"zam/internal/tree"
	"zam/internal/val"
)

// SlotRef is a slot operand resolved against the frame layout.
type SlotRef struct {
	Slot int
	Name string
}

// Line is one instruction as rendered by Listing.
type Line struct {
	Pos      int
	Op       Op
	Operands []string
	Slots    []SlotRef
	Loc      tree.Loc
}

func (l Line) String() string {
	return fmt.Sprintf("%d %s %s", l.Pos, l.Op, strings.Join(l.Operands, ", "))
}

// DumpOptions configures Dump.
type DumpOptions struct {
	Color bool
	// Locations appends source locations to instructions.
	Locations bool
}

// Listing renders every instruction with its operands resolved. It never
// changes the machine.
func (m *Machine) Listing() []Line {
	out := make([]Line, len(m.code))
	for i := range m.code {
		out[i] = m.line(&m.code[i])
	}
	return out
}

func (m *Machine) line(in *Instr) Line {
	l := Line{Pos: in.Pos, Op: in.Op, Loc: in.Loc}
	a, b, c := in.Op.Shape()
	for k, kind := range []Kind{a, b, c} {
		if kind == KNone {
			continue
		}
		v := *in.field(k)
		l.Operands = append(l.Operands, m.operandString(in, kind, v))
		if kind == KSlot || ((kind == KOperand || kind == KOptSlot) && v >= 0) {
			l.Slots = append(l.Slots, SlotRef{Slot: v, Name: m.slotName(v)})
		}
	}
	if aux := m.auxString(in); aux != "" {
		l.Operands = append(l.Operands, aux)
	}
	for _, op := range m.auxOperands(in) {
		if !op.IsLit {
			l.Slots = append(l.Slots, SlotRef{Slot: op.Slot, Name: m.slotName(op.Slot)})
		}
	}
	return l
}

func (m *Machine) instrString(in *Instr) string {
	l := m.line(in)
	return in.Op.String() + " " + strings.Join(l.Operands, ", ")
}

func (m *Machine) slotName(s int) string {
	d, ok := m.layout.Denizen(s)
	if !ok {
		return "?"
	}
	return d.Name
}

func (m *Machine) slotString(s int) string {
	return fmt.Sprintf("s%d(%s)", s, m.slotName(s))
}

func (m *Machine) operandString(in *Instr, kind Kind, v int) string {
	switch kind {
	case KSlot:
		return m.slotString(v)
	case KOperand:
		if v == LitOperand {
			return in.Lit.String()
		}
		return m.slotString(v)
	case KOptSlot:
		if v == NoSlot {
			return "-"
		}
		return m.slotString(v)
	case KTarget:
		if v == unpatched {
			return "@?"
		}
		return "@" + strconv.Itoa(v)
	case KInt:
		return m.intString(in, v)
	}
	return strconv.Itoa(v)
}

func (m *Machine) intString(in *Instr, v int) string {
	switch in.Op {
	case OpField:
		return "$" + strconv.Itoa(v)
	case OpCoerce:
		return tree.CoerceKind(v).String() //nolint:gosec // kinds are emitted from tree.CoerceKind
	case OpBranchSwitch:
		return Category(v).String() //nolint:gosec // categories are emitted from Category
	case OpInitIter:
		return iterKind(v).String() //nolint:gosec // kinds are emitted from iterKind
	case OpInterpret:
		if v != 0 {
			return "sync"
		}
		return "nosync"
	}
	return strconv.Itoa(v)
}

func (m *Machine) operandsString(ops []compile.Operand) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		if op.IsLit {
			parts[i] = op.Lit.String()
		} else {
			parts[i] = m.slotString(op.Slot)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// auxOperands returns the operand lists an instruction reads through Aux.
func (m *Machine) auxOperands(in *Instr) []compile.Operand {
	switch in.Op {
	case OpIndex, OpAssignVecElem:
		return m.operands[in.Aux]
	case OpCall:
		return m.calls[in.Aux].args
	case OpEvent:
		return m.events[in.Aux].args
	case OpSchedule:
		s := m.scheds[in.Aux]
		return append([]compile.Operand{s.when}, s.args...)
	}
	return nil
}

func (m *Machine) auxString(in *Instr) string {
	switch in.Op {
	case OpError:
		return strconv.Quote(m.errors[in.Aux].Message)
	case OpBinary, OpUnary:
		return "[" + val.Op(in.Aux).String() + "]" //nolint:gosec // op codes are emitted from val.Op
	case OpIndex, OpAssignVecElem:
		return m.operandsString(m.operands[in.Aux])
	case OpCoerce, OpBranchType:
		return m.types[in.Aux].String()
	case OpLoadGlobal, OpStoreGlobal:
		return "global " + m.layout.globals[in.Aux].Name
	case OpCall:
		s := m.calls[in.Aux]
		out := s.fn.Name() + m.operandsString(s.args)
		if s.coerce != nil {
			out += " as " + s.coerce.String()
		}
		return out
	case OpEvent:
		s := m.events[in.Aux]
		return "event " + s.handler.Name + m.operandsString(s.args)
	case OpSchedule:
		s := m.scheds[in.Aux]
		when := m.operandsString([]compile.Operand{s.when})
		if s.interval {
			when = "+" + when
		}
		return "at " + when + " " + s.handler.Name + m.operandsString(s.args)
	case OpInitRecord, OpInitVector, OpInitTable:
		s := m.inits[in.Aux]
		if s.attrs != nil && !s.attrs.Empty() {
			return s.t.String() + " " + s.attrs.String()
		}
		return s.t.String()
	case OpInterpret:
		return fmt.Sprintf("expr#%d %T", in.Aux, m.exprs[in.Aux].e)
	case OpBranchSwitch:
		return "table#" + strconv.Itoa(in.Aux)
	case OpStepIter:
		s := m.iters[in.Aux]
		vars := make([]string, len(s.vars))
		for i, v := range s.vars {
			vars[i] = m.slotString(v)
		}
		out := "[" + strings.Join(vars, ", ") + "]"
		if s.value != NoSlot {
			out += " -> " + m.slotString(s.value)
		}
		return out
	case OpWait:
		return "reenter @" + strconv.Itoa(in.Aux)
	}
	return ""
}

type palette struct {
	op, slot, target, note func(a ...any) string
}

func newPalette(enabled bool) palette {
	if !enabled {
		plain := fmt.Sprint
		return palette{op: plain, slot: plain, target: plain, note: plain}
	}
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return palette{
		op:     mk(color.FgCyan, color.Bold),
		slot:   mk(color.FgGreen),
		target: mk(color.FgYellow),
		note:   mk(color.FgHiBlack),
	}
}

// Dump writes a human-readable listing: the frame layout, the code and
// the switch tables.
func (m *Machine) Dump(w io.Writer, opts DumpOptions) error {
	p := newPalette(opts.Color)
	var sb strings.Builder
	fmt.Fprintf(&sb, "body %s slots=%d instrs=%d\n", m.name, m.layout.Size(), len(m.code))

	width := 0
	for _, d := range m.layout.denizens {
		width = max(width, runewidth.StringWidth(d.Name))
	}
	sb.WriteString("frame:\n")
	for i, d := range m.layout.denizens {
		role := "local"
		switch {
		case d.Register:
			role = "reg"
		case i < len(m.fn.Params):
			role = "param"
		case d.ID != nil && d.ID.Global:
			role = "global"
		}
		fmt.Fprintf(&sb, "  s%-3d %s %-8s %s\n", i, p.slot(runewidth.FillRight(d.Name, width)), d.Tag, p.note(role))
	}

	opWidth := 0
	for i := range m.code {
		opWidth = max(opWidth, len(m.code[i].Op.String()))
	}
	sb.WriteString("code:\n")
	for i := range m.code {
		in := &m.code[i]
		l := m.line(in)
		fmt.Fprintf(&sb, "  %4d  %s %s", in.Pos, p.op(runewidth.FillRight(in.Op.String(), opWidth)), strings.Join(l.Operands, ", "))
		if opts.Locations && in.Loc != (tree.Loc{}) {
			sb.WriteString("  " + p.note(in.Loc.String()))
		}
		sb.WriteByte('\n')
	}

	for i, tbl := range m.switches {
		fmt.Fprintf(&sb, "table#%d:\n", i)
		for _, e := range tbl.entries() {
			fmt.Fprintf(&sb, "  %-6s %-12s -> case %d %s\n", e.cat, e.key, e.cas, p.target("@"+strconv.Itoa(tbl.Targets[e.cas])))
		}
		if tbl.Default >= 0 {
			fmt.Fprintf(&sb, "  default -> case %d %s\n", tbl.Default, p.target("@"+strconv.Itoa(tbl.Targets[tbl.Default])))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Describe returns the uncolored dump.
func (m *Machine) Describe() string {
	var sb strings.Builder
	_ = m.Dump(&sb, DumpOptions{})
	return sb.String()
}

type tableEntry struct {
	cat Category
	key string
	cas int
}

// entries lists a table's labels in a stable order.
func (t *SwitchTable) entries() []tableEntry {
	var out []tableEntry
	for k, c := range t.Ints {
		out = append(out, tableEntry{CatInt, strconv.FormatInt(k, 10), c})
	}
	for k, c := range t.Uints {
		out = append(out, tableEntry{CatUint, strconv.FormatUint(k, 10), c})
	}
	for k, c := range t.Doubles {
		out = append(out, tableEntry{CatDouble, strconv.FormatFloat(k, 'g', -1, 64), c})
	}
	for k, c := range t.Texts {
		out = append(out, tableEntry{CatText, strconv.Quote(k), c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].cat != out[j].cat {
			return out[i].cat < out[j].cat
		}
		if out[i].cas != out[j].cas {
			return out[i].cas < out[j].cas
		}
		return out[i].key < out[j].key
	})
	return out
}
