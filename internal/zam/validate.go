package zam

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"zam/internal/diag"
)

// Validate checks a compiled body's structural invariants: positions are
// contiguous, every branch target is patched and in range, every slot is
// within the frame and every side-table index exists.
func Validate(m *Machine) error {
	if m == nil {
		return nil
	}
	v := validator{m: m}
	for _, stack := range [][]*GotoList{m.breaks, m.nexts, m.falls} {
		for _, l := range stack {
			if n := l.Len(); n != 0 {
				v.fail(diag.ValUnresolved, -1, "%d %s gotos pending", n, l.kind)
			}
		}
	}
	for i := range m.code {
		v.instr(i, &m.code[i])
	}
	for i, tbl := range m.switches {
		for c, t := range tbl.Targets {
			if t < 0 || t > len(m.code) {
				v.fail(diag.ValBadTarget, -1, "table#%d case %d targets %d", i, c, t)
			}
		}
		for _, e := range tbl.entries() {
			if e.cas < 0 || e.cas >= len(tbl.Targets) {
				v.fail(diag.ValBadTarget, -1, "table#%d label %s names case %d", i, e.key, e.cas)
			}
		}
	}
	if v.errs == nil {
		return nil
	}
	return fmt.Errorf("zam: validate %s: %w", m.name, v.errs)
}

type validator struct {
	m    *Machine
	errs *multierror.Error
}

func (v *validator) fail(code diag.Code, pos int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if pos >= 0 {
		msg = fmt.Sprintf("@%d: %s", pos, msg)
	}
	v.errs = multierror.Append(v.errs, fmt.Errorf("%s %s", code.ID(), msg))
}

func (v *validator) instr(i int, in *Instr) {
	if in.Pos != i {
		v.fail(diag.ValPositionOrder, i, "instruction claims position %d", in.Pos)
	}
	if in.Op >= numOps {
		v.fail(diag.ValBadTarget, i, "unknown op %d", in.Op)
		return
	}
	sh := shapes[in.Op]
	for k, kind := range []Kind{sh.a, sh.b, sh.c, sh.aux} {
		v.field(i, in, kind, *in.field(k))
	}
	if sh.aux == KAux {
		if n := v.tableLen(sh.table); in.Aux < 0 || in.Aux >= n {
			v.fail(diag.ValBadTarget, i, "%s index %d out of %d", in.Op, in.Aux, n)
			return
		}
	}
	for _, op := range v.m.auxOperands(in) {
		if !op.IsLit {
			v.slot(i, op.Slot)
		}
	}
	if in.Op == OpStepIter {
		site := v.m.iters[in.Aux]
		for _, s := range site.vars {
			v.slot(i, s)
		}
		if site.value != NoSlot {
			v.slot(i, site.value)
		}
	}
}

func (v *validator) field(i int, in *Instr, kind Kind, x int) {
	switch kind {
	case KSlot:
		v.slot(i, x)
	case KOperand:
		if x == LitOperand {
			return
		}
		v.slot(i, x)
	case KOptSlot:
		if x == NoSlot {
			return
		}
		v.slot(i, x)
	case KTarget:
		if x == unpatched {
			v.fail(diag.ValUnresolved, i, "%s target never patched", in.Op)
			return
		}
		if x < 0 || x > len(v.m.code) {
			v.fail(diag.ValBadTarget, i, "%s targets %d of %d", in.Op, x, len(v.m.code))
		}
	}
}

func (v *validator) slot(i, s int) {
	if s < 0 || s >= v.m.layout.Size() {
		v.fail(diag.ValBadSlot, i, "slot %d out of %d", s, v.m.layout.Size())
	}
}

func (v *validator) tableLen(t table) int {
	m := v.m
	switch t {
	case tabErrors:
		return len(m.errors)
	case tabGlobals:
		return len(m.layout.globals)
	case tabOperands:
		return len(m.operands)
	case tabTypes:
		return len(m.types)
	case tabCalls:
		return len(m.calls)
	case tabEvents:
		return len(m.events)
	case tabScheds:
		return len(m.scheds)
	case tabInits:
		return len(m.inits)
	case tabExprs:
		return len(m.exprs)
	case tabSwitches:
		return len(m.switches)
	case tabIters:
		return len(m.iters)
	}
	return 0
}
