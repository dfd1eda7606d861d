package zam

import (
	"zam/internal/compile"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

const (
	// LitOperand in a KOperand field selects the instruction's literal.
	LitOperand = -1
	// NoSlot in a KOptSlot field means the operand is absent.
	NoSlot = -1
	// unpatched marks a branch target whose goto is still pending.
	unpatched = -1
)

// Instr is one machine instruction. Only operand fields change after
// emission, when pending gotos are patched.
type Instr struct {
	Op      Op
	Pos     int
	A, B, C int
	Aux     int
	Lit     val.Value
	Loc     tree.Loc
}

func (in *Instr) field(k int) *int {
	switch k {
	case 0:
		return &in.A
	case 1:
		return &in.B
	case 2:
		return &in.C
	default:
		return &in.Aux
	}
}

// Side tables referenced through Aux.

type callSite struct {
	fn     tree.Callable
	args   []compile.Operand
	coerce *types.Type // arithmetic conversion of the result, if any
}

type eventSite struct {
	handler *tree.EventHandler
	args    []compile.Operand
}

type schedSite struct {
	when     compile.Operand
	interval bool // when is relative to now
	handler  *tree.EventHandler
	args     []compile.Operand
}

type initSite struct {
	t     *types.Type
	attrs *types.Attrs
}

type exprSite struct {
	e tree.Expr
}

type iterSite struct {
	kind  iterKind
	vars  []int
	value int // NoSlot without a value variable
}

type iterKind uint8

const (
	iterTable iterKind = iota
	iterVector
	iterString
)

func (k iterKind) String() string {
	switch k {
	case iterTable:
		return "table"
	case iterVector:
		return "vector"
	default:
		return "string"
	}
}
