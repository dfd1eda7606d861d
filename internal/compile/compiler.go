// Package compile defines the contract between construct lowering and a
// code-generation backend. Lower walks a tree and decides which backend
// operation each node maps to; the backend decides how each operation is
// realized.
package compile

import (
	"fmt"

	"zam/internal/diag"
	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// CompiledStmt marks a position in the backend's output. Backends return
// one from every operation, usually the position of the last instruction
// emitted for it.
type CompiledStmt struct {
	pos int
}

// None is returned where an empty result is legal.
var None = CompiledStmt{pos: -1}

// At wraps a position.
func At(pos int) CompiledStmt { return CompiledStmt{pos: pos} }

// Pos returns the wrapped position, or -1 for None.
func (c CompiledStmt) Pos() int { return c.pos }

// Valid reports whether c names a position.
func (c CompiledStmt) Valid() bool { return c.pos >= 0 }

func (c CompiledStmt) String() string {
	if !c.Valid() {
		return "<none>"
	}
	return fmt.Sprintf("@%d", c.pos)
}

// Operand is a marshaled value: a frame slot or a literal.
type Operand struct {
	Slot  int
	Lit   val.Value
	IsLit bool
}

func (o Operand) String() string {
	if o.IsLit {
		return o.Lit.String()
	}
	return fmt.Sprintf("s%d", o.Slot)
}

// Compiler is implemented by code-generation backends.
type Compiler interface {
	// SetCurrStmt records the statement being lowered, for locations and
	// liveness queries.
	SetCurrStmt(s tree.Stmt)

	// InterpretExpr evaluates e for effect through the tree evaluator.
	InterpretExpr(e tree.Expr) CompiledStmt
	// AssignExpr stores the value of e into target.
	AssignExpr(target *tree.NameExpr, e tree.Expr) CompiledStmt

	ArithCoerce(target *tree.NameExpr, e *tree.CoerceExpr) CompiledStmt
	RecordCoerce(target *tree.NameExpr, e *tree.CoerceExpr) CompiledStmt
	TableCoerce(target *tree.NameExpr, e *tree.CoerceExpr) CompiledStmt
	VectorCoerce(target *tree.NameExpr, e *tree.CoerceExpr) CompiledStmt

	IfElse(s *tree.IfStmt) CompiledStmt
	While(s *tree.WhileStmt) CompiledStmt
	Loop(s *tree.LoopStmt) CompiledStmt
	When(s *tree.WhenStmt) CompiledStmt
	Switch(s *tree.SwitchStmt) CompiledStmt
	For(s *tree.ForStmt) CompiledStmt

	CallStmt(e *tree.CallExpr) CompiledStmt
	// AssignToCall stores a call's result into target, converting it
	// first when coerce is non-nil.
	AssignToCall(target *tree.NameExpr, e *tree.CallExpr, coerce *tree.CoerceExpr) CompiledStmt
	AssignVecElems(e *tree.IndexAssignExpr) CompiledStmt

	InitRecord(id *tree.ID, t *types.Type) CompiledStmt
	InitVector(id *tree.ID, t *types.Type) CompiledStmt
	InitTable(id *tree.ID, t *types.Type, attrs *types.Attrs) CompiledStmt

	Return(s *tree.ReturnStmt) CompiledStmt
	Schedule(e *tree.ScheduleExpr) CompiledStmt
	Event(e *tree.EventExpr) CompiledStmt

	Next() CompiledStmt
	Break() CompiledStmt
	FallThrough() CompiledStmt

	// StartingBlock and FinishBlock bracket a block. FinishBlock returns
	// the block's last position.
	StartingBlock() CompiledStmt
	FinishBlock(start CompiledStmt) CompiledStmt

	// NullStmtOK reports whether an empty result is legal here: only when
	// nothing has been emitted yet.
	NullStmtOK() bool
	EmptyStmt() CompiledStmt
	ErrorStmt(loc tree.Loc, code diag.Code, msg string) CompiledStmt

	IsUnused(id *tree.ID, where tree.Stmt) bool
	// SyncGlobals writes back globals possibly modified before where; a
	// nil where means the end of the body.
	SyncGlobals(where tree.Node)
	BuildVals(args []tree.Expr) []Operand
}
