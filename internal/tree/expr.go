package tree

import (
	"zam/internal/types"
	"zam/internal/val"
)

// Expr is an expression node.
type Expr interface {
	Node
	Type() *types.Type
}

// NameExpr references an identifier.
type NameExpr struct {
	At
	ID *ID
}

// ConstExpr is a literal.
type ConstExpr struct {
	At
	Val val.Value
	T   *types.Type
}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	At
	Op   val.Op
	X, Y Expr
	T    *types.Type
}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	At
	Op val.Op
	X  Expr
	T  *types.Type
}

// CallExpr invokes a Callable.
type CallExpr struct {
	At
	Func Callable
	Args []Expr
	T    *types.Type
}

// CoerceKind selects the conversion a CoerceExpr performs.
type CoerceKind uint8

const (
	CoerceArith CoerceKind = iota + 1
	CoerceRecord
	CoerceTable
	CoerceVector
)

func (k CoerceKind) String() string {
	switch k {
	case CoerceArith:
		return "arith"
	case CoerceRecord:
		return "record"
	case CoerceTable:
		return "table"
	case CoerceVector:
		return "vector"
	default:
		return "coerce?"
	}
}

// CoerceExpr converts X to type T. The front end only emits one where the
// runtime representation differs from the static expectation.
type CoerceExpr struct {
	At
	Kind CoerceKind
	X    Expr
	T    *types.Type
}

// InExpr tests membership.
type InExpr struct {
	At
	Elem Expr
	Set  Expr
}

// IndexExpr reads an element of a table, vector or string.
type IndexExpr struct {
	At
	Agg   Expr
	Index []Expr
	T     *types.Type
}

// FieldExpr reads a record field by offset.
type FieldExpr struct {
	At
	Rec   Expr
	Field int
	T     *types.Type
}

// ListExpr is an argument or index list.
type ListExpr struct {
	At
	Exprs []Expr
}

// CondExpr is the ternary conditional.
type CondExpr struct {
	At
	Cond, Then, Else Expr
}

// RecordConstructorExpr builds a record literal.
type RecordConstructorExpr struct {
	At
	T      *types.Type
	Fields []Expr
}

// AssignExpr assigns Value to a named target.
type AssignExpr struct {
	At
	Target *NameExpr
	Value  Expr
}

// IndexAssignExpr assigns to an element of an aggregate.
type IndexAssignExpr struct {
	At
	Agg   *NameExpr
	Index []Expr
	Value Expr
}

// FieldAssignExpr assigns to a record field.
type FieldAssignExpr struct {
	At
	Rec   *NameExpr
	Field int
	Value Expr
}

// ScheduleExpr schedules an event at an absolute time, or after an
// interval when Interval is set.
type ScheduleExpr struct {
	At
	When     Expr
	Interval bool
	Event    *EventHandler
	Args     []Expr
}

// EventExpr queues an event for immediate dispatch.
type EventExpr struct {
	At
	Handler *EventHandler
	Args    []Expr
}

func (e *NameExpr) Type() *types.Type { return e.ID.Type }

func (e *ConstExpr) Type() *types.Type {
	if e.T != nil {
		return e.T
	}
	return val.TypeOf(e.Val)
}

func (e *BinaryExpr) Type() *types.Type            { return e.T }
func (e *UnaryExpr) Type() *types.Type             { return e.T }
func (e *CallExpr) Type() *types.Type              { return e.T }
func (e *CoerceExpr) Type() *types.Type            { return e.T }
func (e *InExpr) Type() *types.Type                { return types.Bool }
func (e *IndexExpr) Type() *types.Type             { return e.T }
func (e *FieldExpr) Type() *types.Type             { return e.T }
func (e *ListExpr) Type() *types.Type              { return &types.Type{Tag: types.TagList} }
func (e *CondExpr) Type() *types.Type              { return e.Then.Type() }
func (e *RecordConstructorExpr) Type() *types.Type { return e.T }
func (e *AssignExpr) Type() *types.Type            { return e.Target.Type() }
func (e *IndexAssignExpr) Type() *types.Type       { return e.Value.Type() }
func (e *FieldAssignExpr) Type() *types.Type       { return e.Value.Type() }
func (e *ScheduleExpr) Type() *types.Type          { return types.Void }
func (e *EventExpr) Type() *types.Type             { return types.Void }

// Name builds a NameExpr.
func Name(id *ID) *NameExpr { return &NameExpr{ID: id} }

// Const builds a ConstExpr.
func Const(v val.Value) *ConstExpr { return &ConstExpr{Val: v} }

// Assign builds an assignment statement.
func Assign(id *ID, e Expr) *ExprStmt {
	return &ExprStmt{E: &AssignExpr{Target: Name(id), Value: e}}
}

// Bin builds a BinaryExpr whose type is derived from the operator.
func Bin(op val.Op, x, y Expr) *BinaryExpr {
	t := x.Type()
	switch op {
	case val.OpEq, val.OpNe, val.OpLt, val.OpLe, val.OpGt, val.OpGe, val.OpAnd, val.OpOr:
		t = types.Bool
	}
	return &BinaryExpr{Op: op, X: x, Y: y, T: t}
}
