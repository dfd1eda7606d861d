package tree

import "zam/internal/types"

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// StmtList is a sequence of statements.
type StmtList struct {
	At
	Stmts []Stmt
}

// ExprStmt evaluates an expression for effect.
type ExprStmt struct {
	At
	E Expr
}

// IfStmt is a two-armed conditional. Else may be nil.
type IfStmt struct {
	At
	Cond       Expr
	Then, Else Stmt
}

// WhileStmt loops while Cond holds. CondStmt, if non-nil, computes the
// condition's inputs before every test. PostCheck tests after the body.
type WhileStmt struct {
	At
	CondStmt  Stmt
	Cond      Expr
	Body      Stmt
	PostCheck bool
}

// LoopStmt loops until a break or return.
type LoopStmt struct {
	At
	Body Stmt
}

// ForStmt iterates over a table, vector or string. For tables Vars
// receive the key components and Value, if set, the yield. For vectors
// Vars[0] receives the index and Value the element; for strings Vars[0]
// receives each character.
type ForStmt struct {
	At
	Vars  []*ID
	Value *ID
	Over  Expr
	Body  Stmt
}

// TypeCase is one type pattern of a type switch; ID, if set, is bound to
// the scrutinee converted to Type.
type TypeCase struct {
	ID   *ID
	Type *types.Type
}

// Case is one arm of a switch: either literal Values or type patterns.
type Case struct {
	Values []*ConstExpr
	Types  []TypeCase
	Body   Stmt
}

// SwitchStmt dispatches on Value. Default is the index of the default
// case in Cases, or -1.
type SwitchStmt struct {
	At
	Value   Expr
	Cases   []*Case
	Default int
}

// IsTypeSwitch reports whether the cases are type patterns.
func (s *SwitchStmt) IsTypeSwitch() bool {
	for i, c := range s.Cases {
		if i == s.Default {
			continue
		}
		return len(c.Types) > 0
	}
	return false
}

// WhenStmt waits for Cond to hold and then runs Body. Timeout, if set,
// bounds the wait; TimeoutBody runs if it expires first. CondStmt, if
// non-nil, recomputes the condition's inputs on every evaluation.
type WhenStmt struct {
	At
	CondStmt    Stmt
	Cond        Expr
	Body        Stmt
	Timeout     Expr
	TimeoutBody Stmt
	IsReturn    bool
}

// ReturnStmt returns from the body. Value may be nil.
type ReturnStmt struct {
	At
	Value Expr
}

// BreakStmt leaves the innermost loop or switch.
type BreakStmt struct{ At }

// NextStmt continues the innermost loop.
type NextStmt struct{ At }

// FallthroughStmt continues into the next switch case body.
type FallthroughStmt struct{ At }

// InitStmt creates empty aggregates for locals declared without a value.
type InitStmt struct {
	At
	IDs   []*ID
	Attrs *types.Attrs
}

// NullStmt does nothing.
type NullStmt struct{ At }

func (*StmtList) stmt()        {}
func (*ExprStmt) stmt()        {}
func (*IfStmt) stmt()          {}
func (*WhileStmt) stmt()       {}
func (*LoopStmt) stmt()        {}
func (*ForStmt) stmt()         {}
func (*SwitchStmt) stmt()      {}
func (*WhenStmt) stmt()        {}
func (*ReturnStmt) stmt()      {}
func (*BreakStmt) stmt()       {}
func (*NextStmt) stmt()        {}
func (*FallthroughStmt) stmt() {}
func (*InitStmt) stmt()        {}
func (*NullStmt) stmt()        {}

// List builds a StmtList.
func List(stmts ...Stmt) *StmtList { return &StmtList{Stmts: stmts} }
