package compile

import (
	"fmt"

	"zam/internal/diag"
	"zam/internal/tree"
	"zam/internal/types"
)

// Lower compiles s through c in one depth-first pass. Backends call it
// back for nested statements.
func Lower(c Compiler, s tree.Stmt) CompiledStmt {
	if s == nil {
		return lowerNull(c)
	}
	c.SetCurrStmt(s)
	switch s := s.(type) {
	case *tree.StmtList:
		if len(s.Stmts) == 0 {
			return lowerNull(c)
		}
		start := c.StartingBlock()
		for _, st := range s.Stmts {
			Lower(c, st)
		}
		return c.FinishBlock(start)
	case *tree.ExprStmt:
		return lowerExprStmt(c, s)
	case *tree.IfStmt:
		return c.IfElse(s)
	case *tree.WhileStmt:
		return c.While(s)
	case *tree.LoopStmt:
		return c.Loop(s)
	case *tree.ForStmt:
		return c.For(s)
	case *tree.SwitchStmt:
		return c.Switch(s)
	case *tree.WhenStmt:
		return c.When(s)
	case *tree.ReturnStmt:
		return c.Return(s)
	case *tree.BreakStmt:
		return c.Break()
	case *tree.NextStmt:
		return c.Next()
	case *tree.FallthroughStmt:
		return c.FallThrough()
	case *tree.InitStmt:
		return lowerInit(c, s)
	case *tree.NullStmt:
		return lowerNull(c)
	}
	return c.ErrorStmt(s.Location(), diag.CmpUnsupported, fmt.Sprintf("statement %T", s))
}

func lowerNull(c Compiler) CompiledStmt {
	if c.NullStmtOK() {
		return None
	}
	return c.EmptyStmt()
}

func lowerExprStmt(c Compiler, s *tree.ExprStmt) CompiledStmt {
	switch e := s.E.(type) {
	case *tree.AssignExpr:
		return lowerAssign(c, e)
	case *tree.CallExpr:
		return c.CallStmt(e)
	case *tree.IndexAssignExpr:
		if t := e.Agg.Type(); t != nil && t.Tag == types.TagVector {
			return c.AssignVecElems(e)
		}
		return c.InterpretExpr(e)
	case *tree.ScheduleExpr:
		return c.Schedule(e)
	case *tree.EventExpr:
		return c.Event(e)
	}
	return c.InterpretExpr(s.E)
}

func lowerAssign(c Compiler, e *tree.AssignExpr) CompiledStmt {
	switch v := e.Value.(type) {
	case *tree.CallExpr:
		return c.AssignToCall(e.Target, v, nil)
	case *tree.CoerceExpr:
		if call, ok := v.X.(*tree.CallExpr); ok && v.Kind == tree.CoerceArith {
			return c.AssignToCall(e.Target, call, v)
		}
		switch v.Kind {
		case tree.CoerceArith:
			return c.ArithCoerce(e.Target, v)
		case tree.CoerceRecord:
			return c.RecordCoerce(e.Target, v)
		case tree.CoerceTable:
			return c.TableCoerce(e.Target, v)
		case tree.CoerceVector:
			return c.VectorCoerce(e.Target, v)
		}
	}
	return c.AssignExpr(e.Target, e.Value)
}

func lowerInit(c Compiler, s *tree.InitStmt) CompiledStmt {
	if len(s.IDs) == 0 {
		return lowerNull(c)
	}
	start := c.StartingBlock()
	for _, id := range s.IDs {
		switch id.Type.Tag {
		case types.TagRecord:
			c.InitRecord(id, id.Type)
		case types.TagVector:
			c.InitVector(id, id.Type)
		case types.TagTable:
			c.InitTable(id, id.Type, s.Attrs)
		default:
			c.ErrorStmt(s.Location(), diag.CmpBadAssignTarget,
				fmt.Sprintf("cannot initialize %s of type %s", id.Name, id.Type))
		}
	}
	return c.FinishBlock(start)
}
