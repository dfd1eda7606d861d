package tree

// Inspect traverses the tree rooted at n in depth-first order, calling fn
// for each node before its children. If fn returns false the children are
// skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *StmtList:
		for _, s := range n.Stmts {
			Inspect(s, fn)
		}
	case *ExprStmt:
		Inspect(n.E, fn)
	case *IfStmt:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		Inspect(n.Else, fn)
	case *WhileStmt:
		Inspect(n.CondStmt, fn)
		Inspect(n.Cond, fn)
		Inspect(n.Body, fn)
	case *LoopStmt:
		Inspect(n.Body, fn)
	case *ForStmt:
		Inspect(n.Over, fn)
		Inspect(n.Body, fn)
	case *SwitchStmt:
		Inspect(n.Value, fn)
		for _, c := range n.Cases {
			for _, v := range c.Values {
				Inspect(v, fn)
			}
			Inspect(c.Body, fn)
		}
	case *WhenStmt:
		Inspect(n.CondStmt, fn)
		Inspect(n.Cond, fn)
		Inspect(n.Body, fn)
		Inspect(n.Timeout, fn)
		Inspect(n.TimeoutBody, fn)
	case *ReturnStmt:
		Inspect(n.Value, fn)
	case *BinaryExpr:
		Inspect(n.X, fn)
		Inspect(n.Y, fn)
	case *UnaryExpr:
		Inspect(n.X, fn)
	case *CallExpr:
		inspectExprs(n.Args, fn)
	case *CoerceExpr:
		Inspect(n.X, fn)
	case *InExpr:
		Inspect(n.Elem, fn)
		Inspect(n.Set, fn)
	case *IndexExpr:
		Inspect(n.Agg, fn)
		inspectExprs(n.Index, fn)
	case *FieldExpr:
		Inspect(n.Rec, fn)
	case *ListExpr:
		inspectExprs(n.Exprs, fn)
	case *CondExpr:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		Inspect(n.Else, fn)
	case *RecordConstructorExpr:
		inspectExprs(n.Fields, fn)
	case *AssignExpr:
		Inspect(n.Target, fn)
		Inspect(n.Value, fn)
	case *IndexAssignExpr:
		Inspect(n.Agg, fn)
		inspectExprs(n.Index, fn)
		Inspect(n.Value, fn)
	case *FieldAssignExpr:
		Inspect(n.Rec, fn)
		Inspect(n.Value, fn)
	case *ScheduleExpr:
		Inspect(n.When, fn)
		inspectExprs(n.Args, fn)
	case *EventExpr:
		inspectExprs(n.Args, fn)
	}
}

func inspectExprs(es []Expr, fn func(Node) bool) {
	for _, e := range es {
		Inspect(e, fn)
	}
}
