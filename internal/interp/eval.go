package interp

import (
	"fmt"
	"time"

	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// Env resolves identifiers for the evaluator.
type Env interface {
	// Lookup returns a borrowed reference to id's value.
	Lookup(id *tree.ID) (val.Value, error)
	// Assign stores v, consuming the caller's reference.
	Assign(id *tree.ID, v val.Value) error
	// Now stamps table entries.
	Now() time.Time
}

// Eval evaluates e and returns an owned reference to its value.
func Eval(env Env, e tree.Expr) (val.Value, error) {
	switch e := e.(type) {
	case *tree.NameExpr:
		v, err := env.Lookup(e.ID)
		if err != nil {
			return val.Void, err
		}
		return val.Retain(v), nil
	case *tree.ConstExpr:
		return val.Retain(e.Val), nil
	case *tree.BinaryExpr:
		return evalBinary(env, e)
	case *tree.UnaryExpr:
		x, err := Eval(env, e.X)
		if err != nil {
			return val.Void, err
		}
		defer val.Release(x)
		return val.Unary(e.Op, x)
	case *tree.CallExpr:
		args, err := EvalList(env, e.Args)
		if err != nil {
			return val.Void, err
		}
		defer ReleaseAll(args)
		r, err := e.Func.Call(args)
		if err != nil {
			return val.Void, fmt.Errorf("interp: call %s: %w", e.Func.Name(), err)
		}
		return r, nil
	case *tree.CoerceExpr:
		x, err := Eval(env, e.X)
		if err != nil {
			return val.Void, err
		}
		defer val.Release(x)
		return Coerce(e.Kind, x, e.T)
	case *tree.InExpr:
		return evalIn(env, e)
	case *tree.IndexExpr:
		agg, err := Eval(env, e.Agg)
		if err != nil {
			return val.Void, err
		}
		defer val.Release(agg)
		idx, err := EvalList(env, e.Index)
		if err != nil {
			return val.Void, err
		}
		defer ReleaseAll(idx)
		r, err := val.Index(agg, idx...)
		if err != nil {
			return val.Void, err
		}
		return val.Retain(r), nil
	case *tree.FieldExpr:
		rec, err := Eval(env, e.Rec)
		if err != nil {
			return val.Void, err
		}
		defer val.Release(rec)
		f, err := rec.Field(e.Field)
		if err != nil {
			return val.Void, err
		}
		return val.Retain(f), nil
	case *tree.ListExpr:
		xs, err := EvalList(env, e.Exprs)
		if err != nil {
			return val.Void, err
		}
		defer ReleaseAll(xs)
		return val.NewList(xs...), nil
	case *tree.CondExpr:
		c, err := evalBool(env, e.Cond)
		if err != nil {
			return val.Void, err
		}
		if c {
			return Eval(env, e.Then)
		}
		return Eval(env, e.Else)
	case *tree.RecordConstructorExpr:
		return evalRecord(env, e)
	case *tree.AssignExpr:
		v, err := Eval(env, e.Value)
		if err != nil {
			return val.Void, err
		}
		if err := env.Assign(e.Target.ID, val.Retain(v)); err != nil {
			val.Release(v)
			return val.Void, err
		}
		return v, nil
	case *tree.IndexAssignExpr:
		return evalIndexAssign(env, e)
	case *tree.FieldAssignExpr:
		rec, err := env.Lookup(e.Rec.ID)
		if err != nil {
			return val.Void, err
		}
		v, err := Eval(env, e.Value)
		if err != nil {
			return val.Void, err
		}
		if err := rec.SetField(e.Field, v); err != nil {
			val.Release(v)
			return val.Void, err
		}
		return v, nil
	}
	return val.Void, fmt.Errorf("interp: cannot evaluate %T", e)
}

// EvalList evaluates each expression, returning owned references. On error
// every value produced so far is released.
func EvalList(env Env, es []tree.Expr) ([]val.Value, error) {
	out := make([]val.Value, 0, len(es))
	for _, e := range es {
		v, err := Eval(env, e)
		if err != nil {
			ReleaseAll(out)
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReleaseAll drops one reference from each value.
func ReleaseAll(vs []val.Value) {
	for _, v := range vs {
		val.Release(v)
	}
}

// Coerce applies a coercion node's conversion to v, returning an owned
// reference.
func Coerce(kind tree.CoerceKind, v val.Value, to *types.Type) (val.Value, error) {
	switch kind {
	case tree.CoerceArith:
		return val.Coerce(v, to.Tag)
	case tree.CoerceRecord:
		return val.CoerceRecord(v, to)
	case tree.CoerceVector:
		return val.CoerceVector(v, to)
	case tree.CoerceTable:
		return val.CoerceTable(v, to)
	}
	return val.Void, fmt.Errorf("interp: unknown coercion %s", kind)
}

func evalBool(env Env, e tree.Expr) (bool, error) {
	v, err := Eval(env, e)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func evalBinary(env Env, e *tree.BinaryExpr) (val.Value, error) {
	if e.Op == val.OpAnd || e.Op == val.OpOr {
		x, err := evalBool(env, e.X)
		if err != nil {
			return val.Void, err
		}
		if x == (e.Op == val.OpOr) {
			return val.Bool(x), nil
		}
		y, err := evalBool(env, e.Y)
		if err != nil {
			return val.Void, err
		}
		return val.Bool(y), nil
	}
	x, err := Eval(env, e.X)
	if err != nil {
		return val.Void, err
	}
	defer val.Release(x)
	y, err := Eval(env, e.Y)
	if err != nil {
		return val.Void, err
	}
	defer val.Release(y)
	return val.Binary(e.Op, x, y)
}

func evalIn(env Env, e *tree.InExpr) (val.Value, error) {
	elem, err := Eval(env, e.Elem)
	if err != nil {
		return val.Void, err
	}
	defer val.Release(elem)
	set, err := Eval(env, e.Set)
	if err != nil {
		return val.Void, err
	}
	defer val.Release(set)
	ok, err := val.In(elem, set)
	if err != nil {
		return val.Void, err
	}
	return val.Bool(ok), nil
}

func evalRecord(env Env, e *tree.RecordConstructorExpr) (val.Value, error) {
	fields, err := EvalList(env, e.Fields)
	if err != nil {
		return val.Void, err
	}
	defer ReleaseAll(fields)
	rec := val.NewRecord(e.T)
	for i, f := range fields {
		if err := rec.SetField(i, f); err != nil {
			val.Release(rec)
			return val.Void, err
		}
	}
	return rec, nil
}

func evalIndexAssign(env Env, e *tree.IndexAssignExpr) (val.Value, error) {
	agg, err := env.Lookup(e.Agg.ID)
	if err != nil {
		return val.Void, err
	}
	idx, err := EvalList(env, e.Index)
	if err != nil {
		return val.Void, err
	}
	defer ReleaseAll(idx)
	v, err := Eval(env, e.Value)
	if err != nil {
		return val.Void, err
	}
	switch agg.Tag {
	case types.TagTable:
		agg.Obj.Table.Insert(v, idx...)
		return v, nil
	case types.TagVector:
		if len(idx) != 1 {
			val.Release(v)
			return val.Void, fmt.Errorf("interp: vector assignment needs one index")
		}
		i, ok := idx[0].AsInt()
		if !ok {
			val.Release(v)
			return val.Void, fmt.Errorf("interp: vector index %s", idx[0].Tag)
		}
		if err := agg.SetElem(int(i), v); err != nil {
			val.Release(v)
			return val.Void, err
		}
		return v, nil
	}
	val.Release(v)
	return val.Void, fmt.Errorf("interp: index assignment to %s", agg.Tag)
}
