package val

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strings"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"zam/internal/types"
)

// Op enumerates the built-in operators.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNeg
	OpNot
)

var opNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "&&", OpOr: "||", OpNeg: "-", OpNot: "!",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// ErrDivideByZero is returned by integer division or modulo by zero.
var ErrDivideByZero = errors.New("val: division by zero")

// Binary applies a binary operator.
func Binary(op Op, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return Bool(Equal(a, b)), nil
	case OpNe:
		return Bool(!Equal(a, b)), nil
	case OpLt, OpLe, OpGt, OpGe:
		c, err := Compare(a, b)
		if err != nil {
			return Void, err
		}
		switch op {
		case OpLt:
			return Bool(c < 0), nil
		case OpLe:
			return Bool(c <= 0), nil
		case OpGt:
			return Bool(c > 0), nil
		default:
			return Bool(c >= 0), nil
		}
	case OpAnd, OpOr:
		x, err := a.AsBool()
		if err != nil {
			return Void, err
		}
		y, err := b.AsBool()
		if err != nil {
			return Void, err
		}
		if op == OpAnd {
			return Bool(x && y), nil
		}
		return Bool(x || y), nil
	}

	if a.Tag == types.TagString && b.Tag == types.TagString && op == OpAdd {
		return Str(a.S + b.S), nil
	}
	if !a.Tag.Arithmetic() || !b.Tag.Arithmetic() {
		return Void, fmt.Errorf("val: %s %s %s not supported", a.Tag, op, b.Tag)
	}
	switch {
	case a.Tag == types.TagInt && b.Tag == types.TagInt:
		r, err := intArith(op, a.I, b.I)
		return Int(r), err
	case a.Tag == types.TagCount && b.Tag == types.TagCount:
		r, err := countArith(op, a.U, b.U)
		return Count(r), err
	}
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	r, err := floatArith(op, x, y)
	if err != nil {
		return Void, err
	}
	tag := types.TagDouble
	switch {
	case a.Tag == types.TagTime && b.Tag == types.TagInterval && (op == OpAdd || op == OpSub):
		tag = types.TagTime
	case a.Tag == types.TagTime && b.Tag == types.TagTime && op == OpSub:
		tag = types.TagInterval
	case a.Tag == types.TagInterval && b.Tag == types.TagInterval && (op == OpAdd || op == OpSub):
		tag = types.TagInterval
	}
	return Value{Tag: tag, F: r}, nil
}

func intArith(op Op, x, y int64) (int64, error) {
	switch op {
	case OpAdd:
		return x + y, nil
	case OpSub:
		return x - y, nil
	case OpMul:
		return x * y, nil
	case OpDiv:
		if y == 0 {
			return 0, ErrDivideByZero
		}
		return x / y, nil
	case OpMod:
		if y == 0 {
			return 0, ErrDivideByZero
		}
		return x % y, nil
	}
	return 0, fmt.Errorf("val: bad int operator %s", op)
}

func countArith(op Op, x, y uint64) (uint64, error) {
	switch op {
	case OpAdd:
		return x + y, nil
	case OpSub:
		return x - y, nil
	case OpMul:
		return x * y, nil
	case OpDiv:
		if y == 0 {
			return 0, ErrDivideByZero
		}
		return x / y, nil
	case OpMod:
		if y == 0 {
			return 0, ErrDivideByZero
		}
		return x % y, nil
	}
	return 0, fmt.Errorf("val: bad count operator %s", op)
}

func floatArith(op Op, x, y float64) (float64, error) {
	switch op {
	case OpAdd:
		return x + y, nil
	case OpSub:
		return x - y, nil
	case OpMul:
		return x * y, nil
	case OpDiv:
		return x / y, nil
	case OpMod:
		return math.Mod(x, y), nil
	}
	return 0, fmt.Errorf("val: bad double operator %s", op)
}

// Unary applies a unary operator.
func Unary(op Op, a Value) (Value, error) {
	switch op {
	case OpNot:
		b, err := a.AsBool()
		if err != nil {
			return Void, err
		}
		return Bool(!b), nil
	case OpNeg:
		switch a.Tag {
		case types.TagInt:
			return Int(-a.I), nil
		case types.TagCount:
			i, err := safecast.Conv[int64](a.U)
			if err != nil {
				return Void, fmt.Errorf("val: negate count: %w", err)
			}
			return Int(-i), nil
		case types.TagDouble, types.TagInterval:
			return Value{Tag: a.Tag, F: -a.F}, nil
		}
	}
	return Void, fmt.Errorf("val: %s%s not supported", op, a.Tag)
}

// Equal compares two values. Aggregates compare by identity.
func Equal(a, b Value) bool {
	if a.Tag.Arithmetic() && b.Tag.Arithmetic() && a.Tag != b.Tag {
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		return x == y
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case types.TagVoid:
		return true
	case types.TagBool, types.TagInt:
		return a.I == b.I
	case types.TagEnum:
		return a.S == b.S
	case types.TagCount:
		return a.U == b.U
	case types.TagDouble, types.TagTime, types.TagInterval:
		return a.F == b.F
	case types.TagString:
		return norm.NFC.String(a.S) == norm.NFC.String(b.S)
	case types.TagAddr, types.TagSubnet:
		return a.S == b.S
	default:
		return a.Obj == b.Obj
	}
}

// Compare orders two atomic values.
func Compare(a, b Value) (int, error) {
	if a.Tag.Arithmetic() && b.Tag.Arithmetic() {
		if a.Tag == types.TagInt && b.Tag == types.TagInt {
			return cmp3(a.I < b.I, a.I > b.I), nil
		}
		if a.Tag == types.TagCount && b.Tag == types.TagCount {
			return cmp3(a.U < b.U, a.U > b.U), nil
		}
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		return cmp3(x < y, x > y), nil
	}
	if a.Tag != b.Tag {
		return 0, fmt.Errorf("val: cannot compare %s and %s", a.Tag, b.Tag)
	}
	switch a.Tag {
	case types.TagString:
		return strings.Compare(a.S, b.S), nil
	case types.TagAddr:
		x, _ := netip.ParseAddr(a.S)
		y, _ := netip.ParseAddr(b.S)
		return x.Compare(y), nil
	case types.TagEnum:
		return cmp3(a.I < b.I, a.I > b.I), nil
	}
	return 0, fmt.Errorf("val: %s values are not ordered", a.Tag)
}

func cmp3(lt, gt bool) int {
	switch {
	case lt:
		return -1
	case gt:
		return 1
	default:
		return 0
	}
}

// CaseKey returns the canonical text form of a string, addr or subnet
// used as a switch key. Strings are NFC-normalized so canonically equal
// spellings select the same case.
func CaseKey(v Value) string {
	if v.Tag == types.TagString {
		return norm.NFC.String(v.S)
	}
	return v.S
}

// In implements the membership operator.
func In(elem, set Value) (bool, error) {
	switch set.Tag {
	case types.TagTable:
		if elem.Tag == types.TagList {
			return set.Obj.Table.Has(elem.Obj.Elems...), nil
		}
		return set.Obj.Table.Has(elem), nil
	case types.TagVector:
		i, ok := elem.AsInt()
		if !ok {
			return false, fmt.Errorf("val: vector membership needs an index, got %s", elem.Tag)
		}
		return i >= 0 && i < int64(len(set.Obj.Elems)) && !set.Obj.Elems[i].IsVoid(), nil
	case types.TagString:
		if elem.Tag != types.TagString {
			return false, fmt.Errorf("val: %s in string", elem.Tag)
		}
		return strings.Contains(norm.NFC.String(set.S), norm.NFC.String(elem.S)), nil
	case types.TagSubnet:
		if elem.Tag != types.TagAddr {
			return false, fmt.Errorf("val: %s in subnet", elem.Tag)
		}
		p, err := netip.ParsePrefix(set.S)
		if err != nil {
			return false, err
		}
		a, err := netip.ParseAddr(elem.S)
		if err != nil {
			return false, err
		}
		return p.Contains(a), nil
	}
	return false, fmt.Errorf("val: membership test on %s", set.Tag)
}

// Index returns a borrowed element of a table, vector or string.
func Index(agg Value, idx ...Value) (Value, error) {
	switch agg.Tag {
	case types.TagTable:
		v, ok := agg.Obj.Table.Lookup(idx...)
		if !ok {
			return Void, fmt.Errorf("val: no such index %s", keyString(idx))
		}
		return v, nil
	case types.TagVector, types.TagList:
		if len(idx) != 1 {
			return Void, fmt.Errorf("val: vector index needs one value")
		}
		i, ok := idx[0].AsInt()
		if !ok || i < 0 || i >= int64(len(agg.Obj.Elems)) {
			return Void, fmt.Errorf("val: vector index %s out of range", idx[0])
		}
		return agg.Obj.Elems[i], nil
	case types.TagString:
		if len(idx) != 1 {
			return Void, fmt.Errorf("val: string index needs one value")
		}
		i, ok := idx[0].AsInt()
		if !ok || i < 0 || i >= int64(len(agg.S)) {
			return Void, fmt.Errorf("val: string index %s out of range", idx[0])
		}
		return Str(agg.S[i : i+1]), nil
	}
	return Void, fmt.Errorf("val: cannot index %s", agg.Tag)
}

// Coerce converts an arithmetic value to the target arithmetic tag.
func Coerce(v Value, to types.Tag) (Value, error) {
	if v.Tag == to {
		return v, nil
	}
	if !v.Tag.Arithmetic() || !to.Arithmetic() {
		return Void, fmt.Errorf("val: cannot coerce %s to %s", v.Tag, to)
	}
	switch to {
	case types.TagInt:
		if v.Tag == types.TagCount {
			i, err := safecast.Conv[int64](v.U)
			if err != nil {
				return Void, fmt.Errorf("val: coerce count to int: %w", err)
			}
			return Int(i), nil
		}
		return Int(int64(v.F)), nil
	case types.TagCount:
		if v.Tag == types.TagInt {
			u, err := safecast.Conv[uint64](v.I)
			if err != nil {
				return Void, fmt.Errorf("val: coerce int to count: %w", err)
			}
			return Count(u), nil
		}
		if v.F < 0 {
			return Void, fmt.Errorf("val: coerce negative %s to count", v.Tag)
		}
		return Count(uint64(v.F)), nil
	default:
		f, _ := v.AsFloat()
		return Value{Tag: to, F: f}, nil
	}
}
