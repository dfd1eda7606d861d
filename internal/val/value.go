// Package val implements the runtime values the abstract machine operates on.
//
// Atomic values are plain Go values. Records, vectors, tables, lists and
// opaque iterator state live in reference-counted objects: constructors
// return an owned reference, containers retain what they store, and whoever
// drops the last reference releases the object.
package val

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"zam/internal/types"
)

// Value is a discriminated runtime value.
type Value struct {
	Tag types.Tag
	I   int64   // int, bool, enum ordinal
	U   uint64  // count
	F   float64 // double, time, interval (seconds)
	S   string  // string, addr, subnet, enum name
	Obj *Object // record, vector, table, list, opaque
}

// Void is the absent value.
var Void = Value{}

func Int(i int64) Value      { return Value{Tag: types.TagInt, I: i} }
func Count(u uint64) Value   { return Value{Tag: types.TagCount, U: u} }
func Double(f float64) Value { return Value{Tag: types.TagDouble, F: f} }
func Time(f float64) Value   { return Value{Tag: types.TagTime, F: f} }
func Str(s string) Value     { return Value{Tag: types.TagString, S: s} }

// Interval builds an interval value measured in seconds.
func Interval(secs float64) Value { return Value{Tag: types.TagInterval, F: secs} }

func Bool(b bool) Value {
	if b {
		return Value{Tag: types.TagBool, I: 1}
	}
	return Value{Tag: types.TagBool}
}

// Enum builds an enum constant.
func Enum(name string, ord int64) Value {
	return Value{Tag: types.TagEnum, S: name, I: ord}
}

// Addr parses an IPv4 or IPv6 address.
func Addr(s string) (Value, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Void, fmt.Errorf("val: bad address %q: %w", s, err)
	}
	return Value{Tag: types.TagAddr, S: a.String()}, nil
}

// Subnet parses a CIDR prefix.
func Subnet(s string) (Value, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Void, fmt.Errorf("val: bad subnet %q: %w", s, err)
	}
	return Value{Tag: types.TagSubnet, S: p.Masked().String()}, nil
}

// MustAddr is Addr for literals known to be valid.
func MustAddr(s string) Value {
	v, err := Addr(s)
	if err != nil {
		panic(err)
	}
	return v
}

// MustSubnet is Subnet for literals known to be valid.
func MustSubnet(s string) Value {
	v, err := Subnet(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsVoid reports whether v carries no value.
func (v Value) IsVoid() bool { return v.Tag == types.TagVoid }

// Managed reports whether v holds a reference-counted object.
func (v Value) Managed() bool { return v.Obj != nil }

// AsBool returns the truth value of a bool.
func (v Value) AsBool() (bool, error) {
	if v.Tag != types.TagBool {
		return false, fmt.Errorf("val: %s used as bool", v.Tag)
	}
	return v.I != 0, nil
}

// AsInt returns an integer view of int, count, bool and enum values.
func (v Value) AsInt() (int64, bool) {
	switch v.Tag {
	case types.TagInt, types.TagBool, types.TagEnum:
		return v.I, true
	case types.TagCount:
		return int64(v.U), true //nolint:gosec // counts used as indexes are bounded by container sizes
	default:
		return 0, false
	}
}

// AsFloat returns a float view of any arithmetic value.
func (v Value) AsFloat() (float64, bool) {
	switch v.Tag {
	case types.TagInt:
		return float64(v.I), true
	case types.TagCount:
		return float64(v.U), true
	case types.TagDouble, types.TagTime, types.TagInterval:
		return v.F, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Tag {
	case types.TagVoid:
		return "<void>"
	case types.TagBool:
		if v.I != 0 {
			return "T"
		}
		return "F"
	case types.TagInt:
		return strconv.FormatInt(v.I, 10)
	case types.TagCount:
		return strconv.FormatUint(v.U, 10)
	case types.TagDouble, types.TagTime:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	case types.TagInterval:
		return strconv.FormatFloat(v.F, 'f', -1, 64) + "s"
	case types.TagString:
		return strconv.Quote(v.S)
	case types.TagAddr, types.TagSubnet, types.TagEnum:
		return v.S
	case types.TagRecord:
		return v.Obj.recordString()
	case types.TagVector, types.TagList:
		parts := make([]string, len(v.Obj.Elems))
		for i, e := range v.Obj.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case types.TagTable:
		return v.Obj.Table.String()
	case types.TagOpaque:
		return "<opaque>"
	default:
		return fmt.Sprintf("<%s>", v.Tag)
	}
}

// Matches reports whether v's runtime type satisfies the static type t.
// It is the test used by type switches.
func Matches(v Value, t *types.Type) bool {
	if t == nil {
		return false
	}
	if t.Tag == types.TagAny {
		return !v.IsVoid()
	}
	if v.Tag != t.Tag {
		return false
	}
	if v.Obj != nil && v.Obj.Type != nil {
		return types.Same(v.Obj.Type, t)
	}
	return true
}

// TypeOf returns the runtime type of v.
func TypeOf(v Value) *types.Type {
	if v.Obj != nil && v.Obj.Type != nil {
		return v.Obj.Type
	}
	return &types.Type{Tag: v.Tag}
}
