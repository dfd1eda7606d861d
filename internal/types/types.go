package types

import (
	"fmt"
	"strings"
	"time"
)

// Tag enumerates the runtime type tags the abstract machine dispatches on.
type Tag uint8

const (
	TagVoid Tag = iota
	TagBool
	TagInt
	TagCount
	TagDouble
	TagTime
	TagInterval
	TagString
	TagAddr
	TagSubnet
	TagEnum
	TagRecord
	TagVector
	TagTable
	TagList
	TagFunc
	TagAny
	TagOpaque
)

func (t Tag) String() string {
	switch t {
	case TagVoid:
		return "void"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagCount:
		return "count"
	case TagDouble:
		return "double"
	case TagTime:
		return "time"
	case TagInterval:
		return "interval"
	case TagString:
		return "string"
	case TagAddr:
		return "addr"
	case TagSubnet:
		return "subnet"
	case TagEnum:
		return "enum"
	case TagRecord:
		return "record"
	case TagVector:
		return "vector"
	case TagTable:
		return "table"
	case TagList:
		return "list"
	case TagFunc:
		return "func"
	case TagAny:
		return "any"
	case TagOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Tag(%d)", t)
	}
}

// Managed reports whether values carrying this tag own a reference-counted
// aggregate and therefore need explicit release.
func (t Tag) Managed() bool {
	switch t {
	case TagRecord, TagVector, TagTable, TagList, TagAny, TagOpaque:
		return true
	default:
		return false
	}
}

// Arithmetic reports whether the tag is one of the numeric tags that
// arithmetic coercions convert between.
func (t Tag) Arithmetic() bool {
	switch t {
	case TagInt, TagCount, TagDouble, TagTime, TagInterval:
		return true
	default:
		return false
	}
}

// Field is a named record field.
type Field struct {
	Name string
	Type *Type
}

// Type describes a static type. Only the shape needed by construction,
// coercion and type-switch dispatch is carried.
type Type struct {
	Tag  Tag
	Name string // record and enum names

	Fields []Field // TagRecord
	Elem   *Type   // TagVector
	Index  []*Type // TagTable key types
	Yield  *Type   // TagTable value type, nil for sets
}

var (
	Void     = &Type{Tag: TagVoid}
	Bool     = &Type{Tag: TagBool}
	Int      = &Type{Tag: TagInt}
	Count    = &Type{Tag: TagCount}
	Double   = &Type{Tag: TagDouble}
	Time     = &Type{Tag: TagTime}
	Interval = &Type{Tag: TagInterval}
	String   = &Type{Tag: TagString}
	Addr     = &Type{Tag: TagAddr}
	Subnet   = &Type{Tag: TagSubnet}
	Any      = &Type{Tag: TagAny}
)

// NewRecord describes a named record type.
func NewRecord(name string, fields ...Field) *Type {
	return &Type{Tag: TagRecord, Name: name, Fields: fields}
}

// NewVector describes vector of elem.
func NewVector(elem *Type) *Type {
	return &Type{Tag: TagVector, Elem: elem}
}

// NewTable describes table[index...] of yield. A nil yield makes a set.
func NewTable(yield *Type, index ...*Type) *Type {
	return &Type{Tag: TagTable, Index: index, Yield: yield}
}

// NewEnum describes a named enum type.
func NewEnum(name string) *Type {
	return &Type{Tag: TagEnum, Name: name}
}

// IsSet reports whether a table type has no yield.
func (t *Type) IsSet() bool {
	return t != nil && t.Tag == TagTable && t.Yield == nil
}

// FieldIndex returns the offset of the named field, or -1.
func (t *Type) FieldIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Same reports structural identity; records and enums compare by name.
func Same(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagRecord, TagEnum:
		return a.Name == b.Name
	case TagVector:
		return Same(a.Elem, b.Elem)
	case TagTable:
		if len(a.Index) != len(b.Index) || !Same(a.Yield, b.Yield) {
			return false
		}
		for i := range a.Index {
			if !Same(a.Index[i], b.Index[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Tag {
	case TagRecord, TagEnum:
		if t.Name != "" {
			return t.Name
		}
		return t.Tag.String()
	case TagVector:
		return "vector of " + t.Elem.String()
	case TagTable:
		idx := make([]string, len(t.Index))
		for i, it := range t.Index {
			idx[i] = it.String()
		}
		if t.Yield == nil {
			return "set[" + strings.Join(idx, ",") + "]"
		}
		return "table[" + strings.Join(idx, ",") + "] of " + t.Yield.String()
	default:
		return t.Tag.String()
	}
}

// Attrs are table policy attributes.
type Attrs struct {
	// ExpireAfter drops entries that have lived longer than the duration.
	ExpireAfter time.Duration
	// ReadExpire refreshes an entry's timestamp on lookup.
	ReadExpire bool
}

// Empty reports whether no policy is set.
func (a *Attrs) Empty() bool {
	return a == nil || (a.ExpireAfter == 0 && !a.ReadExpire)
}

func (a *Attrs) String() string {
	if a.Empty() {
		return ""
	}
	var parts []string
	if a.ExpireAfter > 0 {
		parts = append(parts, "&create_expire="+a.ExpireAfter.String())
	}
	if a.ReadExpire {
		parts = append(parts, "&read_expire")
	}
	return strings.Join(parts, " ")
}
