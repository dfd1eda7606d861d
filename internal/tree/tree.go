// Package tree holds the reduced statement/expression tree the abstract
// machine compiles. Trees arrive already type-checked: every expression
// carries its static type and coercions appear as explicit nodes wherever
// a value's representation must change.
package tree

import (
	"fmt"

	"zam/internal/types"
	"zam/internal/val"
)

// Loc is a source location used in diagnostics.
type Loc struct {
	File string
	Line int
}

func (l Loc) String() string {
	if l.File == "" && l.Line == 0 {
		return "<no-loc>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Node is any tree node.
type Node interface {
	Location() Loc
}

// At carries a node's location. Nodes embed it.
type At struct {
	Loc Loc
}

// Location returns the node's location.
func (a *At) Location() Loc { return a.Loc }

// ID is an identifier. Identity is by pointer: two IDs with the same name
// are different variables.
type ID struct {
	Name   string
	Type   *types.Type
	Global bool
}

func (id *ID) String() string {
	if id == nil {
		return "<nil-id>"
	}
	return id.Name
}

// NewLocal declares a local identifier.
func NewLocal(name string, t *types.Type) *ID {
	return &ID{Name: name, Type: t}
}

// NewGlobal declares a global identifier.
func NewGlobal(name string, t *types.Type) *ID {
	return &ID{Name: name, Type: t, Global: true}
}

// Callable is anything a call expression can invoke: a built-in, or a
// compiled or interpreted function body wrapped by the driver.
type Callable interface {
	Name() string
	Call(args []val.Value) (val.Value, error)
}

// Builtin adapts a Go function to Callable.
type Builtin struct {
	FnName string
	Fn     func(args []val.Value) (val.Value, error)
}

// Name returns the builtin's name.
func (b *Builtin) Name() string { return b.FnName }

// Call invokes the builtin.
func (b *Builtin) Call(args []val.Value) (val.Value, error) {
	return b.Fn(args)
}

// EventHandler names an event and the bodies subscribed to it.
type EventHandler struct {
	Name     string
	Handlers []Callable
}

// Subscribe adds a handler body.
func (h *EventHandler) Subscribe(c Callable) {
	h.Handlers = append(h.Handlers, c)
}

// Function is a complete function body as handed over by the front end.
type Function struct {
	Name   string
	Params []*ID
	Result *types.Type
	Body   Stmt
}
