package tree

import (
	"fmt"
	"io"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"zam/internal/types"
	"zam/internal/val"
)

// wireVersion is bumped whenever the encoded layout changes.
const wireVersion uint16 = 1

// Resolver maps callable and event names found in an encoded tree back to
// live objects.
type Resolver interface {
	Callable(name string) (Callable, bool)
	Event(name string) (*EventHandler, bool)
}

type wireFile struct {
	Version uint16     `msgpack:"v"`
	Types   []wireType `msgpack:"types"`
	IDs     []wireID   `msgpack:"ids"`
	Funcs   []wireFunc `msgpack:"funcs"`
}

// Type and ID references are table index + 1; zero means nil.
type wireType struct {
	Tag    uint8       `msgpack:"tag"`
	Name   string      `msgpack:"name,omitempty"`
	Fields []wireField `msgpack:"fields,omitempty"`
	Elem   int32       `msgpack:"elem,omitempty"`
	Index  []int32     `msgpack:"index,omitempty"`
	Yield  int32       `msgpack:"yield,omitempty"`
}

type wireField struct {
	Name string `msgpack:"n"`
	Type int32  `msgpack:"t"`
}

type wireID struct {
	Name   string `msgpack:"n"`
	Type   int32  `msgpack:"t"`
	Global bool   `msgpack:"g,omitempty"`
}

type wireFunc struct {
	Name   string    `msgpack:"name"`
	Params []int32   `msgpack:"params"`
	Result int32     `msgpack:"result,omitempty"`
	Body   *wireNode `msgpack:"body"`
}

type wireVal struct {
	Tag uint8   `msgpack:"t"`
	I   int64   `msgpack:"i,omitempty"`
	U   uint64  `msgpack:"u,omitempty"`
	F   float64 `msgpack:"f,omitempty"`
	S   string  `msgpack:"s,omitempty"`
}

type wireAttrs struct {
	Expire     int64 `msgpack:"expire,omitempty"`
	ReadExpire bool  `msgpack:"read,omitempty"`
}

type wireCase struct {
	Values []*wireNode    `msgpack:"vals,omitempty"`
	Types  []wireTypeCase `msgpack:"types,omitempty"`
	Body   *wireNode      `msgpack:"body"`
}

type wireTypeCase struct {
	ID   int32 `msgpack:"id,omitempty"`
	Type int32 `msgpack:"t"`
}

type wireNode struct {
	Kind  string      `msgpack:"k"`
	File  string      `msgpack:"f,omitempty"`
	Line  int         `msgpack:"l,omitempty"`
	Op    uint8       `msgpack:"op,omitempty"`
	ID    int32       `msgpack:"id,omitempty"`
	IDs   []int32     `msgpack:"ids,omitempty"`
	Type  int32       `msgpack:"t,omitempty"`
	Val   *wireVal    `msgpack:"val,omitempty"`
	Name  string      `msgpack:"name,omitempty"`
	Int   int         `msgpack:"int,omitempty"`
	Flag  bool        `msgpack:"flag,omitempty"`
	Attrs *wireAttrs  `msgpack:"attrs,omitempty"`
	Kids  []*wireNode `msgpack:"kids,omitempty"`
	Cases []wireCase  `msgpack:"cases,omitempty"`
}

// Encode writes fns in the msgpack wire form. Callables and event handlers
// are written by name.
func Encode(w io.Writer, fns ...*Function) error {
	e := &encoder{
		types: make(map[*types.Type]int32),
		ids:   make(map[*ID]int32),
	}
	e.file.Version = wireVersion
	for _, fn := range fns {
		wf := wireFunc{Name: fn.Name, Result: e.typ(fn.Result)}
		for _, p := range fn.Params {
			wf.Params = append(wf.Params, e.id(p))
		}
		body, err := e.node(fn.Body)
		if err != nil {
			return fmt.Errorf("tree: encode %s: %w", fn.Name, err)
		}
		wf.Body = body
		e.file.Funcs = append(e.file.Funcs, wf)
	}
	return msgpack.NewEncoder(w).Encode(&e.file)
}

type encoder struct {
	file  wireFile
	types map[*types.Type]int32
	ids   map[*ID]int32
}

func (e *encoder) typ(t *types.Type) int32 {
	if t == nil {
		return 0
	}
	if ref, ok := e.types[t]; ok {
		return ref
	}
	e.file.Types = append(e.file.Types, wireType{})
	ref := int32(len(e.file.Types)) //nolint:gosec // table sizes are bounded by the tree
	e.types[t] = ref
	wt := wireType{Tag: uint8(t.Tag), Name: t.Name}
	for _, f := range t.Fields {
		wt.Fields = append(wt.Fields, wireField{Name: f.Name, Type: e.typ(f.Type)})
	}
	wt.Elem = e.typ(t.Elem)
	for _, ix := range t.Index {
		wt.Index = append(wt.Index, e.typ(ix))
	}
	wt.Yield = e.typ(t.Yield)
	e.file.Types[ref-1] = wt
	return ref
}

func (e *encoder) id(id *ID) int32 {
	if id == nil {
		return 0
	}
	if ref, ok := e.ids[id]; ok {
		return ref
	}
	e.file.IDs = append(e.file.IDs, wireID{Name: id.Name, Global: id.Global})
	ref := int32(len(e.file.IDs)) //nolint:gosec // table sizes are bounded by the tree
	e.ids[id] = ref
	e.file.IDs[ref-1].Type = e.typ(id.Type)
	return ref
}

func encodeVal(v val.Value) (*wireVal, error) {
	if v.Obj != nil {
		return nil, fmt.Errorf("aggregate constant %s has no wire form", v.Tag)
	}
	return &wireVal{Tag: uint8(v.Tag), I: v.I, U: v.U, F: v.F, S: v.S}, nil
}

func (e *encoder) exprs(es []Expr) ([]*wireNode, error) {
	out := make([]*wireNode, 0, len(es))
	for _, x := range es {
		n, err := e.node(x)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (e *encoder) kids(ns ...Node) ([]*wireNode, error) {
	out := make([]*wireNode, len(ns))
	for i, n := range ns {
		w, err := e.node(n)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func (e *encoder) node(n Node) (*wireNode, error) {
	if n == nil || isNilNode(n) {
		return nil, nil
	}
	loc := n.Location()
	w := &wireNode{File: loc.File, Line: loc.Line}
	var err error
	switch n := n.(type) {
	case *StmtList:
		w.Kind = "list"
		for _, s := range n.Stmts {
			var k *wireNode
			if k, err = e.node(s); err != nil {
				return nil, err
			}
			w.Kids = append(w.Kids, k)
		}
	case *ExprStmt:
		w.Kind = "expr"
		w.Kids, err = e.kids(n.E)
	case *IfStmt:
		w.Kind = "if"
		w.Kids, err = e.kids(n.Cond, n.Then, n.Else)
	case *WhileStmt:
		w.Kind = "while"
		w.Flag = n.PostCheck
		w.Kids, err = e.kids(n.CondStmt, n.Cond, n.Body)
	case *LoopStmt:
		w.Kind = "loop"
		w.Kids, err = e.kids(n.Body)
	case *ForStmt:
		w.Kind = "for"
		for _, v := range n.Vars {
			w.IDs = append(w.IDs, e.id(v))
		}
		w.ID = e.id(n.Value)
		w.Kids, err = e.kids(n.Over, n.Body)
	case *SwitchStmt:
		w.Kind = "switch"
		w.Int = n.Default
		if w.Kids, err = e.kids(n.Value); err != nil {
			return nil, err
		}
		for _, c := range n.Cases {
			wc := wireCase{}
			for _, v := range c.Values {
				var k *wireNode
				if k, err = e.node(v); err != nil {
					return nil, err
				}
				wc.Values = append(wc.Values, k)
			}
			for _, tc := range c.Types {
				wc.Types = append(wc.Types, wireTypeCase{ID: e.id(tc.ID), Type: e.typ(tc.Type)})
			}
			if wc.Body, err = e.node(c.Body); err != nil {
				return nil, err
			}
			w.Cases = append(w.Cases, wc)
		}
	case *WhenStmt:
		w.Kind = "when"
		w.Flag = n.IsReturn
		w.Kids, err = e.kids(n.CondStmt, n.Cond, n.Body, n.Timeout, n.TimeoutBody)
	case *ReturnStmt:
		w.Kind = "return"
		w.Kids, err = e.kids(n.Value)
	case *BreakStmt:
		w.Kind = "break"
	case *NextStmt:
		w.Kind = "next"
	case *FallthroughStmt:
		w.Kind = "fallthrough"
	case *NullStmt:
		w.Kind = "null"
	case *InitStmt:
		w.Kind = "init"
		for _, id := range n.IDs {
			w.IDs = append(w.IDs, e.id(id))
		}
		if n.Attrs != nil {
			w.Attrs = &wireAttrs{Expire: int64(n.Attrs.ExpireAfter), ReadExpire: n.Attrs.ReadExpire}
		}
	case *NameExpr:
		w.Kind = "name"
		w.ID = e.id(n.ID)
	case *ConstExpr:
		w.Kind = "const"
		w.Type = e.typ(n.T)
		w.Val, err = encodeVal(n.Val)
	case *BinaryExpr:
		w.Kind = "binary"
		w.Op = uint8(n.Op)
		w.Type = e.typ(n.T)
		w.Kids, err = e.kids(n.X, n.Y)
	case *UnaryExpr:
		w.Kind = "unary"
		w.Op = uint8(n.Op)
		w.Type = e.typ(n.T)
		w.Kids, err = e.kids(n.X)
	case *CallExpr:
		w.Kind = "call"
		w.Name = n.Func.Name()
		w.Type = e.typ(n.T)
		w.Kids, err = e.exprs(n.Args)
	case *CoerceExpr:
		w.Kind = "coerce"
		w.Int = int(n.Kind)
		w.Type = e.typ(n.T)
		w.Kids, err = e.kids(n.X)
	case *InExpr:
		w.Kind = "in"
		w.Kids, err = e.kids(n.Elem, n.Set)
	case *IndexExpr:
		w.Kind = "index"
		w.Type = e.typ(n.T)
		w.Kids, err = e.exprs(append([]Expr{n.Agg}, n.Index...))
	case *FieldExpr:
		w.Kind = "field"
		w.Int = n.Field
		w.Type = e.typ(n.T)
		w.Kids, err = e.kids(n.Rec)
	case *ListExpr:
		w.Kind = "exprlist"
		w.Kids, err = e.exprs(n.Exprs)
	case *CondExpr:
		w.Kind = "cond"
		w.Kids, err = e.kids(n.Cond, n.Then, n.Else)
	case *RecordConstructorExpr:
		w.Kind = "record"
		w.Type = e.typ(n.T)
		w.Kids, err = e.exprs(n.Fields)
	case *AssignExpr:
		w.Kind = "assign"
		w.Kids, err = e.kids(n.Target, n.Value)
	case *IndexAssignExpr:
		w.Kind = "indexassign"
		w.Kids, err = e.exprs(append([]Expr{n.Agg, n.Value}, n.Index...))
	case *FieldAssignExpr:
		w.Kind = "fieldassign"
		w.Int = n.Field
		w.Kids, err = e.kids(n.Rec, n.Value)
	case *ScheduleExpr:
		w.Kind = "schedule"
		w.Flag = n.Interval
		w.Name = n.Event.Name
		w.Kids, err = e.exprs(append([]Expr{n.When}, n.Args...))
	case *EventExpr:
		w.Kind = "event"
		w.Name = n.Handler.Name
		w.Kids, err = e.exprs(n.Args)
	default:
		return nil, fmt.Errorf("no wire form for %T", n)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// isNilNode catches typed nils such as a nil *StmtList stored in a Stmt.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *StmtList:
		return n == nil
	case *NameExpr:
		return n == nil
	case *ConstExpr:
		return n == nil
	}
	return false
}

// Decode reads functions written by Encode, resolving callable and event
// names through res.
func Decode(r io.Reader, res Resolver) ([]*Function, error) {
	var file wireFile
	if err := msgpack.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("tree: decode: %w", err)
	}
	if file.Version != wireVersion {
		return nil, fmt.Errorf("tree: wire version %d, want %d", file.Version, wireVersion)
	}
	d := &decoder{res: res, file: &file}
	if err := d.tables(); err != nil {
		return nil, err
	}
	fns := make([]*Function, 0, len(file.Funcs))
	for _, wf := range file.Funcs {
		fn := &Function{Name: wf.Name}
		var err error
		if fn.Result, err = d.typ(wf.Result); err != nil {
			return nil, err
		}
		for _, p := range wf.Params {
			id, err := d.id(p)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, id)
		}
		if fn.Body, err = d.stmt(wf.Body); err != nil {
			return nil, fmt.Errorf("tree: decode %s: %w", wf.Name, err)
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

type decoder struct {
	res   Resolver
	file  *wireFile
	types []*types.Type
	ids   []*ID
}

func (d *decoder) tables() error {
	d.types = make([]*types.Type, len(d.file.Types))
	for i := range d.types {
		d.types[i] = &types.Type{}
	}
	for i, wt := range d.file.Types {
		t := d.types[i]
		t.Tag = types.Tag(wt.Tag)
		t.Name = wt.Name
		var err error
		for _, f := range wt.Fields {
			ft, err := d.typ(f.Type)
			if err != nil {
				return err
			}
			t.Fields = append(t.Fields, types.Field{Name: f.Name, Type: ft})
		}
		if t.Elem, err = d.typ(wt.Elem); err != nil {
			return err
		}
		for _, ix := range wt.Index {
			it, err := d.typ(ix)
			if err != nil {
				return err
			}
			t.Index = append(t.Index, it)
		}
		if t.Yield, err = d.typ(wt.Yield); err != nil {
			return err
		}
	}
	d.ids = make([]*ID, len(d.file.IDs))
	for i, wi := range d.file.IDs {
		t, err := d.typ(wi.Type)
		if err != nil {
			return err
		}
		d.ids[i] = &ID{Name: wi.Name, Type: t, Global: wi.Global}
	}
	return nil
}

func (d *decoder) typ(ref int32) (*types.Type, error) {
	if ref == 0 {
		return nil, nil
	}
	i, err := safecast.Conv[int](ref - 1)
	if err != nil || i >= len(d.types) {
		return nil, fmt.Errorf("tree: bad type reference %d", ref)
	}
	return d.types[i], nil
}

func (d *decoder) id(ref int32) (*ID, error) {
	if ref == 0 {
		return nil, nil
	}
	i, err := safecast.Conv[int](ref - 1)
	if err != nil || i >= len(d.ids) {
		return nil, fmt.Errorf("tree: bad id reference %d", ref)
	}
	return d.ids[i], nil
}

func (d *decoder) stmt(w *wireNode) (Stmt, error) {
	if w == nil {
		return nil, nil
	}
	n, err := d.node(w)
	if err != nil {
		return nil, err
	}
	s, ok := n.(Stmt)
	if !ok {
		return nil, fmt.Errorf("%s:%d: %q is not a statement", w.File, w.Line, w.Kind)
	}
	return s, nil
}

func (d *decoder) expr(w *wireNode) (Expr, error) {
	if w == nil {
		return nil, nil
	}
	n, err := d.node(w)
	if err != nil {
		return nil, err
	}
	x, ok := n.(Expr)
	if !ok {
		return nil, fmt.Errorf("%s:%d: %q is not an expression", w.File, w.Line, w.Kind)
	}
	return x, nil
}

func (d *decoder) exprs(ws []*wireNode) ([]Expr, error) {
	out := make([]Expr, 0, len(ws))
	for _, w := range ws {
		x, err := d.expr(w)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func (d *decoder) name(w *wireNode) (*NameExpr, error) {
	x, err := d.expr(w)
	if err != nil {
		return nil, err
	}
	ne, ok := x.(*NameExpr)
	if !ok {
		return nil, fmt.Errorf("%s:%d: assignment target is not a name", w.File, w.Line)
	}
	return ne, nil
}

// kid returns the i'th child or nil when absent.
func kid(w *wireNode, i int) *wireNode {
	if i < len(w.Kids) {
		return w.Kids[i]
	}
	return nil
}

func (d *decoder) node(w *wireNode) (Node, error) {
	at := At{Loc: Loc{File: w.File, Line: w.Line}}
	var err error
	switch w.Kind {
	case "list":
		n := &StmtList{At: at}
		for _, k := range w.Kids {
			s, err := d.stmt(k)
			if err != nil {
				return nil, err
			}
			n.Stmts = append(n.Stmts, s)
		}
		return n, nil
	case "expr":
		n := &ExprStmt{At: at}
		n.E, err = d.expr(kid(w, 0))
		return n, err
	case "if":
		n := &IfStmt{At: at}
		if n.Cond, err = d.expr(kid(w, 0)); err != nil {
			return nil, err
		}
		if n.Then, err = d.stmt(kid(w, 1)); err != nil {
			return nil, err
		}
		n.Else, err = d.stmt(kid(w, 2))
		return n, err
	case "while":
		n := &WhileStmt{At: at, PostCheck: w.Flag}
		if n.CondStmt, err = d.stmt(kid(w, 0)); err != nil {
			return nil, err
		}
		if n.Cond, err = d.expr(kid(w, 1)); err != nil {
			return nil, err
		}
		n.Body, err = d.stmt(kid(w, 2))
		return n, err
	case "loop":
		n := &LoopStmt{At: at}
		n.Body, err = d.stmt(kid(w, 0))
		return n, err
	case "for":
		n := &ForStmt{At: at}
		for _, ref := range w.IDs {
			id, err := d.id(ref)
			if err != nil {
				return nil, err
			}
			n.Vars = append(n.Vars, id)
		}
		if n.Value, err = d.id(w.ID); err != nil {
			return nil, err
		}
		if n.Over, err = d.expr(kid(w, 0)); err != nil {
			return nil, err
		}
		n.Body, err = d.stmt(kid(w, 1))
		return n, err
	case "switch":
		n := &SwitchStmt{At: at, Default: w.Int}
		if n.Value, err = d.expr(kid(w, 0)); err != nil {
			return nil, err
		}
		for _, wc := range w.Cases {
			c := &Case{}
			for _, wv := range wc.Values {
				x, err := d.expr(wv)
				if err != nil {
					return nil, err
				}
				ce, ok := x.(*ConstExpr)
				if !ok {
					return nil, fmt.Errorf("%s:%d: case label is not a constant", w.File, w.Line)
				}
				c.Values = append(c.Values, ce)
			}
			for _, wt := range wc.Types {
				id, err := d.id(wt.ID)
				if err != nil {
					return nil, err
				}
				t, err := d.typ(wt.Type)
				if err != nil {
					return nil, err
				}
				c.Types = append(c.Types, TypeCase{ID: id, Type: t})
			}
			if c.Body, err = d.stmt(wc.Body); err != nil {
				return nil, err
			}
			n.Cases = append(n.Cases, c)
		}
		return n, nil
	case "when":
		n := &WhenStmt{At: at, IsReturn: w.Flag}
		if n.CondStmt, err = d.stmt(kid(w, 0)); err != nil {
			return nil, err
		}
		if n.Cond, err = d.expr(kid(w, 1)); err != nil {
			return nil, err
		}
		if n.Body, err = d.stmt(kid(w, 2)); err != nil {
			return nil, err
		}
		if n.Timeout, err = d.expr(kid(w, 3)); err != nil {
			return nil, err
		}
		n.TimeoutBody, err = d.stmt(kid(w, 4))
		return n, err
	case "return":
		n := &ReturnStmt{At: at}
		n.Value, err = d.expr(kid(w, 0))
		return n, err
	case "break":
		return &BreakStmt{At: at}, nil
	case "next":
		return &NextStmt{At: at}, nil
	case "fallthrough":
		return &FallthroughStmt{At: at}, nil
	case "null":
		return &NullStmt{At: at}, nil
	case "init":
		n := &InitStmt{At: at}
		for _, ref := range w.IDs {
			id, err := d.id(ref)
			if err != nil {
				return nil, err
			}
			n.IDs = append(n.IDs, id)
		}
		if w.Attrs != nil {
			n.Attrs = &types.Attrs{ExpireAfter: time.Duration(w.Attrs.Expire), ReadExpire: w.Attrs.ReadExpire}
		}
		return n, nil
	case "name":
		id, err := d.id(w.ID)
		if err != nil {
			return nil, err
		}
		if id == nil {
			return nil, fmt.Errorf("%s:%d: name without identifier", w.File, w.Line)
		}
		return &NameExpr{At: at, ID: id}, nil
	case "const":
		if w.Val == nil {
			return nil, fmt.Errorf("%s:%d: constant without value", w.File, w.Line)
		}
		n := &ConstExpr{At: at, Val: val.Value{Tag: types.Tag(w.Val.Tag), I: w.Val.I, U: w.Val.U, F: w.Val.F, S: w.Val.S}}
		n.T, err = d.typ(w.Type)
		return n, err
	case "binary":
		n := &BinaryExpr{At: at, Op: val.Op(w.Op)}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		if n.X, err = d.expr(kid(w, 0)); err != nil {
			return nil, err
		}
		n.Y, err = d.expr(kid(w, 1))
		return n, err
	case "unary":
		n := &UnaryExpr{At: at, Op: val.Op(w.Op)}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		n.X, err = d.expr(kid(w, 0))
		return n, err
	case "call":
		fn, ok := d.res.Callable(w.Name)
		if !ok {
			return nil, fmt.Errorf("%s:%d: unknown function %q", w.File, w.Line, w.Name)
		}
		n := &CallExpr{At: at, Func: fn}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		n.Args, err = d.exprs(w.Kids)
		return n, err
	case "coerce":
		n := &CoerceExpr{At: at, Kind: CoerceKind(w.Int)}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		n.X, err = d.expr(kid(w, 0))
		return n, err
	case "in":
		n := &InExpr{At: at}
		if n.Elem, err = d.expr(kid(w, 0)); err != nil {
			return nil, err
		}
		n.Set, err = d.expr(kid(w, 1))
		return n, err
	case "index":
		n := &IndexExpr{At: at}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		xs, err := d.exprs(w.Kids)
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return nil, fmt.Errorf("%s:%d: index without aggregate", w.File, w.Line)
		}
		n.Agg, n.Index = xs[0], xs[1:]
		return n, nil
	case "field":
		n := &FieldExpr{At: at, Field: w.Int}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		n.Rec, err = d.expr(kid(w, 0))
		return n, err
	case "exprlist":
		n := &ListExpr{At: at}
		n.Exprs, err = d.exprs(w.Kids)
		return n, err
	case "cond":
		n := &CondExpr{At: at}
		if n.Cond, err = d.expr(kid(w, 0)); err != nil {
			return nil, err
		}
		if n.Then, err = d.expr(kid(w, 1)); err != nil {
			return nil, err
		}
		n.Else, err = d.expr(kid(w, 2))
		return n, err
	case "record":
		n := &RecordConstructorExpr{At: at}
		if n.T, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		n.Fields, err = d.exprs(w.Kids)
		return n, err
	case "assign":
		n := &AssignExpr{At: at}
		if n.Target, err = d.name(kid(w, 0)); err != nil {
			return nil, err
		}
		n.Value, err = d.expr(kid(w, 1))
		return n, err
	case "indexassign":
		n := &IndexAssignExpr{At: at}
		if len(w.Kids) < 2 {
			return nil, fmt.Errorf("%s:%d: malformed index assignment", w.File, w.Line)
		}
		if n.Agg, err = d.name(w.Kids[0]); err != nil {
			return nil, err
		}
		if n.Value, err = d.expr(w.Kids[1]); err != nil {
			return nil, err
		}
		n.Index, err = d.exprs(w.Kids[2:])
		return n, err
	case "fieldassign":
		n := &FieldAssignExpr{At: at, Field: w.Int}
		if n.Rec, err = d.name(kid(w, 0)); err != nil {
			return nil, err
		}
		n.Value, err = d.expr(kid(w, 1))
		return n, err
	case "schedule":
		ev, ok := d.res.Event(w.Name)
		if !ok {
			return nil, fmt.Errorf("%s:%d: unknown event %q", w.File, w.Line, w.Name)
		}
		n := &ScheduleExpr{At: at, Interval: w.Flag, Event: ev}
		xs, err := d.exprs(w.Kids)
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return nil, fmt.Errorf("%s:%d: schedule without time", w.File, w.Line)
		}
		n.When, n.Args = xs[0], xs[1:]
		return n, nil
	case "event":
		ev, ok := d.res.Event(w.Name)
		if !ok {
			return nil, fmt.Errorf("%s:%d: unknown event %q", w.File, w.Line, w.Name)
		}
		n := &EventExpr{At: at, Handler: ev}
		n.Args, err = d.exprs(w.Kids)
		return n, err
	}
	return nil, fmt.Errorf("%s:%d: unknown node kind %q", w.File, w.Line, w.Kind)
}
