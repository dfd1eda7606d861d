// Package zam implements the abstract machine: a compiler backend that
// lowers a function body into a flat instruction sequence, and the
// interpreter that runs it by program-counter dispatch. A body may suspend
// at a wait and later continue from the same point.
package zam

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"zam/internal/analysis"
	"zam/internal/compile"
	"zam/internal/diag"
	"zam/internal/frame"
	"zam/internal/interp"
	"zam/internal/trace"
	"zam/internal/tree"
	"zam/internal/types"
)

// Options configures compilation.
type Options struct {
	Tracer trace.Tracer
	// ParentSpan nests the compile span under a driver span.
	ParentSpan uint64
	// KeepDead disables elision of stores into dead locals.
	KeepDead bool
	// MaxDiagnostics caps the diagnostics bag; zero means unbounded.
	MaxDiagnostics int
	// Env is the environment bodies run in. Nil means a LocalEnv.
	Env Env
}

// Analyses are the read-only analysis results compilation consumes. Any
// of them may be nil, which makes the machine conservative.
type Analyses struct {
	Profile *analysis.Profile
	RD      *analysis.ReachingDefs
	UD      *analysis.UseDefs
}

// Analyze runs every analysis over fn.
func Analyze(fn *tree.Function) Analyses {
	prof := analysis.NewProfile(fn)
	return Analyses{
		Profile: prof,
		RD:      analysis.NewReachingDefs(fn, prof),
		UD:      analysis.NewUseDefs(fn),
	}
}

// Machine is a compiled body. Once compiled its code is immutable, and it
// can run any number of activations.
type Machine struct {
	name   string
	fn     *tree.Function
	an     Analyses
	opts   Options
	tracer trace.Tracer
	env    Env

	code   []Instr
	layout *Layout
	curr   tree.Stmt

	breaks, nexts, falls []*GotoList

	errors   []diag.Diagnostic
	operands [][]compile.Operand
	types    []*types.Type
	calls    []callSite
	events   []eventSite
	scheds   []schedSite
	inits    []initSite
	exprs    []exprSite
	switches []*SwitchTable
	iters    []iterSite

	diags   *diag.Bag
	arenaMu sync.Mutex
	arena   *Arena
	id      BodyID
}

var (
	_ compile.Compiler = (*Machine)(nil)
	_ interp.Stmt      = (*Machine)(nil)
	_ tree.Callable    = (*Machine)(nil)
)

// Compile analyzes and compiles fn.
func Compile(fn *tree.Function, opts Options) (*Machine, error) {
	return CompileBody(fn, Analyze(fn), opts)
}

// CompileBody compiles fn using precomputed analyses. Construct errors do
// not stop compilation; they are reported together once the whole body
// has been lowered, and the returned machine faults if it reaches one.
func CompileBody(fn *tree.Function, an Analyses, opts Options) (*Machine, error) {
	m := newMachine(fn, an, opts)
	span := trace.Begin(m.tracer, trace.ScopeBody, "compile", opts.ParentSpan, trace.Body(m.name))

	compile.Lower(m, fn.Body)
	m.SetCurrStmt(nil)
	m.SyncGlobals(nil)
	m.finish()

	span.With(trace.Int("instrs", len(m.code)), trace.Int("slots", m.layout.Size())).End("")

	if m.diags.HasErrors() {
		var merr *multierror.Error
		for _, d := range m.diags.Items() {
			merr = multierror.Append(merr, d)
		}
		return m, fmt.Errorf("zam: compile %s: %w", m.name, merr)
	}
	return m, nil
}

func newMachine(fn *tree.Function, an Analyses, opts Options) *Machine {
	m := &Machine{
		name:   fn.Name,
		fn:     fn,
		an:     an,
		opts:   opts,
		tracer: opts.Tracer,
		env:    opts.Env,
		layout: NewLayout(fn.Params),
		diags:  diag.NewBag(opts.MaxDiagnostics),
		id:     -1,
	}
	if m.name == "" {
		m.name = "<anon>"
	}
	if m.tracer == nil {
		m.tracer = trace.Nop
	}
	if m.env == nil {
		m.env = NewLocalEnv()
	}
	return m
}

// finish checks that every construct resolved its gotos.
func (m *Machine) finish() {
	for _, stack := range [][]*GotoList{m.breaks, m.nexts, m.falls} {
		if len(stack) != 0 {
			m.internal("%d %s lists still open", len(stack), stack[0].kind)
		}
	}
}

// Name returns the body's name.
func (m *Machine) Name() string { return m.name }

// Function returns the compiled function.
func (m *Machine) Function() *tree.Function { return m.fn }

// Code returns the instruction sequence. Callers must not modify it.
func (m *Machine) Code() []Instr { return m.code }

// Layout returns the frame layout.
func (m *Machine) Layout() *Layout { return m.layout }

// Diagnostics returns the construct errors recorded while compiling.
func (m *Machine) Diagnostics() []diag.Diagnostic { return m.diags.Items() }

// Env returns the environment the body runs in.
func (m *Machine) Env() Env { return m.env }

// SetEnv binds the environment bodies run in.
func (m *Machine) SetEnv(env Env) { m.env = env }

// SetTracer replaces the tracer used while running.
func (m *Machine) SetTracer(t trace.Tracer) {
	if t == nil {
		t = trace.Nop
	}
	m.tracer = t
}

// NewFrame allocates a frame sized and declared for this body.
func (m *Machine) NewFrame() *frame.Frame { return m.layout.NewFrame() }

func (m *Machine) loc() tree.Loc {
	if m.curr == nil {
		return tree.Loc{}
	}
	return m.curr.Location()
}

func (m *Machine) emit(in Instr) int {
	in.Pos = len(m.code)
	if in.Loc == (tree.Loc{}) {
		in.Loc = m.loc()
	}
	m.code = append(m.code, in)
	return in.Pos
}

func (m *Machine) last() compile.CompiledStmt {
	return compile.At(len(m.code) - 1)
}

// here is the position the next instruction will get.
func (m *Machine) here() int { return len(m.code) }

func (m *Machine) point(construct string) {
	trace.Point(m.tracer, trace.ScopeConstruct, construct, m.loc().String(),
		trace.Body(m.name), trace.Int("pos", len(m.code)))
}

func (m *Machine) addType(t *types.Type) int {
	m.types = append(m.types, t)
	return len(m.types) - 1
}

func (m *Machine) addOperands(ops []compile.Operand) int {
	m.operands = append(m.operands, ops)
	return len(m.operands) - 1
}

// SetCurrStmt records the statement being lowered.
func (m *Machine) SetCurrStmt(s tree.Stmt) { m.curr = s }

// StartingBlock marks the start of a block.
func (m *Machine) StartingBlock() compile.CompiledStmt { return compile.At(m.here()) }

// FinishBlock returns the block's last position; for an empty block that
// is one before its start.
func (m *Machine) FinishBlock(compile.CompiledStmt) compile.CompiledStmt { return m.last() }

// NullStmtOK reports whether nothing has been emitted yet.
func (m *Machine) NullStmtOK() bool { return len(m.code) == 0 }

// EmptyStmt emits a no-op.
func (m *Machine) EmptyStmt() compile.CompiledStmt {
	return compile.At(m.emit(Instr{Op: OpNop}))
}

// ErrorStmt records a construct error and emits a placeholder that faults
// if reached.
func (m *Machine) ErrorStmt(loc tree.Loc, code diag.Code, msg string) compile.CompiledStmt {
	d := diag.NewError(code, loc, fmt.Sprintf("%s: %s", m.name, msg))
	m.diags.Add(d)
	m.errors = append(m.errors, d)
	return compile.At(m.emit(Instr{Op: OpError, Aux: len(m.errors) - 1, Loc: loc}))
}

// IsUnused reports whether id's value is dead after where. Globals never
// are.
func (m *Machine) IsUnused(id *tree.ID, where tree.Stmt) bool {
	if m.an.UD == nil || id == nil || id.Global || where == nil {
		return false
	}
	return m.an.UD.IsUnused(id, where)
}

func (m *Machine) elideDead(id *tree.ID) bool {
	return !m.opts.KeepDead && m.IsUnused(id, m.curr)
}

// SyncGlobals emits write-backs for every global possibly modified
// before where. A nil where means the end of the body.
func (m *Machine) SyncGlobals(where tree.Node) {
	if m.an.RD == nil {
		for _, g := range m.layout.Globals() {
			m.storeGlobal(g)
		}
		return
	}
	var st analysis.State
	if where == nil {
		st = m.an.RD.Exit()
	} else {
		s, ok := m.an.RD.Before(where)
		if !ok {
			return
		}
		st = s
	}
	for _, g := range st.ModifiedGlobals() {
		m.storeGlobal(g)
	}
}

func (m *Machine) storeGlobal(g *tree.ID) {
	gi := m.layout.globalIndex(g)
	m.emit(Instr{Op: OpStoreGlobal, A: m.layout.Slot(g), Aux: gi})
}

// BuildVals marshals args into operands: literals stay literal, names
// use their slots and anything else is computed into a register.
func (m *Machine) BuildVals(args []tree.Expr) []compile.Operand {
	ops := make([]compile.Operand, len(args))
	for i, a := range args {
		ops[i] = m.operand(a)
	}
	return ops
}
