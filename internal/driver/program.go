package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"zam/internal/diag"
	"zam/internal/observ"
	"zam/internal/trace"
	"zam/internal/tree"
	"zam/internal/val"
	"zam/internal/zam"
)

// HandlerPrefix marks a function as a handler of the event named by the
// rest of its name.
const HandlerPrefix = "on_"

// ErrUndefined reports a call to a function the program never defined.
var ErrUndefined = errors.New("driver: undefined function")

// Options configures a Program.
type Options struct {
	Jobs           int
	MaxDiagnostics int
	KeepDead       bool
	Tracer         trace.Tracer
	Timer          *observ.Timer
	// Env is the environment every body runs in. Nil selects a LocalEnv.
	Env zam.Env
	// Out receives the output of the print builtin.
	Out io.Writer
	// Progress, when set, receives per-body compile events.
	Progress ProgressSink
}

// Body is one function of a program and its compiled form.
type Body struct {
	Fn      *tree.Function
	Machine *zam.Machine
	ID      zam.BodyID
	// Err is the compile or validation failure of this body, if any.
	Err error
}

// Name returns the function name.
func (b *Body) Name() string { return b.Fn.Name }

// Program is a set of function bodies that call each other by name and
// share one environment and arena.
type Program struct {
	opts  Options
	env   zam.Env
	arena *zam.Arena
	bag   *diag.Bag

	mu       sync.Mutex
	bodies   []*Body
	byName   map[string]*Body
	refs     map[string]*funcRef
	events   map[string]*tree.EventHandler
	builtins map[string]*tree.Builtin
}

var _ tree.Resolver = (*Program)(nil)

// New returns an empty program.
func New(opts Options) *Program {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	p := &Program{
		opts:   opts,
		env:    opts.Env,
		arena:  zam.NewArena(),
		bag:    diag.NewBag(opts.MaxDiagnostics),
		byName: make(map[string]*Body),
		refs:   make(map[string]*funcRef),
		events: make(map[string]*tree.EventHandler),
	}
	if p.env == nil {
		p.env = zam.NewLocalEnv()
	}
	p.builtins = builtins(p)
	return p
}

// Env returns the environment bodies run in.
func (p *Program) Env() zam.Env { return p.env }

// Arena returns the arena holding every compiled body.
func (p *Program) Arena() *zam.Arena { return p.arena }

// Diagnostics returns the program-wide diagnostics bag.
func (p *Program) Diagnostics() *diag.Bag { return p.bag }

// Bodies returns the bodies in the order they were added.
func (p *Program) Bodies() []*Body {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.bodies)
}

// Body returns the body named name.
func (p *Program) Body(name string) (*Body, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.byName[name]
	return b, ok
}

// Add registers function bodies. Names must be unique within a program.
func (p *Program) Add(fns ...*tree.Function) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, fn := range fns {
		if fn == nil || fn.Name == "" {
			return errors.New("driver: function without a name")
		}
		if _, dup := p.byName[fn.Name]; dup {
			return fmt.Errorf("driver: function %s defined twice", fn.Name)
		}
		if _, dup := p.builtins[fn.Name]; dup {
			return fmt.Errorf("driver: function %s shadows a builtin", fn.Name)
		}
		b := &Body{Fn: fn, ID: -1}
		p.bodies = append(p.bodies, b)
		p.byName[fn.Name] = b
	}
	return nil
}

// Callable resolves a call target by name. Builtins resolve to
// themselves; anything else resolves to a reference bound when the
// program is compiled.
func (p *Program) Callable(name string) (tree.Callable, bool) {
	if b, ok := p.builtins[name]; ok {
		return b, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, ok := p.refs[name]
	if !ok {
		ref = &funcRef{name: name, p: p}
		p.refs[name] = ref
	}
	return ref, true
}

// Event returns the handler list of the event named name.
func (p *Program) Event(name string) (*tree.EventHandler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.events[name]
	if !ok {
		h = &tree.EventHandler{Name: name}
		p.events[name] = h
	}
	return h, true
}

// Call runs the body named name.
func (p *Program) Call(name string, args []val.Value) (val.Value, error) {
	ref, _ := p.Callable(name)
	return ref.Call(args)
}

// Raise queues or runs the event named name, depending on the
// environment.
func (p *Program) Raise(name string, args []val.Value) error {
	h, _ := p.Event(name)
	return p.env.Emit(h, args)
}

// bind subscribes handler bodies to their events and checks that every
// referenced function exists.
func (p *Program) bind() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var missing []string
	for name := range p.refs {
		if _, ok := p.byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	for _, b := range p.bodies {
		ev, ok := strings.CutPrefix(b.Fn.Name, HandlerPrefix)
		if !ok || ev == "" {
			continue
		}
		h, ok := p.events[ev]
		if !ok {
			h = &tree.EventHandler{Name: ev}
			p.events[ev] = h
		}
		ref, ok := p.refs[b.Fn.Name]
		if !ok {
			ref = &funcRef{name: b.Fn.Name, p: p}
			p.refs[b.Fn.Name] = ref
		}
		if !slices.Contains(h.Handlers, tree.Callable(ref)) {
			h.Subscribe(ref)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: %s", ErrUndefined, strings.Join(missing, ", "))
	}
	return nil
}

// funcRef is a call target resolved by name at call time, so bodies can
// be decoded and compiled in any order.
type funcRef struct {
	name string
	p    *Program
}

func (r *funcRef) Name() string { return r.name }

func (r *funcRef) Call(args []val.Value) (val.Value, error) {
	b, ok := r.p.Body(r.name)
	if !ok {
		return val.Void, fmt.Errorf("%w: %s", ErrUndefined, r.name)
	}
	if b.Machine == nil {
		return val.Void, fmt.Errorf("driver: %s is not compiled", r.name)
	}
	return b.Machine.Call(args)
}
