package driver

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"zam/internal/trace"
	"zam/internal/zam"
)

// Compile compiles every body not compiled yet, Jobs at a time. A body
// that fails to compile still gets a machine, which faults when it reaches
// the broken construct; the failures are returned together.
func (p *Program) Compile(ctx context.Context) error {
	tracer := p.opts.Tracer
	if t := trace.FromContext(ctx); t.Enabled() {
		tracer = t
	}
	span := trace.Begin(tracer, trace.ScopeDriver, "compile-program", trace.ParentSpan(ctx))
	done := p.opts.Timer.Track("compile")

	var todo []*Body
	for _, b := range p.Bodies() {
		if b.Machine == nil {
			todo = append(todo, b)
		}
	}

	for _, b := range todo {
		p.report(Event{Body: b.Fn.Name, Status: StatusQueued})
	}

	jobs := p.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(todo))))
	for _, b := range todo {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			p.compileBody(b, tracer, span.ID())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End(err.Error())
		done("cancelled")
		return fmt.Errorf("driver: compile: %w", err)
	}

	// Arena ids and diagnostics follow source order, not completion order.
	var errs *multierror.Error
	for _, b := range todo {
		if b.Machine != nil {
			b.ID = p.arena.Add(b.Machine)
			for _, d := range b.Machine.Diagnostics() {
				p.bag.Add(d)
			}
		}
		if b.Err != nil {
			errs = multierror.Append(errs, b.Err)
		}
	}
	p.report(Event{Stage: StageBind, Status: StatusWorking})
	if err := p.bind(); err != nil {
		errs = multierror.Append(errs, err)
	}

	span.With(trace.Int("bodies", len(todo))).End("")
	done(strconv.Itoa(len(todo)) + " bodies")
	if p.opts.Timer != nil {
		appendTimings(p.bag, "compile", p.opts.Timer.Report())
	}
	return errs.ErrorOrNil()
}

func (p *Program) compileBody(b *Body, tracer trace.Tracer, parent uint64) {
	done := p.opts.Timer.Track("compile " + b.Fn.Name)
	start := time.Now()
	stage := StageAnalyze
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*zam.InternalError)
			if !ok {
				panic(r)
			}
			b.Err = fmt.Errorf("driver: %w", ie)
			done("internal error")
		}
		status := StatusDone
		if b.Err != nil {
			status = StatusError
		}
		p.report(Event{Body: b.Fn.Name, Stage: stage, Status: status, Err: b.Err, Elapsed: time.Since(start)})
	}()
	p.report(Event{Body: b.Fn.Name, Stage: stage, Status: StatusWorking})
	info := zam.Analyze(b.Fn)
	stage = StageLower
	p.report(Event{Body: b.Fn.Name, Stage: stage, Status: StatusWorking})
	m, err := zam.CompileBody(b.Fn, info, zam.Options{
		Tracer:         tracer,
		ParentSpan:     parent,
		KeepDead:       p.opts.KeepDead,
		MaxDiagnostics: p.opts.MaxDiagnostics,
		Env:            p.env,
	})
	b.Machine = m
	if err == nil {
		stage = StageValidate
		p.report(Event{Body: b.Fn.Name, Stage: stage, Status: StatusWorking})
		err = zam.Validate(m)
	}
	b.Err = err
	done(strconv.Itoa(len(m.Code())) + " instrs")
}
