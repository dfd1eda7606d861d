package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zam/internal/diagfmt"
	"zam/internal/driver"
	"zam/internal/observ"
	"zam/internal/samples"
	"zam/internal/sched"
	"zam/internal/trace"
	"zam/internal/val"
	"zam/internal/version"
)

// loaded is a compiled program ready to run.
type loaded struct {
	prog   *driver.Program
	sched  *sched.Scheduler
	timer  *observ.Timer
	sample *samples.Sample
}

// loadProgram builds a program from a wire file or a named sample and
// compiles it. Compile failures are reported but the program is still
// returned so it can be dumped.
func loadProgram(cmd *cobra.Command, file, sample string, realTime bool, out io.Writer) (*loaded, error) {
	if (file == "") == (sample == "") {
		return nil, errors.New("give either a file or --sample")
	}
	tracer := trace.FromContext(cmd.Context())
	timer := observ.NewTimer()
	var events chan driver.Event
	var progress driver.ProgressSink
	if useTUI(active.ui) {
		events = make(chan driver.Event, 256)
		progress = driver.ChannelSink{Ch: events}
	}
	sc := sched.New(nil, sched.Config{
		Epoch:  time.Now().Truncate(time.Second),
		TickMs: active.cfg.Sched.TickMs,
		Real:   realTime,
		Tracer: tracer,
	})
	prog := driver.New(driver.Options{
		Jobs:           active.cfg.Compile.Jobs,
		MaxDiagnostics: active.cfg.Compile.MaxDiagnostics,
		KeepDead:       !active.cfg.Compile.ElideDead,
		Tracer:         tracer,
		Timer:          timer,
		Env:            sc,
		Out:            out,
		Progress:       progress,
	})
	l := &loaded{prog: prog, sched: sc, timer: timer}

	if sample != "" {
		s, ok := samples.Lookup(sample)
		if !ok {
			return nil, fmt.Errorf("unknown sample %q (see zam sample list)", sample)
		}
		l.sample = &s
		if err := prog.Add(s.Build(prog)...); err != nil {
			return nil, err
		}
	} else if _, err := prog.LoadFile(file); err != nil {
		return nil, err
	}

	var err error
	if events != nil {
		err = compileWithUI(cmd.Context(), prog, events)
	} else {
		err = prog.Compile(cmd.Context())
	}
	printDiagnostics(cmd.ErrOrStderr(), prog)
	return l, err
}

func printDiagnostics(w io.Writer, prog *driver.Program) {
	bag := prog.Diagnostics()
	var err error
	switch active.diagFormat {
	case "json":
		err = diagfmt.JSON(w, bag, diagfmt.JSONOpts{IncludeNotes: true})
	case "sarif":
		err = diagfmt.Sarif(w, bag, diagfmt.SarifRunMeta{
			ToolName:       "zam",
			ToolVersion:    version.Version,
			InvocationArgs: os.Args,
		})
	default:
		err = diagfmt.Pretty(w, bag, diagfmt.PrettyOpts{Color: active.color, ShowNotes: true})
	}
	if err != nil {
		fmt.Fprintf(w, "zam: cannot write diagnostics: %v\n", err)
	}
}

// parseArg turns a command-line literal into a value: integers, counts
// with a trailing "c", doubles, booleans, and strings otherwise.
func parseArg(s string) val.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val.Int(i)
	}
	if c, ok := strings.CutSuffix(s, "c"); ok {
		if u, err := strconv.ParseUint(c, 10, 64); err == nil {
			return val.Count(u)
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return val.Double(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return val.Bool(b)
	}
	return val.Str(strings.Trim(s, `"`))
}
