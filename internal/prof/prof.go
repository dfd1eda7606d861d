// Package prof starts and stops the Go runtime profilers for one command.
package prof

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/hashicorp/go-multierror"
)

// Paths names the output files; an empty path leaves that profiler off.
type Paths struct {
	CPU   string
	Mem   string
	Trace string
}

// Session is a set of running profilers.
type Session struct {
	paths Paths
	cpu   *os.File
	trace *os.File
	done  bool
}

// Start enables the profilers named in paths. On error nothing is left running.
func Start(paths Paths) (*Session, error) {
	s := &Session{paths: paths}
	if paths.CPU != "" {
		f, err := os.Create(paths.CPU)
		if err != nil {
			return nil, fmt.Errorf("prof: cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("prof: cpu profile: %w", err)
		}
		s.cpu = f
	}
	if paths.Trace != "" {
		f, err := os.Create(paths.Trace)
		if err == nil {
			err = trace.Start(f)
			if err != nil {
				_ = f.Close()
			}
		}
		if err != nil {
			_ = s.Stop()
			return nil, fmt.Errorf("prof: runtime trace: %w", err)
		}
		s.trace = f
	}
	return s, nil
}

// Stop ends the profilers and writes the heap profile. Later calls are no-ops.
func (s *Session) Stop() error {
	if s == nil || s.done {
		return nil
	}
	s.done = true
	var errs *multierror.Error
	if s.trace != nil {
		trace.Stop()
		errs = multierror.Append(errs, s.trace.Close())
	}
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = multierror.Append(errs, s.cpu.Close())
	}
	if s.paths.Mem != "" {
		errs = multierror.Append(errs, writeHeap(s.paths.Mem))
	}
	return errs.ErrorOrNil()
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prof: heap profile: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
