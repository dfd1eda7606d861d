package trace

import "github.com/hashicorp/go-multierror"

// MultiTracer fans out events to several tracers.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

// NewMultiTracer creates a MultiTracer.
func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	return &MultiTracer{tracers: tracers, level: level}
}

// Emit sends a copy of ev to every tracer, since tracers stamp sequence
// numbers in place.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

// Flush flushes every tracer and reports all failures.
func (t *MultiTracer) Flush() error {
	var errs *multierror.Error
	for _, tr := range t.tracers {
		if err := tr.Flush(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Close closes every tracer and reports all failures.
func (t *MultiTracer) Close() error {
	var errs *multierror.Error
	for _, tr := range t.tracers {
		if err := tr.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }
