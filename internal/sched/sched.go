// Package sched drives suspended ZAM activations. It owns a clock, a
// timer heap for wait timeouts and scheduled events, and a FIFO event
// queue. A Scheduler is the zam.Env of the bodies it runs and is meant to
// be used from one goroutine.
package sched

import (
	"fmt"
	"slices"
	"time"

	"fortio.org/safecast"
	"github.com/hashicorp/go-multierror"

	"zam/internal/globals"
	"zam/internal/interp"
	"zam/internal/trace"
	"zam/internal/tree"
	"zam/internal/val"
	"zam/internal/zam"
)

// Config configures a Scheduler.
type Config struct {
	// Epoch is the wall time of clock zero.
	Epoch time.Time
	// TickMs rounds timer deadlines up to a multiple of itself.
	TickMs uint64
	// Real selects a blocking wall clock instead of virtual time.
	Real   bool
	Tracer trace.Tracer
	// OnDone observes the value of every activation the scheduler
	// finishes. The value is borrowed.
	OnDone func(r *zam.Resumption, v val.Value)
}

// Stats counts scheduler activity.
type Stats struct {
	Parked    int
	Resumed   int
	Completed int
	TimedOut  int
	Cancelled int
	Events    int
}

type wait struct {
	r     *zam.Resumption
	occ   uint64
	timer *Timer
}

type event struct {
	h    *tree.EventHandler
	args []val.Value
}

// Scheduler implements zam.Env on top of a clock.
type Scheduler struct {
	cfg    Config
	store  *globals.Store
	clock  Clock
	tracer trace.Tracer
	nowMs  uint64

	timers      timerHeap
	timerByID   map[TimerID]*Timer
	nextTimerID TimerID

	waits []*wait
	queue []*event

	errs  *multierror.Error
	stats Stats
}

var _ zam.Env = (*Scheduler)(nil)

// New returns a scheduler over store. A nil store gets a fresh one.
func New(store *globals.Store, cfg Config) *Scheduler {
	if store == nil {
		store = globals.NewStore()
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = time.Unix(0, 0)
	}
	s := &Scheduler{
		cfg:       cfg,
		store:     store,
		tracer:    cfg.Tracer,
		timerByID: make(map[TimerID]*Timer),
	}
	if s.tracer == nil {
		s.tracer = trace.Nop
	}
	if cfg.Real {
		s.clock = &RealClock{Start: time.Now()}
	} else {
		s.clock = &VirtualClock{s: s}
	}
	return s
}

func (s *Scheduler) Globals() *globals.Store { return s.store }

// Now returns the scheduler's notion of wall time.
func (s *Scheduler) Now() time.Time {
	ms, err := safecast.Conv[int64](s.clock.NowMs())
	if err != nil {
		ms = 0
	}
	return s.cfg.Epoch.Add(time.Duration(ms) * time.Millisecond)
}

// Emit queues an event. Handlers run when the queue is drained.
func (s *Scheduler) Emit(h *tree.EventHandler, args []val.Value) error {
	s.queue = append(s.queue, newEvent(h, args))
	return nil
}

// Schedule raises an event at the given time. Times in the past fire on
// the next advance.
func (s *Scheduler) Schedule(at time.Time, h *tree.EventHandler, args []val.Value) error {
	deadline := s.clock.NowMs()
	if d := at.Sub(s.Now()); d > 0 {
		deadline += durationMs(d)
	}
	s.addTimer(deadline, nil, newEvent(h, args))
	trace.Point(s.tracer, trace.ScopeDriver, "schedule", h.Name, trace.Uint("at", deadline))
	return nil
}

// Park takes over a suspended activation. Its timeout, if any, starts
// counting now.
func (s *Scheduler) Park(r *zam.Resumption) {
	s.park(r)
}

func (s *Scheduler) park(r *zam.Resumption) {
	w := &wait{r: r, occ: r.Occurrence()}
	if d, ok := r.Deadline(); ok {
		w.timer = s.addTimer(s.clock.NowMs()+durationMs(d), w, nil)
	}
	s.waits = append(s.waits, w)
	s.stats.Parked++
	trace.Point(s.tracer, trace.ScopeDriver, "park", "", trace.Act(r.ActivationID()), trace.PC(r.PC()))
}

// dropped reports whether the activation behind w was cancelled or
// finished outside the scheduler, and forgets it if so.
func (s *Scheduler) dropped(w *wait) bool {
	if w.r.State() == zam.StateSuspended {
		return false
	}
	s.cancelTimer(w.timer)
	s.stats.Cancelled++
	trace.Point(s.tracer, trace.ScopeDriver, "cancel", "", trace.Act(w.r.ActivationID()))
	return true
}

func newEvent(h *tree.EventHandler, args []val.Value) *event {
	ev := &event{h: h, args: make([]val.Value, len(args))}
	for i, a := range args {
		ev.args[i] = val.Retain(a)
	}
	return ev
}

func (ev *event) release() {
	for _, a := range ev.args {
		val.Release(a)
	}
	ev.args = nil
}

// Pending returns the number of parked activations.
func (s *Scheduler) Pending() int { return len(s.waits) }

// Waiting returns the parked activations in park order.
func (s *Scheduler) Waiting() []*zam.Resumption {
	out := make([]*zam.Resumption, len(s.waits))
	for i, w := range s.waits {
		out[i] = w.r
	}
	return out
}

// Queued returns the number of events waiting to be dispatched.
func (s *Scheduler) Queued() int { return len(s.queue) }

// Stats returns activity counters.
func (s *Scheduler) Stats() Stats { return s.stats }

// Err returns every handler or resumption error seen so far.
func (s *Scheduler) Err() error { return s.errs.ErrorOrNil() }

func (s *Scheduler) fail(err error) {
	s.errs = multierror.Append(s.errs, err)
	trace.Point(s.tracer, trace.ScopeDriver, "error", err.Error())
}

// Drain dispatches queued events until the queue is empty. Parked
// activations are re-tested after every event.
func (s *Scheduler) Drain() {
	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.dispatch(ev)
	}
}

func (s *Scheduler) dispatch(ev *event) {
	defer ev.release()
	s.stats.Events++
	span := trace.Begin(s.tracer, trace.ScopeDriver, "event", 0, trace.Str("event", ev.h.Name))
	for _, c := range ev.h.Handlers {
		v, err := c.Call(ev.args)
		if err != nil {
			s.fail(fmt.Errorf("sched: event %s: handler %s: %w", ev.h.Name, c.Name(), err))
			continue
		}
		val.Release(v)
	}
	span.End("")
	s.Notify()
}

// Notify re-tests every parked wait in park order. Waits whose condition
// now holds run to completion or to their next wait.
func (s *Scheduler) Notify() {
	pending := s.waits
	s.waits = nil
	var kept []*wait
	for _, w := range pending {
		if s.dropped(w) {
			continue
		}
		s.stats.Resumed++
		res, err := w.r.Resume()
		switch {
		case err == nil && res.Suspended() && w.r.Occurrence() == w.occ:
			kept = append(kept, w)
		case err == nil && res.Suspended():
			// Reached a new wait, whose timeout starts now.
			s.cancelTimer(w.timer)
			s.park(w.r)
		default:
			s.cancelTimer(w.timer)
			s.finish(w, res, err)
		}
	}
	// Activations parked while resuming others go after the survivors.
	s.waits = append(kept, s.waits...)
}

func (s *Scheduler) fire(timer *Timer) {
	if timer.ev != nil {
		trace.Point(s.tracer, trace.ScopeDriver, "fire", timer.ev.h.Name)
		s.dispatch(timer.ev)
		return
	}
	w := timer.wait
	i := slices.Index(s.waits, w)
	if i < 0 {
		return
	}
	s.waits = slices.Delete(s.waits, i, i+1)
	if s.dropped(w) {
		return
	}
	s.stats.TimedOut++
	trace.Point(s.tracer, trace.ScopeDriver, "timeout", "", trace.Act(w.r.ActivationID()))
	res, err := w.r.Timeout()
	if err == nil && res.Suspended() {
		// The timeout body reached another wait.
		s.park(w.r)
	} else {
		s.finish(w, res, err)
	}
	s.Notify()
}

func (s *Scheduler) finish(w *wait, res interp.Result, err error) {
	if err != nil {
		s.fail(fmt.Errorf("sched: activation %s: %w", w.r.ActivationID(), err))
		return
	}
	s.stats.Completed++
	trace.Point(s.tracer, trace.ScopeDriver, "done", res.Flow.String(), trace.Act(w.r.ActivationID()))
	if s.cfg.OnDone != nil {
		s.cfg.OnDone(w.r, res.Val)
	}
	val.Release(res.Val)
}

// Advance moves the clock forward by d, draining events and firing
// timers in deadline order along the way.
func (s *Scheduler) Advance(d time.Duration) {
	target := s.clock.NowMs() + durationMs(d)
	s.Drain()
	for {
		deadline, ok := s.nextDeadline()
		if !ok || deadline > target {
			break
		}
		s.advanceTimeToNextTimer()
		s.Drain()
	}
	s.clock.SleepUntilMs(target)
}

// Run drains events and fires timers until nothing is scheduled. Waits
// without a timeout may remain parked.
func (s *Scheduler) Run() error {
	s.Drain()
	for s.advanceTimeToNextTimer() {
		s.Drain()
	}
	return s.Err()
}

// Shutdown cancels every parked activation and drops queued and
// scheduled events.
func (s *Scheduler) Shutdown() {
	for _, w := range s.waits {
		s.cancelTimer(w.timer)
		w.r.Cancel()
		s.stats.Cancelled++
		trace.Point(s.tracer, trace.ScopeDriver, "cancel", "", trace.Act(w.r.ActivationID()))
	}
	s.waits = nil
	for _, ev := range s.queue {
		ev.release()
	}
	s.queue = nil
	for _, timer := range s.timers {
		if timer != nil && timer.ev != nil && !timer.cancelled {
			timer.ev.release()
		}
		s.cancelTimer(timer)
	}
	s.timers = nil
}
