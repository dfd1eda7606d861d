package sched

import "container/heap"

// TimerID identifies a scheduled timer.
type TimerID uint64

// Timer is a single scheduled wakeup: either the timeout of a parked
// wait or a scheduled event.
type Timer struct {
	id         TimerID
	deadlineMs uint64
	wait       *wait
	ev         *event
	cancelled  bool
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadlineMs == h[j].deadlineMs {
		return h[i].id < h[j].id
	}
	return h[i].deadlineMs < h[j].deadlineMs
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	timer, ok := x.(*Timer)
	if !ok || timer == nil {
		return
	}
	*h = append(*h, timer)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	if n == 0 {
		return (*Timer)(nil)
	}
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// addTimer schedules a timer at deadlineMs, rounded up to the tick.
func (s *Scheduler) addTimer(deadlineMs uint64, w *wait, ev *event) *Timer {
	if tick := s.cfg.TickMs; tick > 1 {
		if rem := deadlineMs % tick; rem != 0 {
			deadlineMs += tick - rem
		}
	}
	s.nextTimerID++
	timer := &Timer{id: s.nextTimerID, deadlineMs: deadlineMs, wait: w, ev: ev}
	s.timerByID[timer.id] = timer
	heap.Push(&s.timers, timer)
	return timer
}

// cancelTimer marks a timer as cancelled; the heap drops it lazily.
func (s *Scheduler) cancelTimer(timer *Timer) {
	if timer == nil || timer.cancelled {
		return
	}
	timer.cancelled = true
	delete(s.timerByID, timer.id)
}

// TimerActive reports whether a timer is still pending.
func (s *Scheduler) TimerActive(id TimerID) bool {
	timer := s.timerByID[id]
	return timer != nil && !timer.cancelled
}

// nextDeadline returns the earliest live deadline, discarding cancelled
// timers from the top of the heap.
func (s *Scheduler) nextDeadline() (uint64, bool) {
	for len(s.timers) > 0 {
		next := s.timers[0]
		if next == nil || next.cancelled {
			heap.Pop(&s.timers)
			continue
		}
		return next.deadlineMs, true
	}
	return 0, false
}

// fireDue fires every timer due at the current time in deadline order.
func (s *Scheduler) fireDue() bool {
	fired := false
	for {
		deadline, ok := s.nextDeadline()
		if !ok || deadline > s.clock.NowMs() {
			return fired
		}
		timer, _ := heap.Pop(&s.timers).(*Timer)
		s.cancelTimer(timer)
		s.fire(timer)
		fired = true
	}
}

// advanceTimeToNextTimer moves the clock to the earliest deadline and
// fires everything due then.
func (s *Scheduler) advanceTimeToNextTimer() bool {
	deadline, ok := s.nextDeadline()
	if !ok {
		return false
	}
	s.clock.SleepUntilMs(deadline)
	return s.fireDue()
}
