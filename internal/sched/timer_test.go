package sched

import (
	"testing"
	"time"
)

func TestTimersFireInDeadlineOrder(t *testing.T) {
	s := New(nil, Config{})
	var order []TimerID
	a := s.addTimer(30, &wait{}, nil)
	b := s.addTimer(10, &wait{}, nil)
	c := s.addTimer(10, &wait{}, nil)
	d := s.addTimer(20, &wait{}, nil)
	s.cancelTimer(d)
	for {
		deadline, ok := s.nextDeadline()
		if !ok {
			break
		}
		s.clock.SleepUntilMs(deadline)
		timer := s.timers[0]
		order = append(order, timer.id)
		s.cancelTimer(timer)
	}
	want := []TimerID{b.id, c.id, a.id}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if s.TimerActive(a.id) || s.clock.NowMs() != 30 {
		t.Fatalf("active=%v now=%d", s.TimerActive(a.id), s.clock.NowMs())
	}
}

func TestVirtualClockNeverRewinds(t *testing.T) {
	s := New(nil, Config{})
	s.clock.SleepUntilMs(50)
	s.clock.SleepUntilMs(20)
	if s.clock.NowMs() != 50 {
		t.Fatalf("now = %d", s.clock.NowMs())
	}
}

func TestDurationMsRoundsUp(t *testing.T) {
	cases := map[time.Duration]uint64{
		-time.Second:            0,
		0:                       0,
		time.Microsecond:        1,
		time.Millisecond:        1,
		1500 * time.Microsecond: 2,
		2 * time.Second:         2000,
	}
	for d, want := range cases {
		if got := durationMs(d); got != want {
			t.Errorf("durationMs(%v) = %d, want %d", d, got, want)
		}
	}
}
