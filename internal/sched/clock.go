package sched

import (
	"math"
	"time"

	"fortio.org/safecast"
)

// Clock supplies scheduler time in milliseconds since the epoch.
type Clock interface {
	NowMs() uint64
	SleepUntilMs(deadlineMs uint64)
}

// VirtualClock advances scheduler time without blocking.
type VirtualClock struct {
	s *Scheduler
}

func (c *VirtualClock) NowMs() uint64 {
	if c == nil || c.s == nil {
		return 0
	}
	return c.s.nowMs
}

func (c *VirtualClock) SleepUntilMs(deadlineMs uint64) {
	if c == nil || c.s == nil || deadlineMs < c.s.nowMs {
		return
	}
	c.s.nowMs = deadlineMs
}

// RealClock measures wall time from Start and blocks until deadlines.
type RealClock struct {
	Start time.Time
}

func (c *RealClock) NowMs() uint64 {
	if c == nil {
		return 0
	}
	ms, err := safecast.Conv[uint64](time.Since(c.Start).Milliseconds())
	if err != nil {
		return 0
	}
	return ms
}

func (c *RealClock) SleepUntilMs(deadlineMs uint64) {
	if c == nil {
		return
	}
	now := c.NowMs()
	if deadlineMs <= now {
		return
	}
	delta := min(deadlineMs-now, uint64(math.MaxInt64/int64(time.Millisecond)))
	delay, err := safecast.Conv[int64](delta)
	if err != nil {
		return
	}
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

// durationMs converts d to whole milliseconds, rounding up and clamping
// negative durations to zero.
func durationMs(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if time.Duration(ms)*time.Millisecond < d {
		ms++
	}
	out, err := safecast.Conv[uint64](ms)
	if err != nil {
		return 0
	}
	return out
}
