// internal/sched/clock.go

package sched

import "time"

// Time is a scheduler timestamp or duration in seconds.
type Time float64

// NoDeadline disables the deadline argument of ChooseBestTask.
const NoDeadline Time = -1

// Duration converts t to a time.Duration.
func (t Time) Duration() time.Duration {
	return time.Duration(float64(t) * float64(time.Second))
}

// FromDuration converts a time.Duration to scheduler seconds.
func FromDuration(d time.Duration) Time {
	return Time(d.Seconds())
}

// Clock folds a fixed-width free-running counter into a monotonically
// increasing Time. The counter must be read at least once per wrap period.
type Clock struct {
	counter Counter
	hz      float64
	mask    uint32

	last    uint32
	total   uint64 // ticks since the clock was (re)started
	started bool
}

// NewClock wraps counter, which ticks at hz and is bits wide (1..32).
func NewClock(counter Counter, hz float64, bits int) *Clock {
	if bits <= 0 || bits > 32 {
		bits = 32
	}
	if hz <= 0 {
		hz = DefaultClockHz
	}
	return &Clock{
		counter: counter,
		hz:      hz,
		mask:    ^uint32(0) >> (32 - bits),
	}
}

// Reset makes the current counter value the clock's zero.
func (c *Clock) Reset() {
	c.last = c.counter.Ticks() & c.mask
	c.total = 0
	c.started = true
}

// Now returns seconds since the clock was started.
func (c *Clock) Now() Time {
	return Time(float64(c.Ticks()) / c.hz)
}

// Ticks returns the accumulated tick count. Modular subtraction handles a
// counter rollover between two reads; the 64-bit total never wraps in practice.
func (c *Clock) Ticks() uint64 {
	if !c.started {
		c.Reset()
		return 0
	}
	v := c.counter.Ticks() & c.mask
	c.total += uint64((v - c.last) & c.mask)
	c.last = v
	return c.total
}

// Resolution is the duration of one counter tick.
func (c *Clock) Resolution() Time { return Time(1 / c.hz) }

// RollTime is the wrap period of the underlying counter.
func (c *Clock) RollTime() Time { return Time((float64(c.mask) + 1) / c.hz) }
