// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// Counter is a free-running hardware-style counter. Only the low bits
// configured on the Clock are significant.
type Counter interface {
	Ticks() uint32
}

// SystemCounter derives a counter from the Go monotonic clock.
type SystemCounter struct {
	base time.Time
	hz   float64
}

func NewSystemCounter(hz float64) *SystemCounter {
	return &SystemCounter{base: time.Now(), hz: hz}
}

func (c *SystemCounter) Ticks() uint32 {
	return uint32(uint64(time.Since(c.base).Seconds() * c.hz))
}

// SimCounter is a simulated counter. Every read advances it by step ticks,
// which models the cost of polling the timer and guarantees that a busy loop
// makes progress. Advance consumes simulated time on behalf of task bodies.
type SimCounter struct {
	count atomic.Uint32
	step  uint32
	hz    float64
}

// NewSimCounter creates a counter at hz starting from start.
func NewSimCounter(hz float64, start, step uint32) *SimCounter {
	c := &SimCounter{step: step, hz: hz}
	c.count.Store(start)
	return c
}

func (c *SimCounter) Ticks() uint32 {
	return c.count.Add(c.step) - c.step
}

// Advance moves the counter forward by d, rounded to the nearest tick.
func (c *SimCounter) Advance(d Time) {
	c.AdvanceTicks(uint32(float64(d)*c.hz + 0.5))
}

func (c *SimCounter) AdvanceTicks(n uint32) {
	c.count.Add(n)
}

// TickCounter counts ticks emitted by a background ticker, the way a timer
// interrupt would bump a counter register.
type TickCounter struct {
	count atomic.Uint32
	stop  chan struct{}
	done  chan struct{}
}

func NewTickCounter() *TickCounter {
	return &TickCounter{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start begins counting at the given interval.
func (c *TickCounter) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer close(c.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts the ticker goroutine and waits for it to exit.
func (c *TickCounter) Stop() {
	close(c.stop)
	<-c.done
}

func (c *TickCounter) Ticks() uint32 {
	return c.count.Load()
}
