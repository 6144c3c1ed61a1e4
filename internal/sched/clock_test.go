package sched

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockFoldsRollover(t *testing.T) {
	sim := NewSimCounter(1000, math.MaxUint32-10, 0)
	c := NewClock(sim, 1000, 32)
	c.Reset()

	sim.AdvanceTicks(20)
	assert.InDelta(t, 0.020, float64(c.Now()), 1e-12)

	prev := c.Now()
	for i := 0; i < 10; i++ {
		sim.AdvanceTicks(1 << 31)
		now := c.Now()
		require.Greater(t, now, prev, "clock went backwards after %d half-wraps", i+1)
		assert.InDelta(t, float64(prev)+float64(1<<31)/1000, float64(now), 1e-6)
		prev = now
	}
}

func TestClockNarrowCounter(t *testing.T) {
	sim := NewSimCounter(1000, 0xFFF0, 0)
	c := NewClock(sim, 1000, 16)
	c.Reset()

	sim.AdvanceTicks(0x20)
	assert.Equal(t, uint64(0x20), c.Ticks())
	for i := 0; i < 5; i++ {
		sim.AdvanceTicks(0xF000)
		c.Ticks()
	}
	assert.Equal(t, uint64(0x20+5*0xF000), c.Ticks())
	assert.InDelta(t, 65.536, float64(c.RollTime()), 1e-9)
	assert.InDelta(t, 0.001, float64(c.Resolution()), 1e-12)
}

func TestClockStartsOnFirstRead(t *testing.T) {
	sim := NewSimCounter(1e6, 12345, 1)
	c := NewClock(sim, 1e6, 32)
	assert.Zero(t, c.Now())
	assert.InDelta(t, 1e-6, float64(c.Now()), 1e-12)
}

func TestSimCounterAdvance(t *testing.T) {
	sim := NewSimCounter(1e9, 0, 0)
	sim.Advance(50e-9)
	assert.Equal(t, uint32(50), sim.Ticks())
	sim.Advance(Time(2.5e-9))
	assert.Equal(t, uint32(53), sim.Ticks())
}

func TestTickCounterCounts(t *testing.T) {
	c := NewTickCounter()
	c.Start(time.Millisecond)
	require.Eventually(t, func() bool { return c.Ticks() >= 3 }, time.Second, time.Millisecond)
	c.Stop()

	stopped := c.Ticks()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, stopped, c.Ticks())
}

func TestSystemCounterIsMonotonic(t *testing.T) {
	c := NewClock(NewSystemCounter(DefaultClockHz), DefaultClockHz, 32)
	a := c.Now()
	time.Sleep(time.Millisecond)
	b := c.Now()
	assert.Greater(t, b, a)
	assert.Less(t, float64(b-a), 1.0)
}

func TestTimeDurationConversion(t *testing.T) {
	assert.Equal(t, 1500*time.Microsecond, Time(0.0015).Duration())
	assert.InDelta(t, 0.25, float64(FromDuration(250*time.Millisecond)), 1e-12)
}
