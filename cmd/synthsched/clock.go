package main

import (
	"fmt"
	"time"

	"tasksched/internal/sched"
)

// tickInterval is the period of the software timer behind --clock tick.
const tickInterval = 100 * time.Microsecond

// clockSource is the counter a run is timed with.
type clockSource struct {
	clock *sched.Clock
	sim   *sched.SimCounter // set for "sim", task bodies consume time on it
	stop  func()
}

// newClockSource builds the counter named by kind: "system" reads the Go
// monotonic clock, "sim" a simulated counter, "tick" a background ticker.
func newClockSource(kind string, cfg sched.Config) (clockSource, error) {
	switch kind {
	case "", "system":
		c := sched.NewClock(sched.NewSystemCounter(cfg.ClockHz), cfg.ClockHz, cfg.CounterBits)
		return clockSource{clock: c, stop: func() {}}, nil
	case "sim":
		sim := sched.NewSimCounter(cfg.ClockHz, 0, cfg.SimStepTicks)
		c := sched.NewClock(sim, cfg.ClockHz, cfg.CounterBits)
		return clockSource{clock: c, sim: sim, stop: func() {}}, nil
	case "tick":
		tc := sched.NewTickCounter()
		tc.Start(tickInterval)
		hz := float64(time.Second / tickInterval)
		return clockSource{clock: sched.NewClock(tc, hz, 32), stop: tc.Stop}, nil
	default:
		return clockSource{}, fmt.Errorf("unknown clock %q (want system, sim or tick)", kind)
	}
}
