package sched

import "testing"

const (
	simHz   = 1e9
	simStep = 100 // ns consumed per clock read
)

// newSimManager builds a manager on a simulated 1 GHz counter.
func newSimManager(t *testing.T, cfg Config, opts ...Option) (*TaskManager, *SimCounter) {
	t.Helper()
	sim := NewSimCounter(simHz, 0, simStep)
	cfg.ClockHz = simHz
	opts = append([]Option{WithClock(NewClock(sim, simHz, 32))}, opts...)
	return New(cfg, opts...), sim
}

func every(p uint8, backOff, target, max Time) TaskSchedule {
	return TaskSchedule{Priority: p, BackOffPeriod: backOff, TargetInterval: target, MaxInterval: max}
}

// eventLog collects status events per task.
type eventLog struct {
	events []StatusEvent
}

func (l *eventLog) observe(ev StatusEvent) { l.events = append(l.events, ev) }

func (l *eventLog) times(id TaskID, kind StatusKind) []Time {
	var out []Time
	for _, ev := range l.events {
		if ev.TaskID == id && ev.Kind == kind {
			out = append(out, ev.Time)
		}
	}
	return out
}

func (l *eventLog) count(kind StatusKind) int {
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
