package job

import (
	"sync/atomic"

	"tasksched/internal/sched"
)

// SpinWork returns a body that keeps the CPU busy for d, measured on clock.
func SpinWork(clock *sched.Clock, d sched.Time) sched.TaskHandle {
	return func() {
		end := clock.Now() + d
		for clock.Now() < end {
		}
	}
}

// SimWork returns a body that consumes d of simulated time.
func SimWork(c *sched.SimCounter, d sched.Time) sched.TaskHandle {
	return func() { c.Advance(d) }
}

// Counted wraps body and counts its calls in n.
func Counted(n *atomic.Int64, body sched.TaskHandle) sched.TaskHandle {
	return func() {
		n.Add(1)
		if body != nil {
			body()
		}
	}
}

// HoldResource returns a body that takes r, yields for hold while the
// transfer is in flight, then releases r. Other users of r are not
// scheduled in the meantime.
func HoldResource(m *sched.TaskManager, r sched.ResourceID, hold sched.Time) sched.TaskHandle {
	return func() {
		locks := m.Locks()
		locks.Lock(r)
		defer locks.Unlock(r)
		m.YieldWithTimeout(func() bool { return false }, hold)
	}
}

// WaitUntil returns a body that yields to idle until done holds, re-checking
// each time the scheduler runs out of other work.
func WaitUntil(m *sched.TaskManager, done sched.RunCondition) sched.TaskHandle {
	return func() {
		for !done() && !m.Done() {
			m.YieldToIdle(done)
		}
	}
}

// SelfRemoving returns a body that removes its own task after n calls. The
// task ID is read through id because it is only known after registration.
func SelfRemoving(m *sched.TaskManager, id *sched.TaskID, n int64, calls *atomic.Int64) sched.TaskHandle {
	return func() {
		if calls.Add(1) >= n {
			m.RemoveTask(*id)
		}
	}
}
