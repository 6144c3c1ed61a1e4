package sched

import "tasksched/internal/logx"

// current returns the innermost running invocation, or nil outside a task.
func (m *TaskManager) current() *invocation {
	if len(m.frames) == 0 {
		return nil
	}
	return &m.frames[len(m.frames)-1]
}

// CurrentTask returns the ID of the task whose body is executing, or
// InvalidTask.
func (m *TaskManager) CurrentTask() TaskID {
	if f := m.current(); f != nil {
		return f.id
	}
	return InvalidTask
}

// Yield lets other tasks run from inside a task body until until returns
// true. The caller's frame stays on the stack: Yield re-enters the dispatch
// loop directly, and the yielding task is not selected again until its
// outer call returns.
//
// At least one pass is made. Yield returns false without until holding when
// timeout (if > 0) elapses, when returnOnIdle is set and no task is
// eligible, when the run started by Start reaches its end, or when Stop is
// called. Nesting deeper than the configured MaxYieldDepth returns at once.
func (m *TaskManager) Yield(until RunCondition, timeout Time, returnOnIdle bool) bool {
	if m.yieldDepth >= m.cfg.MaxYieldDepth {
		m.log.Warn("yield nested too deeply, not dispatching",
			logx.Int("depth", m.yieldDepth),
			logx.Int("task", int(m.CurrentTask())),
		)
		return until()
	}
	m.yieldDepth++
	defer func() { m.yieldDepth-- }()

	begin := m.Now()
	// Account the part of the call before the yield as a finished run, so
	// the task sits in its backoff window while others run.
	if f := m.current(); f != nil {
		if t := m.slot(f.id); t != nil && t.gen == f.gen {
			runtime := begin - f.start
			m.cpuTime += runtime
			if !t.removeAfterUse {
				t.updateNextTimes(f.start, runtime, begin, m.clock.Resolution(), !f.skipStats)
			}
			m.emit(StatusYield, f.id, t.name, runtime, begin)
		}
	}

	met := false
	for {
		idle := m.step()
		if until() {
			met = true
			break
		}
		if m.Done() {
			break
		}
		if timeout > 0 && m.Now()-begin >= timeout {
			break
		}
		if returnOnIdle && idle {
			break
		}
	}

	resume := m.Now()
	m.lastFinishTime = resume
	if f := m.current(); f != nil {
		f.start = resume
		if t := m.slot(f.id); t != nil && t.gen == f.gen {
			m.emit(StatusResume, f.id, t.name, 0, resume)
		}
	}
	return met
}

// YieldWithTimeout yields until until holds or timeout seconds pass.
func (m *TaskManager) YieldWithTimeout(until RunCondition, timeout Time) bool {
	return m.Yield(until, timeout, false)
}

// YieldToIdle yields until until holds or nothing else is eligible to run.
// Callers loop on it when until depends on state that changes outside the
// scheduler, such as a DMA transfer completing.
func (m *TaskManager) YieldToIdle(until RunCondition) bool {
	return m.Yield(until, 0, true)
}

// IgnoreForStats keeps the current invocation's duration out of the task's
// running average.
func (m *TaskManager) IgnoreForStats() {
	if f := m.current(); f != nil {
		f.skipStats = true
	}
}

// SetNextRunTimeForCurrentTask asks for the current task's next call at
// now + seconds instead of its normal cadence. It applies once.
func (m *TaskManager) SetNextRunTimeForCurrentTask(seconds Time) {
	if f := m.current(); f != nil {
		f.nextRun = m.Now() + seconds
		f.hasNextRun = true
	}
}

// AverageRunTimeForTask returns a task's running average duration, or 0.
func (m *TaskManager) AverageRunTimeForTask(id TaskID) Time {
	if t := m.slot(id); t != nil {
		return t.durationStats.Average
	}
	return 0
}

func (m *TaskManager) AverageRunTimeForCurrentTask() Time {
	if f := m.current(); f != nil {
		if t := m.slot(f.id); t != nil && t.gen == f.gen {
			return t.durationStats.Average
		}
	}
	return 0
}

// SystemTime returns the scheduler clock in seconds.
func (m *TaskManager) SystemTime() Time { return m.Now() }
