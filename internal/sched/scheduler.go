// internal/sched/scheduler.go

package sched

import (
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tasksched/internal/logx"
)

// TaskManager is a cooperative, single-threaded scheduler. It owns a fixed
// table of tasks and, on every pass, picks the one task that should run next
// from priorities, deadlines and measured durations.
//
// All methods except Stop must be called from the goroutine that runs the
// scheduler, which includes task bodies.
type TaskManager struct {
	cfg     Config
	clock   *Clock
	locks   *ResourceLocks
	log     logx.Logger
	observe func(StatusEvent)

	tasks     []Task // fixed size; a slot with a nil handle is free
	index     *priorityIndex
	walk      []TaskID // scratch copy of the index for one selection pass
	numActive int
	highWater int // slots ever handed out

	frames     []invocation // tasks currently on the stack, innermost last
	yieldDepth int

	running       bool
	stopping      atomic.Bool
	wasIdle       bool
	mustEndBefore Time

	cpuTime        Time
	overhead       Time
	lastFinishTime Time

	statsGate *rate.Limiter
	epoch     time.Time
}

// invocation is the per-call state of a running task.
type invocation struct {
	id         TaskID
	gen        uint32
	start      Time // start of the current segment; moved forward by yields
	skipStats  bool
	nextRun    Time
	hasNextRun bool
}

type Option func(*TaskManager)

// WithClock sets the time source. The default reads the Go monotonic clock.
func WithClock(c *Clock) Option { return func(m *TaskManager) { m.clock = c } }

// WithLocks shares a resource lock set with the code that drives the
// resources.
func WithLocks(l *ResourceLocks) Option { return func(m *TaskManager) { m.locks = l } }

func WithLogger(l logx.Logger) Option { return func(m *TaskManager) { m.log = l } }

// WithObserver receives every status event. It runs on the scheduler's
// goroutine and must return quickly.
func WithObserver(fn func(StatusEvent)) Option { return func(m *TaskManager) { m.observe = fn } }

// New creates a TaskManager with the given configuration.
func New(cfg Config, opts ...Option) *TaskManager {
	cfg = cfg.normalize()
	m := &TaskManager{
		cfg:           cfg,
		tasks:         make([]Task, cfg.MaxTasks),
		index:         newPriorityIndex(cfg.MaxTasks),
		walk:          make([]TaskID, 0, cfg.MaxTasks),
		frames:        make([]invocation, 0, cfg.MaxYieldDepth+1),
		mustEndBefore: NoDeadline,
		epoch:         time.Unix(0, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = NewClock(NewSystemCounter(cfg.ClockHz), cfg.ClockHz, cfg.CounterBits)
	}
	if m.locks == nil {
		m.locks = &ResourceLocks{}
	}
	if m.log.IsZero() {
		m.log = logx.Nop()
	}
	m.clock.Reset()

	// The first dump is due one full interval after start.
	m.statsGate = rate.NewLimiter(rate.Every(Time(cfg.StatsInterval).Duration()), 1)
	m.statsGate.AllowN(m.epoch, 1)
	return m
}

// Now returns seconds since the manager was created.
func (m *TaskManager) Now() Time { return m.clock.Now() }

func (m *TaskManager) Clock() *Clock         { return m.clock }
func (m *TaskManager) Locks() *ResourceLocks { return m.locks }
func (m *TaskManager) Running() bool         { return m.running }

// NumActive returns the number of occupied task slots.
func (m *TaskManager) NumActive() int { return m.numActive }

// slot returns the task at id, or nil for an out-of-range or free slot.
func (m *TaskManager) slot(id TaskID) *Task {
	if id < 0 || int(id) >= len(m.tasks) {
		return nil
	}
	t := &m.tasks[id]
	if !t.used() {
		return nil
	}
	return t
}

// AddRepeatingTask registers a task that runs indefinitely on schedule. It
// returns InvalidTask if the table is full.
func (m *TaskManager) AddRepeatingTask(handle TaskHandle, schedule TaskSchedule, name string, resources ResourceID) TaskID {
	return m.insertTask(newRepeatingTask(handle, schedule, name, NewResourceChecker(resources), m.Now()))
}

// AddOnceTask registers a task that runs once after timeToWait, and no later
// than twice that unless higher-priority work is overdue.
func (m *TaskManager) AddOnceTask(handle TaskHandle, priority uint8, timeToWait Time, name string, resources ResourceID) TaskID {
	return m.insertTask(newOnceTask(handle, priority, timeToWait, name, NewResourceChecker(resources), m.Now()))
}

// AddConditionalTask registers a task that runs once, on the first pass after
// condition returns true.
func (m *TaskManager) AddConditionalTask(handle TaskHandle, priority uint8, condition RunCondition, name string, resources ResourceID) TaskID {
	return m.insertTask(newConditionalTask(handle, priority, condition, name, NewResourceChecker(resources), m.Now()))
}

func (m *TaskManager) insertTask(t Task) TaskID {
	if t.handle == nil || (t.state == StateBlocked && t.condition == nil) {
		m.log.Warn("task registration rejected: missing handle or condition", logx.String("task", t.name))
		m.emit(StatusReject, InvalidTask, t.name, 0, m.Now())
		return InvalidTask
	}
	if m.numActive >= len(m.tasks) {
		m.log.Warn("task table full, registration rejected",
			logx.String("task", t.name),
			logx.Int("max_tasks", len(m.tasks)),
		)
		m.emit(StatusReject, InvalidTask, t.name, 0, m.Now())
		return InvalidTask
	}

	id := m.freeSlot()
	t.gen = m.tasks[id].gen + 1
	m.tasks[id] = t
	m.numActive++
	m.index.insert(t.schedule.Priority, id)

	m.log.Debug("task registered",
		logx.String("task", t.name),
		logx.Int("id", int(id)),
		logx.Int("priority", int(t.schedule.Priority)),
		logx.String("resources", t.resources.Resources().String()),
	)
	m.emit(StatusRegister, id, t.name, 0, m.Now())
	return id
}

// freeSlot hands out never-used slots first so a stale ID is less likely to
// alias a new task, then reuses freed ones. The caller has checked capacity.
func (m *TaskManager) freeSlot() TaskID {
	if m.highWater < len(m.tasks) {
		id := TaskID(m.highWater)
		m.highWater++
		return id
	}
	for i := range m.tasks {
		if !m.tasks[i].used() {
			return TaskID(i)
		}
	}
	return InvalidTask
}

// RemoveTask frees a task's slot. Unknown or already removed IDs are
// ignored, and a task may remove itself from its own body.
func (m *TaskManager) RemoveTask(id TaskID) {
	t := m.slot(id)
	if t == nil {
		return
	}
	name := t.name
	m.index.remove(t.schedule.Priority, id)
	m.tasks[id] = Task{gen: t.gen + 1}
	m.numActive--
	m.emit(StatusRemove, id, name, 0, m.Now())
}

// BoostTask makes a task due immediately, until it next completes.
func (m *TaskManager) BoostTask(id TaskID) {
	if t := m.slot(id); t != nil {
		t.boost(m.Now())
	}
}

// ChooseBestTask picks the task to run now, or InvalidTask. A non-negative
// deadline means the chosen task must be expected to finish before it.
// idle reports that no task was eligible at all, as opposed to eligible
// tasks being held back to protect a higher-priority task's deadline.
//
// The walk goes from the highest priority down:
//   - an eligible task that has gone longer than its MaxInterval without a
//     call wins outright (the highest-priority such task);
//   - otherwise the first due task that fits before the current limit wins,
//     ties within a priority going to the earlier ideal call time;
//   - every ready task passed over lowers the limit for the tasks below it
//     to its latest call time (or release time, if later), so lower
//     priority work never makes it late;
//   - with nothing due, the lowest-priority released task that fits runs,
//     preferring one that is past its target interval.
func (m *TaskManager) ChooseBestTask(deadline Time) (TaskID, bool) {
	now := m.Now()
	external := Time(math.Inf(1))
	if deadline >= 0 {
		external = deadline
	}
	limit := external

	overdue, due := InvalidTask, InvalidTask
	fillTarget, fillAny := InvalidTask, InvalidTask
	eligible := false

	m.walk = append(m.walk[:0], m.index.order()...)
	for _, id := range m.walk {
		t := &m.tasks[id]
		if !t.used() || !t.checkCondition() {
			continue
		}
		if !t.isReady(now) || !t.resources.CheckResources(m.locks) {
			if t.state == StateReady && !t.inCall && now <= t.releaseTime() {
				limit = min(limit, max(t.latestCallTime, t.releaseTime()))
			}
			continue
		}
		eligible = true
		avg := t.durationStats.Average

		if t.isOverdue(now) && now+avg < external && m.earlierAtSamePriority(overdue, id, false) {
			overdue = id
		}
		fits := now+avg < limit

		if due != InvalidTask {
			if t.isDue(now) && fits && m.earlierAtSamePriority(due, id, false) {
				due = id
			}
			continue
		}
		if t.isDue(now) && fits {
			due = id
			continue
		}
		if !t.isDue(now) && fits {
			if now-t.lastFinishTime > t.schedule.TargetInterval && m.earlierAtSamePriority(fillTarget, id, true) {
				fillTarget = id
			}
			if m.earlierAtSamePriority(fillAny, id, true) {
				fillAny = id
			}
		}
		limit = min(limit, t.latestCallTime)
	}

	switch {
	case overdue != InvalidTask:
		return overdue, false
	case due != InvalidTask:
		return due, false
	case fillTarget != InvalidTask:
		return fillTarget, false
	case fillAny != InvalidTask:
		return fillAny, false
	}
	return InvalidTask, !eligible
}

// earlierAtSamePriority reports whether candidate should replace cur, given
// that the walk reaches candidate after cur. Within one priority the earlier
// ideal call time wins. lowerWins lets a lower-priority candidate replace cur
// outright.
func (m *TaskManager) earlierAtSamePriority(cur, candidate TaskID, lowerWins bool) bool {
	if cur == InvalidTask {
		return true
	}
	c, t := &m.tasks[cur], &m.tasks[candidate]
	if c.schedule.Priority != t.schedule.Priority {
		return lowerWins
	}
	return t.idealCallTime < c.idealCallTime
}

// RunTask runs one invocation of a task and folds its runtime into the
// task's statistics. Unknown IDs and tasks already on the stack are ignored.
func (m *TaskManager) RunTask(id TaskID) {
	t := m.slot(id)
	if t == nil || t.inCall {
		return
	}
	start := m.Now()
	// this includes the scheduler's own time, such as choosing and printing stats
	m.overhead += start - m.lastFinishTime

	// measured before a yield moves lastCallTime
	latency := start - t.lastCallTime
	t.inCall = true
	if t.removeAfterUse {
		t.state = StateQueued
	}
	m.frames = append(m.frames, invocation{id: id, gen: t.gen, start: start})
	m.emit(StatusDispatch, id, t.name, 0, start)

	t.handle()

	end := m.Now()
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	runtime := end - f.start
	m.cpuTime += runtime
	m.lastFinishTime = end

	// the body may have removed its own task, and the slot may even be reused
	t = m.slot(id)
	if t == nil || t.gen != f.gen {
		return
	}
	t.inCall = false
	t.timesCalled++
	m.emit(StatusFinish, id, t.name, runtime, end)

	if t.removeAfterUse {
		m.RemoveTask(id)
		return
	}
	if !f.skipStats {
		t.latency.Update(latency, 0)
	}
	t.updateNextTimes(f.start, runtime, end, m.clock.Resolution(), !f.skipStats)
	if f.hasNextRun {
		t.idealCallTime = f.nextRun
	}
}

// RunHighestPriTask chooses without a deadline and runs the result, if any.
func (m *TaskManager) RunHighestPriTask() bool {
	id, _ := m.ChooseBestTask(NoDeadline)
	if id == InvalidTask {
		return false
	}
	m.RunTask(id)
	return true
}

// step runs one scheduling pass and reports whether the scheduler was idle.
func (m *TaskManager) step() bool {
	id, idle := m.ChooseBestTask(m.mustEndBefore)
	if id != InvalidTask {
		m.wasIdle = false
		m.RunTask(id)
		return false
	}
	if idle {
		now := m.Now()
		if !m.wasIdle {
			m.wasIdle = true
			m.emit(StatusIdle, InvalidTask, "", 0, now)
		}
		if m.statsGate.AllowN(m.epoch.Add(now.Duration()), 1) {
			m.PrintStats()
		}
	}
	return idle
}

// Start runs the scheduler loop for duration seconds, or until Stop when
// duration is 0. There is no OS to sleep on, so an idle scheduler polls.
func (m *TaskManager) Start(duration Time) {
	m.running = true
	start := m.Now()
	if duration > 0 {
		m.mustEndBefore = start + duration
	} else {
		m.mustEndBefore = NoDeadline
	}
	m.log.Info("scheduler started",
		logx.Int("tasks", m.numActive),
		logx.Float64("duration_s", float64(duration)),
	)

	for !m.stopping.Load() {
		if duration > 0 && m.Now() >= start+duration {
			break
		}
		m.step()
	}

	m.running = false
	m.mustEndBefore = NoDeadline
	// a Stop that arrived before the loop began has been honoured; the next
	// Start runs normally
	stopped := m.stopping.Swap(false)
	m.log.Info("scheduler stopped",
		logx.Duration("ran", (m.Now()-start).Duration()),
		logx.Float64("cpu_s", float64(m.cpuTime)),
		logx.Bool("stop_requested", stopped),
	)
}

// Done reports whether Stop was called or the current timed run is over.
// Bodies that loop around a yield check it to let the run end.
func (m *TaskManager) Done() bool {
	if m.stopping.Load() {
		return true
	}
	return m.mustEndBefore >= 0 && m.Now() >= m.mustEndBefore
}

// Stop asks the loop started by Start, and any yield in progress, to return
// at the next pass. A Stop made before Start makes that Start return at
// once. It is safe to call from any goroutine.
func (m *TaskManager) Stop() {
	m.stopping.Store(true)
}

func (m *TaskManager) emit(kind StatusKind, id TaskID, name string, runtime, at Time) {
	if m.observe == nil {
		return
	}
	m.observe(StatusEvent{
		Time:    at,
		Kind:    kind,
		TaskID:  id,
		Name:    name,
		Runtime: runtime,
	})
}
