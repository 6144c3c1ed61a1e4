package sched

import "math"

// TaskID is a slot index in the task table. Negative values mean "no task".
type TaskID int8

// InvalidTask is returned when a task cannot be registered.
const InvalidTask TaskID = -1

// TaskHandle is the body of a task.
type TaskHandle func()

// RunCondition gates a conditional task. It runs on every scheduling pass,
// so it must be cheap.
type RunCondition func() bool

// State is a task's scheduling state.
type State uint8

const (
	StateBlocked State = iota // waiting for its condition
	StateQueued               // single-shot task already dispatched, removed when its call returns
	StateReady
)

func (s State) String() string {
	switch s {
	case StateBlocked:
		return "blocked"
	case StateQueued:
		return "queued"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// TaskSchedule is the fixed timing contract of a task. Priority 0 is the
// highest.
type TaskSchedule struct {
	Priority uint8
	// BackOffPeriod is the minimum gap from the end of one call to the start
	// of the next.
	BackOffPeriod Time
	// TargetInterval is the desired time between call starts.
	TargetInterval Time
	// MaxInterval bounds the time between call starts.
	MaxInterval Time
}

// Task is one slot of the task table. A zero Task is a free slot.
type Task struct {
	handle    TaskHandle
	schedule  TaskSchedule
	condition RunCondition
	resources ResourceChecker
	name      string

	state          State
	removeAfterUse bool
	inCall         bool   // mid-invocation, possibly yielding
	gen            uint32 // bumped whenever the slot changes owner

	idealCallTime  Time
	latestCallTime Time
	lastCallTime   Time
	lastFinishTime Time

	durationStats StatBlock
	latency       StatBlock // time from one call start to the next
	totalTime     Time
	timesCalled   int32
	lastRunTime   Time
}

func newRepeatingTask(handle TaskHandle, schedule TaskSchedule, name string, resources ResourceChecker, now Time) Task {
	t := Task{
		handle:        handle,
		schedule:      schedule,
		name:          name,
		resources:     resources,
		state:         StateReady,
		durationStats: newStatBlock(),
		latency:       newStatBlock(),
	}
	t.release(now)
	return t
}

// newOnceTask makes a task that runs once, timeToWait after now, with a
// soft ceiling of twice that.
func newOnceTask(handle TaskHandle, priority uint8, timeToWait Time, name string, resources ResourceChecker, now Time) Task {
	t := Task{
		handle:         handle,
		schedule:       TaskSchedule{priority, timeToWait, timeToWait, timeToWait * 2},
		name:           name,
		resources:      resources,
		state:          StateReady,
		removeAfterUse: true,
		durationStats:  newStatBlock(),
		latency:        newStatBlock(),
	}
	t.release(now)
	return t
}

// newConditionalTask makes a task that runs once, as soon as condition holds.
func newConditionalTask(handle TaskHandle, priority uint8, condition RunCondition, name string, resources ResourceChecker, now Time) Task {
	t := Task{
		handle:         handle,
		schedule:       TaskSchedule{Priority: priority},
		condition:      condition,
		name:           name,
		resources:      resources,
		state:          StateBlocked,
		removeAfterUse: true,
		durationStats:  newStatBlock(),
		latency:        newStatBlock(),
	}
	t.release(now)
	return t
}

// release starts the task's timeline at now, as if it had just finished.
func (t *Task) release(now Time) {
	t.lastCallTime = now
	t.lastFinishTime = now
	t.idealCallTime = now + t.schedule.TargetInterval
	t.latestCallTime = now + t.schedule.MaxInterval
}

func (t *Task) used() bool { return t.handle != nil }

// isReady reports whether the task may start at now, ignoring resources.
func (t *Task) isReady(now Time) bool {
	return t.state == StateReady && !t.inCall && now-t.lastFinishTime > t.schedule.BackOffPeriod
}

func (t *Task) releaseTime() Time {
	return t.lastFinishTime + t.schedule.BackOffPeriod
}

func (t *Task) isDue(now Time) bool {
	return t.idealCallTime <= now
}

// isOverdue reports whether the task has waited past its MaxInterval.
func (t *Task) isOverdue(now Time) bool {
	return t.schedule.MaxInterval > 0 && now-t.lastCallTime > t.schedule.MaxInterval
}

// checkCondition moves a blocked task to ready once its condition holds.
// It reports whether the task is ready afterwards.
func (t *Task) checkCondition() bool {
	if t.state != StateBlocked {
		return t.state == StateReady
	}
	if t.condition != nil && t.condition() {
		t.state = StateReady
		return true
	}
	return false
}

// updateNextTimes records a finished run that started at start and lasted
// runtime, and derives the next ideal and latest call times from the new
// average duration. count=false keeps runtime out of the average only.
func (t *Task) updateNextTimes(start, runtime, finish, floor Time, count bool) {
	if count {
		t.durationStats.Update(runtime, floor)
	}
	t.totalTime += runtime
	t.lastRunTime = runtime
	avg := t.durationStats.Average
	t.lastCallTime = start
	t.lastFinishTime = finish
	t.idealCallTime = start + t.schedule.TargetInterval - avg
	t.latestCallTime = start + t.schedule.MaxInterval - avg
}

// boost makes the task due immediately. It lasts until the next run
// recomputes the call times.
func (t *Task) boost(now Time) {
	t.idealCallTime = Time(math.Inf(-1))
	t.latestCallTime = now
}

// TaskInfo is a read-only view of a task slot.
type TaskInfo struct {
	ID             TaskID
	Name           string
	Schedule       TaskSchedule
	Resources      ResourceID
	State          State
	RemoveAfterUse bool
	InCall         bool
	IdealCallTime  Time
	LatestCallTime Time
	LastCallTime   Time
	LastFinishTime Time
	Duration       StatBlock
	Latency        StatBlock
	TotalTime      Time
	TimesCalled    int32
	LastRunTime    Time
}

func (t *Task) info(id TaskID) TaskInfo {
	return TaskInfo{
		ID:             id,
		Name:           t.name,
		Schedule:       t.schedule,
		Resources:      t.resources.Resources(),
		State:          t.state,
		RemoveAfterUse: t.removeAfterUse,
		InCall:         t.inCall,
		IdealCallTime:  t.idealCallTime,
		LatestCallTime: t.latestCallTime,
		LastCallTime:   t.lastCallTime,
		LastFinishTime: t.lastFinishTime,
		Duration:       t.durationStats,
		Latency:        t.latency,
		TotalTime:      t.totalTime,
		TimesCalled:    t.timesCalled,
		LastRunTime:    t.lastRunTime,
	}
}
