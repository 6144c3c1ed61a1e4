// Package schedapi is the flat, function-style scheduler API used by the rest
// of the firmware. Every function forwards to a process-wide TaskManager.
package schedapi

import (
	"sync/atomic"

	"tasksched/internal/sched"
)

type (
	TaskID       = sched.TaskID
	ResourceID   = sched.ResourceID
	TaskHandle   = sched.TaskHandle
	RunCondition = sched.RunCondition
)

const (
	InvalidTask = sched.InvalidTask

	ResourceNone      = sched.ResourceNone
	ResourceSD        = sched.ResourceSD
	ResourceUSB       = sched.ResourceUSB
	ResourceSDRoutine = sched.ResourceSDRoutine
)

var defaultManager atomic.Pointer[sched.TaskManager]

// Default returns the process-wide TaskManager, creating one with the
// default configuration on first use.
func Default() *sched.TaskManager {
	if m := defaultManager.Load(); m != nil {
		return m
	}
	defaultManager.CompareAndSwap(nil, sched.New(sched.DefaultConfig()))
	return defaultManager.Load()
}

// SetDefault replaces the process-wide TaskManager.
func SetDefault(m *sched.TaskManager) {
	defaultManager.Store(m)
}

// ResourceLocks returns the lock flags the default manager gates on.
func ResourceLocks() *sched.ResourceLocks { return Default().Locks() }

func AddRepeatingTask(handle TaskHandle, priority uint8, backOffTime, targetInterval, maxInterval float64, name string, resources ResourceID) TaskID {
	return Default().AddRepeatingTask(handle, sched.TaskSchedule{
		Priority:       priority,
		BackOffPeriod:  sched.Time(backOffTime),
		TargetInterval: sched.Time(targetInterval),
		MaxInterval:    sched.Time(maxInterval),
	}, name, resources)
}

func AddOnceTask(handle TaskHandle, priority uint8, timeToWait float64, name string, resources ResourceID) TaskID {
	return Default().AddOnceTask(handle, priority, sched.Time(timeToWait), name, resources)
}

func AddConditionalTask(handle TaskHandle, priority uint8, condition RunCondition, name string, resources ResourceID) TaskID {
	return Default().AddConditionalTask(handle, priority, condition, name, resources)
}

func RemoveTask(id TaskID) { Default().RemoveTask(id) }
func BoostTask(id TaskID)  { Default().BoostTask(id) }
func RunTask(id TaskID)    { Default().RunTask(id) }

// Yield runs other tasks until until returns true.
func Yield(until RunCondition) { Default().Yield(until, 0, false) }

func YieldWithTimeout(until RunCondition, timeout float64) bool {
	return Default().YieldWithTimeout(until, sched.Time(timeout))
}

func YieldToIdle(until RunCondition) bool { return Default().YieldToIdle(until) }

func IgnoreForStats() { Default().IgnoreForStats() }

func GetAverageRunTimeForTask(id TaskID) float64 {
	return float64(Default().AverageRunTimeForTask(id))
}

func GetAverageRunTimeForCurrentTask() float64 {
	return float64(Default().AverageRunTimeForCurrentTask())
}

func GetSystemTime() float64 { return float64(Default().SystemTime()) }

func SetNextRunTimeForCurrentTask(seconds float64) {
	Default().SetNextRunTimeForCurrentTask(sched.Time(seconds))
}

// StartTaskManager runs the default manager forever.
func StartTaskManager() { Default().Start(0) }
