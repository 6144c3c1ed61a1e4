package sched

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksched/internal/logx"
)

func never() bool { return false }

func TestYieldReturnsWhenConditionHolds(t *testing.T) {
	m, _ := newSimManager(t, DefaultConfig())
	flag := false
	m.AddOnceTask(func() { flag = true }, 1, 0.001, "flag", ResourceNone)

	var met bool
	var waited Time
	a := m.AddRepeatingTask(func() {
		begin := m.Now()
		met = m.YieldWithTimeout(func() bool { return flag }, 0.01)
		waited = m.Now() - begin
	}, every(0, 0, 0, 1.0), "waiter", ResourceNone)

	m.RunTask(a)
	assert.True(t, met)
	assert.Greater(t, waited, Time(0.0009))
	assert.Less(t, waited, Time(0.0015))
}

func TestYieldToIdleReturnsWhenNothingElseRuns(t *testing.T) {
	m, _ := newSimManager(t, DefaultConfig())
	met := true
	var waited Time
	a := m.AddRepeatingTask(func() {
		begin := m.Now()
		met = m.YieldToIdle(never)
		waited = m.Now() - begin
	}, every(0, 0, 0, 1.0), "alone", ResourceNone)

	m.RunTask(a)
	assert.False(t, met)
	assert.Less(t, waited, Time(0.0001))
}

func TestStopEndsYield(t *testing.T) {
	m, _ := newSimManager(t, DefaultConfig())
	calls, stopped := 0, 0
	met := true
	m.AddRepeatingTask(func() {
		calls++
		met = m.Yield(never, 0, false)
	}, every(0, 0, 0, 1.0), "forever", ResourceNone)
	m.AddOnceTask(func() {
		stopped++
		m.Stop()
	}, 1, 0.001, "stopper", ResourceNone)

	m.Start(0)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, stopped)
	assert.False(t, met)
}

func TestYieldEndsWithTimedRun(t *testing.T) {
	m, _ := newSimManager(t, DefaultConfig())
	m.AddRepeatingTask(func() { m.Yield(never, 0, false) }, every(0, 0, 0, 1.0), "forever", ResourceNone)

	m.Start(0.003)
	assert.False(t, m.Running())
	assert.Less(t, m.Now(), Time(0.0031))
}

func TestYieldingTaskIsNotReentered(t *testing.T) {
	log := &eventLog{}
	m, _ := newSimManager(t, DefaultConfig(), WithObserver(log.observe))
	aCalls, bCalls := 0, 0
	a := m.AddRepeatingTask(func() {
		aCalls++
		m.YieldWithTimeout(never, 0.001)
	}, every(0, 0, 0, 1.0), "outer", ResourceNone)
	m.AddRepeatingTask(func() { bCalls++ }, every(1, 0.0001, 0.0001, 0.0002), "inner", ResourceNone)

	m.RunTask(a)
	assert.Equal(t, 1, aCalls)
	assert.Greater(t, bCalls, 3)

	require.Len(t, log.times(a, StatusYield), 1)
	require.Len(t, log.times(a, StatusResume), 1)
	assert.Less(t, log.times(a, StatusYield)[0], log.times(a, StatusResume)[0])
	assert.Len(t, log.times(a, StatusFinish), 1)
}

func TestYieldDepthCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxYieldDepth = 2
	var buf bytes.Buffer
	m, _ := newSimManager(t, cfg, WithLogger(logx.New(&buf, "warn")))

	var cWaits []Time
	cMet := false
	a := m.AddRepeatingTask(func() {
		m.YieldWithTimeout(never, 0.002)
	}, every(0, 0, 0, 1.0), "depth 1", ResourceNone)
	m.AddRepeatingTask(func() {
		m.YieldWithTimeout(never, 0.0005)
	}, every(1, 0, 0, 1.0), "depth 2", ResourceNone)
	m.AddRepeatingTask(func() {
		begin := m.Now()
		cMet = cMet || m.YieldWithTimeout(never, 0.0005)
		cWaits = append(cWaits, m.Now()-begin)
	}, every(2, 0, 0, 1.0), "too deep", ResourceNone)

	m.RunTask(a)
	require.NotEmpty(t, cWaits)
	for _, w := range cWaits {
		assert.Less(t, w, Time(0.0001))
	}
	assert.False(t, cMet)
	assert.Contains(t, buf.String(), "yield nested too deeply")
}

func TestCurrentTask(t *testing.T) {
	m, _ := newSimManager(t, DefaultConfig())
	assert.Equal(t, InvalidTask, m.CurrentTask())
	assert.Zero(t, m.AverageRunTimeForCurrentTask())

	var seenA, seenAAfter, seenB TaskID
	bRan := false
	a := m.AddRepeatingTask(func() {
		seenA = m.CurrentTask()
		m.YieldWithTimeout(func() bool { return bRan }, 0.01)
		seenAAfter = m.CurrentTask()
	}, every(0, 0, 0, 1.0), "a", ResourceNone)
	b := m.AddRepeatingTask(func() {
		seenB = m.CurrentTask()
		bRan = true
	}, every(1, 0, 0, 1.0), "b", ResourceNone)

	m.RunTask(a)
	assert.Equal(t, a, seenA)
	assert.Equal(t, b, seenB)
	assert.Equal(t, a, seenAAfter)
	assert.Equal(t, InvalidTask, m.CurrentTask())
}

func TestIgnoreForStats(t *testing.T) {
	m, sim := newSimManager(t, DefaultConfig())
	ignore := false
	work := Time(100e-6)
	id := m.AddRepeatingTask(func() {
		if ignore {
			m.IgnoreForStats()
		}
		sim.Advance(work)
	}, every(0, 0, 0, 1.0), "loader", ResourceNone)

	for i := 0; i < 40; i++ {
		m.RunTask(id)
	}
	settled := m.AverageRunTimeForTask(id)
	assert.InDelta(t, 100e-6, float64(settled), 1e-6)

	ignore, work = true, 0.001
	for i := 0; i < 5; i++ {
		m.RunTask(id)
	}
	assert.Equal(t, settled, m.AverageRunTimeForTask(id))

	info, _ := m.Task(id)
	assert.Equal(t, int32(45), info.TimesCalled)
	assert.Greater(t, info.LastRunTime, Time(0.001))

	// outside a task body it does nothing
	m.IgnoreForStats()
	ignore = false
	m.RunTask(id)
	assert.Greater(t, m.AverageRunTimeForTask(id), 2*settled)
}

func TestAverageRunTimeForCurrentTask(t *testing.T) {
	m, sim := newSimManager(t, DefaultConfig())
	var inside, direct Time
	var id TaskID
	id = m.AddRepeatingTask(func() {
		inside = m.AverageRunTimeForCurrentTask()
		direct = m.AverageRunTimeForTask(id)
		sim.Advance(10e-6)
	}, every(0, 0, 0, 1.0), "t", ResourceNone)

	m.RunTask(id)
	m.RunTask(id)
	assert.Positive(t, inside)
	assert.Equal(t, direct, inside)
}

func TestAverageRunTimeForCurrentTaskAfterSelfRemoval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTasks = 2
	m, sim := newSimManager(t, cfg)
	other := m.AddRepeatingTask(func() { sim.Advance(50e-6) }, every(1, 0, 0, 1.0), "other", ResourceNone)
	m.RunTask(other)
	require.Positive(t, m.AverageRunTimeForTask(other))

	var before, after Time = -1, -1
	var id TaskID
	id = m.AddRepeatingTask(func() {
		before = m.AverageRunTimeForCurrentTask()
		m.RemoveTask(id)
		reused := m.AddRepeatingTask(func() {}, every(2, 0, 0, 1.0), "reuser", ResourceNone)
		require.Equal(t, id, reused)
		m.tasks[reused].durationStats.Average = 0.5
		after = m.AverageRunTimeForCurrentTask()
	}, every(0, 0, 0, 1.0), "leaver", ResourceNone)

	require.Equal(t, 2, m.NumActive())
	m.RunTask(id)
	assert.Zero(t, before)
	assert.Zero(t, after, "the slot now belongs to another task")
}

func TestSetNextRunTimeForCurrentTask(t *testing.T) {
	m, _ := newSimManager(t, DefaultConfig())
	deferNext := true
	id := m.AddRepeatingTask(func() {
		if deferNext {
			m.SetNextRunTimeForCurrentTask(0.005)
		}
	}, every(0, 0, 0.0001, 1.0), "t", ResourceNone)

	m.RunTask(id)
	info, _ := m.Task(id)
	assert.Greater(t, info.IdealCallTime, m.Now()+0.004)
	assert.Less(t, info.IdealCallTime, m.Now()+0.005)

	// the override applies to one call only
	deferNext = false
	m.RunTask(id)
	info, _ = m.Task(id)
	assert.Less(t, info.IdealCallTime, m.Now()+0.0001)

	// outside a task body it does nothing
	m.SetNextRunTimeForCurrentTask(1.0)
	info2, _ := m.Task(id)
	assert.Equal(t, info.IdealCallTime, info2.IdealCallTime)
}
