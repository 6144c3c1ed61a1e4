package sched

import (
	"math"

	"tasksched/internal/logx"
)

const (
	durationScale = 1e6 // report durations in microseconds
	latencyScale  = 1e3 // and call-to-call latency in milliseconds
)

// Task returns a snapshot of one task.
func (m *TaskManager) Task(id TaskID) (TaskInfo, bool) {
	t := m.slot(id)
	if t == nil {
		return TaskInfo{}, false
	}
	return t.info(id), true
}

// Snapshot returns every registered task, highest priority first.
func (m *TaskManager) Snapshot() []TaskInfo {
	out := make([]TaskInfo, 0, m.numActive)
	for _, id := range m.index.order() {
		if t := m.slot(id); t != nil {
			out = append(out, t.info(id))
		}
	}
	return out
}

// PrintStats logs load and duration figures for every task, then starts a
// new measurement window.
func (m *TaskManager) PrintStats() {
	total := m.cpuTime + m.overhead
	m.log.Info("dumping task manager stats",
		logx.Float64("working_pct", pct(m.cpuTime, total)),
		logx.Float64("overhead_pct", pct(m.overhead, total)),
		logx.Float64("running_s", float64(m.Now())),
		logx.Int("tasks", m.numActive),
	)
	if m.log.Enabled(logx.LevelDebug) {
		for _, info := range m.Snapshot() {
			fields := []logx.Field{
				logx.String("task", info.Name),
				logx.Int("id", int(info.ID)),
				logx.Float64("load_pct", pct(info.TotalTime, m.cpuTime)),
				logx.Float64("avg_us", durationScale*float64(info.Duration.Average)),
				logx.Int("calls", int(info.TimesCalled)),
			}
			if info.TimesCalled > 0 {
				fields = append(fields,
					logx.Float64("min_us", durationScale*float64(info.Duration.Min)),
					logx.Float64("max_us", durationScale*float64(info.Duration.Max)),
				)
			}
			if !math.IsInf(float64(info.Latency.Min), 1) {
				fields = append(fields,
					logx.Float64("latency_min_ms", latencyScale*float64(info.Latency.Min)),
					logx.Float64("latency_avg_ms", latencyScale*float64(info.Latency.Average)),
					logx.Float64("latency_max_ms", latencyScale*float64(info.Latency.Max)),
				)
			}
			m.log.Debug("task stats", fields...)
		}
	}
	m.emit(StatusStats, InvalidTask, "", m.cpuTime, m.Now())
	m.ResetStats()
}

// ResetStats clears the diagnostic counters. Running averages are kept.
func (m *TaskManager) ResetStats() {
	for i := range m.tasks {
		t := &m.tasks[i]
		if !t.used() {
			continue
		}
		t.totalTime = 0
		t.timesCalled = 0
		t.durationStats.Reset()
		t.latency.Reset()
	}
	m.cpuTime = 0
	m.overhead = 0
}

func pct(part, whole Time) float64 {
	if whole <= 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}
