package sched

import "math"

// StatBlock tracks the duration of a task's runs.
type StatBlock struct {
	Min Time
	Max Time
	// Average is a running average, (previous + sample) / 2.
	Average Time
}

func newStatBlock() StatBlock {
	return StatBlock{Min: Time(math.Inf(1)), Max: Time(math.Inf(-1))}
}

// Update folds one sample in. The average never drops below floor so a task
// that measures as free still costs something in the scheduling math.
func (s *StatBlock) Update(v, floor Time) {
	s.Min = min(s.Min, v)
	s.Max = max(s.Max, v)
	s.Average = max((s.Average+v)/2, floor)
}

// Reset clears the diagnostic extremes. Average survives because scheduling
// decisions depend on it.
func (s *StatBlock) Reset() {
	s.Min = Time(math.Inf(1))
	s.Max = Time(math.Inf(-1))
}
