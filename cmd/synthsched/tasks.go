package main

import (
	"tasksched/internal/job"
	"tasksched/internal/sched"
	"tasksched/pkg/schedapi"
)

const sampleRate = 44100.0

// registerTasks installs the synth's task set in priority order, audio first.
// It returns how many registrations were rejected.
func registerTasks(m *sched.TaskManager, sim *sched.SimCounter) int {
	schedapi.SetDefault(m)

	work := func(d sched.Time) sched.TaskHandle {
		if sim != nil {
			return job.SimWork(sim, d)
		}
		return job.SpinWork(m.Clock(), d)
	}

	var cardReady bool
	var p uint8
	ids := []schedapi.TaskID{
		schedapi.AddRepeatingTask(work(0.0004), next(&p), 8/sampleRate, 64/sampleRate, 128/sampleRate,
			"audio routine", schedapi.ResourceNone),
		schedapi.AddRepeatingTask(work(0.00001), next(&p), 0.0005, 0.0005, 0.001,
			"check usb midi", schedapi.ResourceUSB),
		schedapi.AddRepeatingTask(work(0.000005), next(&p), 0.0002, 0.0004, 0.0005,
			"read encoders", schedapi.ResourceNone),
		schedapi.AddRepeatingTask(work(0.00003), next(&p), 0.0005, 0.001, 0.002,
			"playback routine", schedapi.ResourceNone),
		schedapi.AddRepeatingTask(work(0.00005), next(&p), 0.001, 0.005, 0.05,
			"audio slow", schedapi.ResourceNone),
		schedapi.AddRepeatingTask(work(0.00002), next(&p), 0.005, 0.005, 0.01,
			"buttons and pads", schedapi.ResourceNone),
		schedapi.AddRepeatingTask(work(0.0002), next(&p), 0.01, 0.01, 0.03,
			"pending UI", schedapi.ResourceNone),
		schedapi.AddRepeatingTask(job.HoldResource(m, schedapi.ResourceSD, 0.002), next(&p), 0.1, 0.1, 0.2,
			"audio file slow", schedapi.ResourceSD),
		schedapi.AddRepeatingTask(work(0.0003), next(&p), 0.01, 0.01, 0.02,
			"oled routine", schedapi.ResourceNone),
		schedapi.AddOnceTask(func() { cardReady = true }, next(&p), 0.05,
			"card detect", schedapi.ResourceNone),
		schedapi.AddConditionalTask(work(0.001), 100, func() bool { return cardReady },
			"load startup song", schedapi.ResourceSD|schedapi.ResourceSDRoutine),
	}

	rejected := 0
	for _, id := range ids {
		if id == schedapi.InvalidTask {
			rejected++
		}
	}
	return rejected
}

func next(p *uint8) uint8 {
	v := *p
	*p++
	return v
}
