// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusRegister
	StatusReject
	StatusDispatch
	StatusFinish
	StatusRemove
	StatusYield
	StatusResume
	StatusStats
)

// StatusEvent is emitted on key scheduler actions when an observer is set.
type StatusEvent struct {
	Time    Time
	Kind    StatusKind
	TaskID  TaskID
	Name    string
	Runtime Time // for Finish and Yield: the segment just accounted
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusRegister:
		return "Register"
	case StatusReject:
		return "Reject"
	case StatusDispatch:
		return "Dispatch"
	case StatusFinish:
		return "Finish"
	case StatusRemove:
		return "Remove"
	case StatusYield:
		return "Yield"
	case StatusResume:
		return "Resume"
	case StatusStats:
		return "Stats"
	default:
		return "Unknown"
	}
}
