package sched

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CSVTrace records status events as CSV rows, for plotting a run offline.
type CSVTrace struct {
	w      *csv.Writer
	closer io.Closer
	err    error
}

// NewCSVTrace writes the header to w and returns a trace ready to observe.
func NewCSVTrace(w io.Writer) *CSVTrace {
	tr := &CSVTrace{w: csv.NewWriter(w)}
	tr.write([]string{"time_s", "event", "task_id", "task", "runtime_us"})
	return tr
}

// OpenCSVTrace creates path and traces into it.
func OpenCSVTrace(path string) (*CSVTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace %s: %w", path, err)
	}
	tr := NewCSVTrace(f)
	tr.closer = f
	return tr, nil
}

// Observe is a TaskManager observer. Idle transitions are skipped for
// brevity.
func (tr *CSVTrace) Observe(ev StatusEvent) {
	if ev.Kind == StatusIdle {
		return
	}
	tr.write([]string{
		strconv.FormatFloat(float64(ev.Time), 'f', 9, 64),
		ev.Kind.String(),
		strconv.Itoa(int(ev.TaskID)),
		ev.Name,
		strconv.FormatFloat(durationScale*float64(ev.Runtime), 'f', 3, 64),
	})
}

func (tr *CSVTrace) write(rec []string) {
	if tr.err != nil {
		return
	}
	tr.err = tr.w.Write(rec)
}

// Close flushes buffered rows and closes the file if the trace owns one. It
// reports the first write error seen.
func (tr *CSVTrace) Close() error {
	tr.w.Flush()
	if tr.err == nil {
		tr.err = tr.w.Error()
	}
	if tr.closer != nil {
		if err := tr.closer.Close(); err != nil && tr.err == nil {
			tr.err = err
		}
	}
	return tr.err
}
