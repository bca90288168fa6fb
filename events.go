package streamworker

import "fmt"

// Report is a supervisor's record of one handle reaching its end.
type Report struct {
	HandleID string
	Worker   string
	Level    ErrorLevel
	Err      error
}

func newReport(h *Handle, err error) Report {
	level := ErrorLevelInfo
	if err != nil {
		level = ErrorLevelError
		if KindOf(err) == KindWorkerUnresponsive {
			level = ErrorLevelCritical
		}
	}
	r := Report{Level: level, Err: err}
	if h != nil {
		r.HandleID = h.ID()
		r.Worker = h.Worker()
	}
	return r
}

func (r Report) String() string {
	if r.Err == nil {
		return fmt.Sprintf("[%s] %s %s closed", r.Level, r.Worker, r.HandleID)
	}
	return fmt.Sprintf("[%s] %s %s: %v", r.Level, r.Worker, r.HandleID, r.Err)
}
