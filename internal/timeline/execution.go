package timeline

import (
	"slices"
	"strings"
	"time"
)

const (
	secondsPerMinuteConstant = 60
)

var fileNameReplacer = strings.NewReplacer(":", "-", "/", "-")

// Execution groups the spans and loops of one workflow run.
type Execution struct {
	ID        WorkflowID
	Intervals []Span
	Loops     []Loop
}

// NewExecution constructs an execution from reconstructed intervals.
func NewExecution(identifier WorkflowID, intervals []Interval) Execution {
	spans := make([]Span, 0, len(intervals))
	for _, interval := range intervals {
		spans = append(spans, interval)
	}
	return Execution{ID: identifier, Intervals: spans}
}

// Start returns the earliest member start. The boolean is false when the execution holds no spans.
func (execution Execution) Start() (time.Time, bool) {
	if len(execution.Intervals) == 0 {
		return time.Time{}, false
	}
	earliest := execution.Intervals[0].Start()
	for _, span := range execution.Intervals[1:] {
		if span.Start().Before(earliest) {
			earliest = span.Start()
		}
	}
	return earliest, true
}

// End returns the latest member end. The boolean is false when the execution holds no spans.
func (execution Execution) End() (time.Time, bool) {
	if len(execution.Intervals) == 0 {
		return time.Time{}, false
	}
	latest := execution.Intervals[0].End()
	for _, span := range execution.Intervals[1:] {
		if span.End().After(latest) {
			latest = span.End()
		}
	}
	return latest, true
}

// Duration returns the wall-clock span of the execution, zero when empty.
func (execution Execution) Duration() time.Duration {
	start, hasStart := execution.Start()
	end, hasEnd := execution.End()
	if !hasStart || !hasEnd {
		return 0
	}
	return end.Sub(start)
}

// TotalSeconds returns Duration in seconds.
func (execution Execution) TotalSeconds() float64 {
	return execution.Duration().Seconds()
}

// TotalMinutes returns Duration in minutes.
func (execution Execution) TotalMinutes() float64 {
	return execution.TotalSeconds() / secondsPerMinuteConstant
}

// WithIntervals returns a copy with the spans appended.
func (execution Execution) WithIntervals(spans ...Span) Execution {
	extended := execution.clone()
	extended.Intervals = append(extended.Intervals, spans...)
	return extended
}

// WithLoops returns a copy carrying the provided loops.
func (execution Execution) WithLoops(loops []Loop) Execution {
	updated := execution.clone()
	updated.Loops = slices.Clone(loops)
	return updated
}

// FileName renders the identifier as a file-system friendly token.
func (execution Execution) FileName() string {
	return fileNameReplacer.Replace(execution.ID.String())
}

func (execution Execution) clone() Execution {
	return Execution{
		ID:        execution.ID,
		Intervals: slices.Clone(execution.Intervals),
		Loops:     slices.Clone(execution.Loops),
	}
}
