package timeline

import (
	"time"
)

const (
	defaultAttemptCountConstant = 1
	// AggregateWorkflowID owns aggregate intervals and the synthetic aggregated contributor execution.
	AggregateWorkflowID WorkflowID = "AGG CONTR"
)

// WorkflowID identifies an execution. Any stable string rendering of an execution reference qualifies.
type WorkflowID string

// String returns the identifier text.
func (identifier WorkflowID) String() string {
	return string(identifier)
}

// Span is a named, timed step owned by a workflow. Interval and AggregateInterval implement it.
type Span interface {
	Name() string
	Start() time.Time
	End() time.Time
	Workflow() WorkflowID
	Attempts() int
	Duration() time.Duration
	TotalSeconds() float64
	WithName(name string) Span
}

// Interval is one reconstructed step execution.
type Interval struct {
	name     string
	start    time.Time
	end      time.Time
	workflow WorkflowID
	attempts int
}

// NewInterval constructs an interval with a single attempt.
func NewInterval(name string, start time.Time, end time.Time, workflow WorkflowID) Interval {
	return NewIntervalWithAttempts(name, start, end, workflow, defaultAttemptCountConstant)
}

// NewIntervalWithAttempts constructs an interval with the provided attempt count; counts below one are raised to one.
func NewIntervalWithAttempts(name string, start time.Time, end time.Time, workflow WorkflowID, attempts int) Interval {
	if attempts < defaultAttemptCountConstant {
		attempts = defaultAttemptCountConstant
	}
	return Interval{
		name:     name,
		start:    start,
		end:      end,
		workflow: workflow,
		attempts: attempts,
	}
}

// Name returns the step name.
func (interval Interval) Name() string {
	return interval.name
}

// Start returns the step start timestamp.
func (interval Interval) Start() time.Time {
	return interval.start
}

// End returns the step end timestamp. It may precede Start.
func (interval Interval) End() time.Time {
	return interval.end
}

// Workflow returns the owning execution.
func (interval Interval) Workflow() WorkflowID {
	return interval.workflow
}

// Attempts returns the number of tries recorded for the step.
func (interval Interval) Attempts() int {
	return interval.attempts
}

// Duration returns End minus Start; negative spans are preserved.
func (interval Interval) Duration() time.Duration {
	return interval.end.Sub(interval.start)
}

// TotalSeconds returns the duration in seconds.
func (interval Interval) TotalSeconds() float64 {
	return interval.Duration().Seconds()
}

// WithName returns a copy of the interval carrying a different name.
func (interval Interval) WithName(name string) Span {
	renamed := interval
	renamed.name = name
	return renamed
}

// ExtendEnd returns a copy whose end is moved to the provided timestamp.
func (interval Interval) ExtendEnd(end time.Time) Interval {
	extended := interval
	extended.end = end
	return extended
}
