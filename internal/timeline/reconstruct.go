package timeline

import (
	"time"
)

// RecordKind enumerates the history record kinds the reconstructor distinguishes.
type RecordKind string

// Known record kinds. Anything else is carried as RecordOther.
const (
	RecordStateEntered  RecordKind = "state_entered"
	RecordStateExited   RecordKind = "state_exited"
	RecordTaskScheduled RecordKind = "task_scheduled"
	RecordTaskFailed    RecordKind = "task_failed"
	RecordTaskSucceeded RecordKind = "task_succeeded"
	RecordOther         RecordKind = "other"
)

// Record is one raw history entry. StateName is only meaningful for entered and exited kinds.
type Record struct {
	Kind      RecordKind
	Timestamp time.Time
	StateName string
}

// ReconstructOptions tunes interval reconstruction.
type ReconstructOptions struct {
	// SeparateRetries emits one interval per attempt instead of one interval spanning all attempts.
	SeparateRetries bool
	// CombineConsecutive merges an interval into the previous output interval when both carry the same name.
	// It is ignored when SeparateRetries is set.
	CombineConsecutive bool
}

// Reconstruct converts an ordered record log into intervals owned by the workflow.
// Entered records without a matching exit produce nothing.
func Reconstruct(workflow WorkflowID, records []Record, options ReconstructOptions) []Interval {
	intervals := make([]Interval, 0)
	for index, record := range records {
		if record.Kind != RecordStateEntered {
			continue
		}
		closed, found := closeState(workflow, records, index, options.SeparateRetries)
		if !found {
			continue
		}
		for _, interval := range closed {
			intervals = appendInterval(intervals, interval, options)
		}
	}
	return intervals
}

func closeState(workflow WorkflowID, records []Record, enteredIndex int, separateRetries bool) ([]Interval, bool) {
	name := records[enteredIndex].StateName
	start := records[enteredIndex].Timestamp
	attempts := defaultAttemptCountConstant
	closed := make([]Interval, 0, 1)

	for cursor := enteredIndex + 1; cursor < len(records); cursor++ {
		candidate := records[cursor]
		switch {
		case candidate.Kind == RecordTaskFailed:
			hasNext := cursor+1 < len(records)
			if hasNext && isExitOf(records[cursor+1], name) {
				continue
			}
			if separateRetries {
				closed = append(closed, NewIntervalWithAttempts(name, start, candidate.Timestamp, workflow, attempts))
				if hasNext {
					start = records[cursor+1].Timestamp
				}
			}
			attempts++
		case isExitOf(candidate, name):
			closed = append(closed, NewIntervalWithAttempts(name, start, candidate.Timestamp, workflow, attempts))
			return closed, true
		}
	}
	return nil, false
}

func isExitOf(record Record, name string) bool {
	return record.Kind == RecordStateExited && record.StateName == name
}

func appendInterval(intervals []Interval, interval Interval, options ReconstructOptions) []Interval {
	if options.CombineConsecutive && !options.SeparateRetries && len(intervals) > 0 {
		last := intervals[len(intervals)-1]
		if last.Name() == interval.Name() && last.Workflow() == interval.Workflow() {
			intervals[len(intervals)-1] = last.ExtendEnd(interval.End())
			return intervals
		}
	}
	return append(intervals, interval)
}
