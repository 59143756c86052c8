package timeline_test

import (
	"time"

	"github.com/tyemirov/stepprof/internal/timeline"
)

const (
	testWorkflowIdentifierConstant      timeline.WorkflowID = "arn:aws:states:us-east-1:123456789012:execution:Pipeline:primary"
	testOtherWorkflowIdentifierConstant timeline.WorkflowID = "arn:aws:states:us-east-1:123456789012:execution:Pipeline:secondary"
)

var testBaseTime = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time {
	return testBaseTime.Add(offset)
}

// sequentialIntervals builds one-minute, back-to-back intervals for the named steps.
func sequentialIntervals(workflow timeline.WorkflowID, names ...string) []timeline.Interval {
	intervals := make([]timeline.Interval, 0, len(names))
	for index, name := range names {
		start := at(time.Duration(index) * time.Minute)
		intervals = append(intervals, timeline.NewInterval(name, start, start.Add(time.Minute), workflow))
	}
	return intervals
}

func intervalNames(spans []timeline.Span) []string {
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name())
	}
	return names
}

func toSpans(intervals []timeline.Interval) []timeline.Span {
	spans := make([]timeline.Span, 0, len(intervals))
	for _, interval := range intervals {
		spans = append(spans, interval)
	}
	return spans
}
