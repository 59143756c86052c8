package timeline

import (
	"slices"
	"time"
)

// AggregateInterval is a frozen cross-execution rollup for one step name.
type AggregateInterval struct {
	name         string
	start        time.Time
	end          time.Time
	values       []time.Duration
	contributors []WorkflowID
}

// Name returns the aggregated step name.
func (aggregate AggregateInterval) Name() string {
	return aggregate.name
}

// Start returns the earliest start among folded intervals.
func (aggregate AggregateInterval) Start() time.Time {
	return aggregate.start
}

// End returns the latest end among folded intervals.
func (aggregate AggregateInterval) End() time.Time {
	return aggregate.end
}

// Workflow reports the aggregate owner.
func (aggregate AggregateInterval) Workflow() WorkflowID {
	return AggregateWorkflowID
}

// Attempts is always one for aggregates.
func (aggregate AggregateInterval) Attempts() int {
	return defaultAttemptCountConstant
}

// Duration returns the union span.
func (aggregate AggregateInterval) Duration() time.Duration {
	return aggregate.end.Sub(aggregate.start)
}

// TotalSeconds returns the union span in seconds.
func (aggregate AggregateInterval) TotalSeconds() float64 {
	return aggregate.Duration().Seconds()
}

// WithName returns a copy carrying a different name.
func (aggregate AggregateInterval) WithName(name string) Span {
	renamed := aggregate.clone()
	renamed.name = name
	return renamed
}

// Values returns the folded durations in fold order.
func (aggregate AggregateInterval) Values() []time.Duration {
	return slices.Clone(aggregate.values)
}

// Seconds returns the folded durations in seconds, in fold order.
func (aggregate AggregateInterval) Seconds() []float64 {
	seconds := make([]float64, 0, len(aggregate.values))
	for _, value := range aggregate.values {
		seconds = append(seconds, value.Seconds())
	}
	return seconds
}

// Contributors returns the sorted set of workflows that supplied samples.
func (aggregate AggregateInterval) Contributors() []WorkflowID {
	return slices.Clone(aggregate.contributors)
}

// HasContributor reports whether the workflow is in the contributor set.
func (aggregate AggregateInterval) HasContributor(workflow WorkflowID) bool {
	_, found := slices.BinarySearch(aggregate.contributors, workflow)
	return found
}

func (aggregate AggregateInterval) clone() AggregateInterval {
	return AggregateInterval{
		name:         aggregate.name,
		start:        aggregate.start,
		end:          aggregate.end,
		values:       slices.Clone(aggregate.values),
		contributors: slices.Clone(aggregate.contributors),
	}
}

// AggregateBuilder accumulates samples for one step name. Every method returns a new builder; the receiver is never mutated.
type AggregateBuilder struct {
	state AggregateInterval
}

// NewAggregateBuilder seeds an accumulator with the span of the first sighted interval and no samples.
func NewAggregateBuilder(seed Span) AggregateBuilder {
	return AggregateBuilder{
		state: AggregateInterval{
			name:  seed.Name(),
			start: seed.Start(),
			end:   seed.End(),
		},
	}
}

// Fold appends the span duration, records its workflow as a contributor and widens the union span.
func (builder AggregateBuilder) Fold(span Span) AggregateBuilder {
	next := builder.WithContributor(span.Workflow())
	next.state.values = append(next.state.values, span.Duration())
	if span.Start().Before(next.state.start) {
		next.state.start = span.Start()
	}
	if span.End().After(next.state.end) {
		next.state.end = span.End()
	}
	return next
}

// WithContributor records a contributor without adding a sample.
func (builder AggregateBuilder) WithContributor(workflow WorkflowID) AggregateBuilder {
	next := AggregateBuilder{state: builder.state.clone()}
	position, found := slices.BinarySearch(next.state.contributors, workflow)
	if !found {
		next.state.contributors = slices.Insert(next.state.contributors, position, workflow)
	}
	return next
}

// HasContributor reports whether the workflow already contributed.
func (builder AggregateBuilder) HasContributor(workflow WorkflowID) bool {
	return builder.state.HasContributor(workflow)
}

// Snapshot yields the frozen aggregate.
func (builder AggregateBuilder) Snapshot() AggregateInterval {
	return builder.state.clone()
}
