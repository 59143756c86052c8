package timeline

import (
	"fmt"
	"time"
)

const (
	interleavedNameTemplateConstant = "[%s] %s"
)

// AggregateContributors folds same-named spans across contributor executions, in the order given.
// Aggregates are returned in first-sighting order.
func AggregateContributors(contributors []Execution) []AggregateInterval {
	builders := make(map[string]AggregateBuilder)
	order := make([]string, 0)

	for _, contributor := range contributors {
		for _, span := range contributor.Intervals {
			builder, seen := builders[span.Name()]
			if !seen {
				builder = NewAggregateBuilder(span)
				order = append(order, span.Name())
			}
			builders[span.Name()] = builder.Fold(span)
		}
	}

	for _, contributor := range contributors {
		for _, span := range contributor.Intervals {
			builder := builders[span.Name()]
			if !builder.HasContributor(contributor.ID) {
				builders[span.Name()] = builder.WithContributor(contributor.ID)
			}
		}
	}

	aggregates := make([]AggregateInterval, 0, len(order))
	for _, name := range order {
		aggregates = append(aggregates, builders[name].Snapshot())
	}
	return aggregates
}

// AggregateContributorsByName indexes AggregateContributors by step name.
func AggregateContributorsByName(contributors []Execution) map[string]AggregateInterval {
	aggregates := AggregateContributors(contributors)
	indexed := make(map[string]AggregateInterval, len(aggregates))
	for _, aggregate := range aggregates {
		indexed[aggregate.Name()] = aggregate
	}
	return indexed
}

// AggregateExecution wraps aggregates into a synthetic execution owned by AggregateWorkflowID.
func AggregateExecution(aggregates []AggregateInterval) Execution {
	spans := make([]Span, 0, len(aggregates))
	for _, aggregate := range aggregates {
		spans = append(spans, aggregate)
	}
	return Execution{ID: AggregateWorkflowID, Intervals: spans}
}

// FilterShortSpans keeps spans whose duration is at least the minimum.
func FilterShortSpans(spans []Span, minimum time.Duration) []Span {
	kept := make([]Span, 0, len(spans))
	for _, span := range spans {
		if span.Duration() >= minimum {
			kept = append(kept, span)
		}
	}
	return kept
}

// FilterShortExecution applies FilterShortSpans to the execution's spans.
func FilterShortExecution(execution Execution, minimum time.Duration) Execution {
	filtered := execution.clone()
	filtered.Intervals = FilterShortSpans(execution.Intervals, minimum)
	return filtered
}

// Interleave merges the spans of the other executions into the parent, prefixing each name with its owner.
// The parent's own spans and loops are left untouched.
func Interleave(parent Execution, others []Execution) Execution {
	merged := parent.clone()
	for _, other := range others {
		for _, span := range other.Intervals {
			merged.Intervals = append(merged.Intervals, span.WithName(fmt.Sprintf(interleavedNameTemplateConstant, other.ID, span.Name())))
		}
	}
	return merged
}
