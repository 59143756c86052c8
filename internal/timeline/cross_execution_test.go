package timeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stepprof/internal/timeline"
)

func TestAggregateContributorsFoldsInInputOrder(testInstance *testing.T) {
	first := timeline.NewExecution(testWorkflowIdentifierConstant, []timeline.Interval{
		timeline.NewInterval("X", at(time.Minute), at(time.Minute+10*time.Second), testWorkflowIdentifierConstant),
	})
	second := timeline.NewExecution(testOtherWorkflowIdentifierConstant, []timeline.Interval{
		timeline.NewInterval("X", at(0), at(20*time.Second), testOtherWorkflowIdentifierConstant),
	})

	aggregates := timeline.AggregateContributors([]timeline.Execution{first, second})

	require.Len(testInstance, aggregates, 1)
	aggregate := aggregates[0]
	require.Equal(testInstance, "X", aggregate.Name())
	require.Equal(testInstance, []float64{10, 20}, aggregate.Seconds())
	require.Len(testInstance, aggregate.Contributors(), 2)
	require.Equal(testInstance, at(0), aggregate.Start())
	require.Equal(testInstance, at(time.Minute+10*time.Second), aggregate.End())
	require.Equal(testInstance, timeline.AggregateWorkflowID, aggregate.Workflow())
}

func TestAggregateContributorsOrderIndependentContributors(testInstance *testing.T) {
	executions := []timeline.Execution{
		timeline.NewExecution(testWorkflowIdentifierConstant, sequentialIntervals(testWorkflowIdentifierConstant, "A", "B")),
		timeline.NewExecution(testOtherWorkflowIdentifierConstant, sequentialIntervals(testOtherWorkflowIdentifierConstant, "B", "C")),
	}
	reversed := []timeline.Execution{executions[1], executions[0]}

	forward := timeline.AggregateContributorsByName(executions)
	backward := timeline.AggregateContributorsByName(reversed)

	require.Len(testInstance, forward, 3)
	for name, aggregate := range forward {
		require.Equal(testInstance, aggregate.Contributors(), backward[name].Contributors())
		require.ElementsMatch(testInstance, aggregate.Seconds(), backward[name].Seconds())
	}
	require.Len(testInstance, forward["B"].Contributors(), 2)
}

func TestAggregateContributorsCompletesContributorSet(testInstance *testing.T) {
	borrowed := timeline.NewInterval("Shared", at(0), at(time.Minute), testOtherWorkflowIdentifierConstant)
	execution := timeline.Execution{ID: testWorkflowIdentifierConstant, Intervals: []timeline.Span{borrowed}}

	aggregates := timeline.AggregateContributors([]timeline.Execution{execution})

	require.Len(testInstance, aggregates, 1)
	require.True(testInstance, aggregates[0].HasContributor(testWorkflowIdentifierConstant))
	require.True(testInstance, aggregates[0].HasContributor(testOtherWorkflowIdentifierConstant))
	require.Len(testInstance, aggregates[0].Values(), 1)
}

func TestAggregateBuilderDoesNotMutateReceiver(testInstance *testing.T) {
	seed := timeline.NewInterval("X", at(0), at(time.Minute), testWorkflowIdentifierConstant)
	builder := timeline.NewAggregateBuilder(seed)

	folded := builder.Fold(seed)
	foldedTwice := folded.Fold(timeline.NewInterval("X", at(time.Hour), at(2*time.Hour), testOtherWorkflowIdentifierConstant))

	require.Empty(testInstance, builder.Snapshot().Values())
	require.Len(testInstance, folded.Snapshot().Values(), 1)
	require.Len(testInstance, foldedTwice.Snapshot().Values(), 2)
	require.Equal(testInstance, at(time.Minute), folded.Snapshot().End())
	require.Equal(testInstance, at(2*time.Hour), foldedTwice.Snapshot().End())
}

func TestAggregateExecutionAndFiltering(testInstance *testing.T) {
	execution := timeline.NewExecution(testWorkflowIdentifierConstant, []timeline.Interval{
		timeline.NewInterval("Short", at(0), at(30*time.Second), testWorkflowIdentifierConstant),
		timeline.NewInterval("Long", at(0), at(5*time.Minute), testWorkflowIdentifierConstant),
	})

	filtered := timeline.FilterShortExecution(execution, 2*time.Minute)
	require.Equal(testInstance, []string{"Long"}, intervalNames(filtered.Intervals))
	require.Len(testInstance, execution.Intervals, 2)

	aggregated := timeline.AggregateExecution(timeline.AggregateContributors([]timeline.Execution{filtered}))
	require.Equal(testInstance, timeline.AggregateWorkflowID, aggregated.ID)
	contributions, rankError := timeline.RankContributions(aggregated, false)
	require.NoError(testInstance, rankError)
	require.Equal(testInstance, []timeline.Contribution{{Name: "Long", TotalSeconds: 300}}, contributions)
}
