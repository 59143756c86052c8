package timeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/timeline"
)

func TestDetectLoops(testInstance *testing.T) {
	testCases := []struct {
		name               string
		steps              []string
		expectedLabels     []string
		expectedIterations []int
		expectedMembers    []int
	}{
		{
			name:               "single_repeat_closed_by_successor",
			steps:              []string{"A", "B", "A", "B", "C"},
			expectedLabels:     []string{"A|B"},
			expectedIterations: []int{2},
			expectedMembers:    []int{4},
		},
		{
			name:               "inner_loop_only",
			steps:              []string{"A", "B", "C", "B", "C", "A", "D"},
			expectedLabels:     []string{"B|C"},
			expectedIterations: []int{2},
			expectedMembers:    []int{4},
		},
		{
			name:               "multiple_loops",
			steps:              []string{"State1", "State2", "State1", "State3", "State4", "State4", "State5"},
			expectedLabels:     []string{"State1|State2", "State4"},
			expectedIterations: []int{2, 2},
			expectedMembers:    []int{3, 2},
		},
		{
			name:               "open_loop_at_end_is_not_reported",
			steps:              []string{"A", "B", "A", "B"},
			expectedLabels:     []string{},
			expectedIterations: []int{},
			expectedMembers:    []int{},
		},
		{
			name:               "no_repeat",
			steps:              []string{"A", "B", "C"},
			expectedLabels:     []string{},
			expectedIterations: []int{},
			expectedMembers:    []int{},
		},
		{
			name:               "label_is_sorted",
			steps:              []string{"Zeta", "Alpha", "Zeta", "Omega"},
			expectedLabels:     []string{"Alpha|Zeta"},
			expectedIterations: []int{2},
			expectedMembers:    []int{3},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			loops := timeline.DetectLoops(sequentialIntervals(testWorkflowIdentifierConstant, testCase.steps...))
			require.Len(testInstance, loops, len(testCase.expectedLabels))
			for index, loop := range loops {
				require.Equal(testInstance, testCase.expectedLabels[index], loop.CanonicalLabel())
				require.Equal(testInstance, testCase.expectedIterations[index], loop.Iterations())
				require.Len(testInstance, loop.Members(), testCase.expectedMembers[index])
				require.NotEmpty(testInstance, loop.Members())
				require.GreaterOrEqual(testInstance, loop.Iterations(), 1)
			}
		})
	}
}

func TestDetectLoopsSpansFirstRepeatingRun(testInstance *testing.T) {
	intervals := sequentialIntervals(testWorkflowIdentifierConstant, "A", "B", "A", "B", "C")

	loops := timeline.DetectLoops(intervals)

	require.Len(testInstance, loops, 1)
	require.Equal(testInstance, []string{"A", "B"}, loops[0].Names())
	require.Equal(testInstance, intervals[0].Start(), loops[0].Start())
	require.Equal(testInstance, intervals[3].End(), loops[0].End())
	require.Equal(testInstance, testWorkflowIdentifierConstant, loops[0].Workflow())

	member, membershipError := loops[0].Contains(intervals[4])
	require.NoError(testInstance, membershipError)
	require.False(testInstance, member)
}

func TestStepTransitions(testInstance *testing.T) {
	intervals := sequentialIntervals(testWorkflowIdentifierConstant, "A", "B", "A", "C")
	state := timeline.DetectorState{}

	state, closedLoop := timeline.Step(state, intervals[0])
	require.Nil(testInstance, closedLoop)
	state, closedLoop = timeline.Step(state, intervals[1])
	require.Nil(testInstance, closedLoop)
	require.Equal(testInstance, timeline.ModeNormal, state.Mode())
	require.Empty(testInstance, state.LoopNames())

	inLoopState, closedLoop := timeline.Step(state, intervals[2])
	require.Nil(testInstance, closedLoop)
	require.Equal(testInstance, timeline.ModeInLoop, inLoopState.Mode())
	require.Equal(testInstance, []string{"A", "B"}, inLoopState.LoopNames())
	require.Len(testInstance, inLoopState.Candidates(), 3)

	require.Len(testInstance, state.Candidates(), 2)

	finalState, closedLoop := timeline.Step(inLoopState, intervals[3])
	require.NotNil(testInstance, closedLoop)
	require.Equal(testInstance, "A|B", closedLoop.CanonicalLabel())
	require.Equal(testInstance, timeline.ModeNormal, finalState.Mode())
	require.Len(testInstance, finalState.Candidates(), 1)
	require.Equal(testInstance, "C", finalState.Candidates()[0].Name())
}

func TestNewLoopRejectsEmptyMembers(testInstance *testing.T) {
	_, loopError := timeline.NewLoop(nil)
	require.Error(testInstance, loopError)
	require.ErrorIs(testInstance, loopError, profilererrors.ErrEmptyLoop)
}

func TestLoopIterationsUseMostFrequentName(testInstance *testing.T) {
	loop, loopError := timeline.NewLoop(sequentialIntervals(testWorkflowIdentifierConstant, "A", "B", "B", "B", "A"))
	require.NoError(testInstance, loopError)
	require.Equal(testInstance, 3, loop.Iterations())
	require.Equal(testInstance, 5*time.Minute, loop.Duration())
}

func TestLoopContains(testInstance *testing.T) {
	loop, loopError := timeline.NewLoop(sequentialIntervals(testWorkflowIdentifierConstant, "A", "B", "A"))
	require.NoError(testInstance, loopError)

	aggregate := timeline.NewAggregateBuilder(timeline.NewInterval("B", at(time.Minute), at(2*time.Minute), testOtherWorkflowIdentifierConstant)).Snapshot()
	inside := timeline.NewInterval("A", at(90*time.Second), at(4*time.Hour), testOtherWorkflowIdentifierConstant)

	testCases := []struct {
		name          string
		candidate     any
		expected      bool
		expectedError error
	}{
		{name: "name_and_start_inside", candidate: inside, expected: true},
		{name: "pointer_interval", candidate: &inside, expected: true},
		{name: "aggregate_interval", candidate: aggregate, expected: true},
		{name: "starts_at_loop_end", candidate: timeline.NewInterval("A", at(3*time.Minute), at(4*time.Minute), testWorkflowIdentifierConstant), expected: true},
		{name: "starts_after_loop", candidate: timeline.NewInterval("A", at(4*time.Minute), at(5*time.Minute), testWorkflowIdentifierConstant), expected: false},
		{name: "unknown_name", candidate: timeline.NewInterval("C", at(time.Minute), at(2*time.Minute), testWorkflowIdentifierConstant), expected: false},
		{name: "unsupported_type", candidate: "A", expectedError: profilererrors.ErrUnsupportedMembershipSubject},
		{name: "nil_pointer", candidate: (*timeline.Interval)(nil), expectedError: profilererrors.ErrUnsupportedMembershipSubject},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			member, membershipError := loop.Contains(testCase.candidate)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, membershipError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, membershipError)
			require.Equal(testInstance, testCase.expected, member)
		})
	}
}

func TestCoalesceLoops(testInstance *testing.T) {
	intervals := sequentialIntervals(testWorkflowIdentifierConstant, "Start", "A", "B", "A", "B", "End")
	loops := timeline.DetectLoops(intervals)
	require.Len(testInstance, loops, 1)

	coalesced, coalesceError := timeline.CoalesceLoops(toSpans(intervals), loops)
	require.NoError(testInstance, coalesceError)
	require.Equal(testInstance, []string{"Start", "End", "A|B"}, intervalNames(coalesced))

	representative := coalesced[2]
	require.Equal(testInstance, at(time.Minute), representative.Start())
	require.Equal(testInstance, at(5*time.Minute), representative.End())
	require.Equal(testInstance, testWorkflowIdentifierConstant, representative.Workflow())
}

func TestCoalesceLoopsWithoutLoopsIsIdentity(testInstance *testing.T) {
	spans := toSpans(sequentialIntervals(testWorkflowIdentifierConstant, "A", "B", "A", "C"))

	coalesced, coalesceError := timeline.CoalesceLoops(spans, nil)

	require.NoError(testInstance, coalesceError)
	require.Equal(testInstance, spans, coalesced)
}
