package timeline

import (
	"slices"
)

// DetectorMode tags the loop detector state.
type DetectorMode int

const (
	// ModeNormal means no repeat is in progress.
	ModeNormal DetectorMode = iota
	// ModeInLoop means the candidate stack holds a repeating run.
	ModeInLoop
)

// String renders the mode.
func (mode DetectorMode) String() string {
	if mode == ModeInLoop {
		return "in_loop"
	}
	return "normal"
}

// DetectorState is the immutable state threaded through Step.
type DetectorState struct {
	mode       DetectorMode
	loopNames  []string
	candidates []Interval
}

// Mode returns the current tag.
func (state DetectorState) Mode() DetectorMode {
	return state.mode
}

// LoopNames returns the sorted names of the open loop; empty in ModeNormal.
func (state DetectorState) LoopNames() []string {
	return slices.Clone(state.loopNames)
}

// Candidates returns the intervals not yet classified.
func (state DetectorState) Candidates() []Interval {
	return slices.Clone(state.candidates)
}

// Step advances the detector by one interval and returns the loop closed by it, if any.
// Only the innermost contiguous repeat is tracked; a run still open when input ends is never reported.
func Step(state DetectorState, interval Interval) (DetectorState, *Loop) {
	return transition(state, interval, appendCandidate)
}

// DetectLoops runs the Step transition over the ordered intervals and collects closed loops.
// The candidate stack is owned by the scan, so it grows in place.
func DetectLoops(intervals []Interval) []Loop {
	loops := make([]Loop, 0)
	state := DetectorState{}
	for _, interval := range intervals {
		var closedLoop *Loop
		state, closedLoop = transition(state, interval, appendOwnedCandidate)
		if closedLoop != nil {
			loops = append(loops, *closedLoop)
		}
	}
	return loops
}

type candidateAppender func(candidates []Interval, interval Interval) []Interval

func transition(state DetectorState, interval Interval, push candidateAppender) (DetectorState, *Loop) {
	switch state.mode {
	case ModeInLoop:
		if _, found := slices.BinarySearch(state.loopNames, interval.Name()); found {
			return DetectorState{
				mode:       ModeInLoop,
				loopNames:  state.loopNames,
				candidates: push(state.candidates, interval),
			}, nil
		}
		closedLoop, loopError := NewLoop(state.candidates)
		if loopError != nil {
			panic(loopError)
		}
		return DetectorState{mode: ModeNormal, candidates: []Interval{interval}}, &closedLoop
	default:
		firstOccurrence := slices.IndexFunc(state.candidates, func(candidate Interval) bool {
			return candidate.Name() == interval.Name()
		})
		if firstOccurrence < 0 {
			return DetectorState{mode: ModeNormal, candidates: push(state.candidates, interval)}, nil
		}
		repeating := state.candidates[firstOccurrence:]
		return DetectorState{
			mode:       ModeInLoop,
			loopNames:  distinctSortedNames(repeating),
			candidates: push(repeating, interval),
		}, nil
	}
}

func appendCandidate(candidates []Interval, interval Interval) []Interval {
	extended := make([]Interval, 0, len(candidates)+1)
	extended = append(extended, candidates...)
	return append(extended, interval)
}

func appendOwnedCandidate(candidates []Interval, interval Interval) []Interval {
	return append(candidates, interval)
}

func distinctSortedNames(intervals []Interval) []string {
	names := make([]string, 0, len(intervals))
	for _, interval := range intervals {
		names = append(names, interval.Name())
	}
	slices.Sort(names)
	return slices.Compact(names)
}
