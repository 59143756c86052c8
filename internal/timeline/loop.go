package timeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
)

const (
	loopLabelSeparatorConstant            = "|"
	emptyLoopMessageConstant              = "loop requires at least one member interval"
	unsupportedMembershipTemplateConstant = "loop membership is undefined for %T"
)

// Loop is a closed run of repeating intervals. Loops are immutable once constructed.
type Loop struct {
	members    []Interval
	names      []string
	iterations int
	start      time.Time
	end        time.Time
}

// NewLoop builds a loop from the ordered candidate members.
func NewLoop(members []Interval) (Loop, error) {
	if len(members) == 0 {
		return Loop{}, profilererrors.WrapMessage(profilererrors.OperationLoopConstruct, "", profilererrors.ErrEmptyLoop, emptyLoopMessageConstant)
	}

	occurrences := make(map[string]int, len(members))
	names := make([]string, 0, len(members))
	iterations := 0
	for _, member := range members {
		if occurrences[member.Name()] == 0 {
			names = append(names, member.Name())
		}
		occurrences[member.Name()]++
		if occurrences[member.Name()] > iterations {
			iterations = occurrences[member.Name()]
		}
	}
	slices.Sort(names)

	return Loop{
		members:    slices.Clone(members),
		names:      names,
		iterations: iterations,
		start:      members[0].Start(),
		end:        members[len(members)-1].End(),
	}, nil
}

// Members returns a copy of the member intervals in arrival order.
func (loop Loop) Members() []Interval {
	return slices.Clone(loop.members)
}

// Names returns the distinct member names in sorted order.
func (loop Loop) Names() []string {
	return slices.Clone(loop.names)
}

// Iterations reports the highest occurrence count of any single member name.
func (loop Loop) Iterations() int {
	return loop.iterations
}

// Start returns the first member's start.
func (loop Loop) Start() time.Time {
	return loop.start
}

// End returns the last member's end.
func (loop Loop) End() time.Time {
	return loop.end
}

// Duration returns the loop's wall-clock span.
func (loop Loop) Duration() time.Duration {
	return loop.end.Sub(loop.start)
}

// TotalSeconds returns the wall-clock span in seconds.
func (loop Loop) TotalSeconds() float64 {
	return loop.Duration().Seconds()
}

// Workflow returns the owner of the first member.
func (loop Loop) Workflow() WorkflowID {
	if len(loop.members) == 0 {
		return ""
	}
	return loop.members[0].Workflow()
}

// CanonicalLabel joins the sorted member names.
func (loop Loop) CanonicalLabel() string {
	return strings.Join(loop.names, loopLabelSeparatorConstant)
}

// HasName reports whether the name participates in the loop.
func (loop Loop) HasName(name string) bool {
	_, found := slices.BinarySearch(loop.names, name)
	return found
}

// Contains reports whether the candidate falls inside the loop: its name is a loop name and its start lies within the loop span.
// Only Interval and AggregateInterval values (or pointers to them) are accepted.
func (loop Loop) Contains(candidate any) (bool, error) {
	var span Span
	switch typed := candidate.(type) {
	case Interval:
		span = typed
	case *Interval:
		if typed == nil {
			return false, loop.unsupportedMembership(candidate)
		}
		span = *typed
	case AggregateInterval:
		span = typed
	case *AggregateInterval:
		if typed == nil {
			return false, loop.unsupportedMembership(candidate)
		}
		span = *typed
	default:
		return false, loop.unsupportedMembership(candidate)
	}
	return loop.containsSpan(span), nil
}

func (loop Loop) containsSpan(span Span) bool {
	if !loop.HasName(span.Name()) {
		return false
	}
	spanStart := span.Start()
	return !spanStart.Before(loop.start) && !spanStart.After(loop.end)
}

func (loop Loop) unsupportedMembership(candidate any) error {
	return profilererrors.WrapMessage(
		profilererrors.OperationLoopMembership,
		loop.CanonicalLabel(),
		profilererrors.ErrUnsupportedMembershipSubject,
		fmt.Sprintf(unsupportedMembershipTemplateConstant, candidate),
	)
}

// ToInterval renders the loop as one synthetic interval labelled with the canonical label.
func (loop Loop) ToInterval() Interval {
	return NewInterval(loop.CanonicalLabel(), loop.start, loop.end, loop.Workflow())
}
