package timeline

import (
	"sort"
)

const (
	loopContributionPrefixConstant = "[LOOP] "
)

// Contribution is the elapsed time attributed to one step name.
type Contribution struct {
	Name         string  `json:"name" yaml:"name"`
	TotalSeconds float64 `json:"total_seconds" yaml:"total_seconds"`
}

// ContributionOptions controls ranking.
type ContributionOptions struct {
	// WithLoops folds loop members into one bucket per loop, valued at the loop's wall-clock span.
	WithLoops bool
	// Limit truncates the ranking. Values at or below zero yield an empty ranking.
	Limit int
}

// RankContributions accumulates per-name totals for the execution's own spans and sorts them descending.
// Ties keep first-seen order.
func RankContributions(execution Execution, withLoops bool) ([]Contribution, error) {
	totals := make(map[string]float64)
	order := make([]string, 0)
	accumulate := func(name string, seconds float64) {
		if _, seen := totals[name]; !seen {
			order = append(order, name)
		}
		totals[name] += seconds
	}

	for _, span := range execution.Intervals {
		if span.Workflow() != execution.ID {
			continue
		}
		if withLoops {
			member, membershipError := belongsToAnyLoop(span, execution.Loops)
			if membershipError != nil {
				return nil, membershipError
			}
			if member {
				continue
			}
		}
		accumulate(span.Name(), span.TotalSeconds())
	}
	if withLoops {
		for _, loop := range execution.Loops {
			accumulate(loopContributionPrefixConstant+loop.CanonicalLabel(), loop.TotalSeconds())
		}
	}

	contributions := make([]Contribution, 0, len(order))
	for _, name := range order {
		contributions = append(contributions, Contribution{Name: name, TotalSeconds: totals[name]})
	}
	sort.SliceStable(contributions, func(left int, right int) bool {
		return contributions[left].TotalSeconds > contributions[right].TotalSeconds
	})
	return contributions, nil
}

// LargestContributors returns the top ranked contributions.
func LargestContributors(execution Execution, options ContributionOptions) ([]Contribution, error) {
	if options.Limit <= 0 {
		return []Contribution{}, nil
	}
	contributions, rankError := RankContributions(execution, options.WithLoops)
	if rankError != nil {
		return nil, rankError
	}
	if options.Limit < len(contributions) {
		contributions = contributions[:options.Limit]
	}
	return contributions, nil
}
