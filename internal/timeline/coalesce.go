package timeline

// CoalesceLoops drops every span that belongs to one of the loops and appends one synthetic interval per loop, in loop order, after the survivors.
func CoalesceLoops(spans []Span, loops []Loop) ([]Span, error) {
	coalesced := make([]Span, 0, len(spans)+len(loops))
	for _, span := range spans {
		member, membershipError := belongsToAnyLoop(span, loops)
		if membershipError != nil {
			return nil, membershipError
		}
		if !member {
			coalesced = append(coalesced, span)
		}
	}
	for _, loop := range loops {
		coalesced = append(coalesced, loop.ToInterval())
	}
	return coalesced, nil
}

// CoalesceExecution replaces the loop members of the execution with loop representatives.
func CoalesceExecution(execution Execution) (Execution, error) {
	coalesced, coalesceError := CoalesceLoops(execution.Intervals, execution.Loops)
	if coalesceError != nil {
		return Execution{}, coalesceError
	}
	updated := execution.clone()
	updated.Intervals = coalesced
	return updated, nil
}

func belongsToAnyLoop(span Span, loops []Loop) (bool, error) {
	for _, loop := range loops {
		member, membershipError := loop.Contains(span)
		if membershipError != nil {
			return false, membershipError
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}
