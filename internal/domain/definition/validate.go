package definition

import "fmt"

// Validate runs the publish-time checks and returns every violation found,
// not just the first. A definition that passes Validate can be published.
func (d *WorkflowDefinition) Validate() []Violation {
	var violations []Violation

	if len(d.States) == 0 {
		violations = append(violations, Violation{
			Code:    CodeNoStates,
			Message: "definition declares no states",
		})
	}

	states := make(map[string]bool, len(d.States))
	initials := 0
	finals := 0
	for _, s := range d.States {
		if states[s.Code] {
			violations = append(violations, Violation{
				Code:    CodeDuplicateStateCode,
				Message: fmt.Sprintf("state code %q declared more than once", s.Code),
			})
		}
		states[s.Code] = true
		if s.IsInitial {
			initials++
		}
		if s.IsFinal {
			finals++
		}
	}

	if initials != 1 {
		violations = append(violations, Violation{
			Code:    CodeMissingOrDuplicateInitial,
			Message: fmt.Sprintf("exactly one initial state required, found %d", initials),
		})
	}
	if finals == 0 {
		violations = append(violations, Violation{
			Code:    CodeMissingFinalState,
			Message: "at least one final state required",
		})
	}

	seenEdges := make(map[string]bool)
	for _, r := range d.Rules {
		if !states[r.FromState] {
			violations = append(violations, Violation{
				Code:    CodeDanglingStateReference,
				Message: fmt.Sprintf("rule %s references undeclared from-state %q", r.ID, r.FromState),
			})
		}
		if !states[r.ToState] {
			violations = append(violations, Violation{
				Code:    CodeDanglingStateReference,
				Message: fmt.Sprintf("rule %s references undeclared to-state %q", r.ID, r.ToState),
			})
		}

		if r.IsActive {
			edge := r.FromState + "\x00" + r.ToState
			if seenEdges[edge] {
				violations = append(violations, Violation{
					Code:    CodeAmbiguousTransition,
					Message: fmt.Sprintf("more than one active rule for transition %s -> %s", r.FromState, r.ToState),
				})
			}
			seenEdges[edge] = true
		}

		if err := r.Condition.Validate(); err != nil {
			violations = append(violations, Violation{
				Code:    CodeInvalidCondition,
				Message: fmt.Sprintf("rule %s has an invalid condition: %v", r.ID, err),
			})
		}
	}

	return violations
}
