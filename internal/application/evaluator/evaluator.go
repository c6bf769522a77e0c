// Package evaluator decides whether a requested state change is legal under a
// workflow definition: rule lookup, required fields, role membership and the
// declarative guard condition. Denial is an expected outcome and is reported
// as a structured decision, never as an error.
package evaluator

import (
	"fmt"

	"github.com/crmkit/workflow-engine/internal/domain/definition"
)

// Issue codes carried on a denied decision.
const (
	CodeNoSuchTransition      = "noSuchTransition"
	CodeMissingField          = "missingField"
	CodeRoleNotAllowed        = "roleNotAllowed"
	CodeConditionFailed       = "conditionFailed"
	CodeInternalInconsistency = "internalInconsistency"
)

// Issue is a single structured validation failure.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s(%s)", i.Code, i.Field)
	}
	return i.Code
}

// Context carries the evaluation inputs: the entity's field values and the
// acting user's resolved roles.
type Context struct {
	Fields map[string]any
	Roles  []string
}

// TransitionDecision is the evaluator's verdict. Warnings are non-fatal
// observations (conditions referencing absent fields); they never flip
// Allowed on their own.
type TransitionDecision struct {
	Allowed  bool     `json:"allowed"`
	RuleID   string   `json:"rule_id,omitempty"`
	Issues   []Issue  `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorStrings renders the issues for the history record.
func (d TransitionDecision) ErrorStrings() []string {
	out := make([]string, 0, len(d.Issues))
	for _, i := range d.Issues {
		out = append(out, i.String())
	}
	return out
}

// Logger interface for minimal logging dependency
type Logger interface {
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Evaluator evaluates transitions against published definitions.
type Evaluator struct {
	logger Logger
}

// New creates an Evaluator.
func New(logger Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate applies the rule for (from, to) to the given context. Violations
// are collected rather than short-circuited so the caller sees the complete
// failure set in one round trip.
func (e *Evaluator) Evaluate(def *definition.WorkflowDefinition, fromState, toState string, evalCtx Context) TransitionDecision {
	rule, decision := e.selectRule(def, fromState, toState)
	if rule == nil {
		return decision
	}
	decision.RuleID = rule.ID

	for _, field := range rule.RequiredFields {
		val, ok := evalCtx.Fields[field]
		if !ok || val == nil {
			decision.Issues = append(decision.Issues, Issue{
				Code:    CodeMissingField,
				Field:   field,
				Message: fmt.Sprintf("required field %q is missing or null", field),
			})
		}
	}

	if len(rule.AllowedRoles) > 0 && !intersects(rule.AllowedRoles, evalCtx.Roles) {
		decision.Issues = append(decision.Issues, Issue{
			Code:    CodeRoleNotAllowed,
			Message: fmt.Sprintf("acting user holds none of the allowed roles for %s -> %s", fromState, toState),
		})
	}

	condResult := rule.Condition.Evaluate(evalCtx.Fields)
	decision.Warnings = append(decision.Warnings, condResult.Warnings...)
	if !condResult.Value {
		decision.Issues = append(decision.Issues, Issue{
			Code:    CodeConditionFailed,
			Message: fmt.Sprintf("guard condition rejected transition %s -> %s", fromState, toState),
		})
	}

	decision.Allowed = len(decision.Issues) == 0
	return decision
}

// selectRule finds the active rule for (from, to). Multiple candidates should
// not survive publish validation; when they do, the lowest priority wins and
// a priority tie denies with an internal inconsistency rather than guessing.
func (e *Evaluator) selectRule(def *definition.WorkflowDefinition, fromState, toState string) (*definition.TransitionRule, TransitionDecision) {
	var candidates []definition.TransitionRule
	for _, r := range def.ActiveRules(fromState) {
		if r.ToState == toState {
			candidates = append(candidates, r)
		}
	}

	if len(candidates) == 0 {
		return nil, TransitionDecision{Issues: []Issue{{
			Code:    CodeNoSuchTransition,
			Message: fmt.Sprintf("no active rule permits %s -> %s", fromState, toState),
		}}}
	}

	best := candidates[0]
	tie := false
	for _, c := range candidates[1:] {
		switch {
		case c.Priority < best.Priority:
			best = c
			tie = false
		case c.Priority == best.Priority:
			tie = true
		}
	}

	if tie {
		if e.logger != nil {
			e.logger.Error("duplicate-priority rules matched at evaluation time",
				"definition_id", def.ID,
				"from_state", fromState,
				"to_state", toState,
				"priority", best.Priority,
			)
		}
		return nil, TransitionDecision{Issues: []Issue{{
			Code:    CodeInternalInconsistency,
			Message: fmt.Sprintf("multiple active rules with equal priority for %s -> %s", fromState, toState),
		}}}
	}

	if len(candidates) > 1 && e.logger != nil {
		e.logger.Warn("multiple active rules matched post-validation, selected lowest priority",
			"definition_id", def.ID,
			"rule_id", best.ID,
		)
	}

	return &best, TransitionDecision{}
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}
