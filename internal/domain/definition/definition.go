// Package definition holds the versioned workflow templates: states, guarded
// transition rules and the publish-time validation that keeps them coherent.
package definition

import (
	"time"

	"github.com/crmkit/workflow-engine/internal/domain/condition"
)

// Lifecycle status of a definition version.
const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
)

// WorkflowDefinition is one version of a workflow template for a
// (tenant, case type) pair. Published definitions are immutable; edits create
// a new version referencing the previous one through ParentVersionID.
type WorkflowDefinition struct {
	ID              string           `json:"id"`
	TenantID        string           `json:"tenant_id"`
	CaseType        string           `json:"case_type"`
	Version         int              `json:"version"`
	ParentVersionID string           `json:"parent_version_id,omitempty"`
	Status          string           `json:"status"`
	Active          bool             `json:"active"`
	States          []State          `json:"states"`
	Rules           []TransitionRule `json:"rules"`
	CreatedAt       time.Time        `json:"created_at"`
	PublishedAt     *time.Time       `json:"published_at,omitempty"`
}

// State is a named workflow state within a definition. Exactly one state per
// definition is initial; one or more are final.
type State struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsInitial bool   `json:"is_initial"`
	IsFinal   bool   `json:"is_final"`
}

// TransitionRule is a guarded edge between two states of its definition.
// An empty AllowedRoles set means the transition is unrestricted by role.
type TransitionRule struct {
	ID             string          `json:"id"`
	FromState      string          `json:"from_state"`
	ToState        string          `json:"to_state"`
	RequiredFields []string        `json:"required_fields,omitempty"`
	AllowedRoles   []string        `json:"allowed_roles,omitempty"`
	Condition      *condition.Node `json:"condition,omitempty"`
	Priority       int             `json:"priority"`
	IsActive       bool            `json:"is_active"`
}

// IsPublished returns true once the definition is immutable.
func (d *WorkflowDefinition) IsPublished() bool {
	return d.Status == StatusPublished
}

// InitialState returns the state marked initial, or nil if the definition is
// invalid in that respect.
func (d *WorkflowDefinition) InitialState() *State {
	for i := range d.States {
		if d.States[i].IsInitial {
			return &d.States[i]
		}
	}
	return nil
}

// StateByCode looks up a state by its code.
func (d *WorkflowDefinition) StateByCode(code string) *State {
	for i := range d.States {
		if d.States[i].Code == code {
			return &d.States[i]
		}
	}
	return nil
}

// ActiveRules returns the active rules leaving fromState.
func (d *WorkflowDefinition) ActiveRules(fromState string) []TransitionRule {
	var rules []TransitionRule
	for _, r := range d.Rules {
		if r.IsActive && r.FromState == fromState {
			rules = append(rules, r)
		}
	}
	return rules
}
