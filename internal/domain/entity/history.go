package entity

import "time"

// TransitionHistoryEntry is the append-only audit record of one evaluated
// transition attempt. Entries are written for allowed and denied attempts
// alike and are never updated or deleted.
type TransitionHistoryEntry struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Allowed    bool      `json:"allowed"`
	Errors     []string  `json:"errors,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	ActorID    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
}
