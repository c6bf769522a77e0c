package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event represents a domain event emitted by the workflow engine
type Event struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	TenantID      string         `json:"tenant_id"`
	InstanceID    string         `json:"instance_id"`
	StepID        string         `json:"step_id,omitempty"`
	Payload       map[string]any `json:"payload"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, tenantID, instanceID string, payload map[string]any) *Event {
	return &Event{
		ID:            generateID(),
		Type:          eventType,
		TenantID:      tenantID,
		InstanceID:    instanceID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: generateID(),
	}
}

// WithStep returns a copy of the event scoped to a step
func (e *Event) WithStep(stepID string) *Event {
	clone := *e
	clone.StepID = stepID
	return &clone
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value any) *Event {
	newPayload := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
