// Package coord provides the shared coordination layer: a durable
// key/value store with compare-and-swap writes, and a best-effort
// publish/subscribe event bus for lifecycle notifications.
//
// The store is the single source of truth for completion status. The bus
// is a notification layer only; consumers must reconcile against the
// store and never treat bus delivery as the record of truth.
package coord

import (
	"encoding/json"
	"time"
)

// EventType enumerates recognized lifecycle events.
type EventType string

const (
	// EventPlan announces the start of planning for a goal.
	EventPlan EventType = "agent.plan"

	// EventValidated records an accepted validation verdict.
	EventValidated EventType = "agent.validated"

	// EventRejected records a rejected validation verdict.
	EventRejected EventType = "agent.rejected"

	// EventNeedsRefactor records a recoverable refactor verdict.
	EventNeedsRefactor EventType = "agent.needs_refactor"

	// EventExecute announces that an accepted subtask began executing.
	EventExecute EventType = "agent.execute"

	// EventComplete records a terminal outcome for a subtask or a goal.
	EventComplete EventType = "agent.complete"

	// EventTaskDone records one completed subtask.
	EventTaskDone EventType = "task.done"
)

// Event is an append-only lifecycle fact. Published once, never mutated.
type Event struct {
	Type      EventType       `json:"type"`
	TaskID    string          `json:"task_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event with the current timestamp, marshaling payload
// to JSON. A payload that fails to marshal is dropped rather than
// blocking the notification.
func NewEvent(typ EventType, taskID string, payload any) Event {
	ev := Event{
		Type:      typ,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}
