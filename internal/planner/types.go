// Package planner decomposes goals into subtasks and drives each one
// through the validation gateway, execution, result recording and event
// publication.
//
// A goal is owned by the planner flow that created it. Subtasks advance
// through an ordered state machine and are mutated only here; the
// validator is consulted, never delegated to.
package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sovereignlabs/sovereignd/internal/archetype"
	"github.com/sovereignlabs/sovereignd/internal/heart"
)

// Status is a subtask lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusValidating    Status = "validating"
	StatusValidated     Status = "validated"
	StatusExecuting     Status = "executing"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
	StatusNeedsRefactor Status = "needs_refactor"
	StatusFailed        Status = "failed"
)

// transitions is the ordered state machine. A subtask's status only
// advances along these edges; NeedsRefactor returns to Pending only for
// a revised action.
var transitions = map[Status][]Status{
	StatusPending:       {StatusValidating},
	StatusValidating:    {StatusValidated, StatusRejected, StatusNeedsRefactor},
	StatusValidated:     {StatusExecuting},
	StatusExecuting:     {StatusCompleted, StatusFailed},
	StatusNeedsRefactor: {StatusPending, StatusRejected},
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// GoalStatus is a goal lifecycle state.
type GoalStatus string

const (
	GoalPending   GoalStatus = "pending"
	GoalExecuting GoalStatus = "executing"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
)

// Goal is a top-level request, possibly nested under a parent goal
// through recursive decomposition.
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	ParentID    string     `json:"parent_id,omitempty"`
	Status      GoalStatus `json:"status"`
}

// Subtask is one unit of decomposition.
type Subtask struct {
	ID         string              `json:"id"`
	GoalID     string              `json:"goal_id"`
	Action     string              `json:"action"`
	Intent     string              `json:"intent"`
	Archetype  archetype.Archetype `json:"archetype"`
	Complexity float64             `json:"complexity"`
	Status     Status              `json:"status"`
	Reason     string              `json:"reason,omitempty"`

	// Verdict is the most recent validation result, retained for audit.
	Verdict *heart.Verdict `json:"verdict,omitempty"`

	// subGoal holds a nested goal description when the subtask is
	// itself a decomposition target.
	subGoal string

	refactorCount int
}

// newSubtask creates a Pending subtask for the given goal.
func newSubtask(goalID string, spec TaskSpec, assignment archetype.Assignment) *Subtask {
	complexity := assignment.Complexity
	if spec.Complexity > 0 {
		complexity = archetype.ClampToBand(assignment.Archetype, spec.Complexity)
	}
	intent := spec.Intent
	if intent == "" {
		intent = fmt.Sprintf("Execute %s as %s", spec.Action, assignment.Archetype)
	}
	return &Subtask{
		ID:         uuid.NewString(),
		GoalID:     goalID,
		Action:     spec.Action,
		Intent:     intent,
		Archetype:  assignment.Archetype,
		Complexity: complexity,
		Status:     StatusPending,
		subGoal:    spec.SubGoal,
	}
}

// advance moves the subtask to next, enforcing the state machine.
func (s *Subtask) advance(next Status) error {
	for _, allowed := range transitions[s.Status] {
		if allowed == next {
			s.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid subtask transition %s -> %s", s.Status, next)
}

// Outcome is the terminal result of one subtask within a goal.
type Outcome struct {
	SubtaskID string              `json:"subtask_id"`
	Action    string              `json:"action"`
	Archetype archetype.Archetype `json:"archetype"`
	Status    Status              `json:"status"`
	Reason    string              `json:"reason,omitempty"`
	Output    string              `json:"output,omitempty"`
}

// GoalResult aggregates subtask outcomes. The goal completes only when
// every subtask completes; otherwise it fails carrying the non-completed
// subtasks and their terminal reasons.
type GoalResult struct {
	GoalID      string     `json:"goal_id"`
	Description string     `json:"description"`
	Status      GoalStatus `json:"status"`
	Outcomes    []Outcome  `json:"outcomes"`
}

// Failures returns the non-completed outcomes.
func (r *GoalResult) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status != StatusCompleted {
			failed = append(failed, o)
		}
	}
	return failed
}

// ResultRecord is the durable final output of a subtask, written exactly
// once to the coordination store under the subtask's result key.
type ResultRecord struct {
	SubtaskID   string              `json:"subtask_id"`
	GoalID      string              `json:"goal_id"`
	Action      string              `json:"action"`
	Archetype   archetype.Archetype `json:"archetype"`
	Status      Status              `json:"status"`
	Reason      string              `json:"reason,omitempty"`
	Output      string              `json:"output,omitempty"`
	CompletedAt time.Time           `json:"completed_at"`
}
