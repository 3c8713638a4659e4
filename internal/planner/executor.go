package planner

import (
	"context"

	"github.com/sovereignlabs/sovereignd/internal/heart"
)

// Executor performs the actual work of an accepted subtask. The backend
// may be long-running; implementations must honor ctx cancellation and
// return promptly once it fires.
type Executor interface {
	Execute(ctx context.Context, subtask *Subtask) (output string, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, subtask *Subtask) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, subtask *Subtask) (string, error) {
	return f(ctx, subtask)
}

// Refiner revises an action after a needs_refactor verdict. Returning
// the action unchanged signals that no revision is possible, which ends
// the refactor cycle deterministically.
type Refiner interface {
	Refine(ctx context.Context, action string, verdict heart.Verdict) (string, error)
}

// RefinerFunc adapts a function to the Refiner interface.
type RefinerFunc func(ctx context.Context, action string, verdict heart.Verdict) (string, error)

// Refine calls f.
func (f RefinerFunc) Refine(ctx context.Context, action string, verdict heart.Verdict) (string, error) {
	return f(ctx, action, verdict)
}
