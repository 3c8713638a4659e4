package planner

import (
	"context"
	"strings"
)

// TaskSpec is one proposed unit of work from goal decomposition. The
// archetype and final complexity are assigned afterwards through the
// selector contract; a declared complexity is clamped to the selected
// archetype's band.
type TaskSpec struct {
	Action     string
	Intent     string
	Complexity float64

	// SubGoal, when non-empty, marks this unit as a nested goal to be
	// planned recursively instead of executed directly.
	SubGoal string
}

// Decomposer splits a goal into an ordered sequence of task specs. It
// must be deterministic for a given goal text and configuration.
type Decomposer interface {
	Decompose(ctx context.Context, goal string) ([]TaskSpec, error)
}

// KeywordDecomposer is the built-in heuristic decomposer. A production
// deployment plugs a model-backed decomposer in behind the same
// interface.
type KeywordDecomposer struct{}

// NewKeywordDecomposer creates the default decomposer.
func NewKeywordDecomposer() *KeywordDecomposer {
	return &KeywordDecomposer{}
}

// Decompose splits construction goals into the canonical four-phase
// sequence; anything else becomes a single subtask.
func (d *KeywordDecomposer) Decompose(_ context.Context, goal string) ([]TaskSpec, error) {
	if strings.Contains(strings.ToLower(goal), "build") {
		return []TaskSpec{
			{Action: "analyze requirements", Complexity: 0.3},
			{Action: "design architecture", Complexity: 0.6},
			{Action: "implement core", Complexity: 0.8},
			{Action: "test and verify", Complexity: 0.5},
		}, nil
	}
	return []TaskSpec{{Action: goal}}, nil
}

// normalizeGoal produces the identity key used for ancestor cycle
// detection. Goal IDs are freshly generated per planning flow, so cycles
// are detected on normalized text instead.
func normalizeGoal(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}
