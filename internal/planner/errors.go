package planner

import "errors"

// Terminal goal errors. These indicate malformed input rather than
// transient failure and are never retried.
var (
	// ErrDecomposition marks an undecomposable goal (empty or oversized
	// text, or a decomposer failure).
	ErrDecomposition = errors.New("planner: decomposition failed")

	// ErrCycleDetected marks a nested goal that revisits one of its
	// ancestors.
	ErrCycleDetected = errors.New("planner: cycle detected")

	// ErrDepthExceeded marks decomposition beyond the configured
	// maximum recursion depth.
	ErrDepthExceeded = errors.New("planner: max decomposition depth exceeded")
)

// Machine-readable terminal reasons surfaced on subtasks and goals.
const (
	ReasonValidatorUnavailable    = "validator_unavailable"
	ReasonRefactorBudgetExhausted = "refactor_budget_exhausted"
	ReasonExecutionFailure        = "execution_failure"
	ReasonCancellationTimeout     = "cancellation_timeout"
	ReasonCancelled               = "cancelled"
	ReasonCycleDetected           = "cycle_detected"
	ReasonDepthExceeded           = "depth_exceeded"
	ReasonDecomposition           = "decomposition_error"
)
