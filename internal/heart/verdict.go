// Package heart is the policy gateway that validates proposed actions
// before execution.
//
// Every action flows through three invariants, in strictly decreasing
// severity: the self-preservation predicate (i_nssi), torsion (truth
// alignment) and the value-density ratio (plan health). Only the top
// tier is both fatal and non-retryable.
package heart

import "context"

// Decision is the outcome of one validation call.
type Decision string

const (
	// Accept allows the action to execute.
	Accept Decision = "accept"

	// Reject blocks the action terminally.
	Reject Decision = "reject"

	// NeedsRefactor blocks the action recoverably: a revised action may
	// be resubmitted.
	NeedsRefactor Decision = "needs_refactor"
)

// Machine-readable verdict reasons.
const (
	ReasonINSSIViolation  = "i_nssi_violation"
	ReasonTorsion         = "torsion_violation"
	ReasonLowValueDensity = "low_value_density"
)

// Verdict is the immutable result of one validation call. Created fresh
// per call, never mutated, retained by the subtask for audit.
type Verdict struct {
	Decision Decision `json:"decision"`
	Torsion  float64  `json:"torsion"`
	VDR      float64  `json:"vdr"`
	INSSI    bool     `json:"i_nssi"`
	Reason   string   `json:"reason,omitempty"`
}

// NonRetryable reports whether resubmitting the identical action can
// ever change the outcome. Only the safety invariant is permanent.
func (v Verdict) NonRetryable() bool {
	return v.Decision == Reject && v.Reason == ReasonINSSIViolation
}

// Thresholds is the externally configured policy surface. Immutable
// after construction; passed explicitly into the engine so multiple
// independently configured instances can coexist in one process.
type Thresholds struct {
	TorsionMax          float64 `json:"torsion_max"`
	VDRMin              float64 `json:"vdr_min"`
	ComplexityThreshold float64 `json:"complexity_threshold"`
}

// DefaultThresholds returns the documented defaults: any positive
// torsion fails, VDR below 1.0 needs refactoring, and VDR is only
// checked above complexity 0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TorsionMax:          0.0,
		VDRMin:              1.0,
		ComplexityThreshold: 0.5,
	}
}

// Health is the liveness status of the gateway.
type Health struct {
	Status string `json:"status"`
}

// Gateway is the validation boundary the planner calls before executing
// any subtask. Calls are synchronous request/response; implementations
// must be safe for concurrent use.
type Gateway interface {
	Validate(ctx context.Context, action, intent string, complexity float64) (Verdict, error)
	Invariants(ctx context.Context) (Thresholds, error)
	Health(ctx context.Context) (Health, error)
}
