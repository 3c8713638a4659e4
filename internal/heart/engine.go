package heart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sovereignlabs/sovereignd/internal/logging"
)

// Engine evaluates proposed actions against the configured invariants.
// It holds no per-call mutable state: concurrent validations are
// independent and side-effect-free beyond their own response, and
// identical inputs always yield identical verdicts.
type Engine struct {
	thresholds Thresholds
	safety     SafetyPredicate
	torsion    TorsionScorer
	values     ValueSource
	logger     *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSafetyPredicate overrides the i_nssi predicate.
func WithSafetyPredicate(p SafetyPredicate) Option {
	return func(e *Engine) { e.safety = p }
}

// WithTorsionScorer overrides the torsion heuristic.
func WithTorsionScorer(s TorsionScorer) Option {
	return func(e *Engine) { e.torsion = s }
}

// WithValueSource overrides the VDR metric source.
func WithValueSource(v ValueSource) Option {
	return func(e *Engine) { e.values = v }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with the given thresholds. Collaborators
// default to the pattern predicate, the marker scorer and a healthy
// static value source.
func NewEngine(thresholds Thresholds, opts ...Option) *Engine {
	e := &Engine{
		thresholds: thresholds,
		safety:     NewPatternPredicate(),
		torsion:    NewMarkerScorer(),
		values:     StaticSource{Functional: 1.0, Complexity: 1.0},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate evaluates one proposed action. The decision ladder is
// ordered, first match wins:
//
//  1. i_nssi false            -> reject (non-retryable)
//  2. torsion > TorsionMax    -> reject
//  3. complexity > ComplexityThreshold and VDR < VDRMin -> needs_refactor
//  4. otherwise               -> accept
func (e *Engine) Validate(ctx context.Context, action, intent string, complexity float64) (Verdict, error) {
	start := time.Now()
	safe := e.safety.Safe(ctx, action, intent)
	torsion := e.torsion.Score(action, intent)

	functional, codeComplexity, err := e.values.Sample(ctx)
	vdr := VDR(functional, codeComplexity)
	if err != nil {
		// An unreadable metric source must not block the safety and
		// torsion tiers; VDR falls back to the healthy baseline.
		e.logger.Warn(ctx, "value source unavailable, assuming healthy vdr", zap.Error(err))
		vdr = 1.0
	}

	verdict := Verdict{Torsion: torsion, VDR: vdr, INSSI: safe}

	switch {
	case !safe:
		verdict.Decision = Reject
		verdict.Reason = ReasonINSSIViolation
	case torsion > e.thresholds.TorsionMax:
		verdict.Decision = Reject
		verdict.Reason = ReasonTorsion
	case complexity > e.thresholds.ComplexityThreshold && vdr < e.thresholds.VDRMin:
		verdict.Decision = NeedsRefactor
		verdict.Reason = ReasonLowValueDensity
	default:
		verdict.Decision = Accept
	}

	observeValidation(verdict.Decision, time.Since(start))
	e.logger.Debug(ctx, "validated action",
		zap.String("decision", string(verdict.Decision)),
		zap.String("reason", verdict.Reason),
		zap.Float64("torsion", torsion),
		zap.Float64("vdr", vdr))

	return verdict, nil
}

// Invariants returns the current threshold snapshot. Read-only.
func (e *Engine) Invariants(context.Context) (Thresholds, error) {
	return e.thresholds, nil
}

// Health reports liveness. The gateway is degraded when its value
// source cannot be sampled.
func (e *Engine) Health(ctx context.Context) (Health, error) {
	if _, _, err := e.values.Sample(ctx); err != nil {
		return Health{Status: "degraded"}, nil
	}
	return Health{Status: "ok"}, nil
}
