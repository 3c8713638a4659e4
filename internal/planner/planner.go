package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sovereignlabs/sovereignd/internal/archetype"
	"github.com/sovereignlabs/sovereignd/internal/config"
	"github.com/sovereignlabs/sovereignd/internal/coord"
	"github.com/sovereignlabs/sovereignd/internal/heart"
	"github.com/sovereignlabs/sovereignd/internal/logging"
)

const instrumentationName = "github.com/sovereignlabs/sovereignd/internal/planner"

// Deps holds the planner's collaborators. Gateway, Store and Bus are
// required; Selector, Decomposer and Logger default when nil. Refiner is
// optional: without one, needs_refactor verdicts end the subtask.
type Deps struct {
	Gateway    heart.Gateway
	Store      coord.Store
	Bus        coord.Bus
	Executor   Executor
	Selector   archetype.Selector
	Decomposer Decomposer
	Refiner    Refiner
	Channel    string
	Logger     *logging.Logger
}

// Planner orchestrates goals: decompose, validate, execute, record,
// publish. One logical planning flow drives each goal.
type Planner struct {
	cfg        config.PlannerConfig
	gateway    heart.Gateway
	store      coord.Store
	bus        coord.Bus
	executor   Executor
	selector   archetype.Selector
	decomposer Decomposer
	refiner    Refiner
	channel    string
	logger     *logging.Logger
	tracer     trace.Tracer
}

// New creates a planner from immutable configuration and dependencies.
func New(cfg config.PlannerConfig, deps Deps) (*Planner, error) {
	if deps.Gateway == nil {
		return nil, errors.New("planner: gateway is required")
	}
	if deps.Store == nil {
		return nil, errors.New("planner: store is required")
	}
	if deps.Bus == nil {
		return nil, errors.New("planner: bus is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("planner: executor is required")
	}
	if deps.Selector == nil {
		deps.Selector = archetype.NewKeywordSelector()
	}
	if deps.Decomposer == nil {
		deps.Decomposer = NewKeywordDecomposer()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Channel == "" {
		deps.Channel = "sovereign.events"
	}

	// Zero values would stall or reject everything; normalize them to the
	// documented defaults.
	if cfg.FanoutLimit < 1 {
		cfg.FanoutLimit = 1
	}
	if cfg.ValidatorAttempts < 1 {
		cfg.ValidatorAttempts = 1
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	if cfg.MaxGoalLength < 1 {
		cfg.MaxGoalLength = 4096
	}
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = 5 * time.Second
	}

	return &Planner{
		cfg:        cfg,
		gateway:    deps.Gateway,
		store:      deps.Store,
		bus:        deps.Bus,
		executor:   deps.Executor,
		selector:   deps.Selector,
		decomposer: deps.Decomposer,
		refiner:    deps.Refiner,
		channel:    deps.Channel,
		logger:     deps.Logger,
		tracer:     otel.Tracer(instrumentationName),
	}, nil
}

// PlanAndExecute plans a top-level goal and drives it to a terminal
// state. Decomposition errors, cycles and depth violations are terminal
// for the goal and returned as errors; subtask failures are aggregated
// into the GoalResult instead.
func (p *Planner) PlanAndExecute(ctx context.Context, description string) (*GoalResult, error) {
	return p.planGoal(ctx, description, "", nil, 0)
}

// rejectionMemory remembers actions rejected by the safety invariant.
// Resubmitting an identical action short-circuits to the same rejection
// with no further validation attempt.
type rejectionMemory struct {
	mu      sync.Mutex
	reasons map[string]string
}

func newRejectionMemory() *rejectionMemory {
	return &rejectionMemory{reasons: make(map[string]string)}
}

func actionHash(action string) string {
	sum := sha256.Sum256([]byte(action))
	return hex.EncodeToString(sum[:])
}

func (m *rejectionMemory) remember(action, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons[actionHash(action)] = reason
}

func (m *rejectionMemory) rejected(action string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.reasons[actionHash(action)]
	return reason, ok
}

func (p *Planner) planGoal(ctx context.Context, description, parentID string, ancestors []string, depth int) (*GoalResult, error) {
	if err := p.checkGoalText(description); err != nil {
		return nil, err
	}

	norm := normalizeGoal(description)
	if slices.Contains(ancestors, norm) {
		return nil, fmt.Errorf("%w: goal %q revisits an ancestor", ErrCycleDetected, description)
	}
	if depth >= p.cfg.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d at goal %q", ErrDepthExceeded, depth, description)
	}

	goal := &Goal{
		ID:          uuid.NewString(),
		Description: description,
		ParentID:    parentID,
		Status:      GoalExecuting,
	}
	ctx = logging.WithGoalID(ctx, goal.ID)

	ctx, span := p.tracer.Start(ctx, "planner.plan_goal",
		trace.WithAttributes(
			attribute.String("goal.id", goal.ID),
			attribute.Int("goal.depth", depth),
		))
	defer span.End()

	p.publish(ctx, coord.EventPlan, goal.ID, map[string]any{"goal": description})

	specs, err := p.decomposer.Decompose(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecomposition, err)
	}

	subtasks := make([]*Subtask, 0, len(specs))
	for _, spec := range specs {
		assignment := p.selector.Select(spec.Action)
		subtasks = append(subtasks, newSubtask(goal.ID, spec, assignment))
	}

	p.logger.Info(ctx, "goal decomposed",
		zap.Int("subtasks", len(subtasks)),
		zap.Int("depth", depth))

	// Sibling subtasks run with bounded fan-out. A subtask failure must
	// not cancel its siblings, so outcomes are collected rather than
	// propagated as errors.
	outcomes := make([]Outcome, len(subtasks))
	mem := newRejectionMemory()
	childAncestors := append(slices.Clone(ancestors), norm)

	var g errgroup.Group
	g.SetLimit(p.cfg.FanoutLimit)
	for i, st := range subtasks {
		g.Go(func() error {
			outcomes[i] = p.runSubtask(ctx, st, mem, childAncestors, depth)
			return nil
		})
	}
	_ = g.Wait()

	result := &GoalResult{
		GoalID:      goal.ID,
		Description: description,
		Status:      GoalCompleted,
		Outcomes:    outcomes,
	}
	for _, o := range outcomes {
		if o.Status != StatusCompleted {
			result.Status = GoalFailed
			break
		}
	}
	goal.Status = result.Status
	goalsTotal.WithLabelValues(string(result.Status)).Inc()

	// Aggregate completion event for the goal, published even when the
	// driving context was cancelled mid-flight.
	p.publish(context.WithoutCancel(ctx), coord.EventComplete, goal.ID, map[string]any{
		"goal":     description,
		"status":   result.Status,
		"failures": result.Failures(),
	})

	p.logger.Info(ctx, "goal finished", zap.String("status", string(result.Status)))
	return result, nil
}

// checkGoalText rejects empty or oversized goal text before planning.
func (p *Planner) checkGoalText(description string) error {
	if description == "" {
		return fmt.Errorf("%w: goal text is empty", ErrDecomposition)
	}
	if len(description) > p.cfg.MaxGoalLength {
		return fmt.Errorf("%w: goal text exceeds %d bytes", ErrDecomposition, p.cfg.MaxGoalLength)
	}
	return nil
}

// runSubtask drives one subtask to a terminal state and returns its
// outcome. Never returns an error: failures are encoded in the outcome.
func (p *Planner) runSubtask(ctx context.Context, st *Subtask, mem *rejectionMemory, ancestors []string, depth int) Outcome {
	ctx = logging.WithSubtaskID(ctx, st.ID)

	// Nested goals are planned recursively through the same guards.
	if st.subGoal != "" {
		return p.runNestedGoal(ctx, st, ancestors, depth)
	}

	for {
		// Cancellation hits Pending subtasks immediately.
		if ctx.Err() != nil {
			return p.terminate(ctx, st, StatusFailed, ReasonCancelled, "")
		}

		// Permanent safety rejections never reach the gateway again.
		if reason, ok := mem.rejected(st.Action); ok {
			p.publish(ctx, coord.EventRejected, st.ID, map[string]any{"reason": reason, "resubmission": true})
			return p.terminate(ctx, st, StatusRejected, reason, "")
		}

		if err := st.advance(StatusValidating); err != nil {
			return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure, err.Error())
		}

		verdict, err := p.validateWithRetry(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				return p.terminate(ctx, st, StatusFailed, ReasonCancelled, "")
			}
			p.logger.Warn(ctx, "validator unavailable", zap.Error(err))
			p.publish(ctx, coord.EventRejected, st.ID, map[string]any{"reason": ReasonValidatorUnavailable})
			return p.terminate(ctx, st, StatusRejected, ReasonValidatorUnavailable, "")
		}
		st.Verdict = &verdict

		switch verdict.Decision {
		case heart.Accept:
			p.publish(ctx, coord.EventValidated, st.ID, verdict)
			if err := st.advance(StatusValidated); err != nil {
				return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure, err.Error())
			}
			return p.executeSubtask(ctx, st)

		case heart.Reject:
			p.publish(ctx, coord.EventRejected, st.ID, verdict)
			if verdict.NonRetryable() {
				mem.remember(st.Action, verdict.Reason)
			}
			return p.terminate(ctx, st, StatusRejected, verdict.Reason, "")

		case heart.NeedsRefactor:
			p.publish(ctx, coord.EventNeedsRefactor, st.ID, verdict)
			if err := st.advance(StatusNeedsRefactor); err != nil {
				return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure, err.Error())
			}

			st.refactorCount++
			if st.refactorCount > p.cfg.RefactorRetryLimit {
				return p.terminate(ctx, st, StatusRejected, ReasonRefactorBudgetExhausted, "")
			}
			if p.refiner == nil {
				return p.terminate(ctx, st, StatusRejected, verdict.Reason, "")
			}

			revised, err := p.refiner.Refine(ctx, st.Action, verdict)
			if err != nil || revised == st.Action {
				// An unmodified resubmission is rejected deterministically.
				return p.terminate(ctx, st, StatusRejected, verdict.Reason, "")
			}

			p.logger.Info(ctx, "action revised after refactor verdict")
			st.Action = revised
			if err := st.advance(StatusPending); err != nil {
				return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure, err.Error())
			}

		default:
			return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure,
				fmt.Sprintf("unknown decision %q", verdict.Decision))
		}
	}
}

// runNestedGoal plans a subtask's nested goal recursively, mapping the
// nested goal's terminal state onto the subtask.
func (p *Planner) runNestedGoal(ctx context.Context, st *Subtask, ancestors []string, depth int) Outcome {
	result, err := p.planGoal(ctx, st.subGoal, st.GoalID, ancestors, depth+1)
	if err != nil {
		reason := ReasonDecomposition
		switch {
		case errors.Is(err, ErrCycleDetected):
			reason = ReasonCycleDetected
		case errors.Is(err, ErrDepthExceeded):
			reason = ReasonDepthExceeded
		}
		return p.terminate(ctx, st, StatusFailed, reason, err.Error())
	}

	if result.Status == GoalCompleted {
		return p.terminate(ctx, st, StatusCompleted, "", fmt.Sprintf("nested goal %s completed", result.GoalID))
	}
	return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure,
		fmt.Sprintf("nested goal %s failed", result.GoalID))
}

// validateWithRetry calls the gateway, retrying transient errors with
// exponential backoff up to the configured attempt cap. A verdict, even
// a rejection, is never retried.
func (p *Planner) validateWithRetry(ctx context.Context, st *Subtask) (heart.Verdict, error) {
	ctx, span := p.tracer.Start(ctx, "planner.validate",
		trace.WithAttributes(attribute.String("subtask.id", st.ID)))
	defer span.End()

	return backoff.Retry(ctx, func() (heart.Verdict, error) {
		return p.gateway.Validate(ctx, st.Action, st.Intent, st.Complexity)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(p.cfg.ValidatorAttempts)),
	)
}

// executeSubtask delegates an accepted subtask to the executor, honoring
// cooperative cancellation with the configured grace period.
func (p *Planner) executeSubtask(ctx context.Context, st *Subtask) Outcome {
	if err := st.advance(StatusExecuting); err != nil {
		return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure, err.Error())
	}
	p.publish(ctx, coord.EventExecute, st.ID, map[string]any{
		"action":    st.Action,
		"archetype": st.Archetype,
	})

	execCtx, span := p.tracer.Start(ctx, "planner.execute",
		trace.WithAttributes(
			attribute.String("subtask.id", st.ID),
			attribute.String("subtask.archetype", string(st.Archetype)),
		))
	defer span.End()

	type execResult struct {
		output string
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		output, err := p.executor.Execute(execCtx, st)
		done <- execResult{output: output, err: err}
	}()

	var res execResult
	select {
	case res = <-done:
	case <-ctx.Done():
		// In-flight execution gets a grace period to acknowledge.
		grace := time.NewTimer(p.cfg.CancelGrace)
		defer grace.Stop()
		select {
		case res = <-done:
		case <-grace.C:
			return p.terminate(ctx, st, StatusFailed, ReasonCancellationTimeout, "")
		}
	}

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded) {
			return p.terminate(ctx, st, StatusFailed, ReasonCancelled, "")
		}
		p.logger.Warn(ctx, "execution failed", zap.Error(res.err))
		return p.terminate(ctx, st, StatusFailed, ReasonExecutionFailure, res.err.Error())
	}

	outcome := p.terminate(ctx, st, StatusCompleted, "", res.output)
	p.publish(context.WithoutCancel(ctx), coord.EventTaskDone, st.ID, map[string]any{
		"action": st.Action,
		"output": res.output,
	})
	return outcome
}

// terminate moves the subtask into a terminal state, records the result
// exactly once in the store, and emits the completion event. Recording
// uses an uncancellable context so a cancelled goal still persists its
// terminal facts.
func (p *Planner) terminate(ctx context.Context, st *Subtask, status Status, reason, output string) Outcome {
	// Advance through the state machine when possible; forced terminal
	// states (cancellation of a pending subtask) assign directly.
	if st.Status != status {
		if err := st.advance(status); err != nil {
			st.Status = status
		}
	}
	st.Reason = reason
	subtasksTotal.WithLabelValues(string(status)).Inc()

	recordCtx := context.WithoutCancel(ctx)
	record := ResultRecord{
		SubtaskID:   st.ID,
		GoalID:      st.GoalID,
		Action:      st.Action,
		Archetype:   st.Archetype,
		Status:      status,
		Reason:      reason,
		Output:      output,
		CompletedAt: time.Now().UTC(),
	}
	adopted := p.record(recordCtx, st, &record)

	p.publish(recordCtx, coord.EventComplete, st.ID, record)

	return Outcome{
		SubtaskID: st.ID,
		Action:    st.Action,
		Archetype: st.Archetype,
		Status:    adopted.Status,
		Reason:    adopted.Reason,
		Output:    adopted.Output,
	}
}

// record writes the result record with compare-and-swap semantics. On a
// write conflict the existing record wins: the planner re-reads and
// adopts it rather than retrying blindly.
func (p *Planner) record(ctx context.Context, st *Subtask, record *ResultRecord) *ResultRecord {
	data, err := json.Marshal(record)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal result record", zap.Error(err))
		return record
	}

	key := coord.ResultKey(st.ID)
	err = p.store.Put(ctx, key, data)
	if err == nil {
		return record
	}

	if errors.Is(err, coord.ErrWriteConflict) {
		storeConflictsTotal.Inc()
		existing, getErr := p.store.Get(ctx, key)
		if getErr == nil {
			var winner ResultRecord
			if unmarshalErr := json.Unmarshal(existing, &winner); unmarshalErr == nil {
				p.logger.Warn(ctx, "result already recorded, adopting winner",
					zap.String("status", string(winner.Status)))
				return &winner
			}
		}
		p.logger.Error(ctx, "write conflict but winner unreadable", zap.Error(getErr))
		return record
	}

	p.logger.Error(ctx, "failed to record result", zap.Error(err))
	return record
}

// publish emits a lifecycle event, best-effort. The store remains the
// record of truth; a failed notification is logged and planning
// continues.
func (p *Planner) publish(ctx context.Context, typ coord.EventType, taskID string, payload any) {
	if err := p.bus.Publish(ctx, p.channel, coord.NewEvent(typ, taskID, payload)); err != nil {
		p.logger.Warn(ctx, "failed to publish event",
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}
