package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type goalCtxKey struct{}
type subtaskCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if goalID := GoalIDFromContext(ctx); goalID != "" {
		fields = append(fields, zap.String("goal_id", goalID))
	}
	if subtaskID := SubtaskIDFromContext(ctx); subtaskID != "" {
		fields = append(fields, zap.String("subtask_id", subtaskID))
	}

	return fields
}

// WithGoalID adds a goal identifier to context.
func WithGoalID(ctx context.Context, goalID string) context.Context {
	return context.WithValue(ctx, goalCtxKey{}, goalID)
}

// GoalIDFromContext extracts the goal identifier from context.
func GoalIDFromContext(ctx context.Context) string {
	if g, ok := ctx.Value(goalCtxKey{}).(string); ok {
		return g
	}
	return ""
}

// WithSubtaskID adds a subtask identifier to context.
func WithSubtaskID(ctx context.Context, subtaskID string) context.Context {
	return context.WithValue(ctx, subtaskCtxKey{}, subtaskID)
}

// SubtaskIDFromContext extracts the subtask identifier from context.
func SubtaskIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(subtaskCtxKey{}).(string); ok {
		return s
	}
	return ""
}
