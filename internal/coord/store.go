package coord

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrWriteConflict is returned by Put when the key already has a
	// value. Losers must re-read before deciding whether to retry.
	ErrWriteConflict = errors.New("coord: write conflict")

	// ErrNotFound is returned by Get for missing keys.
	ErrNotFound = errors.New("coord: key not found")
)

// Well-known key prefixes.
const (
	// ResultKeyPrefix prefixes one result record per subtask identifier.
	ResultKeyPrefix = "result."

	// MetricFunctionalValue and MetricCodeComplexity hold the inputs for
	// the heart's value-density ratio.
	MetricFunctionalValue = "metrics.functional_value"
	MetricCodeComplexity  = "metrics.code_complexity"
)

// ResultKey returns the store key for a subtask's result record.
func ResultKey(subtaskID string) string {
	return ResultKeyPrefix + subtaskID
}

// Store is durable key/value storage with create-only compare-and-swap
// writes. Exactly one writer wins when multiple planners race to record
// the same key.
type Store interface {
	// Put writes value under key. Returns ErrWriteConflict if the key
	// already holds a value.
	Put(ctx context.Context, key string, value []byte) error

	// Get reads the value under key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// ListKeys returns all keys with the given prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Bus is a best-effort publish/subscribe channel for lifecycle events.
// Delivery is at-least-once and does not include events published before
// subscription began.
type Bus interface {
	// Publish sends one event on the named channel.
	Publish(ctx context.Context, channel string, ev Event) error

	// Subscribe returns a lazy stream of events on the named channel.
	// The returned channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan Event, error)
}
