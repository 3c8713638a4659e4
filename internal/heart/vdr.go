package heart

import (
	"context"
	"errors"
	"strconv"

	"github.com/sovereignlabs/sovereignd/internal/coord"
)

// ValueSource supplies the inputs for the value-density ratio:
// functional value delivered and code complexity carried.
type ValueSource interface {
	Sample(ctx context.Context) (functional, complexity float64, err error)
}

// VDR computes functional value over complexity. A non-positive
// complexity yields zero, signalling an unmeasurable system.
func VDR(functional, complexity float64) float64 {
	if complexity <= 0 {
		return 0
	}
	return functional / complexity
}

// StaticSource returns fixed metric values. The default source: a system
// with no recorded metrics is assumed healthy (ratio 1.0).
type StaticSource struct {
	Functional float64
	Complexity float64
}

// Sample returns the configured values.
func (s StaticSource) Sample(context.Context) (float64, float64, error) {
	return s.Functional, s.Complexity, nil
}

// StoreSource reads the metric keys from the coordination store, falling
// back to 1.0 for keys that were never written.
type StoreSource struct {
	store coord.Store
}

// NewStoreSource creates a source backed by the coordination store.
func NewStoreSource(store coord.Store) *StoreSource {
	return &StoreSource{store: store}
}

// Sample reads both metric keys. Missing keys default to 1.0; a store
// error is surfaced so the gateway can report degraded health.
func (s *StoreSource) Sample(ctx context.Context) (float64, float64, error) {
	functional, err := s.readMetric(ctx, coord.MetricFunctionalValue)
	if err != nil {
		return 0, 0, err
	}
	complexity, err := s.readMetric(ctx, coord.MetricCodeComplexity)
	if err != nil {
		return 0, 0, err
	}
	return functional, complexity, nil
}

func (s *StoreSource) readMetric(ctx context.Context, key string) (float64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, coord.ErrNotFound) {
			return 1.0, nil
		}
		return 0, err
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 1.0, nil // unreadable metric treated as unset
	}
	return v, nil
}
