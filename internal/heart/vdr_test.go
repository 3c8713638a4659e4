package heart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignlabs/sovereignd/internal/coord"
)

type stubStore struct {
	m   map[string][]byte
	err error
}

func (s *stubStore) Put(context.Context, string, []byte) error { return nil }

func (s *stubStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.m[key]
	if !ok {
		return nil, coord.ErrNotFound
	}
	return v, nil
}

func (s *stubStore) ListKeys(context.Context, string) ([]string, error) { return nil, nil }

func TestStoreSource_Sample(t *testing.T) {
	source := NewStoreSource(&stubStore{m: map[string][]byte{
		coord.MetricFunctionalValue: []byte("3.0"),
		coord.MetricCodeComplexity:  []byte("2.0"),
	}})

	functional, complexity, err := source.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, functional)
	assert.Equal(t, 2.0, complexity)
	assert.Equal(t, 1.5, VDR(functional, complexity))
}

func TestStoreSource_MissingKeysDefaultHealthy(t *testing.T) {
	source := NewStoreSource(&stubStore{m: map[string][]byte{}})

	functional, complexity, err := source.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, functional)
	assert.Equal(t, 1.0, complexity)
}

func TestStoreSource_UnreadableMetricTreatedAsUnset(t *testing.T) {
	source := NewStoreSource(&stubStore{m: map[string][]byte{
		coord.MetricFunctionalValue: []byte("not a number"),
	}})

	functional, _, err := source.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, functional)
}

func TestStoreSource_StoreErrorSurfaced(t *testing.T) {
	source := NewStoreSource(&stubStore{err: errors.New("nats down")})

	_, _, err := source.Sample(context.Background())
	assert.Error(t, err)
}
