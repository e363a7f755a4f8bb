package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingStore struct {
	records     map[string]domain.NormalizedRecord
	existsCalls int
	err         error
}

func newCountingStore() *countingStore {
	return &countingStore{records: make(map[string]domain.NormalizedRecord)}
}

func (m *countingStore) Exists(_ context.Context, garageID int, hour domain.HourBucket) (bool, error) {
	m.existsCalls++
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.records[domain.RecordKey(garageID, hour)]
	return ok, nil
}

func (m *countingStore) Put(_ context.Context, rec domain.NormalizedRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records[rec.Key()] = rec
	return nil
}

func (m *countingStore) Get(_ context.Context, garageID int, hour domain.HourBucket) (domain.NormalizedRecord, bool, error) {
	rec, ok := m.records[domain.RecordKey(garageID, hour)]
	return rec, ok, nil
}

func newTestStore(t *testing.T, inner *countingStore) (*Store, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	s, err := New(inner, 100, metrics)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, metrics
}

var hour10 = domain.MustParseHourBucket("2023-06-01 10")

func TestStore_ReadAfterWrite(t *testing.T) {
	inner := newCountingStore()
	s, metrics := newTestStore(t, inner)
	ctx := context.Background()

	ok, err := s.Exists(ctx, 1, hour10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, domain.NormalizedRecord{GarageID: 1, Hour: hour10}))

	ok, err = s.Exists(ctx, 1, hour10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, inner.existsCalls, "the hit should not reach the inner store")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cache.WithLabelValues("miss")), 0)
}

func TestStore_MissesAreNotCached(t *testing.T) {
	inner := newCountingStore()
	s, _ := newTestStore(t, inner)
	ctx := context.Background()

	_, _ = s.Exists(ctx, 1, hour10)
	_, _ = s.Exists(ctx, 1, hour10)
	assert.Equal(t, 2, inner.existsCalls)

	// A record written behind the cache's back is still found.
	inner.records[domain.RecordKey(1, hour10)] = domain.NormalizedRecord{GarageID: 1, Hour: hour10}
	ok, err := s.Exists(ctx, 1, hour10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_PositiveLookupIsCached(t *testing.T) {
	inner := newCountingStore()
	inner.records[domain.RecordKey(2, hour10)] = domain.NormalizedRecord{GarageID: 2, Hour: hour10}
	s, _ := newTestStore(t, inner)
	ctx := context.Background()

	for range 3 {
		ok, err := s.Exists(ctx, 2, hour10)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.existsCalls)
}

func TestStore_DifferentKeysMiss(t *testing.T) {
	inner := newCountingStore()
	s, _ := newTestStore(t, inner)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.NormalizedRecord{GarageID: 1, Hour: hour10}))

	ok, err := s.Exists(ctx, 1, hour10.Next())
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Exists(ctx, 2, hour10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ErrorsPassThrough(t *testing.T) {
	inner := newCountingStore()
	inner.err = errors.New("db down")
	s, _ := newTestStore(t, inner)
	ctx := context.Background()

	_, err := s.Exists(ctx, 1, hour10)
	require.ErrorIs(t, err, inner.err)

	err = s.Put(ctx, domain.NormalizedRecord{GarageID: 1, Hour: hour10})
	require.ErrorIs(t, err, inner.err)

	inner.err = nil
	ok, err := s.Exists(ctx, 1, hour10)
	require.NoError(t, err)
	assert.False(t, ok, "a failed put must not be remembered")
}

func TestStore_Get(t *testing.T) {
	inner := newCountingStore()
	s, _ := newTestStore(t, inner)
	ctx := context.Background()

	rec := domain.NormalizedRecord{GarageID: 1, Available: 4, Capacity: 100, Hour: hour10}
	require.NoError(t, s.Put(ctx, rec))

	got, ok, err := s.Get(ctx, 1, hour10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, got.Available)

	_, ok, err = s.Get(ctx, 1, hour10.Next())
	require.NoError(t, err)
	assert.False(t, ok)
}
