// Package cache puts an in-memory existence cache in front of a normalized
// record store.
package cache

import (
	"context"
	"fmt"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/couchcryptid/parking-norm-etl/internal/pipeline"
	"github.com/dgraph-io/ristretto/v2"
)

// Store wraps a normalized store and remembers which records exist.
// Only positive answers are cached: records are never deleted, so a cached
// hit can not go stale, while a miss is always re-checked.
type Store struct {
	inner   pipeline.NormalizedStore
	seen    *ristretto.Cache[string, struct{}]
	metrics *observability.Metrics
}

// New creates a cache decorator holding up to maxEntries keys.
func New(inner pipeline.NormalizedStore, maxEntries int, metrics *observability.Metrics) (*Store, error) {
	seen, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create existence cache: %w", err)
	}
	return &Store{inner: inner, seen: seen, metrics: metrics}, nil
}

func (s *Store) Exists(ctx context.Context, garageID int, hour domain.HourBucket) (bool, error) {
	key := domain.RecordKey(garageID, hour)
	if _, ok := s.seen.Get(key); ok {
		s.metrics.Cache.WithLabelValues("hit").Inc()
		return true, nil
	}
	s.metrics.Cache.WithLabelValues("miss").Inc()

	ok, err := s.inner.Exists(ctx, garageID, hour)
	if err != nil {
		return false, err
	}
	if ok {
		s.remember(key)
	}
	return ok, nil
}

func (s *Store) Put(ctx context.Context, rec domain.NormalizedRecord) error {
	if err := s.inner.Put(ctx, rec); err != nil {
		return err
	}
	s.remember(rec.Key())
	return nil
}

// Get passes through to the wrapped store when it supports lookups.
func (s *Store) Get(ctx context.Context, garageID int, hour domain.HourBucket) (domain.NormalizedRecord, bool, error) {
	getter, ok := s.inner.(pipeline.RecordGetter)
	if !ok {
		return domain.NormalizedRecord{}, false, fmt.Errorf("store %T does not support lookups", s.inner)
	}
	return getter.Get(ctx, garageID, hour)
}

// Close releases the cache's background goroutines.
func (s *Store) Close() {
	s.seen.Close()
}

// remember records key as existing. ristretto applies sets asynchronously;
// waiting keeps Exists read-after-write consistent with Put.
func (s *Store) remember(key string) {
	s.seen.Set(key, struct{}{}, 1)
	s.seen.Wait()
}
