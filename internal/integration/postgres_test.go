//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/couchcryptid/parking-norm-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgresBackfillIsIdempotent runs the reconciler against a real
// PostgreSQL store twice and audits the result.
func TestPostgresBackfillIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	seedThreeHours(ctx, t, store)

	rec := pipeline.New(store, store, pipeline.Settings{MinSamples: 5, RecentWindow: 3 * time.Hour},
		discardLogger(), observability.NewMetricsForTesting())

	stats, err := rec.FullBackfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Buckets)
	assert.Equal(t, 5, stats.Inserted)
	assert.Equal(t, 1, stats.Insufficient)

	stats, err = rec.FullBackfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 5, stats.Existing)

	got, found, err := store.Get(ctx, 2, domain.MustParseHourBucket("2023-06-01 12"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, got.Available)
	assert.Equal(t, 100, got.Capacity)
	assert.Equal(t, "2023-06-01 12:00:00", got.Timestamp())

	report, err := pipeline.Audit(ctx, store, store, 5)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
}
