package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// RawSource reads the raw sample store.
type RawSource interface {
	MinTimestamp(ctx context.Context) (time.Time, error)
	MaxTimestamp(ctx context.Context) (time.Time, error)
	ListGarages(ctx context.Context) ([]domain.Garage, error)
	SamplesFor(ctx context.Context, garageID int, hour domain.HourBucket) ([]domain.RawSample, error)
}

// NormalizedStore persists normalized records keyed by garage and hour.
// Put does not check for duplicates; callers check Exists first.
type NormalizedStore interface {
	Exists(ctx context.Context, garageID int, hour domain.HourBucket) (bool, error)
	Put(ctx context.Context, rec domain.NormalizedRecord) error
}

// RecordGetter looks up a single normalized record.
type RecordGetter interface {
	Get(ctx context.Context, garageID int, hour domain.HourBucket) (domain.NormalizedRecord, bool, error)
}

// Publisher announces newly persisted records.
type Publisher interface {
	Publish(ctx context.Context, rec domain.NormalizedRecord) error
}

// ExistsRecord reports whether a record for rec's garage and hour is stored.
func ExistsRecord(ctx context.Context, store NormalizedStore, rec domain.NormalizedRecord) (bool, error) {
	return store.Exists(ctx, rec.GarageID, rec.Hour)
}

// ErrInvalidRange means an explicit range run was missing a bound.
var ErrInvalidRange = errors.New("invalid range: start and end hours are required")

// Mode names a kind of reconciliation run.
type Mode string

const (
	ModeFull   Mode = "full"
	ModeRecent Mode = "recent"
	ModeRange  Mode = "range"
)

// RunStats summarizes one reconciliation run.
type RunStats struct {
	RunID           string            `json:"runId"`
	Mode            Mode              `json:"mode"`
	Start           domain.HourBucket `json:"start"`
	End             domain.HourBucket `json:"end"`
	Buckets         int               `json:"buckets"`
	Checked         int               `json:"checked"`
	Existing        int               `json:"existing"`
	Inserted        int               `json:"inserted"`
	Insufficient    int               `json:"insufficient"`
	PublishErrors   int               `json:"publishErrors"`
	DurationSeconds float64           `json:"durationSeconds"`
}

// Settings tunes a Reconciler.
type Settings struct {
	// MinSamples is the sample count an hour needs to be normalized.
	MinSamples int
	// RecentWindow is how far back from the newest sample a recent run looks.
	RecentWindow time.Duration
	// Publisher is optional.
	Publisher Publisher
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Reconciler brings the normalized store up to date with the raw store.
// Runs are sequential; concurrent runs against one store may race between
// Exists and Put, which the scheduler prevents within a process.
type Reconciler struct {
	raw       RawSource
	store     NormalizedStore
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	minSamples   int
	recentWindow time.Duration

	ready atomic.Bool
}

// New creates a Reconciler over the given stores.
func New(raw RawSource, store NormalizedStore, s Settings, logger *slog.Logger, metrics *observability.Metrics) *Reconciler {
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		raw:          raw,
		store:        store,
		publisher:    s.Publisher,
		logger:       logger,
		metrics:      metrics,
		clock:        clock,
		minSamples:   s.MinSamples,
		recentWindow: s.RecentWindow,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (r *Reconciler) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no normalization run has completed yet")
	}
	return nil
}

// FullBackfill normalizes every hour from the oldest sample up to, but not
// including, the hour of the newest sample.
func (r *Reconciler) FullBackfill(ctx context.Context) (RunStats, error) {
	began := r.clock.Now()
	minTS, err := r.raw.MinTimestamp(ctx)
	if err != nil {
		return r.failBeforeRun(ModeFull, began, fmt.Errorf("determine range: %w", err))
	}
	maxTS, err := r.raw.MaxTimestamp(ctx)
	if err != nil {
		return r.failBeforeRun(ModeFull, began, fmt.Errorf("determine range: %w", err))
	}
	limit := domain.TruncateToHour(maxTS)
	return r.run(ctx, ModeFull, began, domain.TruncateToHour(minTS), limit, limit)
}

// RecentWindow normalizes the hours within the recent window before the
// hour of the newest sample.
func (r *Reconciler) RecentWindow(ctx context.Context) (RunStats, error) {
	began := r.clock.Now()
	maxTS, err := r.raw.MaxTimestamp(ctx)
	if err != nil {
		return r.failBeforeRun(ModeRecent, began, fmt.Errorf("determine range: %w", err))
	}
	limit := domain.TruncateToHour(maxTS)
	return r.run(ctx, ModeRecent, began, domain.TruncateToHour(maxTS.Add(-r.recentWindow)), limit, limit)
}

// Range normalizes [start, end) in the direction EnumerateRange infers.
// Buckets at or after the hour of the newest sample are skipped since that
// hour may still be receiving samples.
func (r *Reconciler) Range(ctx context.Context, start, end domain.HourBucket) (RunStats, error) {
	began := r.clock.Now()
	if start.IsZero() || end.IsZero() {
		return r.failBeforeRun(ModeRange, began, ErrInvalidRange)
	}
	maxTS, err := r.raw.MaxTimestamp(ctx)
	if err != nil {
		return r.failBeforeRun(ModeRange, began, fmt.Errorf("determine range: %w", err))
	}
	return r.run(ctx, ModeRange, began, start, end, domain.TruncateToHour(maxTS))
}

// failBeforeRun records a run that failed before any bucket was visited.
func (r *Reconciler) failBeforeRun(mode Mode, began time.Time, err error) (RunStats, error) {
	return r.finish(r.logger.With("mode", string(mode)), RunStats{Mode: mode}, began, err)
}

func (r *Reconciler) run(ctx context.Context, mode Mode, began time.Time, start, end, limit domain.HourBucket) (RunStats, error) {
	stats := RunStats{
		RunID: uuid.NewString(),
		Mode:  mode,
		Start: start,
		End:   end,
	}
	logger := r.logger.With("run_id", stats.RunID, "mode", string(mode))
	logger.Info("normalization run started", "start", start.String(), "end", end.String())

	garages, err := r.raw.ListGarages(ctx)
	if err != nil {
		return r.finish(logger, stats, began, fmt.Errorf("list garages: %w", err))
	}

	for hour := range domain.EnumerateRange(start, end) {
		if hour.Compare(limit) >= 0 {
			continue
		}
		stats.Buckets++
		for _, g := range garages {
			if err := ctx.Err(); err != nil {
				return r.finish(logger, stats, began, err)
			}
			if err := r.reconcile(ctx, logger, g.ID, hour, &stats); err != nil {
				return r.finish(logger, stats, began, fmt.Errorf("garage %d hour %s: %w", g.ID, hour, err))
			}
		}
	}

	r.ready.Store(true)
	return r.finish(logger, stats, began, nil)
}

// reconcile handles one garage-hour pair.
func (r *Reconciler) reconcile(ctx context.Context, logger *slog.Logger, garageID int, hour domain.HourBucket, stats *RunStats) error {
	stats.Checked++

	exists, err := r.store.Exists(ctx, garageID, hour)
	if err != nil {
		return fmt.Errorf("check existing record: %w", err)
	}
	if exists {
		stats.Existing++
		r.metrics.RecordsExisting.Inc()
		return nil
	}

	samples, err := r.raw.SamplesFor(ctx, garageID, hour)
	if err != nil {
		return fmt.Errorf("fetch samples: %w", err)
	}

	rec, err := domain.Aggregate(garageID, hour, samples, r.minSamples)
	if err != nil {
		if domain.IsInsufficientData(err) {
			stats.Insufficient++
			r.metrics.InsufficientData.Inc()
			logger.Debug("skipping hour with too few samples", "garage_id", garageID, "hour", hour.String(), "samples", len(samples))
			return nil
		}
		return err
	}

	if err := r.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	stats.Inserted++
	r.metrics.RecordsInserted.Inc()

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			stats.PublishErrors++
			r.metrics.PublishErrors.Inc()
			logger.Warn("publish normalized record failed", "garage_id", garageID, "hour", hour.String(), "error", err)
		}
	}
	return nil
}

func (r *Reconciler) finish(logger *slog.Logger, stats RunStats, began time.Time, err error) (RunStats, error) {
	elapsed := r.clock.Since(began)
	stats.DurationSeconds = elapsed.Seconds()

	mode := string(stats.Mode)
	r.metrics.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues(mode, observability.OutcomeFailure).Inc()
		logger.Error("normalization run failed", "error", err,
			"checked", stats.Checked, "inserted", stats.Inserted)
		return stats, err
	}

	r.metrics.RunsTotal.WithLabelValues(mode, observability.OutcomeSuccess).Inc()
	r.metrics.LastSuccess.WithLabelValues(mode).Set(float64(r.clock.Now().Unix()))
	logger.Info("normalization run complete",
		"buckets", stats.Buckets,
		"checked", stats.Checked,
		"existing", stats.Existing,
		"inserted", stats.Inserted,
		"insufficient", stats.Insufficient,
		"duration", elapsed,
	)
	return stats, nil
}
