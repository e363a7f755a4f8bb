// Package scheduler triggers normalization runs on a timer and on demand,
// keeping at most one run in flight per process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/couchcryptid/parking-norm-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// ErrRunInProgress is returned when a trigger overlaps a running run.
var ErrRunInProgress = errors.New("a normalization run is already in progress")

// Runner executes normalization runs.
type Runner interface {
	FullBackfill(ctx context.Context) (pipeline.RunStats, error)
	RecentWindow(ctx context.Context) (pipeline.RunStats, error)
	Range(ctx context.Context, start, end domain.HourBucket) (pipeline.RunStats, error)
}

// Settings controls the periodic runs.
type Settings struct {
	RecentInterval  time.Duration
	FullInterval    time.Duration
	BackfillOnStart bool
}

// Scheduler serializes runs and fires them periodically.
type Scheduler struct {
	runner   Runner
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	// running guards against overlapping runs in this process only.
	running sync.Mutex
}

// New creates a Scheduler.
func New(runner Runner, settings Settings, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		runner:   runner,
		settings: settings,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Trigger runs the given mode now. It returns ErrRunInProgress without
// waiting when another run holds the slot.
func (s *Scheduler) Trigger(ctx context.Context, mode pipeline.Mode) (pipeline.RunStats, error) {
	switch mode {
	case pipeline.ModeFull:
		return s.exclusive(mode, func() (pipeline.RunStats, error) { return s.runner.FullBackfill(ctx) })
	case pipeline.ModeRecent:
		return s.exclusive(mode, func() (pipeline.RunStats, error) { return s.runner.RecentWindow(ctx) })
	default:
		return pipeline.RunStats{}, fmt.Errorf("unknown run mode %q", mode)
	}
}

// TriggerRange runs an explicit range now, under the same exclusion as Trigger.
func (s *Scheduler) TriggerRange(ctx context.Context, start, end domain.HourBucket) (pipeline.RunStats, error) {
	return s.exclusive(pipeline.ModeRange, func() (pipeline.RunStats, error) {
		return s.runner.Range(ctx, start, end)
	})
}

func (s *Scheduler) exclusive(mode pipeline.Mode, run func() (pipeline.RunStats, error)) (pipeline.RunStats, error) {
	if !s.running.TryLock() {
		s.metrics.RunsTotal.WithLabelValues(string(mode), observability.OutcomeSkipped).Inc()
		return pipeline.RunStats{Mode: mode}, ErrRunInProgress
	}
	defer s.running.Unlock()

	s.metrics.RunInProgress.Set(1)
	defer s.metrics.RunInProgress.Set(0)
	return run()
}

// Run fires the periodic runs until ctx is cancelled. Failed runs are not
// retried early; the next tick is the retry.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"recent_interval", s.settings.RecentInterval,
		"full_interval", s.settings.FullInterval,
		"backfill_on_start", s.settings.BackfillOnStart,
	)

	if s.settings.BackfillOnStart {
		s.fire(ctx, pipeline.ModeFull)
	}

	recent := s.clock.NewTicker(s.settings.RecentInterval)
	defer recent.Stop()
	full := s.clock.NewTicker(s.settings.FullInterval)
	defer full.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-recent.Chan():
			s.fire(ctx, pipeline.ModeRecent)
		case <-full.Chan():
			s.fire(ctx, pipeline.ModeFull)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, mode pipeline.Mode) {
	_, err := s.Trigger(ctx, mode)
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Info("scheduled run skipped, another run is in progress", "mode", string(mode))
	}
	// Other failures are logged by the runner.
}
