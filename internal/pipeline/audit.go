package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
)

// Finding is a garage-hour whose stored state disagrees with its samples.
type Finding struct {
	GarageID int
	Hour     domain.HourBucket
	Samples  int
}

func (f Finding) String() string {
	return fmt.Sprintf("garage %d hour %s (%d samples)", f.GarageID, f.Hour, f.Samples)
}

// AuditReport is the outcome of Audit.
type AuditReport struct {
	Start   domain.HourBucket
	Limit   domain.HourBucket
	Buckets int
	Checked int

	// Missing pairs had enough samples but no record.
	Missing []Finding
	// Unexpected pairs had a record without enough samples.
	Unexpected []Finding
	// Boundary pairs have a record for the hour of the newest sample.
	Boundary []Finding
}

// OK reports whether the audit found nothing wrong.
func (a AuditReport) OK() bool {
	return len(a.Missing) == 0 && len(a.Unexpected) == 0 && len(a.Boundary) == 0
}

// Audit compares the normalized store against the raw store over the
// full-backfill range. A pair must have a record exactly when it has at
// least minSamples samples (and at least one), and the hour of the newest
// sample must have no records.
func Audit(ctx context.Context, raw RawSource, store NormalizedStore, minSamples int) (AuditReport, error) {
	minTS, err := raw.MinTimestamp(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("determine range: %w", err)
	}
	maxTS, err := raw.MaxTimestamp(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("determine range: %w", err)
	}
	garages, err := raw.ListGarages(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("list garages: %w", err)
	}

	report := AuditReport{
		Start: domain.TruncateToHour(minTS),
		Limit: domain.TruncateToHour(maxTS),
	}

	for hour := range domain.EnumerateRange(report.Start, report.Limit) {
		report.Buckets++
		for _, g := range garages {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			samples, err := raw.SamplesFor(ctx, g.ID, hour)
			if err != nil {
				return report, fmt.Errorf("garage %d hour %s: %w", g.ID, hour, err)
			}
			exists, err := ExistsRecord(ctx, store, domain.NormalizedRecord{GarageID: g.ID, Hour: hour})
			if err != nil {
				return report, fmt.Errorf("garage %d hour %s: %w", g.ID, hour, err)
			}
			report.Checked++

			want := len(samples) > 0 && len(samples) >= minSamples
			switch {
			case want && !exists:
				report.Missing = append(report.Missing, Finding{GarageID: g.ID, Hour: hour, Samples: len(samples)})
			case !want && exists:
				report.Unexpected = append(report.Unexpected, Finding{GarageID: g.ID, Hour: hour, Samples: len(samples)})
			}
		}
	}

	for _, g := range garages {
		exists, err := store.Exists(ctx, g.ID, report.Limit)
		if err != nil {
			return report, fmt.Errorf("garage %d hour %s: %w", g.ID, report.Limit, err)
		}
		if exists {
			report.Boundary = append(report.Boundary, Finding{GarageID: g.ID, Hour: report.Limit})
		}
	}

	return report, nil
}
