package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
)

// MinTimestamp returns the earliest sample time.
func (s *Store) MinTimestamp(ctx context.Context) (time.Time, error) {
	return s.boundary(ctx, "min timestamp", "SELECT MIN(recorded_at) FROM garage_monitor_data")
}

// MaxTimestamp returns the latest sample time.
func (s *Store) MaxTimestamp(ctx context.Context) (time.Time, error) {
	return s.boundary(ctx, "max timestamp", "SELECT MAX(recorded_at) FROM garage_monitor_data")
}

func (s *Store) boundary(ctx context.Context, name, query string) (time.Time, error) {
	var v any
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: %s: %w", name, err)
	}
	if v == nil {
		return time.Time{}, domain.ErrEmptyDataset
	}
	return scanTime(name, "recorded_at", v)
}

// ListGarages returns all garages ordered by id.
func (s *Store) ListGarages(ctx context.Context) ([]domain.Garage, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM garages ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list garages: %w", err)
	}
	defer rows.Close()

	var garages []domain.Garage
	for rows.Next() {
		var (
			id   sql.NullInt64
			name sql.NullString
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("sqlstore: scan garage: %w", err)
		}
		if !id.Valid {
			return nil, &domain.MalformedResultError{Query: "garages", Column: "id", Reason: "null value"}
		}
		garages = append(garages, domain.Garage{ID: int(id.Int64), Name: name.String})
	}
	return garages, rows.Err()
}

// SamplesFor returns the garage's samples inside the hour, oldest first.
// The window runs to the next bucket's start so the repeated hour on a
// fall-back day is returned whole.
func (s *Store) SamplesFor(ctx context.Context, garageID int, hour domain.HourBucket) ([]domain.RawSample, error) {
	const query = "samples"
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT available, capacity, recorded_at
		FROM garage_monitor_data
		WHERE garage_id = ? AND recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at, id`),
		garageID, s.timeArg(hour.Start()), s.timeArg(hour.Next().Start()))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: samples for garage %d: %w", garageID, err)
	}
	defer rows.Close()

	var samples []domain.RawSample
	for rows.Next() {
		var (
			available, capacity sql.NullInt64
			recordedAt          any
		)
		if err := rows.Scan(&available, &capacity, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan sample: %w", err)
		}
		sample := domain.RawSample{GarageID: garageID}
		if sample.Available, err = scanCount(query, "available", available); err != nil {
			return nil, err
		}
		if sample.Capacity, err = scanCount(query, "capacity", capacity); err != nil {
			return nil, err
		}
		if sample.Timestamp, err = scanTime(query, "recorded_at", recordedAt); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// InsertGarage adds a garage, ignoring duplicates of the id.
func (s *Store) InsertGarage(ctx context.Context, g domain.Garage) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		"INSERT INTO garages (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING"),
		g.ID, g.Name)
	if err != nil {
		return fmt.Errorf("sqlstore: insert garage %d: %w", g.ID, err)
	}
	return nil
}

// InsertSamples writes raw samples in one transaction.
func (s *Store) InsertSamples(ctx context.Context, samples []domain.RawSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		"INSERT INTO garage_monitor_data (garage_id, available, capacity, recorded_at) VALUES (?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("sqlstore: prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, smp.GarageID, smp.Available, smp.Capacity, s.timeArg(smp.Timestamp)); err != nil {
			return fmt.Errorf("sqlstore: insert sample for garage %d: %w", smp.GarageID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit samples: %w", err)
	}
	return nil
}
