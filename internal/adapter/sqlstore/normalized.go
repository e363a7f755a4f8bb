package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
)

// Exists reports whether a normalized record is stored for the garage-hour.
func (s *Store) Exists(ctx context.Context, garageID int, hour domain.HourBucket) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT 1 FROM normalized_parking_data
		WHERE garage_id = ? AND hour_start = ?
		LIMIT 1`),
		garageID, s.timeArg(hour.Start())).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlstore: exists garage %d hour %s: %w", garageID, hour, err)
	}
	return true, nil
}

// Put inserts rec. It does not check for an existing record.
func (s *Store) Put(ctx context.Context, rec domain.NormalizedRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO normalized_parking_data (garage_id, available, capacity, hour_start)
		VALUES (?, ?, ?, ?)`),
		rec.GarageID, rec.Available, rec.Capacity, s.timeArg(rec.Hour.Start()))
	if err != nil {
		return fmt.Errorf("sqlstore: put %s: %w", rec.Key(), err)
	}
	return nil
}

// Get returns the stored record for the garage-hour. The bool is false when
// there is none.
func (s *Store) Get(ctx context.Context, garageID int, hour domain.HourBucket) (domain.NormalizedRecord, bool, error) {
	const query = "normalized record"
	var (
		available, capacity sql.NullInt64
		hourStart           any
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT available, capacity, hour_start
		FROM normalized_parking_data
		WHERE garage_id = ? AND hour_start = ?
		ORDER BY id
		LIMIT 1`),
		garageID, s.timeArg(hour.Start())).Scan(&available, &capacity, &hourStart)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NormalizedRecord{}, false, nil
	}
	if err != nil {
		return domain.NormalizedRecord{}, false, fmt.Errorf("sqlstore: get garage %d hour %s: %w", garageID, hour, err)
	}

	rec := domain.NormalizedRecord{GarageID: garageID}
	if rec.Available, err = scanCount(query, "available", available); err != nil {
		return domain.NormalizedRecord{}, false, err
	}
	if rec.Capacity, err = scanCount(query, "capacity", capacity); err != nil {
		return domain.NormalizedRecord{}, false, err
	}
	start, err := scanTime(query, "hour_start", hourStart)
	if err != nil {
		return domain.NormalizedRecord{}, false, err
	}
	rec.Hour = domain.TruncateToHour(start)
	return rec, true, nil
}
