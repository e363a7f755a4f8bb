// Package badger stores normalized records in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

var keyPrefix = []byte("norm/")

// Config holds BadgerDB settings.
type Config struct {
	// Path to the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory (for tests).
	InMemory bool
}

// Store implements pipeline.NormalizedStore and pipeline.RecordGetter.
// Records are keyed by their RecordKey and never rewritten.
type Store struct {
	db *badger.DB
}

// New opens the database.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithLogger(slogAdapter{logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Exists(ctx context.Context, garageID int, hour domain.HourBucket) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeKey(garageID, hour))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger: exists %s: %w", domain.RecordKey(garageID, hour), err)
	}
	return true, nil
}

func (s *Store) Put(ctx context.Context, rec domain.NormalizedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("badger: encode %s: %w", rec.Key(), err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(rec.GarageID, rec.Hour), value)
	})
	if err != nil {
		return fmt.Errorf("badger: put %s: %w", rec.Key(), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, garageID int, hour domain.HourBucket) (domain.NormalizedRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.NormalizedRecord{}, false, err
	}
	var rec domain.NormalizedRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(garageID, hour))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NormalizedRecord{}, false, nil
	}
	if err != nil {
		return domain.NormalizedRecord{}, false, fmt.Errorf("badger: get %s: %w", domain.RecordKey(garageID, hour), err)
	}
	if rec.Key() != domain.RecordKey(garageID, hour) {
		return domain.NormalizedRecord{}, false, &domain.MalformedResultError{
			Query:  "normalized record",
			Column: "key",
			Reason: fmt.Sprintf("stored record %s under key for %s", rec.Key(), domain.RecordKey(garageID, hour)),
		}
	}
	return rec, true, nil
}

// makeKey builds prefix + RecordKey, which is unique per garage-hour.
func makeKey(garageID int, hour domain.HourBucket) []byte {
	return append(append([]byte{}, keyPrefix...), domain.RecordKey(garageID, hour)...)
}

// slogAdapter routes badger's log output through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
