package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type memRaw struct {
	garages   []domain.Garage
	samples   []domain.RawSample
	sampleErr error
	fetches   int
}

func (m *memRaw) MinTimestamp(_ context.Context) (time.Time, error) {
	if len(m.samples) == 0 {
		return time.Time{}, domain.ErrEmptyDataset
	}
	ts := m.samples[0].Timestamp
	for _, s := range m.samples[1:] {
		if s.Timestamp.Before(ts) {
			ts = s.Timestamp
		}
	}
	return ts, nil
}

func (m *memRaw) MaxTimestamp(_ context.Context) (time.Time, error) {
	if len(m.samples) == 0 {
		return time.Time{}, domain.ErrEmptyDataset
	}
	ts := m.samples[0].Timestamp
	for _, s := range m.samples[1:] {
		if s.Timestamp.After(ts) {
			ts = s.Timestamp
		}
	}
	return ts, nil
}

func (m *memRaw) ListGarages(_ context.Context) ([]domain.Garage, error) {
	return m.garages, nil
}

func (m *memRaw) SamplesFor(_ context.Context, garageID int, hour domain.HourBucket) ([]domain.RawSample, error) {
	m.fetches++
	if m.sampleErr != nil {
		return nil, m.sampleErr
	}
	var out []domain.RawSample
	for _, s := range m.samples {
		if s.GarageID == garageID && hour.Covers(s.Timestamp) {
			out = append(out, s)
		}
	}
	return out, nil
}

// add appends n samples for the garage starting at the given timestamp, one
// minute apart.
func (m *memRaw) add(t *testing.T, garageID int, from string, n int, available int) {
	t.Helper()
	ts := at(t, from)
	for i := range n {
		m.samples = append(m.samples, domain.RawSample{
			GarageID:  garageID,
			Available: available,
			Capacity:  100,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
		})
	}
}

type memStore struct {
	records   map[string]domain.NormalizedRecord
	order     []string
	existsErr error
	putErr    error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.NormalizedRecord)}
}

func (m *memStore) Exists(_ context.Context, garageID int, hour domain.HourBucket) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.records[domain.RecordKey(garageID, hour)]
	return ok, nil
}

func (m *memStore) Put(_ context.Context, rec domain.NormalizedRecord) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.records[rec.Key()] = rec
	m.order = append(m.order, rec.Key())
	return nil
}

type recordingPublisher struct {
	published []domain.NormalizedRecord
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, rec domain.NormalizedRecord) error {
	p.published = append(p.published, rec)
	return p.err
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := domain.ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}

func twoGarages() []domain.Garage {
	return []domain.Garage{{ID: 1, Name: "North"}, {ID: 2, Name: "South"}}
}
