package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Garage is a parking garage as listed in the garages table.
type Garage struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RawSample is one availability observation for a garage.
type RawSample struct {
	GarageID  int
	Available int
	Capacity  int
	Timestamp time.Time // in the package zone
}

// NormalizedRecord is the hourly summary of one garage.
type NormalizedRecord struct {
	GarageID  int
	Available int
	Capacity  int
	Hour      HourBucket
}

// Timestamp returns the record timestamp, the bucket with ":00:00" appended.
func (r NormalizedRecord) Timestamp() string {
	return r.Hour.Timestamp()
}

// Key returns the record's unique key.
func (r NormalizedRecord) Key() string {
	return RecordKey(r.GarageID, r.Hour)
}

// ID returns the record's stable hash id.
func (r NormalizedRecord) ID() uint64 {
	return RecordID(r.GarageID, r.Hour)
}

// RecordKey builds the unique key "<garageID>@<bucket>".
func RecordKey(garageID int, hour HourBucket) string {
	return strconv.Itoa(garageID) + "@" + hour.String()
}

// RecordID hashes RecordKey into a 64-bit id.
func RecordID(garageID int, hour HourBucket) uint64 {
	return xxhash.Sum64String(RecordKey(garageID, hour))
}

// normalizedWire is the JSON shape shared with downstream consumers.
type normalizedWire struct {
	GarageID  int    `json:"garageId"`
	Available int    `json:"available"`
	Capacity  int    `json:"capacity"`
	Timestamp string `json:"timestamp"`
}

func (r NormalizedRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(normalizedWire{
		GarageID:  r.GarageID,
		Available: r.Available,
		Capacity:  r.Capacity,
		Timestamp: r.Timestamp(),
	})
}

func (r *NormalizedRecord) UnmarshalJSON(data []byte) error {
	var w normalizedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	label, ok := strings.CutSuffix(w.Timestamp, ":00:00")
	if !ok {
		return fmt.Errorf("normalized timestamp %q is not on the hour", w.Timestamp)
	}
	hour, err := ParseHourBucket(label)
	if err != nil {
		return err
	}
	*r = NormalizedRecord{
		GarageID:  w.GarageID,
		Available: w.Available,
		Capacity:  w.Capacity,
		Hour:      hour,
	}
	return nil
}
