package domain

import (
	"fmt"
	"iter"
	"time"
)

// Layouts of the civil-time strings exchanged with callers.
const (
	HourLayout      = "2006-01-02 15"
	TimestampLayout = "2006-01-02 15:04:05"
)

// HourBucket is a civil date-hour in the package zone with no minute or
// second component. The zero value is not a valid bucket.
type HourBucket struct {
	// start is the first instant carrying the bucket's label. On a fall-back
	// day the repeated hour spans two real hours starting here.
	start time.Time
}

// TruncateToHour returns the bucket covering t.
func TruncateToHour(t time.Time) HourBucket {
	return bucketAt(t.In(location))
}

// CeilToHour returns the bucket after the one covering t. It always rounds
// up, even when t sits exactly on an hour boundary; use TruncateToHour for
// idempotent rounding.
func CeilToHour(t time.Time) HourBucket {
	return TruncateToHour(t).Next()
}

// ParseHourBucket parses "YYYY-MM-DD HH" in the package zone.
func ParseHourBucket(s string) (HourBucket, error) {
	t, err := time.ParseInLocation(HourLayout, s, location)
	if err != nil {
		return HourBucket{}, fmt.Errorf("parse hour bucket %q: %w", s, err)
	}
	b := bucketAt(t)
	if b.String() != s {
		return HourBucket{}, fmt.Errorf("parse hour bucket %q: hour does not exist in %s", s, location)
	}
	return b, nil
}

// MustParseHourBucket is ParseHourBucket for constants and tests.
func MustParseHourBucket(s string) HourBucket {
	b, err := ParseHourBucket(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseTimestamp parses "YYYY-MM-DD HH:mm:ss" in the package zone.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatTimestamp renders t as "YYYY-MM-DD HH:mm:ss" in the package zone.
func FormatTimestamp(t time.Time) string {
	return t.In(location).Format(TimestampLayout)
}

// EnumerateRange yields buckets from start (inclusive) to end (exclusive).
// When start is after end the sequence steps backward one hour at a time,
// otherwise forward. The sequence is lazy and can be ranged over repeatedly.
func EnumerateRange(start, end HourBucket) iter.Seq[HourBucket] {
	return func(yield func(HourBucket) bool) {
		if start.IsZero() || end.IsZero() {
			return
		}
		if start.Compare(end) > 0 {
			for b := start; b.Compare(end) > 0; b = b.Prev() {
				if !yield(b) {
					return
				}
			}
			return
		}
		for b := start; b.Compare(end) < 0; b = b.Next() {
			if !yield(b) {
				return
			}
		}
	}
}

// bucketAt builds the bucket for a civil time already in the package zone.
func bucketAt(c time.Time) HourBucket {
	start := time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), 0, 0, 0, location)
	// time.Date may resolve an ambiguous hour to its second occurrence.
	if earlier := start.Add(-time.Hour); earlier.Format(HourLayout) == start.Format(HourLayout) {
		start = earlier
	}
	return HourBucket{start: start}
}

// Next returns the following bucket.
func (b HourBucket) Next() HourBucket {
	label := b.String()
	t := b.start.Add(time.Hour)
	for t.Format(HourLayout) == label {
		t = t.Add(time.Hour)
	}
	return bucketAt(t)
}

// Prev returns the preceding bucket.
func (b HourBucket) Prev() HourBucket {
	return bucketAt(b.start.Add(-time.Hour))
}

// Start returns the first instant of the bucket.
func (b HourBucket) Start() time.Time {
	return b.start
}

// Covers reports whether t falls inside the bucket.
func (b HourBucket) Covers(t time.Time) bool {
	return TruncateToHour(t).Equal(b)
}

// Compare orders buckets by calendar time.
func (b HourBucket) Compare(o HourBucket) int {
	return b.start.Compare(o.start)
}

// Equal reports whether both buckets have the same canonical form.
func (b HourBucket) Equal(o HourBucket) bool {
	return b.String() == o.String()
}

// IsZero reports whether b is the zero bucket.
func (b HourBucket) IsZero() bool {
	return b.start.IsZero()
}

// String returns the canonical "YYYY-MM-DD HH" form.
func (b HourBucket) String() string {
	if b.IsZero() {
		return ""
	}
	return b.start.In(location).Format(HourLayout)
}

// Timestamp returns the bucket as a full timestamp string ("...HH:00:00").
func (b HourBucket) Timestamp() string {
	return b.String() + ":00:00"
}

func (b HourBucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *HourBucket) UnmarshalText(text []byte) error {
	parsed, err := ParseHourBucket(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
