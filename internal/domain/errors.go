package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset means the raw store holds no samples at all.
	ErrEmptyDataset = errors.New("raw dataset is empty")

	// ErrEmptyAggregation means zero samples reached Aggregate with a
	// non-positive minimum, which points at a misconfigured policy.
	ErrEmptyAggregation = errors.New("cannot aggregate zero samples")
)

// InsufficientDataError reports an hour with fewer samples than the policy
// minimum. It is expected and recoverable: the hour is retried on a later run.
type InsufficientDataError struct {
	GarageID int
	Hour     HourBucket
	Have     int
	Want     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient samples for garage %d at %s: have %d, want %d",
		e.GarageID, e.Hour, e.Have, e.Want)
}

// IsInsufficientData reports whether err wraps an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// MalformedResultError reports a store row that failed validation.
type MalformedResultError struct {
	Query  string
	Column string
	Reason string
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("malformed %s result: column %s: %s", e.Query, e.Column, e.Reason)
}
