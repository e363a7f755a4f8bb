package domain

// DefaultMinSamples is the number of samples an hour needs before it is
// normalized.
const DefaultMinSamples = 5

// Aggregate folds the samples of one garage-hour into a normalized record.
//
// It returns an *InsufficientDataError when fewer than minSamples samples are
// given, and ErrEmptyAggregation when there are no samples and minSamples
// does not rule that out. Capacity is taken from the first sample.
func Aggregate(garageID int, hour HourBucket, samples []RawSample, minSamples int) (NormalizedRecord, error) {
	if len(samples) < minSamples {
		return NormalizedRecord{}, &InsufficientDataError{
			GarageID: garageID,
			Hour:     hour,
			Have:     len(samples),
			Want:     minSamples,
		}
	}
	if len(samples) == 0 {
		return NormalizedRecord{}, ErrEmptyAggregation
	}

	sum := 0
	for _, s := range samples {
		sum += s.Available
	}

	return NormalizedRecord{
		GarageID:  garageID,
		Available: floorDiv(sum, len(samples)),
		Capacity:  samples[0].Capacity,
		Hour:      hour,
	}, nil
}

// floorDiv divides rounding toward negative infinity. n must be positive.
func floorDiv(sum, n int) int {
	q := sum / n
	if sum%n != 0 && sum < 0 {
		q--
	}
	return q
}
