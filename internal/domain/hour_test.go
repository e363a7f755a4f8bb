package domain

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHour      = "2023-06-01 14"
	testTimestamp = "2023-06-01 14:30:00"
)

func mustTimestamp(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}

func labels(seq func(func(HourBucket) bool)) []string {
	var out []string
	for b := range seq {
		out = append(out, b.String())
	}
	return out
}

func TestTruncateToHour(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mid hour", testTimestamp, testHour},
		{"on the hour", "2023-06-01 14:00:00", testHour},
		{"last second", "2023-06-01 14:59:59", testHour},
		{"midnight", "2023-06-02 00:00:01", "2023-06-02 00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateToHour(mustTimestamp(t, tt.in))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTruncateToHour_ConvertsFromUTC(t *testing.T) {
	// 18:30 UTC is 14:30 EDT.
	utc := time.Date(2023, time.June, 1, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, testHour, TruncateToHour(utc).String())
}

func TestCeilToHour_AlwaysRoundsUp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mid hour", testTimestamp, "2023-06-01 15"},
		{"exactly on the hour", "2023-06-01 14:00:00", "2023-06-01 15"},
		{"day rollover", "2023-06-01 23:10:00", "2023-06-02 00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CeilToHour(mustTimestamp(t, tt.in)).String())
		})
	}
}

func TestParseHourBucket(t *testing.T) {
	b, err := ParseHourBucket(testHour)
	require.NoError(t, err)
	assert.Equal(t, testHour, b.String())
	assert.Equal(t, testHour+":00:00", b.Timestamp())
	assert.True(t, b.Covers(mustTimestamp(t, testTimestamp)))
	assert.False(t, b.Covers(mustTimestamp(t, "2023-06-01 15:00:00")))

	_, err = ParseHourBucket("2023-06-01 14:30")
	require.Error(t, err)

	// 02:00 does not exist on the spring-forward day.
	_, err = ParseHourBucket("2023-03-12 02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestHourBucket_EqualityIsByCanonicalForm(t *testing.T) {
	a := TruncateToHour(mustTimestamp(t, "2023-06-01 14:05:00"))
	b := TruncateToHour(mustTimestamp(t, "2023-06-01 14:55:00"))
	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
	assert.Equal(t, -1, a.Compare(a.Next()))
	assert.Equal(t, 1, a.Compare(a.Prev()))
	assert.True(t, a.Next().Prev().Equal(a))
}

func TestHourBucket_TextRoundTrip(t *testing.T) {
	var b HourBucket
	require.NoError(t, b.UnmarshalText([]byte(testHour)))
	text, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, testHour, string(text))
}

func TestEnumerateRange_Forward(t *testing.T) {
	start := MustParseHourBucket("2023-06-01 22")
	end := MustParseHourBucket("2023-06-02 01")

	assert.Equal(t, []string{"2023-06-01 22", "2023-06-01 23", "2023-06-02 00"}, labels(EnumerateRange(start, end)))
}

func TestEnumerateRange_Backward(t *testing.T) {
	start := MustParseHourBucket("2023-06-02 01")
	end := MustParseHourBucket("2023-06-01 22")

	assert.Equal(t, []string{"2023-06-02 01", "2023-06-02 00", "2023-06-01 23"}, labels(EnumerateRange(start, end)))
}

func TestEnumerateRange_EmptyWhenEqual(t *testing.T) {
	b := MustParseHourBucket(testHour)
	assert.Empty(t, labels(EnumerateRange(b, b)))
	assert.Empty(t, labels(EnumerateRange(HourBucket{}, b)))
}

func TestEnumerateRange_Restartable(t *testing.T) {
	seq := EnumerateRange(MustParseHourBucket("2023-06-01 10"), MustParseHourBucket("2023-06-01 13"))
	assert.Equal(t, labels(seq), labels(seq))
}

func TestEnumerateRange_StopsEarly(t *testing.T) {
	seq := EnumerateRange(MustParseHourBucket("2023-06-01 00"), MustParseHourBucket("2023-06-02 00"))
	var got []string
	for b := range seq {
		got = append(got, b.String())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"2023-06-01 00", "2023-06-01 01"}, got)
}

func TestEnumerateRange_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"2023-06-01 10", "2023-06-01 11"},
		{"2023-06-01 10", "2023-06-02 03"},
		{"2023-11-05 00", "2023-11-05 04"}, // fall back
		{"2023-03-12 00", "2023-03-12 05"}, // spring forward
	}
	for _, p := range pairs {
		t.Run(p[0]+"->"+p[1], func(t *testing.T) {
			a, b := MustParseHourBucket(p[0]), MustParseHourBucket(p[1])

			forward := slices.Collect(EnumerateRange(a, b))
			backward := slices.Collect(EnumerateRange(b, a))
			slices.Reverse(backward)

			require.Len(t, backward, len(forward))
			for i := range forward {
				assert.True(t, forward[i].Equal(backward[i].Prev()), "index %d: %s vs %s", i, forward[i], backward[i].Prev())
			}
		})
	}
}

func TestEnumerateRange_FallBackHourAppearsOnce(t *testing.T) {
	got := labels(EnumerateRange(MustParseHourBucket("2023-11-05 00"), MustParseHourBucket("2023-11-05 03")))
	assert.Equal(t, []string{"2023-11-05 00", "2023-11-05 01", "2023-11-05 02"}, got)

	// Both real 01:xx hours land in the same bucket.
	edt := time.Date(2023, time.November, 5, 5, 30, 0, 0, time.UTC) // 01:30 EDT
	est := time.Date(2023, time.November, 5, 6, 30, 0, 0, time.UTC) // 01:30 EST
	assert.True(t, TruncateToHour(edt).Equal(TruncateToHour(est)))
}

func TestEnumerateRange_SpringForwardSkipsMissingHour(t *testing.T) {
	got := labels(EnumerateRange(MustParseHourBucket("2023-03-12 00"), MustParseHourBucket("2023-03-12 04")))
	assert.Equal(t, []string{"2023-03-12 00", "2023-03-12 01", "2023-03-12 03"}, got)
}

func TestSetLocation(t *testing.T) {
	SetLocation(time.UTC)
	t.Cleanup(func() { SetLocation(nil) })

	utc := time.Date(2023, time.June, 1, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "2023-06-01 18", TruncateToHour(utc).String())
	assert.Equal(t, time.UTC, Location())
}

func TestFormatTimestamp(t *testing.T) {
	utc := time.Date(2023, time.June, 1, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, testTimestamp, FormatTimestamp(utc))
}
