// Package domain models garage parking-availability data and its hourly
// normalization.
//
// # Data Source
//
// Raw samples are written by an external ingestion process into the
// garage_monitor_data table, several times per hour per garage. Each sample
// carries the garage id, the number of free spots, the garage capacity and
// the instant it was observed. This package never writes raw samples.
//
// # Civil Time
//
// All bucket arithmetic happens in one fixed named zone (US/Eastern unless
// overridden with [SetLocation]). Timestamps exchanged with callers use the
// shapes:
//
//	"YYYY-MM-DD HH:mm:ss"  a full timestamp, e.g. "2023-06-01 14:30:00"
//	"YYYY-MM-DD HH"        an hour bucket,   e.g. "2023-06-01 14"
//
// Hour buckets are compared by their canonical string, so the repeated
// 01:00 hour on a fall-back day is a single bucket and the skipped 02:00
// hour on a spring-forward day does not exist.
//
// # Normalization
//
// A normalized record summarizes one garage for one hour bucket:
//
//	available  floor of the arithmetic mean of the samples' available counts
//	capacity   capacity of the first sample, in query order
//	timestamp  the bucket with ":00:00" appended
//
// Capacity is assumed constant within an hour. When samples disagree only
// the first one is kept; this is a fixed choice, not an inferred one.
//
// Hours with fewer than the configured minimum number of samples are not
// normalized ([InsufficientDataError]); they are retried on a later run once
// more samples have landed.
//
// # Record Identity
//
// At most one normalized record exists per (garage id, hour bucket). The key
// "<garageID>@<bucket>" identifies it, and [RecordID] hashes the key into a
// stable 64-bit id used by the event stream and the embedded store.
package domain
