package domain

import (
	"time"
	_ "time/tzdata" // bucket arithmetic must not depend on the host zoneinfo
)

// DefaultZone is the civil zone raw timestamps are interpreted in.
const DefaultZone = "US/Eastern"

// location is the package-level civil zone so every bucket agrees on it.
// Production code sets it once at start-up; tests may swap it.
var location = mustLoadLocation(DefaultZone)

// SetLocation swaps the civil zone used for bucketing. Pass nil to reset to
// DefaultZone.
func SetLocation(loc *time.Location) {
	if loc == nil {
		location = mustLoadLocation(DefaultZone)
		return
	}
	location = loc
}

// Location returns the civil zone used for bucketing.
func Location() *time.Location {
	return location
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
