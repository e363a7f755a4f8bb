// Command genmock generates deterministic synthetic garage availability
// samples and writes them to a SQL store, a JSON fixture, or both. Every few
// hours a garage reports too few samples so the insufficient-data path of
// the normalizer gets exercised.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -garages 4 -hours 72 \
//	  -driver sqlite -dsn ./data/parking.db \
//	  -json-out data/mock/samples.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// defaultEnd anchors generated data so repeated runs produce identical rows.
const defaultEnd = "2023-06-08 00:00:00"

type options struct {
	garages     int
	hours       int
	interval    time.Duration
	sparseEvery int
	seed        uint64
}

// sampleJSON is the fixture form of a raw sample.
type sampleJSON struct {
	GarageID  int    `json:"garageId"`
	Available int    `json:"available"`
	Capacity  int    `json:"capacity"`
	Timestamp string `json:"timestamp"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	flag.IntVar(&opts.garages, "garages", 4, "number of garages")
	flag.IntVar(&opts.hours, "hours", 72, "hours of history ending at -end")
	flag.DurationVar(&opts.interval, "interval", 10*time.Minute, "time between samples")
	flag.IntVar(&opts.sparseEvery, "sparse-every", 7, "every Nth garage-hour gets only two samples (0 disables)")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed")
	end := flag.String("end", defaultEnd, "civil time of the last sample, YYYY-MM-DD HH:mm:ss")
	driver := flag.String("driver", "", "sql driver to seed: postgres or sqlite")
	dsn := flag.String("dsn", "", "sql connection string or sqlite path")
	jsonOut := flag.String("json-out", "", "output path for the JSON fixture")
	flag.Parse()

	if *driver == "" && *jsonOut == "" {
		flag.Usage()
		return fmt.Errorf("nothing to write: set -driver/-dsn, -json-out, or both")
	}
	if opts.garages < 1 || opts.hours < 1 || opts.interval <= 0 {
		return fmt.Errorf("-garages and -hours must be positive and -interval must be > 0")
	}

	endTS, err := domain.ParseTimestamp(*end)
	if err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	clock := clockwork.NewFakeClockAt(endTS)

	garages, samples := generate(opts, clock)
	log.Printf("generated %d samples for %d garages", len(samples), len(garages))

	if *driver != "" {
		if err := seedStore(*driver, *dsn, garages, samples); err != nil {
			return fmt.Errorf("seeding %s: %w", *driver, err)
		}
		log.Printf("seeded %s store", *driver)
	}

	if *jsonOut != "" {
		out := make([]sampleJSON, len(samples))
		for i, s := range samples {
			out[i] = sampleJSON{GarageID: s.GarageID, Available: s.Available, Capacity: s.Capacity, Timestamp: domain.FormatTimestamp(s.Timestamp)}
		}
		if err := writeJSON(*jsonOut, out); err != nil {
			return fmt.Errorf("writing JSON fixture: %w", err)
		}
		log.Printf("wrote JSON fixture: %s", *jsonOut)
	}

	printStats(samples, opts.interval)
	return nil
}

// generate produces opts.hours of samples ending at clock.Now(). Occupancy
// follows a daily curve with a little noise per sample.
func generate(opts options, clock clockwork.Clock) ([]domain.Garage, []domain.RawSample) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	end := clock.Now()
	start := end.Add(-time.Duration(opts.hours) * time.Hour)

	garages := make([]domain.Garage, opts.garages)
	for i := range garages {
		garages[i] = domain.Garage{ID: i + 1, Name: fmt.Sprintf("Garage %d", i+1)}
	}

	var samples []domain.RawSample
	pair := 0
	for hourStart := start; hourStart.Before(end); hourStart = hourStart.Add(time.Hour) {
		for _, g := range garages {
			pair++
			capacity := 100 + 50*(g.ID-1)
			perHour := int(time.Hour / opts.interval)
			if opts.sparseEvery > 0 && pair%opts.sparseEvery == 0 {
				perHour = min(perHour, 2)
			}
			for k := range perHour {
				ts := hourStart.Add(time.Duration(k) * opts.interval)
				if !ts.Before(end) {
					break
				}
				samples = append(samples, domain.RawSample{
					GarageID:  g.ID,
					Available: availability(ts.In(domain.Location()), capacity, rng),
					Capacity:  capacity,
					Timestamp: ts.In(domain.Location()),
				})
			}
		}
	}
	// The newest sample sits in the hour the normalizer never closes.
	for _, g := range garages {
		samples = append(samples, domain.RawSample{
			GarageID:  g.ID,
			Available: availability(end.In(domain.Location()), 100+50*(g.ID-1), rng),
			Capacity:  100 + 50*(g.ID-1),
			Timestamp: end.In(domain.Location()),
		})
	}
	return garages, samples
}

// availability is lowest around midday.
func availability(t time.Time, capacity int, rng *rand.Rand) int {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	occupancy := 0.5 - 0.4*math.Cos(2*math.Pi*(hour-1)/24)
	free := int(float64(capacity)*(1-occupancy)) + rng.IntN(11) - 5
	return max(0, min(capacity, free))
}

func seedStore(driver, dsn string, garages []domain.Garage, samples []domain.RawSample) error {
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, g := range garages {
		if err := store.InsertGarage(ctx, g); err != nil {
			return err
		}
	}
	return store.InsertSamples(ctx, samples)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(samples []domain.RawSample, interval time.Duration) {
	perPair := map[string]int{}
	for _, s := range samples {
		perPair[domain.RecordKey(s.GarageID, domain.TruncateToHour(s.Timestamp))]++
	}
	sparse := 0
	for _, n := range perPair {
		if n < domain.DefaultMinSamples {
			sparse++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Samples: %d (interval %s)\n", len(samples), interval)
	fmt.Printf("Garage-hours: %d\n", len(perPair))
	fmt.Printf("Garage-hours below %d samples: %d\n", domain.DefaultMinSamples, sparse)
	if len(samples) > 0 {
		fmt.Printf("Newest sample: %s\n", domain.FormatTimestamp(samples[len(samples)-1].Timestamp))
	}
}
