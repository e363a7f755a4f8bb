// Command validate audits a normalized store against its raw samples using
// the service's own environment configuration. It checks that every
// garage-hour with enough samples has a record, that no garage-hour without
// enough samples has one, and that the newest hour has not been normalized.
//
// Usage:
//
//	DB_DRIVER=sqlite SQLITE_PATH=./data/parking.db go run ./cmd/validate
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	badgerstore "github.com/couchcryptid/parking-norm-etl/internal/adapter/badger"
	"github.com/couchcryptid/parking-norm-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/parking-norm-etl/internal/config"
	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/couchcryptid/parking-norm-etl/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	maxErrors := flag.Int("max-errors", 20, "detailed errors printed per failed phase (0 prints all)")
	flag.Parse()

	os.Exit(run(*maxErrors))
}

func run(maxErrors int) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	domain.SetLocation(cfg.Location)
	logger := observability.NewLogger(cfg)
	ctx := context.Background()

	fmt.Println("=== Parking Normalization Audit ===")
	fmt.Println()

	raw, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open sql store: %v\n", err)
		return 1
	}
	defer raw.Close()

	var store pipeline.NormalizedStore = raw
	if cfg.NormStore == config.NormStoreBadger {
		kv, err := badgerstore.New(badgerstore.Config{Path: cfg.BadgerPath}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: open badger store: %v\n", err)
			return 1
		}
		defer kv.Close()
		store = kv
	}

	report, err := pipeline.Audit(ctx, raw, store, cfg.MinSamples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: audit: %v\n", err)
		return 1
	}

	phases := []*phase{
		findingsPhase("Sufficient hours normalized", report.Missing),
		findingsPhase("Insufficient hours left empty", report.Unexpected),
		findingsPhase("Newest hour left open", report.Boundary),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Range: %s to %s (%d hours, %d garage-hours checked, min samples %d)\n",
		report.Start, report.Limit, report.Buckets, report.Checked, cfg.MinSamples)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if maxErrors > 0 && i == maxErrors {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func findingsPhase(name string, findings []pipeline.Finding) *phase {
	p := &phase{name: name}
	for _, f := range findings {
		p.errors = append(p.errors, f.String())
	}
	return p
}
