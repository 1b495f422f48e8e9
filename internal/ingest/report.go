package ingest

import (
	"time"

	"github.com/google/uuid"
)

// CountryResult is the outcome of one country within a run
type CountryResult struct {
	Country    string
	Region     string
	Upserted   int
	Snapshots  int
	Backfilled int
	Err        error
}

// OK reports whether the country was stored
func (c CountryResult) OK() bool {
	return c.Err == nil
}

// Totals is the per-country count of written rows
type Totals struct {
	Upserted  int `json:"upserted"`
	Snapshots int `json:"snapshots"`
}

// Report summarizes one ingestion run
type Report struct {
	RunID      uuid.UUID
	Source     string
	Countries  []string
	Results    []CountryResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Totals maps each successfully refreshed country to its write counts
func (r Report) Totals() map[string]Totals {
	totals := make(map[string]Totals, len(r.Results))
	for _, res := range r.Results {
		if !res.OK() {
			continue
		}
		totals[res.Country] = Totals{Upserted: res.Upserted, Snapshots: res.Snapshots}
	}
	return totals
}

// Failures maps each failed country to its error message
func (r Report) Failures() map[string]string {
	failed := make(map[string]string)
	for _, res := range r.Results {
		if !res.OK() {
			failed[res.Country] = res.Err.Error()
		}
	}
	return failed
}

// Upserted is the number of latest-state rows written across the run
func (r Report) Upserted() int {
	n := 0
	for _, res := range r.Results {
		n += res.Upserted
	}
	return n
}
