// Package ingest pulls per-country trending sounds from the provider and
// stores them as latest-state rows plus append-only snapshots.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/regions"
)

// Source names the trending provider in reports
const Source = "alien"

const (
	DefaultLimit         = 50
	DefaultPeriod        = "1"
	DefaultBackfillCount = 10
	backfillSearchLimit  = 3
)

// Provider fetches a country's trending list
type Provider interface {
	FetchCountryTrending(ctx context.Context, q apify.TrendingQuery) ([]apify.TrendingItem, error)
}

// Store persists ingested batches and preview backfills
type Store interface {
	SaveBatch(ctx context.Context, sounds []database.Sound) error
	PatchSound(ctx context.Context, soundID, region string, patch database.SoundPatch) (int64, error)
	InsertSnapshot(ctx context.Context, m database.SoundMetric) error
}

// Previewer looks up playable audio for a title
type Previewer interface {
	Lookup(ctx context.Context, q preview.Query) preview.Preview
}

// CoverScraper recovers a cover image from a TikTok page
type CoverScraper interface {
	CoverImage(ctx context.Context, pageURL string) (string, error)
}

// Options controls one ingestion run
type Options struct {
	Countries       []string
	Limit           int
	Period          string
	BackfillPreview bool
	BackfillCount   int
	ScrapeCovers    bool
}

// RegionBatch is the normalized batch written for one country
type RegionBatch struct {
	Country string
	Region  string
	Sounds  []database.Sound
}

// Refresher runs ingestion against a provider and a store
type Refresher struct {
	provider  Provider
	store     Store
	previewer Previewer
	covers    CoverScraper
	now       func() time.Time
}

// NewRefresher creates a refresher. previewer may be nil when preview
// backfill is never requested.
func NewRefresher(provider Provider, store Store, previewer Previewer) *Refresher {
	return &Refresher{
		provider:  provider,
		store:     store,
		previewer: previewer,
		now:       time.Now,
	}
}

// WithCoverScraper enables og:image recovery during backfill
func (r *Refresher) WithCoverScraper(s CoverScraper) *Refresher {
	r.covers = s
	return r
}

// RefreshRegion fetches, normalizes and stores one country's trending list.
// Any provider or store error fails the whole region.
func (r *Refresher) RefreshRegion(ctx context.Context, country string, limit int, period string) (RegionBatch, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period == "" {
		period = DefaultPeriod
	}

	region := regions.CodeForCountry(country)
	batch := RegionBatch{Country: country, Region: region}

	items, err := r.provider.FetchCountryTrending(ctx, apify.TrendingQuery{
		Country: country,
		Limit:   limit,
		Period:  period,
	})
	if err != nil {
		return batch, fmt.Errorf("fetch trending for %s: %w", country, err)
	}

	batch.Sounds = Normalize(items, region, limit, r.now())
	if len(batch.Sounds) == 0 {
		log.Printf("[REFRESH] %s (%s): provider returned no usable items", country, region)
		return batch, nil
	}

	if err := r.store.SaveBatch(ctx, batch.Sounds); err != nil {
		return batch, fmt.Errorf("save batch for %s: %w", region, err)
	}

	return batch, nil
}

// Run refreshes every country in order. A failing country is recorded in the
// report and the run moves on to the next one.
func (r *Refresher) Run(ctx context.Context, opts Options) Report {
	opts = withDefaults(opts)

	report := Report{
		RunID:     uuid.New(),
		Source:    Source,
		Countries: opts.Countries,
		StartedAt: r.now().UTC(),
	}
	log.Printf("[REFRESH] run %s: %d countries, limit %d, period %s",
		report.RunID, len(opts.Countries), opts.Limit, opts.Period)

	for _, country := range opts.Countries {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, CountryResult{
				Country: country,
				Region:  regions.CodeForCountry(country),
				Err:     err,
			})
			continue
		}

		batch, err := r.RefreshRegion(ctx, country, opts.Limit, opts.Period)
		result := CountryResult{Country: country, Region: batch.Region}
		if err != nil {
			log.Printf("[ERROR] run %s: %s failed: %v", report.RunID, country, err)
			result.Err = err
			report.Results = append(report.Results, result)
			continue
		}

		result.Upserted = len(batch.Sounds)
		result.Snapshots = len(batch.Sounds)

		if opts.BackfillPreview {
			result.Backfilled = r.backfill(ctx, batch, opts)
		}

		log.Printf("[REFRESH] %s (%s) → %d sounds, %d previews", country, batch.Region, result.Upserted, result.Backfilled)
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = r.now().UTC()
	return report
}

func withDefaults(opts Options) Options {
	if len(opts.Countries) == 0 {
		opts.Countries = regions.DefaultCountries()
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Period == "" {
		opts.Period = DefaultPeriod
	}
	if opts.BackfillCount <= 0 {
		opts.BackfillCount = DefaultBackfillCount
	}
	return opts
}
