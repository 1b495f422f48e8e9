package ingest

import (
	"context"
	"log"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
)

// backfill looks up previews for the top of a fresh batch, one sound at a
// time. Every failure is logged and skipped. Returns the number of sounds
// that received a preview.
func (r *Refresher) backfill(ctx context.Context, batch RegionBatch, opts Options) int {
	if r.previewer == nil {
		return 0
	}

	top := batch.Sounds
	if len(top) > opts.BackfillCount {
		top = top[:opts.BackfillCount]
	}

	filled := 0
	for _, s := range top {
		if ctx.Err() != nil {
			break
		}

		p := r.previewer.Lookup(ctx, preview.Query{
			Region:   batch.Region,
			Keyword:  s.Title,
			SortType: apify.SortMostUsed,
			Limit:    backfillSearchLimit,
		})
		if !p.Found() {
			continue
		}

		cover := s.CoverURL
		if cover == nil {
			cover = p.CoverURL
		}
		if cover == nil && opts.ScrapeCovers {
			cover = r.scrapeCover(ctx, s)
		}
		duration := p.Duration
		if duration == nil {
			duration = s.Duration
		}

		patch := database.SoundPatch{
			PreviewURL:      p.PreviewURL,
			PlayURL:         p.PreviewURL,
			CoverURL:        cover,
			Duration:        duration,
			IsCommerceMusic: p.IsCommerceMusic,
			UserCount:       p.UserCount,
		}
		if _, err := r.store.PatchSound(ctx, s.SoundID, batch.Region, patch); err != nil {
			log.Printf("[WARN] backfill %s/%s: patch failed: %v", s.SoundID, batch.Region, err)
			continue
		}

		enriched := s
		enriched.PreviewURL = p.PreviewURL
		enriched.CoverURL = cover
		enriched.Duration = duration
		enriched.IsCommerceMusic = p.IsCommerceMusic
		enriched.FetchedAt = r.now().UTC()

		if err := r.store.InsertSnapshot(ctx, database.SnapshotOf(enriched)); err != nil {
			log.Printf("[WARN] backfill %s/%s: snapshot failed: %v", s.SoundID, batch.Region, err)
		}
		filled++
	}

	return filled
}

func (r *Refresher) scrapeCover(ctx context.Context, s database.Sound) *string {
	if r.covers == nil || s.TikTokURL == nil {
		return nil
	}
	img, err := r.covers.CoverImage(ctx, *s.TikTokURL)
	if err != nil {
		log.Printf("[WARN] cover scrape for %s failed: %v", s.SoundID, err)
		return nil
	}
	return &img
}
