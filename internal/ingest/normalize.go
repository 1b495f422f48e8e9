package ingest

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/urlutil"
)

const untitled = "Untitled"

// Normalize turns one provider batch into latest-state rows for region.
//
// Items are stably sorted by provider rank (missing ranks last), duplicate
// sound ids are dropped keeping the best-ranked one, the list is cut to limit
// and ranks are reassigned as 1..N. Every row shares fetchedAt.
func Normalize(items []apify.TrendingItem, region string, limit int, fetchedAt time.Time) []database.Sound {
	ordered := make([]apify.TrendingItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rankBefore(ordered[i].Rank.Int(), ordered[j].Rank.Int())
	})

	fetchedAt = fetchedAt.UTC()
	seen := make(map[string]bool, len(ordered))
	sounds := make([]database.Sound, 0, len(ordered))

	for _, it := range ordered {
		if limit > 0 && len(sounds) >= limit {
			break
		}

		id := strings.TrimSpace(it.SoundID())
		if id == "" {
			log.Printf("[WARN] %s: dropping trending item without an id (title %q)", region, it.Title)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		rank := len(sounds) + 1
		sounds = append(sounds, toSound(it, id, region, rank, fetchedAt))
	}

	return sounds
}

// rankBefore orders provider ranks ascending with missing ranks last
func rankBefore(a, b *int) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

func toSound(it apify.TrendingItem, id, region string, rank int, fetchedAt time.Time) database.Sound {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = untitled
	}

	return database.Sound{
		SoundID:   id,
		Region:    region,
		Title:     title,
		Author:    strings.TrimSpace(it.Author),
		CoverURL:  urlutil.NormalizeOptional(nonEmpty(it.CoverURL)),
		Duration:  it.Duration.Int(),
		Rank:      &rank,
		TikTokURL: urlutil.NormalizeOptional(nonEmpty(it.Link)),
		FetchedAt: fetchedAt,
	}
}

func nonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
