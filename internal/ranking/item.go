package ranking

import (
	"sort"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

// unrankedSentinel sorts items without a rank after every ranked item
const unrankedSentinel = int(^uint(0) >> 1)

// baseItem is one entry of the base list, before enrichment. BestRank and
// TotalVideos are only set by the ranking function and the ALL fallback.
type baseItem struct {
	SoundID     string
	Region      string
	Rank        *int
	BestRank    *int
	TotalVideos *int64
}

// RankedItem is one enriched entry of a period ranking
type RankedItem struct {
	ID              string     `json:"id"`
	SoundID         string     `json:"sound_id"`
	Region          string     `json:"region"`
	Rank            *int       `json:"rank"`
	UserCount       *int64     `json:"user_count"`
	Title           *string    `json:"title"`
	Author          *string    `json:"author"`
	CoverURL        *string    `json:"cover_url"`
	PreviewURL      *string    `json:"preview_url"`
	PlayURL         *string    `json:"play_url"`
	Duration        *int       `json:"duration"`
	Language        *string    `json:"language"`
	CreateTime      *int64     `json:"create_time"`
	TikTokURL       *string    `json:"tiktok_url"`
	FetchedAt       *time.Time `json:"fetched_at"`
	SortType        *string    `json:"sort_type"`
	IsCommerceMusic *bool      `json:"is_commerce_music"`
	TotalVideos     *int64     `json:"total_videos"`
	BestRank        *int       `json:"best_rank"`
	DeltaRank       *int       `json:"delta_rank,omitempty"`
	IsRising        *bool      `json:"is_rising,omitempty"`
}

// freshestByID keeps the row with the latest fetched_at per sound id. On a
// tie the first row seen wins.
func freshestByID(rows []database.Sound) map[string]database.Sound {
	byID := make(map[string]database.Sound, len(rows))
	for _, row := range rows {
		cur, ok := byID[row.SoundID]
		if !ok || row.FetchedAt.After(cur.FetchedAt) {
			byID[row.SoundID] = row
		}
	}
	return byID
}

// merge joins a base item with its latest-state metadata. meta is nil when
// the sound has no latest-state row.
func merge(b baseItem, meta *database.Sound, fallbackRegion string) RankedItem {
	item := RankedItem{
		ID:          b.SoundID,
		SoundID:     b.SoundID,
		Region:      b.Region,
		Rank:        firstRank(b.BestRank, b.Rank),
		TotalVideos: b.TotalVideos,
		BestRank:    b.BestRank,
	}

	if meta == nil {
		if item.Region == "" {
			item.Region = fallbackRegion
		}
		return item
	}

	if item.Region == "" {
		item.Region = meta.Region
	}
	if item.Region == "" {
		item.Region = fallbackRegion
	}
	if item.Rank == nil {
		item.Rank = meta.Rank
	}

	fetchedAt := meta.FetchedAt
	item.UserCount = meta.UserCount
	item.Title = nonEmpty(meta.Title)
	item.Author = nonEmpty(meta.Author)
	item.CoverURL = meta.CoverURL
	item.PreviewURL = firstString(meta.PreviewURL, meta.PlayURL)
	item.PlayURL = firstString(meta.PlayURL, meta.PreviewURL)
	item.Duration = meta.Duration
	item.Language = meta.Language
	item.CreateTime = meta.CreateTime
	item.TikTokURL = meta.TikTokURL
	item.FetchedAt = &fetchedAt
	item.SortType = meta.SortType
	item.IsCommerceMusic = meta.IsCommerceMusic
	return item
}

// sortByRank orders items by rank ascending, unranked last, keeping the
// input order of equal ranks
func sortByRank(items []RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return rankKey(items[i].Rank) < rankKey(items[j].Rank)
	})
}

func rankKey(rank *int) int {
	if rank == nil {
		return unrankedSentinel
	}
	return *rank
}

func firstRank(ranks ...*int) *int {
	for _, r := range ranks {
		if r != nil {
			return r
		}
	}
	return nil
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
