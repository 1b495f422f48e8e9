// Package preview resolves playable-audio metadata for a sound by searching
// the sound search actor, and caches what it finds in the latest-state table.
//
// Resolution is soft-fail: provider errors degrade to a Preview with every
// field nil, they are never returned to the caller.
package preview

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

// ErrMissingKey is returned when a cache request lacks sound_id or region
var ErrMissingKey = errors.New("sound_id and region are required")

const (
	idSearchLimit    = 3
	titleSearchLimit = 5
)

// Searcher is the search half of the provider
type Searcher interface {
	SearchSounds(ctx context.Context, q apify.SearchQuery) ([]apify.SoundItem, error)
}

// Cache is where resolved previews are written back
type Cache interface {
	UpsertPreview(ctx context.Context, s database.Sound) error
	PatchSound(ctx context.Context, soundID, region string, patch database.SoundPatch) (int64, error)
}

// Query describes one provider lookup
type Query struct {
	Region   string
	Keyword  string
	SortType apify.SortType
	Limit    int
}

// Preview is the resolved metadata. A nil PreviewURL means "not found".
type Preview struct {
	PreviewURL      *string `json:"preview_url"`
	CoverURL        *string `json:"cover_url"`
	Duration        *int    `json:"duration"`
	UserCount       *int64  `json:"user_count"`
	IsCommerceMusic *bool   `json:"is_commerce_music"`
	SoundID         *string `json:"sound_id"`

	title  *string
	author *string
}

// Found reports whether a playable URL was resolved
func (p Preview) Found() bool {
	return p.PreviewURL != nil
}

// Resolver looks up previews and caches hits
type Resolver struct {
	searcher Searcher
	cache    Cache
	now      func() time.Time
}

// NewResolver creates a resolver. cache may be nil to disable write-back.
func NewResolver(searcher Searcher, cache Cache) *Resolver {
	return &Resolver{
		searcher: searcher,
		cache:    cache,
		now:      time.Now,
	}
}

// SelectCandidate picks the first item with a playable URL, else the first
// item. ok is false only for an empty list.
func SelectCandidate(items []apify.SoundItem) (apify.SoundItem, bool) {
	if len(items) == 0 {
		return apify.SoundItem{}, false
	}
	for _, it := range items {
		if it.Playable() != "" {
			return it, true
		}
	}
	return items[0], true
}

// Lookup searches the provider once. It never caches and never fails.
func (r *Resolver) Lookup(ctx context.Context, q Query) Preview {
	keyword := strings.TrimSpace(q.Keyword)
	if keyword == "" || q.Region == "" {
		return Preview{}
	}

	sortType := q.SortType
	if sortType == "" {
		sortType = apify.SortMostUsed
	}

	items, err := r.searcher.SearchSounds(ctx, apify.SearchQuery{
		Region:   q.Region,
		Keyword:  keyword,
		SortType: sortType,
		Limit:    q.Limit,
	})
	if err != nil {
		log.Printf("[PREVIEW] lookup %q in %s failed: %v", keyword, q.Region, err)
		return Preview{}
	}

	item, ok := SelectCandidate(items)
	if !ok {
		return Preview{}
	}
	return fromItem(item)
}

// ResolvePreview looks up a title and caches the result when a playable URL
// was found. Cache failures are logged and do not change the result.
func (r *Resolver) ResolvePreview(ctx context.Context, region, title string, sortType apify.SortType, limit int) Preview {
	p := r.Lookup(ctx, Query{Region: region, Keyword: title, SortType: sortType, Limit: limit})
	if p.Found() {
		r.store(ctx, region, p, title, title)
	}
	return p
}

// Resolve tries the provider id as a search keyword first, then the title.
// The first playable hit wins and is cached.
func (r *Resolver) Resolve(ctx context.Context, region, songID, title string) Preview {
	var found Preview

	if songID != "" {
		p := r.Lookup(ctx, Query{Region: region, Keyword: songID, SortType: apify.SortMostUsed, Limit: idSearchLimit})
		if p.Found() {
			found = p
		}
	}

	if !found.Found() && title != "" {
		p := r.Lookup(ctx, Query{Region: region, Keyword: title, SortType: apify.SortMostUsed, Limit: titleSearchLimit})
		if p.Found() {
			found = p
		}
	}

	if !found.Found() {
		return Preview{}
	}

	key := songID
	if key == "" {
		key = title
	}
	r.store(ctx, region, found, key, title)
	return found
}

// store upserts a resolved preview. fallbackID is used when the provider did
// not report an id.
func (r *Resolver) store(ctx context.Context, region string, p Preview, fallbackID, requestedTitle string) {
	if r.cache == nil {
		return
	}

	soundID := fallbackID
	if p.SoundID != nil {
		soundID = *p.SoundID
	}
	if soundID == "" {
		return
	}

	title := requestedTitle
	if p.title != nil {
		title = *p.title
	}
	author := ""
	if p.author != nil {
		author = *p.author
	}

	err := r.cache.UpsertPreview(ctx, database.Sound{
		SoundID:         soundID,
		Region:          region,
		Title:           title,
		Author:          author,
		PreviewURL:      p.PreviewURL,
		PlayURL:         p.PreviewURL,
		CoverURL:        p.CoverURL,
		Duration:        p.Duration,
		UserCount:       p.UserCount,
		IsCommerceMusic: p.IsCommerceMusic,
		FetchedAt:       r.now().UTC(),
	})
	if err != nil {
		log.Printf("[WARN] caching preview for %s/%s failed: %v", soundID, region, err)
	}
}

func fromItem(it apify.SoundItem) Preview {
	p := Preview{
		PreviewURL:      optional(it.Playable()),
		CoverURL:        optional(it.Cover()),
		Duration:        it.Duration.Int(),
		UserCount:       it.UserCount.PositiveInt64(),
		IsCommerceMusic: it.IsCommerceMusic.Ptr(),
		SoundID:         optional(it.SoundID()),
		title:           optional(it.Title),
		author:          optional(it.Author),
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
