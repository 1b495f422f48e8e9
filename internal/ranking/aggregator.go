// Package ranking builds the period ranking of trending sounds.
//
// A ranking starts from a base list of (sound, region, rank) entries taken
// from the get_sounds_period function. When that function fails or returns
// nothing the base list is rebuilt from stored rows instead:
//
//   - every region: best rank per sound across all snapshots in the window
//   - one region: the latest-state rows of that region ordered by rank
//
// The base list is then joined with latest-state metadata, annotated with
// rank movement over the last three days and sorted by rank.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

// trendLookback is how far back snapshots are read for rank deltas
const trendLookback = 3 * 24 * time.Hour

// Store is the read side of the sound tables
type Store interface {
	PeriodRanking(ctx context.Context, region string, start, end time.Time, limit int) ([]database.PeriodRow, error)
	SnapshotsInWindow(ctx context.Context, start, end time.Time) ([]database.SoundMetric, error)
	ListSoundsByRegion(ctx context.Context, region string, limit int) ([]database.Sound, error)
	SoundsByIDs(ctx context.Context, region string, ids []string) ([]database.Sound, error)
	SoundsByIDsAllRegions(ctx context.Context, ids []string) ([]database.Sound, error)
	RecentSnapshots(ctx context.Context, region string, ids []string, since time.Time) ([]database.SoundMetric, error)
}

// Strategy names how the base list was built
type Strategy string

const (
	StrategyPrimary        Strategy = "primary"
	StrategyFallbackAll    Strategy = "fallback_all"
	StrategyFallbackRegion Strategy = "fallback_region"
)

// Query is one period ranking request
type Query struct {
	Region Region
	Range  Range
	Start  *time.Time
	End    *time.Time
	Limit  int
}

// Result is a computed ranking
type Result struct {
	Items    []RankedItem
	Strategy Strategy
	Window   Window
}

// Aggregator computes period rankings
type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator creates an aggregator over store
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// GetPeriodRanking returns the ranking for q. Only errors that leave no way
// to build a consistent list are returned; a failing ranking function or a
// failing trend read is logged and worked around.
func (a *Aggregator) GetPeriodRanking(ctx context.Context, q Query) (Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = ClampLimit(limit)

	now := a.now()
	window := ResolveWindow(q.Range, q.Start, q.End, now)
	result := Result{Window: window}

	base, strategy, err := a.baseList(ctx, q.Region, window, limit)
	if err != nil {
		return result, err
	}
	result.Strategy = strategy

	if len(base) == 0 {
		result.Items = []RankedItem{}
		return result, nil
	}

	ids := distinctIDs(base)

	meta, err := a.metadata(ctx, q.Region, ids)
	if err != nil {
		return result, fmt.Errorf("failed to load sound metadata: %w", err)
	}

	items := make([]RankedItem, 0, len(base))
	for _, b := range base {
		var m *database.Sound
		if row, ok := meta[b.SoundID]; ok {
			m = &row
		}
		items = append(items, merge(b, m, q.Region.Code()))
	}

	sortByRank(items)
	if len(items) > limit {
		items = items[:limit]
	}

	trends := a.trends(ctx, q.Region, ids, now)
	for i := range items {
		t, ok := trends[items[i].SoundID]
		if !ok {
			continue
		}
		delta, rising := t.Delta, t.Rising
		items[i].DeltaRank = &delta
		items[i].IsRising = &rising
	}

	result.Items = items
	return result, nil
}

// baseList runs the ranking function and falls back to stored rows when it
// errors or comes back empty
func (a *Aggregator) baseList(ctx context.Context, region Region, w Window, limit int) ([]baseItem, Strategy, error) {
	rows, err := a.store.PeriodRanking(ctx, region.Code(), w.Start, w.End, limit)
	switch {
	case err != nil && errors.Is(err, database.ErrFunctionUnavailable):
		log.Printf("[PERIOD] ranking function not installed, using fallback for %s", region)
	case err != nil:
		log.Printf("[PERIOD] ranking function failed for %s, using fallback: %v", region, err)
	case len(rows) == 0:
		log.Printf("[PERIOD] ranking function returned no rows for %s, using fallback", region)
	default:
		base := make([]baseItem, 0, len(rows))
		for _, r := range rows {
			base = append(base, baseItem{
				SoundID:     r.SoundID,
				Region:      r.Region,
				Rank:        r.Rank,
				BestRank:    r.BestRank,
				TotalVideos: r.TotalVideos,
			})
		}
		return base, StrategyPrimary, nil
	}

	if region.IsAll() {
		base, err := a.fallbackAll(ctx, w, limit)
		return base, StrategyFallbackAll, err
	}
	base, err := a.fallbackRegion(ctx, region, limit)
	return base, StrategyFallbackRegion, err
}

// fallbackAll keeps, for each sound, the best rank seen in any region during
// the window and the region that achieved it
func (a *Aggregator) fallbackAll(ctx context.Context, w Window, limit int) ([]baseItem, error) {
	rows, err := a.store.SnapshotsInWindow(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	type best struct {
		rank   int
		region string
	}
	bestByID := make(map[string]best)
	var order []string

	for _, r := range rows {
		if r.Rank == nil {
			continue
		}
		cur, ok := bestByID[r.SoundID]
		if !ok {
			order = append(order, r.SoundID)
		}
		if !ok || *r.Rank < cur.rank {
			bestByID[r.SoundID] = best{rank: *r.Rank, region: r.Region}
		}
	}

	base := make([]baseItem, 0, len(order))
	for _, id := range order {
		b := bestByID[id]
		rank := b.rank
		base = append(base, baseItem{SoundID: id, Region: b.region, BestRank: &rank})
	}

	sort.SliceStable(base, func(i, j int) bool {
		return *base[i].BestRank < *base[j].BestRank
	})
	if len(base) > limit {
		base = base[:limit]
	}
	return base, nil
}

func (a *Aggregator) fallbackRegion(ctx context.Context, region Region, limit int) ([]baseItem, error) {
	rows, err := a.store.ListSoundsByRegion(ctx, region.Code(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sounds: %w", region, err)
	}

	base := make([]baseItem, 0, len(rows))
	for _, r := range rows {
		base = append(base, baseItem{SoundID: r.SoundID, Region: r.Region, Rank: r.Rank})
	}
	return base, nil
}

func (a *Aggregator) metadata(ctx context.Context, region Region, ids []string) (map[string]database.Sound, error) {
	var (
		rows []database.Sound
		err  error
	)
	if region.IsAll() {
		rows, err = a.store.SoundsByIDsAllRegions(ctx, ids)
	} else {
		rows, err = a.store.SoundsByIDs(ctx, region.Code(), ids)
	}
	if err != nil {
		return nil, err
	}
	return freshestByID(rows), nil
}

// trends reads recent snapshots for rank deltas. A failed read only means no
// item is annotated.
func (a *Aggregator) trends(ctx context.Context, region Region, ids []string, now time.Time) map[string]Trend {
	since := now.UTC().Add(-trendLookback)

	scope := ""
	if !region.IsAll() {
		scope = region.Code()
	}

	rows, err := a.store.RecentSnapshots(ctx, scope, ids, since)
	if err != nil {
		log.Printf("[WARN] reading trend snapshots for %s failed: %v", region, err)
		return nil
	}

	if region.IsAll() {
		return dailyTrends(rows)
	}
	return regionTrends(rows)
}

func distinctIDs(base []baseItem) []string {
	seen := make(map[string]bool, len(base))
	ids := make([]string, 0, len(base))
	for _, b := range base {
		if seen[b.SoundID] {
			continue
		}
		seen[b.SoundID] = true
		ids = append(ids, b.SoundID)
	}
	return ids
}
