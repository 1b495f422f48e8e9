package apify

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// SortType is the search actor's ordering preference
type SortType string

const (
	SortRelevance  SortType = "RELEVANCE"
	SortMostUsed   SortType = "MOST USED"
	SortMostRecent SortType = "MOST RECENT"
	SortShortest   SortType = "SHORTEST"
	SortLongest    SortType = "LONGEST"
)

// trendingDatasetLimit caps how many rows are read back from a trending run
const trendingDatasetLimit = 1000

// TrendingQuery selects one country's trending list
type TrendingQuery struct {
	Country string // human-readable name, e.g. "United States"
	Limit   int
	Period  string // "1", "7" or "30" days
}

// SearchQuery is a keyword search against the sound search actor
type SearchQuery struct {
	Region   string
	Keyword  string
	SortType SortType
	FilterBy string // ALL, TITLE or CREATOR
	Limit    int
}

// FetchCountryTrending runs the trending actor for one country
func (c *Client) FetchCountryTrending(ctx context.Context, q TrendingQuery) ([]TrendingItem, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	period := strings.TrimSpace(q.Period)
	if period == "" {
		period = "1"
	}

	input := map[string]interface{}{
		"country": q.Country,
		"limit":   limit,
		"period":  period,
	}

	log.Printf("[INFO] trending actor %s input country=%q limit=%d period=%s", c.trendingActor, q.Country, limit, period)

	var items []TrendingItem
	if err := c.RunActor(ctx, c.trendingActor, input, trendingDatasetLimit, &items); err != nil {
		return nil, fmt.Errorf("trending run for %s: %w", q.Country, err)
	}
	return items, nil
}

// SearchSounds runs the sound search actor
func (c *Client) SearchSounds(ctx context.Context, q SearchQuery) ([]SoundItem, error) {
	sortType := q.SortType
	if sortType == "" {
		sortType = SortMostUsed
	}
	filterBy := q.FilterBy
	if filterBy == "" {
		filterBy = "ALL"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	input := map[string]interface{}{
		"type":     "SEARCH",
		"region":   q.Region,
		"sortType": string(sortType),
		"filterBy": filterBy,
		"limit":    limit,
		"keyword":  q.Keyword,
	}

	var items []SoundItem
	if err := c.RunActor(ctx, c.previewActor, input, limit, &items); err != nil {
		return nil, fmt.Errorf("sound search %q in %s: %w", q.Keyword, q.Region, err)
	}
	return items, nil
}
