package ranking

import (
	"sort"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

// Trend is the rank movement between the two latest observations.
// A positive Delta means the sound moved up (its rank number fell).
type Trend struct {
	Delta  int
	Rising bool
}

func trendOf(latest, previous int) Trend {
	delta := previous - latest
	return Trend{Delta: delta, Rising: delta > 0}
}

// regionTrends compares the two most recent ranked observations of each
// sound. Sounds with fewer than two observations get no trend.
func regionTrends(rows []database.SoundMetric) map[string]Trend {
	ordered := newestFirst(rows)

	ranks := make(map[string][]int)
	for _, row := range ordered {
		if row.Rank == nil {
			continue
		}
		if len(ranks[row.SoundID]) < 2 {
			ranks[row.SoundID] = append(ranks[row.SoundID], *row.Rank)
		}
	}

	trends := make(map[string]Trend, len(ranks))
	for id, r := range ranks {
		if len(r) == 2 {
			trends[id] = trendOf(r[0], r[1])
		}
	}
	return trends
}

// dailyTrends takes the best rank of each sound per UTC calendar day across
// every region, then compares the two most recent days.
func dailyTrends(rows []database.SoundMetric) map[string]Trend {
	best := make(map[string]map[string]int)
	for _, row := range rows {
		if row.Rank == nil {
			continue
		}
		day := row.FetchedAt.UTC().Format("2006-01-02")
		days, ok := best[row.SoundID]
		if !ok {
			days = make(map[string]int)
			best[row.SoundID] = days
		}
		if cur, seen := days[day]; !seen || *row.Rank < cur {
			days[day] = *row.Rank
		}
	}

	trends := make(map[string]Trend, len(best))
	for id, days := range best {
		if len(days) < 2 {
			continue
		}
		keys := make([]string, 0, len(days))
		for day := range days {
			keys = append(keys, day)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
		trends[id] = trendOf(days[keys[0]], days[keys[1]])
	}
	return trends
}

func newestFirst(rows []database.SoundMetric) []database.SoundMetric {
	ordered := make([]database.SoundMetric, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FetchedAt.After(ordered[j].FetchedAt)
	})
	return ordered
}
