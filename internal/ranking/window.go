package ranking

import (
	"strings"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/regions"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Region is either a single region code or every region at once
type Region struct {
	code string
}

// AllRegions aggregates across every region
var AllRegions = Region{}

// ParseRegion reads a query value. Blank and "ALL" mean every region.
func ParseRegion(s string) Region {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" || code == regions.All {
		return AllRegions
	}
	return Region{code: code}
}

// IsAll reports whether the region spans every region
func (r Region) IsAll() bool {
	return r.code == ""
}

// Code returns the region code, "ALL" for every region
func (r Region) Code() string {
	if r.IsAll() {
		return regions.All
	}
	return r.code
}

func (r Region) String() string {
	return r.Code()
}

// Range selects the default window when explicit bounds are not given
type Range string

const (
	RangeDay    Range = "day"
	Range7Days  Range = "7d"
	Range30Days Range = "30d"
)

// ParseRange reads a query value; anything unknown is a day
func ParseRange(s string) Range {
	switch Range(strings.ToLower(strings.TrimSpace(s))) {
	case Range7Days:
		return Range7Days
	case Range30Days:
		return Range30Days
	default:
		return RangeDay
	}
}

// Window is the [Start, End] interval a ranking covers
type Window struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow returns the explicit bounds when both are set, otherwise the
// range ending at now. Day windows start at UTC midnight.
func ResolveWindow(rng Range, start, end *time.Time, now time.Time) Window {
	if start != nil && end != nil {
		return Window{Start: start.UTC(), End: end.UTC()}
	}

	now = now.UTC()
	switch rng {
	case Range7Days:
		return Window{Start: now.AddDate(0, 0, -7), End: now}
	case Range30Days:
		return Window{Start: now.AddDate(0, 0, -30), End: now}
	default:
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return Window{Start: midnight, End: now}
	}
}

// ClampLimit bounds a requested limit to [1, MaxLimit]
func ClampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
