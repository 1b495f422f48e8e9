package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ranking"
)

const titleWidth = 40

func newRankCmd() *cobra.Command {
	var (
		region string
		rng    string
		limit  int
		start  string
		end    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the period ranking for a region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := ranking.Query{
				Region: ranking.ParseRegion(region),
				Range:  ranking.ParseRange(rng),
				Limit:  ranking.ClampLimit(limit),
			}

			var err error
			if q.Start, err = parseFlagTime(start); err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			if q.End, err = parseFlagTime(end); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := ranking.NewAggregator(e.db).GetPeriodRanking(cmd.Context(), q)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(res.Items)
			case "table":
				renderRanking(cmd.OutOrStdout(), res)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&region, "region", "ALL", "Region code, or ALL")
	cmd.Flags().StringVar(&rng, "range", "day", "Window: day, 7d or 30d")
	cmd.Flags().IntVar(&limit, "limit", ranking.DefaultLimit, "Maximum items")
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func renderRanking(w io.Writer, res ranking.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s → %s (%s)",
		res.Window.Start.Format("2006-01-02 15:04"), res.Window.End.Format("2006-01-02 15:04"), res.Strategy))
	t.AppendHeader(table.Row{"#", "Δ", "Title", "Author", "Region", "Users"})

	for _, item := range res.Items {
		t.AppendRow(table.Row{
			orDash(item.Rank),
			formatDelta(item.DeltaRank),
			runewidth.Truncate(deref(item.Title), titleWidth, "..."),
			deref(item.Author),
			item.Region,
			orDash64(item.UserCount),
		})
	}
	t.Render()
}

// formatDelta renders rank movement: +3 climbed three places, -2 fell two
func formatDelta(delta *int) string {
	switch {
	case delta == nil:
		return ""
	case *delta > 0:
		return "+" + strconv.Itoa(*delta)
	case *delta == 0:
		return "="
	default:
		return strconv.Itoa(*delta)
	}
}

func parseFlagTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

func orDash64(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}
