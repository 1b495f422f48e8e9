package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ingest"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/scraper"
)

func newRefreshCmd() *cobra.Command {
	var (
		countries     string
		limit         int
		period        string
		backfill      bool
		backfillCount int
		scrapeCovers  bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch trending sounds and store a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if period != "1" && period != "7" && period != "30" {
				return fmt.Errorf("invalid period: %s (valid values: 1, 7, 30)", period)
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			refresher := ingest.NewRefresher(e.client, e.db, preview.NewResolver(e.client, e.db))
			if scrapeCovers {
				refresher.WithCoverScraper(scraper.NewScraper())
			}

			opts := ingest.Options{
				Countries:       config.SplitCountries(countries),
				Limit:           limit,
				Period:          period,
				BackfillPreview: backfill,
				BackfillCount:   backfillCount,
				ScrapeCovers:    scrapeCovers,
			}
			if len(opts.Countries) == 0 {
				opts.Countries = e.cfg.Ingestion.Countries
			}

			report := refresher.Run(cmd.Context(), opts)
			outputReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&countries, "countries", "", "Comma-separated country names (default: ingestion.countries)")
	cmd.Flags().IntVar(&limit, "limit", ingest.DefaultLimit, "Sounds to keep per country")
	cmd.Flags().StringVar(&period, "period", ingest.DefaultPeriod, "Trending period in days: 1, 7 or 30")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "Resolve previews for the top sounds of each country")
	cmd.Flags().IntVar(&backfillCount, "backfill-count", ingest.DefaultBackfillCount, "Sounds per country to backfill")
	cmd.Flags().BoolVar(&scrapeCovers, "scrape-covers", false, "Scrape music pages for missing cover art")

	return cmd
}

func outputReport(cmd *cobra.Command, report ingest.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("run %s (%s)", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Country", "Region", "Upserted", "Backfilled", "Error"})

	results := append([]ingest.CountryResult(nil), report.Results...)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Country < results[j].Country })

	for _, res := range results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		t.AppendRow(table.Row{res.Country, res.Region, res.Upserted, res.Backfilled, errText})
	}
	t.AppendFooter(table.Row{"Total", "", report.Upserted(), "", fmt.Sprintf("%d failed", len(report.Failures()))})
	t.Render()
}
