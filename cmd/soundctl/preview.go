package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
)

var sortTypes = map[string]apify.SortType{
	"relevance":   apify.SortRelevance,
	"most-used":   apify.SortMostUsed,
	"most-recent": apify.SortMostRecent,
	"shortest":    apify.SortShortest,
	"longest":     apify.SortLongest,
}

func newPreviewCmd() *cobra.Command {
	var (
		region string
		title  string
		sort   string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Search a title and cache the first playable preview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			region = strings.ToUpper(strings.TrimSpace(region))
			title = strings.TrimSpace(title)
			if region == "" || title == "" {
				return errors.New("--region and --title are required")
			}
			sortType, err := parseSort(sort)
			if err != nil {
				return err
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			p := preview.NewResolver(e.client, e.db).ResolvePreview(cmd.Context(), region, title, sortType, limit)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(struct {
				preview.Preview
				Found bool `json:"found"`
			}{p, p.Found()})
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Region code (required)")
	cmd.Flags().StringVar(&title, "title", "", "Sound title to search (required)")
	cmd.Flags().StringVar(&sort, "sort", "most-used", "Search order: relevance, most-used, most-recent, shortest, longest")
	cmd.Flags().IntVar(&limit, "limit", 5, "Search results to consider")

	return cmd
}

func parseSort(s string) (apify.SortType, error) {
	st, ok := sortTypes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid sort: %s (valid values: relevance, most-used, most-recent, shortest, longest)", s)
	}
	return st, nil
}
