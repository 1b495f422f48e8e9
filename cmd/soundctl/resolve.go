package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/urlutil"
)

func newResolveCmd() *cobra.Command {
	var (
		region string
		songID string
		title  string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve and cache the preview of one sound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			region = strings.ToUpper(strings.TrimSpace(region))
			if region == "" {
				return errors.New("--region is required")
			}
			if songID == "" && title == "" {
				return errors.New("one of --song-id or --title is required")
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			p := preview.NewResolver(e.client, e.db).Resolve(cmd.Context(), region, songID, title)

			foundID := songID
			if p.SoundID != nil {
				foundID = *p.SoundID
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(struct {
				preview.Preview
				Found     bool   `json:"found"`
				TikTokURL string `json:"tiktok_url_guess"`
			}{p, p.Found(), urlutil.MusicPageURL(title, foundID)})
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Region code (required)")
	cmd.Flags().StringVar(&songID, "song-id", "", "Provider sound id")
	cmd.Flags().StringVar(&title, "title", "", "Sound title, used when the id search finds nothing")

	return cmd
}
