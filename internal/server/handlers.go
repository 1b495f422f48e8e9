package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ingest"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ranking"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/urlutil"
)

const (
	defaultSoundsRegion  = "ES"
	defaultPreviewRegion = "US"
	previewSearchLimit   = 5
	maxBodyBytes         = 1 << 20
)

// SoundResponse is one row of GET /sounds
type SoundResponse struct {
	ID         string    `json:"id"`
	SoundID    string    `json:"sound_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	PreviewURL *string   `json:"preview_url"`
	CoverThumb *string   `json:"cover_thumb"`
	VideoCount *int64    `json:"video_count"`
	Duration   *int      `json:"duration"`
	Language   *string   `json:"language"`
	Rank       *int      `json:"rank"`
	FetchedAt  time.Time `json:"fetched_at"`
	CreateTime *int64    `json:"create_time"`
	TikTokURL  *string   `json:"tiktok_url"`
}

func toSoundResponse(s database.Sound) SoundResponse {
	previewURL := s.PreviewURL
	if previewURL == nil {
		previewURL = s.PlayURL
	}
	return SoundResponse{
		ID:         s.SoundID,
		SoundID:    s.SoundID,
		Title:      s.Title,
		Author:     s.Author,
		PreviewURL: previewURL,
		CoverThumb: s.CoverURL,
		VideoCount: s.VideoCount,
		Duration:   s.Duration,
		Language:   s.Language,
		Rank:       s.Rank,
		FetchedAt:  s.FetchedAt,
		CreateTime: s.CreateTime,
		TikTokURL:  s.TikTokURL,
	}
}

func (s *Server) handleSounds(w http.ResponseWriter, r *http.Request) {
	region := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("region")))
	if region == "" {
		region = defaultSoundsRegion
	}

	sounds, err := s.deps.Sounds.ListSoundsByRegion(r.Context(), region, 0)
	if err != nil {
		log.Printf("[ERROR] listing sounds for %s: %v", region, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]SoundResponse, 0, len(sounds))
	for _, snd := range sounds {
		out = append(out, toSoundResponse(snd))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := ranking.Query{
		Region: ranking.ParseRegion(q.Get("region")),
		Range:  ranking.ParseRange(q.Get("range")),
		Limit:  ranking.DefaultLimit,
	}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			query.Limit = ranking.ClampLimit(n)
		}
	}

	var err error
	if query.Start, err = parseTime(q.Get("start")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	if query.End, err = parseTime(q.Get("end")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}

	res, err := s.deps.Ranker.GetPeriodRanking(r.Context(), query)
	if err != nil {
		log.Printf("[ERROR] period ranking for %s: %v", query.Region, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[PERIOD] %s %s → %d items (%s)", query.Region, query.Range, len(res.Items), res.Strategy)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "items": res.Items})
}

// parseTime accepts RFC 3339 timestamps, with or without fractional seconds,
// and bare dates
func parseTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("expected an ISO 8601 timestamp")
}

// refreshBody is the optional POST body of /sounds/refresh
type refreshBody struct {
	Countries       string `json:"countries"`
	Country         string `json:"country"`
	Limit           *int   `json:"limit"`
	BackfillCount   *int   `json:"backfillCount"`
	BackfillPreview *bool  `json:"backfillPreview"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := ingest.Options{
		Period:          q.Get("period"),
		BackfillPreview: isTruthy(q.Get("backfillPreview")),
		BackfillCount:   atoiOr(q.Get("backfillCount"), ingest.DefaultBackfillCount),
		Limit:           ingest.DefaultLimit,
		ScrapeCovers:    s.config.Ingestion.ScrapeCovers,
	}
	if opts.Period == "" {
		opts.Period = ingest.DefaultPeriod
	}
	if !validPeriod(opts.Period) {
		writeError(w, http.StatusBadRequest, "period must be 1, 7 or 30")
		return
	}

	var countriesCSV string
	if r.Method == http.MethodGet {
		countriesCSV = firstNonEmpty(q.Get("countries"), q.Get("country"))
		opts.Limit = atoiOr(q.Get("limit"), opts.Limit)
	} else {
		var body refreshBody
		// The body is optional; a missing or malformed one keeps the defaults
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err == nil {
			countriesCSV = firstNonEmpty(body.Countries, body.Country)
			if body.Limit != nil {
				opts.Limit = *body.Limit
			}
			if body.BackfillCount != nil {
				opts.BackfillCount = *body.BackfillCount
			}
			if body.BackfillPreview != nil {
				opts.BackfillPreview = *body.BackfillPreview
			}
		}
	}
	opts.Countries = config.SplitCountries(countriesCSV)

	report := s.deps.Refresher.Run(r.Context(), opts)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"source":    report.Source,
		"run_id":    report.RunID.String(),
		"countries": report.Countries,
		"totals":    report.Totals(),
		"failed":    report.Failures(),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region := strings.ToUpper(strings.TrimSpace(q.Get("region")))
	if region == "" {
		region = defaultPreviewRegion
	}
	title := strings.TrimSpace(q.Get("title"))

	var p preview.Preview
	if title != "" {
		p = s.deps.Previews.Lookup(r.Context(), preview.Query{
			Region:   region,
			Keyword:  title,
			SortType: apify.SortMostUsed,
			Limit:    previewSearchLimit,
		})
	}

	guessID := ""
	if p.SoundID != nil {
		guessID = *p.SoundID
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":                true,
		"preview_url":       p.PreviewURL,
		"cover_url":         p.CoverURL,
		"is_commerce_music": p.IsCommerceMusic,
		"duration":          p.Duration,
		"user_count":        p.UserCount,
		"sound_id":          p.SoundID,
		"tiktok_url_guess":  urlutil.MusicPageURL(title, guessID),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region := strings.ToUpper(strings.TrimSpace(q.Get("region")))
	if region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}

	p := s.deps.Previews.Resolve(r.Context(), region, strings.TrimSpace(q.Get("song_id")), strings.TrimSpace(q.Get("title")))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":                true,
		"preview_url":       p.PreviewURL,
		"cover_url":         p.CoverURL,
		"is_commerce_music": p.IsCommerceMusic,
		"user_count":        p.UserCount,
		"duration":          p.Duration,
		"sound_id":          p.SoundID,
	})
}

func (s *Server) handleCachePreview(w http.ResponseWriter, r *http.Request) {
	var req preview.CacheRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	skipped, err := s.deps.Previews.CachePreview(r.Context(), req)
	switch {
	case errors.Is(err, preview.ErrMissingKey):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[ERROR] cache-preview %s/%s: %v", req.SoundID, req.Region, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if skipped {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "skipped": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func validPeriod(p string) bool {
	return p == "1" || p == "7" || p == "30"
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func atoiOr(s string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
