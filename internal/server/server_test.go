package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ingest"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ranking"
)

type fakeSounds struct {
	region string
	rows   []database.Sound
	err    error
}

func (f *fakeSounds) ListSoundsByRegion(ctx context.Context, region string, limit int) ([]database.Sound, error) {
	f.region = region
	return f.rows, f.err
}

type fakeRanker struct {
	query ranking.Query
	items []ranking.RankedItem
	err   error
}

func (f *fakeRanker) GetPeriodRanking(ctx context.Context, q ranking.Query) (ranking.Result, error) {
	f.query = q
	return ranking.Result{Items: f.items}, f.err
}

type fakeRefresher struct {
	opts  ingest.Options
	calls int
}

func (f *fakeRefresher) Run(ctx context.Context, opts ingest.Options) ingest.Report {
	f.calls++
	f.opts = opts
	results := make([]ingest.CountryResult, 0, len(opts.Countries))
	for _, c := range opts.Countries {
		res := ingest.CountryResult{Country: c, Upserted: 2, Snapshots: 2}
		if c == "Brazil" {
			res = ingest.CountryResult{Country: c, Err: errors.New("actor timed out")}
		}
		results = append(results, res)
	}
	return ingest.Report{RunID: uuid.New(), Source: ingest.Source, Countries: opts.Countries, Results: results}
}

type fakePreviews struct {
	lookups  []preview.Query
	resolved []string
	found    preview.Preview
	skipped  bool
	cacheErr error
}

func (f *fakePreviews) Lookup(ctx context.Context, q preview.Query) preview.Preview {
	f.lookups = append(f.lookups, q)
	return f.found
}

func (f *fakePreviews) Resolve(ctx context.Context, region, songID, title string) preview.Preview {
	f.resolved = append(f.resolved, region+"|"+songID+"|"+title)
	return f.found
}

func (f *fakePreviews) CachePreview(ctx context.Context, req preview.CacheRequest) (bool, error) {
	if req.SoundID == "" || req.Region == "" {
		return false, preview.ErrMissingKey
	}
	return f.skipped, f.cacheErr
}

type fixture struct {
	server    *Server
	sounds    *fakeSounds
	ranker    *fakeRanker
	refresher *fakeRefresher
	previews  *fakePreviews
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{CORSAllowOrigin: "*", RateLimitRPM: 1000},
		Cron:   config.CronConfig{Key: "s3cret"},
	}
	f := &fixture{
		sounds:    &fakeSounds{},
		ranker:    &fakeRanker{},
		refresher: &fakeRefresher{},
		previews:  &fakePreviews{},
	}
	f.server = New(cfg, Deps{Sounds: f.sounds, Ranker: f.ranker, Refresher: f.refresher, Previews: f.previews})
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	rr := newFixture(t).do(http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}
}

func TestPeriodParsesQuery(t *testing.T) {
	f := newFixture(t)
	rank := 1
	f.ranker.items = []ranking.RankedItem{{ID: "a", SoundID: "a", Region: "ES", Rank: &rank}}

	rr := f.do(http.MethodGet, "/sounds/period?region=es&range=7d&limit=999&start=2026-05-01T00:00:00Z&end=2026-05-02", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("missing no-store header")
	}

	q := f.ranker.query
	if q.Region.Code() != "ES" || q.Range != ranking.Range7Days || q.Limit != 200 {
		t.Errorf("unexpected query %+v", q)
	}
	if q.Start == nil || !q.Start.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) || q.End == nil {
		t.Errorf("explicit bounds not parsed: %v %v", q.Start, q.End)
	}

	body := decode(t, rr)
	items := body["items"].([]interface{})
	if body["ok"] != true || len(items) != 1 {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPeriodDefaultsAndErrors(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/sounds/period", "", nil)
	if !f.ranker.query.Region.IsAll() || f.ranker.query.Limit != 50 || f.ranker.query.Range != ranking.RangeDay {
		t.Errorf("unexpected defaults %+v", f.ranker.query)
	}

	if rr := f.do(http.MethodGet, "/sounds/period?start=yesterday", "", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad start should be 400, got %d", rr.Code)
	}

	f.ranker.err = errors.New("metadata read failed")
	rr := f.do(http.MethodGet, "/sounds/period?region=ES", "", nil)
	if rr.Code != http.StatusInternalServerError || decode(t, rr)["ok"] != false {
		t.Errorf("enrichment failure should be 500 ok:false, got %d", rr.Code)
	}
}

func TestRefreshRequiresCronKey(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method, target string
		headers        map[string]string
	}{
		{http.MethodPost, "/sounds/refresh", nil},
		{http.MethodPost, "/sounds/refresh", map[string]string{"X-CRON-KEY": "wrong"}},
		{http.MethodPost, "/sounds/refresh?cronKey=s3cret", nil},
	} {
		if rr := f.do(tc.method, tc.target, "", tc.headers); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.target, rr.Code)
		}
	}
	if f.refresher.calls != 0 {
		t.Fatalf("no work may start before auth")
	}
}

func TestRefreshPost(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/sounds/refresh?period=7&backfillPreview=1",
		`{"countries": "Spain, Brazil", "limit": 20, "backfillCount": 3}`,
		map[string]string{"X-CRON-KEY": "s3cret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	opts := f.refresher.opts
	if len(opts.Countries) != 2 || opts.Countries[1] != "Brazil" || opts.Limit != 20 || opts.Period != "7" {
		t.Errorf("unexpected options %+v", opts)
	}
	if !opts.BackfillPreview || opts.BackfillCount != 3 {
		t.Errorf("backfill options not applied: %+v", opts)
	}

	body := decode(t, rr)
	if body["source"] != "alien" || body["run_id"] == "" {
		t.Errorf("unexpected body %v", body)
	}
	totals := body["totals"].(map[string]interface{})
	if _, ok := totals["Spain"]; !ok {
		t.Errorf("missing Spain totals: %v", totals)
	}
	if failed := body["failed"].(map[string]interface{}); failed["Brazil"] != "actor timed out" {
		t.Errorf("unexpected failures %v", failed)
	}
}

func TestRefreshGetWithQueryKey(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/sounds/refresh?cronKey=s3cret&country=Mexico&limit=5", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if opts := f.refresher.opts; len(opts.Countries) != 1 || opts.Countries[0] != "Mexico" || opts.Limit != 5 || opts.Period != "1" {
		t.Errorf("unexpected options %+v", opts)
	}

	if rr := f.do(http.MethodGet, "/sounds/refresh?cronKey=s3cret&period=2", "", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid period should be 400, got %d", rr.Code)
	}
}

func TestPreviewNeverFails(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/sounds/preview?title=Hey%20Sexy%20Lady", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body := decode(t, rr)
	if body["preview_url"] != nil || body["sound_id"] != nil {
		t.Errorf("expected null preview, got %v", body)
	}
	if body["tiktok_url_guess"] != "https://www.tiktok.com/music/hey-sexy-lady" {
		t.Errorf("unexpected guess %v", body["tiktok_url_guess"])
	}
	if q := f.previews.lookups[0]; q.Region != "US" || q.Limit != 5 {
		t.Errorf("unexpected lookup %+v", q)
	}

	// blank title skips the provider
	f.do(http.MethodGet, "/sounds/preview?region=ES&title=", "", nil)
	if len(f.previews.lookups) != 1 {
		t.Errorf("blank title should not search")
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(http.MethodGet, "/sounds/resolve?title=x", "", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing region should be 400, got %d", rr.Code)
	}

	url, id := "https://cdn/1.mp3", "1"
	f.previews.found = preview.Preview{PreviewURL: &url, SoundID: &id}

	rr := f.do(http.MethodGet, "/sounds/resolve?region=es&song_id=1&title=Song", "", nil)
	body := decode(t, rr)
	if body["preview_url"] != url || body["sound_id"] != "1" {
		t.Errorf("unexpected body %v", body)
	}
	if f.previews.resolved[0] != "ES|1|Song" {
		t.Errorf("unexpected resolve args %v", f.previews.resolved)
	}
}

func TestCachePreview(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(http.MethodPost, "/sounds/cache-preview", `{"region":"ES"}`, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("missing sound_id should be 400, got %d", rr.Code)
	}
	if rr := f.do(http.MethodPost, "/sounds/cache-preview", `not json`, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON should be 400, got %d", rr.Code)
	}

	f.previews.skipped = true
	rr := f.do(http.MethodPost, "/sounds/cache-preview", `{"sound_id": 123, "region":"ES"}`, nil)
	if body := decode(t, rr); body["ok"] != true || body["skipped"] != true {
		t.Errorf("expected skipped, got %v", body)
	}

	f.previews.skipped = false
	f.previews.cacheErr = errors.New("db down")
	if rr := f.do(http.MethodPost, "/sounds/cache-preview", `{"sound_id":"1","region":"ES","preview_url":"u"}`, nil); rr.Code != http.StatusInternalServerError {
		t.Errorf("store failure should be 500, got %d", rr.Code)
	}
}

func TestSoundsList(t *testing.T) {
	f := newFixture(t)
	play := "https://cdn/p.mp3"
	rank := 1
	f.sounds.rows = []database.Sound{{SoundID: "a", Region: "ES", Title: "A", PlayURL: &play, Rank: &rank}}

	rr := f.do(http.MethodGet, "/sounds", "", nil)
	if rr.Code != http.StatusOK || f.sounds.region != "ES" {
		t.Fatalf("status %d region %s", rr.Code, f.sounds.region)
	}

	var rows []SoundResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(rows) != 1 || rows[0].PreviewURL == nil || *rows[0].PreviewURL != play {
		t.Errorf("preview_url should fall back to play_url: %+v", rows)
	}
}

func TestCORSPreflight(t *testing.T) {
	rr := newFixture(t).do(http.MethodOptions, "/sounds/refresh", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "X-CRON-KEY") {
		t.Fatalf("unexpected preflight %d %v", rr.Code, rr.Header())
	}
}
