package apify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:       srv.URL,
		Token:         "tok",
		TrendingActor: "alien_force/tiktok-trending-sounds-tracker",
		PreviewActor:  "novi/tiktok-sound-api",
		Timeout:       5 * time.Second,
		MaxRetries:    2,
	})
	c.backoff = time.Millisecond
	t.Cleanup(c.Close)
	return c
}

func TestFetchCountryTrending(t *testing.T) {
	var gotInput map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acts/alien_force~tiktok-trending-sounds-tracker/run-sync-get-dataset-items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotInput)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"song_id": 7012345678, "title": "First", "author": "A", "rank": 2, "cover_url": "https://img/1.jpg", "duration": 31, "link": "https://www.tiktok.com/music/first-7012345678"},
			{"clip_id": "abc", "title": "Second", "rank": "n/a"},
			{"slug": "third-slug", "rank": null}
		]`)
	})

	items, err := c.FetchCountryTrending(context.Background(), TrendingQuery{Country: "Spain", Limit: 3, Period: "7"})
	if err != nil {
		t.Fatalf("FetchCountryTrending returned error: %v", err)
	}

	if gotInput["country"] != "Spain" || gotInput["period"] != "7" || gotInput["limit"] != float64(3) {
		t.Errorf("unexpected actor input: %#v", gotInput)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].SoundID() != "7012345678" {
		t.Errorf("numeric song_id decoded as %q", items[0].SoundID())
	}
	if r := items[0].Rank.Int(); r == nil || *r != 2 {
		t.Errorf("rank = %v", r)
	}
	if items[1].SoundID() != "abc" || items[1].Rank.Int() != nil {
		t.Errorf("second item: id=%q rank=%v", items[1].SoundID(), items[1].Rank.Int())
	}
	if items[2].SoundID() != "third-slug" || items[2].Rank.Int() != nil {
		t.Errorf("third item: id=%q rank=%v", items[2].SoundID(), items[2].Rank.Int())
	}
}

func TestSearchSoundsDecodesMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("limit query = %q", r.URL.Query().Get("limit"))
		}
		io.WriteString(w, `[{
			"id_str": "998877",
			"title": "Hey",
			"author": "DJ",
			"play_url": {"url_list": ["https://cdn/p.mp3"]},
			"cover_medium": {"url_list": ["", "https://cdn/c.jpg"]},
			"is_commerce_music": true,
			"duration": 15,
			"user_count": "1200"
		}]`)
	})

	items, err := c.SearchSounds(context.Background(), SearchQuery{Region: "US", Keyword: "Hey", Limit: 3})
	if err != nil {
		t.Fatalf("SearchSounds returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	it := items[0]
	if it.SoundID() != "998877" || it.Playable() != "https://cdn/p.mp3" || it.Cover() != "https://cdn/c.jpg" {
		t.Errorf("unexpected media: id=%q play=%q cover=%q", it.SoundID(), it.Playable(), it.Cover())
	}
	if v := it.IsCommerceMusic.Ptr(); v == nil || !*v {
		t.Errorf("commerce flag = %v", v)
	}
	if v := it.UserCount.PositiveInt64(); v == nil || *v != 1200 {
		t.Errorf("user_count = %v", v)
	}
}

func TestRunActorRetriesTransientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[]`)
	})

	var out []SoundItem
	if err := c.RunActor(context.Background(), "novi/tiktok-sound-api", map[string]string{}, 1, &out); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRunActorDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad token"}`)
	})

	var out []SoundItem
	err := c.RunActor(context.Background(), "novi/tiktok-sound-api", nil, 1, &out)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestRateLimiterNilAndClose(t *testing.T) {
	var rl *RateLimiter
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter should not block: %v", err)
	}
	rl.Close()

	rl = NewRateLimiter(2)
	for i := 0; i < 2; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("burst token %d: %v", i, err)
		}
	}
	rl.Close()
	rl.Close()
}

func TestRunActorDoesNotRetrySyncTimeouts(t *testing.T) {
	t.Run("provider 408", func(t *testing.T) {
		var calls int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusRequestTimeout)
		})

		var out []TrendingItem
		if err := c.RunActor(context.Background(), "alien_force/tiktok-trending-sounds-tracker", nil, 1, &out); err == nil {
			t.Fatal("expected an error")
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("expected a single run, got %d", got)
		}
	})

	t.Run("client timeout", func(t *testing.T) {
		var calls int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		c.httpClient.Timeout = 50 * time.Millisecond

		var out []TrendingItem
		if err := c.RunActor(context.Background(), "alien_force/tiktok-trending-sounds-tracker", nil, 1, &out); err == nil {
			t.Fatal("expected a timeout error")
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("expected a single run, got %d", got)
		}
	})
}

func TestNewClientDefaultTimeout(t *testing.T) {
	c := NewClient(Config{})
	defer c.Close()
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}
