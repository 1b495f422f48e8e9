package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCoverImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/music/og":
			io.WriteString(w, `<html><head><meta property="og:title" content="Song"><meta property="og:image" content="https://img/og.jpg"></head></html>`)
		case "/music/twitter":
			io.WriteString(w, `<html><head><title> Fallback </title><meta name="twitter:image" content="https://img/tw.jpg"></head></html>`)
		case "/music/bare":
			io.WriteString(w, `<html><head></head></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewScraper()
	s.rateLimiter = NewDomainRateLimiter(0)
	ctx := context.Background()

	img, err := s.CoverImage(ctx, srv.URL+"/music/og")
	if err != nil || img != "https://img/og.jpg" {
		t.Fatalf("og image = %q, %v", img, err)
	}

	meta, err := s.FetchPageMeta(ctx, srv.URL+"/music/twitter")
	if err != nil {
		t.Fatalf("FetchPageMeta error: %v", err)
	}
	if meta.ImageURL != "https://img/tw.jpg" || meta.Title != "Fallback" {
		t.Fatalf("unexpected fallback meta %+v", meta)
	}

	if _, err := s.CoverImage(ctx, srv.URL+"/music/bare"); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}

	if _, err := s.CoverImage(ctx, srv.URL+"/missing"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestDomainRateLimiterHonoursContext(t *testing.T) {
	rl := NewDomainRateLimiter(time.Hour)
	if err := rl.Wait(context.Background(), "www.tiktok.com"); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx, "www.tiktok.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
