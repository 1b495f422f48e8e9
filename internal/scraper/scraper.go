// Package scraper reads OpenGraph metadata from public TikTok music pages.
// It is used to recover a cover image when neither provider supplied one.
package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoImage is returned when a page carries no usable image tag
var ErrNoImage = errors.New("page has no og:image")

// PageMeta holds the OpenGraph fields of a music page
type PageMeta struct {
	Title    string
	ImageURL string
}

// DomainRateLimiter enforces per-domain spacing between requests
type DomainRateLimiter struct {
	lastRequest map[string]time.Time
	mu          sync.Mutex
	minDelay    time.Duration
}

// NewDomainRateLimiter creates a new rate limiter
func NewDomainRateLimiter(minDelay time.Duration) *DomainRateLimiter {
	return &DomainRateLimiter{
		lastRequest: make(map[string]time.Time),
		minDelay:    minDelay,
	}
}

// Wait blocks until minDelay has passed since the last request to domain
func (d *DomainRateLimiter) Wait(ctx context.Context, domain string) error {
	d.mu.Lock()
	var wait time.Duration
	if last, ok := d.lastRequest[domain]; ok {
		if elapsed := time.Since(last); elapsed < d.minDelay {
			wait = d.minDelay - elapsed
		}
	}
	d.lastRequest[domain] = time.Now().Add(wait)
	d.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Scraper fetches OpenGraph tags from pages
type Scraper struct {
	client      *http.Client
	http1Client *http.Client
	rateLimiter *DomainRateLimiter
	maxBodySize int64
	maxRetries  int
	backoff     time.Duration
}

// NewScraper creates a new scraper
func NewScraper() *Scraper {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}

	// HTTP/1.1-only client for servers that reset HTTP/2 streams
	http1Transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	http1Transport.TLSNextProto = make(map[string]func(authority string, c *tls.Conn) http.RoundTripper)

	return &Scraper{
		client:      client,
		http1Client: &http.Client{Timeout: 10 * time.Second, Transport: http1Transport},
		rateLimiter: NewDomainRateLimiter(1 * time.Second),
		maxBodySize: 1024 * 1024,
		maxRetries:  2,
		backoff:     500 * time.Millisecond,
	}
}

// CoverImage returns the og:image (or twitter:image) of a page
func (s *Scraper) CoverImage(ctx context.Context, pageURL string) (string, error) {
	meta, err := s.FetchPageMeta(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if meta.ImageURL == "" {
		return "", ErrNoImage
	}
	return meta.ImageURL, nil
}

// FetchPageMeta fetches OpenGraph metadata with retry on transient errors
func (s *Scraper) FetchPageMeta(ctx context.Context, pageURL string) (*PageMeta, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", pageURL)
	}

	if err := s.rateLimiter.Wait(ctx, parsed.Host); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		meta, err := s.fetchOnce(ctx, pageURL)
		if err == nil {
			return meta, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}

		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff * time.Duration(1<<attempt)):
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", s.maxRetries, lastErr)
}

func (s *Scraper) fetchOnce(ctx context.Context, pageURL string) (*PageMeta, error) {
	meta, err := s.fetchWithClient(ctx, pageURL, s.client)
	if err != nil {
		if strings.Contains(err.Error(), "stream error") || strings.Contains(err.Error(), "INTERNAL_ERROR") {
			return s.fetchWithClient(ctx, pageURL, s.http1Client)
		}
		return nil, err
	}
	return meta, nil
}

type statusError int

func (e statusError) Error() string { return fmt.Sprintf("status code: %d", int(e)) }

func isRetryableError(err error) bool {
	var status statusError
	if errors.As(err, &status) {
		return status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF")
}

func (s *Scraper) fetchWithClient(ctx context.Context, pageURL string, client *http.Client) (*PageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	// Browser-like headers; TikTok serves a bare shell to unknown agents
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, err
	}

	meta := &PageMeta{}
	doc.Find("meta").Each(func(i int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")

		switch property {
		case "og:title":
			meta.Title = content
		case "og:image":
			if meta.ImageURL == "" {
				meta.ImageURL = content
			}
		}
	})

	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.ImageURL == "" {
		if img, ok := doc.Find("meta[name='twitter:image']").Attr("content"); ok {
			meta.ImageURL = img
		}
	}

	return meta, nil
}
