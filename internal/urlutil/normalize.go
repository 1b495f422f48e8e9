package urlutil

import (
	"net/url"
	"strings"

	"github.com/gosimple/slug"
	"github.com/goware/urlx"
)

// Query parameters TikTok share links carry that do not identify the resource
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign",
	"utm_term", "utm_content",
	"_r", "_t", "is_from_webapp", "sender_device", "sender_web_id",
	"is_copy_url", "lang", "refer", "referer_url",
}

// Normalize cleans a TikTok page or media URL:
// - lowercases scheme and host, drops default ports (urlx)
// - removes share-tracking query parameters
// - removes fragments and trailing slashes
// Media CDN URLs keep their signed query string apart from tracking params.
func Normalize(rawURL string) (string, error) {
	parsed, err := urlx.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	normalized, err := urlx.Normalize(parsed)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return normalized, nil
	}

	q := u.Query()
	for _, param := range trackingParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.Fragment = ""

	return u.String(), nil
}

// NormalizeOptional normalizes a nullable URL, returning nil for blanks and
// the original value when it cannot be parsed.
func NormalizeOptional(rawURL *string) *string {
	if rawURL == nil || strings.TrimSpace(*rawURL) == "" {
		return nil
	}
	n, err := Normalize(*rawURL)
	if err != nil {
		return rawURL
	}
	return &n
}

// MusicPageURL guesses the TikTok music page for a sound:
// https://www.tiktok.com/music/<slug>[-<id>]
func MusicPageURL(title, soundID string) string {
	page := "https://www.tiktok.com/music/" + slug.Make(title)
	if soundID != "" {
		page += "-" + soundID
	}
	return page
}
