package apify

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into a string. Provider ids
// arrive as either depending on the actor version.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects and arrays are not ids
		*f = ""
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

// Number decodes a JSON number or numeric string. Anything else decodes to
// "absent" instead of failing the whole payload.
type Number struct {
	value float64
	valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Number{value: f, valid: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = Number{value: f, valid: true}
		}
	}
	return nil
}

// Int returns the value truncated to int, or nil when absent or outside the
// int32 range
func (n Number) Int() *int {
	if !n.valid || math.IsNaN(n.value) || n.value < math.MinInt32 || n.value > math.MaxInt32 {
		return nil
	}
	v := int(n.value)
	return &v
}

// Int64 returns the value truncated to int64, or nil when absent or not
// representable
func (n Number) Int64() *int64 {
	if !n.valid || math.IsNaN(n.value) || n.value < -(1<<63) || n.value >= 1<<63 {
		return nil
	}
	v := int64(n.value)
	return &v
}

// PositiveInt64 is Int64 but treats zero as absent
func (n Number) PositiveInt64() *int64 {
	v := n.Int64()
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// Bool decodes a JSON boolean; any other value decodes to "unknown".
type Bool struct {
	value bool
	valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (b *Bool) UnmarshalJSON(data []byte) error {
	*b = Bool{}
	if isNull(bytes.TrimSpace(data)) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = Bool{value: v, valid: true}
	}
	return nil
}

// Ptr returns the tri-state value
func (b Bool) Ptr() *bool {
	if !b.valid {
		return nil
	}
	v := b.value
	return &v
}

// URLList is the {"url_list": [...]} shape the sound search actor uses for media
type URLList struct {
	URLList []string `json:"url_list"`
}

// UnmarshalJSON accepts the object form or a bare URL string
func (u *URLList) UnmarshalJSON(data []byte) error {
	*u = URLList{}
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		u.URLList = []string{s}
		return nil
	}

	var raw struct {
		URLList []string `json:"url_list"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	u.URLList = raw.URLList
	return nil
}

// First returns the first non-empty URL
func (u *URLList) First() string {
	if u == nil {
		return ""
	}
	for _, s := range u.URLList {
		if s != "" {
			return s
		}
	}
	return ""
}

// TrendingItem is one dataset row of the country trending actor
type TrendingItem struct {
	SongID   FlexString `json:"song_id"`
	ClipID   FlexString `json:"clip_id"`
	ID       FlexString `json:"id"`
	Slug     FlexString `json:"slug"`
	Title    string     `json:"title"`
	Author   string     `json:"author"`
	Rank     Number     `json:"rank"`
	CoverURL string     `json:"cover_url"`
	Duration Number     `json:"duration"`
	Link     string     `json:"link"`
}

// SoundID returns the first populated identifier
func (t TrendingItem) SoundID() string {
	for _, id := range []FlexString{t.SongID, t.ClipID, t.ID, t.Slug} {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

// SoundItem is one dataset row of the sound search actor
type SoundItem struct {
	IDStr           string     `json:"id_str"`
	ID              FlexString `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	PlayURL         *URLList   `json:"play_url"`
	CoverLarge      *URLList   `json:"cover_large"`
	CoverMedium     *URLList   `json:"cover_medium"`
	CoverThumb      *URLList   `json:"cover_thumb"`
	IsCommerceMusic Bool       `json:"is_commerce_music"`
	Duration        Number     `json:"duration"`
	UserCount       Number     `json:"user_count"`
}

// SoundID returns id_str, falling back to id
func (s SoundItem) SoundID() string {
	if s.IDStr != "" {
		return s.IDStr
	}
	return string(s.ID)
}

// Playable returns the first playable audio URL
func (s SoundItem) Playable() string {
	return s.PlayURL.First()
}

// Cover returns the largest available cover image
func (s SoundItem) Cover() string {
	for _, list := range []*URLList{s.CoverLarge, s.CoverMedium, s.CoverThumb} {
		if u := list.First(); u != "" {
			return u
		}
	}
	return ""
}
