package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ranking"
)

func intp(n int) *int { return &n }

func TestFormatDelta(t *testing.T) {
	tests := []struct {
		name  string
		delta *int
		want  string
	}{
		{"none", nil, ""},
		{"climbed", intp(6), "+6"},
		{"fell", intp(-2), "-2"},
		{"flat", intp(0), "="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDelta(tt.delta); got != tt.want {
				t.Errorf("formatDelta() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFlagTime(t *testing.T) {
	if got, err := parseFlagTime(""); err != nil || got != nil {
		t.Fatalf("empty input: got %v, %v", got, err)
	}

	got, err := parseFlagTime("2026-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parsed %v", got)
	}

	if _, err := parseFlagTime("yesterday"); err == nil {
		t.Error("expected an error for an unrecognized time")
	}
}

func TestRenderRanking(t *testing.T) {
	title := strings.Repeat("long title ", 10)
	author := "DJ Test"
	users := int64(1200)

	res := ranking.Result{
		Strategy: ranking.StrategyPrimary,
		Window: ranking.Window{
			Start: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC),
		},
		Items: []ranking.RankedItem{
			{ID: "a", SoundID: "a", Region: "ES", Rank: intp(1), Title: &title, Author: &author, UserCount: &users, DeltaRank: intp(3)},
			{ID: "b", SoundID: "b", Region: "MX"},
		},
	}

	var buf bytes.Buffer
	renderRanking(&buf, res)
	out := buf.String()

	for _, want := range []string{"2026-05-10 00:00", "primary", "+3", "DJ Test", "1200", "MX", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, title) {
		t.Error("long title was not truncated")
	}
}
