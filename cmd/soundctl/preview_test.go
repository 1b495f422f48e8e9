package main

import (
	"testing"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want apify.SortType
	}{
		{"most-used", apify.SortMostUsed},
		{" Relevance ", apify.SortRelevance},
		{"longest", apify.SortLongest},
	}
	for _, tt := range tests {
		if got, err := parseSort(tt.in); err != nil || got != tt.want {
			t.Errorf("parseSort(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if _, err := parseSort("popular"); err == nil {
		t.Error("expected an error for an unknown sort")
	}
}

func TestRootRegistersSubcommands(t *testing.T) {
	want := map[string]bool{"refresh": false, "rank": false, "resolve": false, "preview": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
