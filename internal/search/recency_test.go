package search

import (
	"testing"
	"time"
)

func TestParseRecency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    string
		count int
		unit  byte
		ok    bool
	}{
		{"24h", 24, 'h', true},
		{"7d", 7, 'd', true},
		{"2w", 2, 'w', true},
		{"1m", 1, 'm', true},
		{"1y", 1, 'y', true},
		{"", 0, 0, false},
		{"d", 0, 0, false},
		{"7x", 0, 0, false},
		{"-3d", 0, 0, false},
		{"0d", 0, 0, false},
		{"abc", 0, 0, false},
	}
	for _, tt := range tests {
		rec, ok := ParseRecency(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseRecency(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && (rec.Count != tt.count || rec.Unit != tt.unit) {
			t.Fatalf("ParseRecency(%q) = %+v, want count %d unit %c", tt.in, rec, tt.count, tt.unit)
		}
	}
}

func TestRecencyParamsPerEngineVocabulary(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	p := RecencyParams("perplexity", "24h", now)
	if p["search_recency_filter"] != "day" {
		t.Fatalf("perplexity 24h: got %v, want day", p["search_recency_filter"])
	}
	p = RecencyParams("perplexity", "7d", now)
	if p["search_recency_filter"] != "week" {
		t.Fatalf("perplexity 7d: got %v, want week", p["search_recency_filter"])
	}

	p = RecencyParams("metaphor", "7d", now)
	if p["start_published_date"] != "2025-06-08" || p["end_published_date"] != "2025-06-15" {
		t.Fatalf("metaphor 7d: got %v", p)
	}

	p = RecencyParams("newsapi", "7d", now)
	if p["from"] != "2025-06-08" {
		t.Fatalf("newsapi 7d: got %v", p)
	}

	p = RecencyParams("google", "7d", now)
	if p["dateRestrict"] != "d7" {
		t.Fatalf("google 7d: got %v, want d7", p["dateRestrict"])
	}
	p = RecencyParams("google", "36h", now)
	if p["dateRestrict"] != "d2" {
		t.Fatalf("google 36h should round up to d2, got %v", p["dateRestrict"])
	}

	p = RecencyParams("tavily", "2w", now)
	if p["days"] != 14 {
		t.Fatalf("tavily 2w: got %v, want 14", p["days"])
	}
}

func TestRecencyParamsDegradesOnInvalid(t *testing.T) {
	t.Parallel()
	now := time.Now()
	if p := RecencyParams("google", "soon", now); p != nil {
		t.Fatalf("invalid recency must yield no params, got %v", p)
	}
	if p := RecencyParams("unknown_engine", "7d", now); p != nil {
		t.Fatalf("unknown engine must yield no params, got %v", p)
	}
}
