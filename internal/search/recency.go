package search

import (
	"fmt"
	"strconv"
	"time"
)

// Recency is a parsed recency filter like "24h" or "7d".
type Recency struct {
	Count    int
	Unit     byte // h, d, w, m, y
	Duration time.Duration
}

// ParseRecency parses the <integer><unit> mini-language. Invalid strings
// return ok=false; callers degrade to "no recency filter".
func ParseRecency(s string) (Recency, bool) {
	if len(s) < 2 {
		return Recency{}, false
	}
	unit := s[len(s)-1]
	count, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || count <= 0 {
		return Recency{}, false
	}
	var per time.Duration
	switch unit {
	case 'h':
		per = time.Hour
	case 'd':
		per = 24 * time.Hour
	case 'w':
		per = 7 * 24 * time.Hour
	case 'm':
		per = 31 * 24 * time.Hour
	case 'y':
		per = 365 * 24 * time.Hour
	default:
		return Recency{}, false
	}
	return Recency{Count: count, Unit: unit, Duration: time.Duration(count) * per}, true
}

// recencyBucket maps a duration onto Perplexity's coarse filter vocabulary.
func recencyBucket(d time.Duration) string {
	switch {
	case d <= time.Hour:
		return "hour"
	case d <= 24*time.Hour:
		return "day"
	case d <= 7*24*time.Hour:
		return "week"
	case d <= 31*24*time.Hour:
		return "month"
	default:
		return "year"
	}
}

// RecencyParams translates a generic recency string into the engine's own
// request vocabulary. Unknown engines and invalid strings yield no params.
func RecencyParams(engine, recency string, now time.Time) map[string]any {
	rec, ok := ParseRecency(recency)
	if !ok {
		return nil
	}
	start := now.Add(-rec.Duration)
	switch engine {
	case "perplexity":
		return map[string]any{"search_recency_filter": recencyBucket(rec.Duration)}
	case "metaphor":
		return map[string]any{
			"start_published_date": start.Format("2006-01-02"),
			"end_published_date":   now.Format("2006-01-02"),
		}
	case "newsapi":
		return map[string]any{"from": start.Format("2006-01-02")}
	case "google":
		// dateRestrict has no hour granularity; hours round up to whole days.
		if rec.Unit == 'h' {
			days := (rec.Count + 23) / 24
			return map[string]any{"dateRestrict": fmt.Sprintf("d%d", days)}
		}
		return map[string]any{"dateRestrict": fmt.Sprintf("%c%d", rec.Unit, rec.Count)}
	case "tavily":
		days := int(rec.Duration.Hours() / 24)
		if days < 1 {
			days = 1
		}
		return map[string]any{"days": days}
	default:
		return nil
	}
}
