package search

import "strings"

// Result is one search hit as returned by an engine adapter. Adapters fill
// everything except SourceEngine, which the orchestrator sets after fan-out
// so an adapter can be reused across engine registrations.
type Result struct {
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Snippet        string  `json:"snippet"`
	Provider       string  `json:"provider"`
	SourceEngine   string  `json:"source_engine,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	PublishedDate  string  `json:"published_date,omitempty"`
	Author         string  `json:"author,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
}

// NormalizeURL canonicalises a link for deduplication: lowercase, scheme and
// www. stripped, query string and trailing slash removed. An empty string
// means the result has no usable URL and must never be deduplicated.
func NormalizeURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	return s
}

// RemoveDuplicates drops results whose normalized URL was already seen,
// keeping the first occurrence. Results without a URL always pass through.
func RemoveDuplicates(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := NormalizeURL(r.Link)
		if key == "" {
			out = append(out, r)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
