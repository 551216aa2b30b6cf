package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TavilyAdapter queries the Tavily search API.
// https://docs.tavily.com/
type TavilyAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewTavilyAdapter(apiKey, baseURL string) *TavilyAdapter {
	if baseURL == "" {
		baseURL = "https://api.tavily.com/search"
	}
	return &TavilyAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TavilyAdapter) Name() string    { return "tavily" }
func (t *TavilyAdapter) Available() bool { return t.apiKey != "" }

func (t *TavilyAdapter) Specialties() []string {
	return []string{TypeComprehensive, TypeNews}
}

func (t *TavilyAdapter) SearchTypeParams(searchType string) map[string]any {
	switch searchType {
	case TypeNews:
		return map[string]any{"search_depth": "advanced", "topic": "news"}
	case TypeComprehensive:
		return map[string]any{"search_depth": "advanced"}
	default:
		return nil
	}
}

func (t *TavilyAdapter) DefaultWeight(searchType string) float64 {
	switch searchType {
	case TypeComprehensive:
		return 0.35
	case TypeNews:
		return 0.3
	default:
		return 0.25
	}
}

func (t *TavilyAdapter) Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error) {
	payload := map[string]any{
		"query":       query,
		"max_results": numResults,
	}
	for k, v := range params {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: API returned status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			Content       string  `json:"content"`
			Score         float64 `json:"score"`
			PublishedDate string  `json:"published_date"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	out := make([]Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if i >= numResults {
			break
		}
		out = append(out, Result{
			Title:          r.Title,
			Link:           r.URL,
			Snippet:        r.Content,
			Provider:       "tavily",
			RelevanceScore: r.Score,
			PublishedDate:  r.PublishedDate,
		})
	}
	return out, nil
}
