package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MetaphorAdapter queries the Metaphor (Exa) neural search API.
// https://docs.exa.ai/
type MetaphorAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewMetaphorAdapter(apiKey, baseURL string) *MetaphorAdapter {
	if baseURL == "" {
		baseURL = "https://api.exa.ai/search"
	}
	return &MetaphorAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *MetaphorAdapter) Name() string    { return "metaphor" }
func (m *MetaphorAdapter) Available() bool { return m.apiKey != "" }

func (m *MetaphorAdapter) Specialties() []string {
	return []string{TypeAcademic, TypeExploratory}
}

func (m *MetaphorAdapter) SearchTypeParams(searchType string) map[string]any {
	switch searchType {
	case TypeAcademic:
		return map[string]any{"category": "research paper"}
	case TypeNews:
		return map[string]any{"category": "news"}
	default:
		return nil
	}
}

func (m *MetaphorAdapter) DefaultWeight(searchType string) float64 {
	switch searchType {
	case TypeAcademic:
		return 0.35
	case TypeExploratory:
		return 0.3
	default:
		return UnknownWeight
	}
}

func (m *MetaphorAdapter) Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error) {
	payload := map[string]any{
		"query":      query,
		"numResults": numResults,
		"type":       "auto",
	}
	for k, v := range params {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("metaphor: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("metaphor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metaphor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metaphor: API returned status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			PublishedDate string  `json:"publishedDate"`
			Author        string  `json:"author"`
			Score         float64 `json:"score"`
			Text          string  `json:"text"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("metaphor: decode response: %w", err)
	}

	out := make([]Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if i >= numResults {
			break
		}
		out = append(out, Result{
			Title:          r.Title,
			Link:           r.URL,
			Snippet:        r.Text,
			Provider:       "metaphor",
			RelevanceScore: r.Score,
			PublishedDate:  r.PublishedDate,
			Author:         r.Author,
		})
	}
	return out, nil
}
