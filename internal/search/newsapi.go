package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// NewsAPIAdapter queries newsapi.org's everything endpoint.
// https://newsapi.org/docs/endpoints/everything
type NewsAPIAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewNewsAPIAdapter(apiKey, baseURL string) *NewsAPIAdapter {
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2/everything"
	}
	return &NewsAPIAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *NewsAPIAdapter) Name() string    { return "newsapi" }
func (n *NewsAPIAdapter) Available() bool { return n.apiKey != "" }

func (n *NewsAPIAdapter) Specialties() []string {
	return []string{TypeNews, TypeRecent}
}

func (n *NewsAPIAdapter) SearchTypeParams(searchType string) map[string]any {
	switch searchType {
	case TypeNews, TypeRecent:
		return map[string]any{"sortBy": "publishedAt"}
	default:
		return map[string]any{"sortBy": "relevancy"}
	}
}

func (n *NewsAPIAdapter) DefaultWeight(searchType string) float64 {
	switch searchType {
	case TypeNews:
		return 0.4
	case TypeRecent:
		return 0.3
	default:
		return 0.15
	}
}

func (n *NewsAPIAdapter) Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("pageSize", fmt.Sprintf("%d", numResults))
	for k, v := range params {
		q.Set(k, fmt.Sprint(v))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi: API returned status %d", resp.StatusCode)
	}

	var raw struct {
		Status   string `json:"status"`
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Author      string `json:"author"`
			URLToImage  string `json:"urlToImage"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("newsapi: decode response: %w", err)
	}
	if raw.Status != "ok" {
		return nil, fmt.Errorf("newsapi: API status %q", raw.Status)
	}

	out := make([]Result, 0, len(raw.Articles))
	for i, a := range raw.Articles {
		if i >= numResults {
			break
		}
		out = append(out, Result{
			Title:         a.Title,
			Link:          a.URL,
			Snippet:       a.Description,
			Provider:      "newsapi",
			PublishedDate: a.PublishedAt,
			Author:        a.Author,
			ImageURL:      a.URLToImage,
		})
	}
	return out, nil
}
