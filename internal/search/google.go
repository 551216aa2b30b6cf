package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// GoogleAdapter queries the Google Custom Search JSON API.
// https://developers.google.com/custom-search/v1/overview
type GoogleAdapter struct {
	apiKey     string
	cx         string
	baseURL    string
	httpClient *http.Client
}

func NewGoogleAdapter(apiKey, cx, baseURL string) *GoogleAdapter {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/customsearch/v1"
	}
	return &GoogleAdapter{
		apiKey:     apiKey,
		cx:         cx,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *GoogleAdapter) Name() string    { return "google" }
func (g *GoogleAdapter) Available() bool { return g.apiKey != "" && g.cx != "" }

func (g *GoogleAdapter) Specialties() []string {
	return []string{TypeComprehensive, TypeExploratory}
}

func (g *GoogleAdapter) SearchTypeParams(searchType string) map[string]any {
	if searchType == TypeNews {
		return map[string]any{"sort": "date"}
	}
	return nil
}

func (g *GoogleAdapter) DefaultWeight(searchType string) float64 {
	switch searchType {
	case TypeComprehensive, TypeExploratory:
		return 0.3
	default:
		return 0.25
	}
}

func (g *GoogleAdapter) Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error) {
	// The API caps num at 10 per request.
	if numResults > 10 {
		numResults = 10
	}
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("cx", g.cx)
	q.Set("q", query)
	q.Set("num", fmt.Sprintf("%d", numResults))
	for k, v := range params {
		q.Set(k, fmt.Sprint(v))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google: build request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: API returned status %d", resp.StatusCode)
	}

	var raw struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			PageMap struct {
				CSEImage []struct {
					Src string `json:"src"`
				} `json:"cse_image"`
			} `json:"pagemap"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("google: decode response: %w", err)
	}

	out := make([]Result, 0, len(raw.Items))
	for _, it := range raw.Items {
		r := Result{
			Title:    it.Title,
			Link:     it.Link,
			Snippet:  it.Snippet,
			Provider: "google",
		}
		if len(it.PageMap.CSEImage) > 0 {
			r.ImageURL = it.PageMap.CSEImage[0].Src
		}
		out = append(out, r)
	}
	return out, nil
}
