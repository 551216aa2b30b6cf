package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PerplexityAdapter queries Perplexity's online chat-completion API. Unlike
// the other engines it returns a generated answer with citations; the answer
// becomes a single synthetic high-relevance result with an empty link, and
// the citations follow it as ordinary link results.
type PerplexityAdapter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewPerplexityAdapter(apiKey, baseURL string) *PerplexityAdapter {
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai/chat/completions"
	}
	return &PerplexityAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      "sonar",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PerplexityAdapter) Name() string    { return "perplexity" }
func (p *PerplexityAdapter) Available() bool { return p.apiKey != "" }

func (p *PerplexityAdapter) Specialties() []string {
	return []string{TypeRecent, TypeNews}
}

func (p *PerplexityAdapter) SearchTypeParams(searchType string) map[string]any {
	if searchType == TypeAcademic {
		return map[string]any{"search_mode": "academic"}
	}
	return nil
}

func (p *PerplexityAdapter) DefaultWeight(searchType string) float64 {
	switch searchType {
	case TypeRecent:
		return 0.4
	case TypeNews:
		return 0.3
	default:
		return 0.25
	}
}

func (p *PerplexityAdapter) Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error) {
	payload := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": "Answer concisely with well-sourced facts."},
			{"role": "user", "content": query},
		},
	}
	for k, v := range params {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("perplexity: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("perplexity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("perplexity: API returned status %d", resp.StatusCode)
	}

	var raw struct {
		Citations []string `json:"citations"`
		Choices   []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("perplexity: decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("perplexity: no choices in response")
	}

	out := []Result{{
		Title:          fmt.Sprintf("Perplexity answer: %s", query),
		Link:           "",
		Snippet:        raw.Choices[0].Message.Content,
		Provider:       "perplexity",
		RelevanceScore: 0.95,
	}}
	for i, c := range raw.Citations {
		if len(out) > numResults {
			break
		}
		out = append(out, Result{
			Title:          fmt.Sprintf("Source %d", i+1),
			Link:           c,
			Provider:       "perplexity",
			RelevanceScore: 0.5,
		})
	}
	return out, nil
}
