package skills

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	fetchTimeout  = 30 * time.Second
	fetchMaxChars = 12000
	fetchMaxBody  = 4 << 20
)

// FetchResult is the extracted article content of one page.
type FetchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Byline  string `json:"byline,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Text    string `json:"text"`
	Image   string `json:"image,omitempty"`
	Status  int    `json:"status"`
}

// WebFetchSkill fetches a URL and extracts its main readable content.
type WebFetchSkill struct {
	client *http.Client
	logger *log.Logger
}

func NewWebFetchSkill() *WebFetchSkill {
	return &WebFetchSkill{
		client: &http.Client{Timeout: fetchTimeout},
		logger: log.New(log.Writer(), "[SKILL web_fetch] ", log.LstdFlags),
	}
}

func (s *WebFetchSkill) Name() string { return "web_fetch" }

func (s *WebFetchSkill) Description() string {
	return "Fetch a web page and extract its main article content as plain text"
}

func (s *WebFetchSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":       map[string]any{"type": "string"},
			"max_chars": map[string]any{"type": "integer"},
		},
		"required": []string{"url"},
	}
}

func (s *WebFetchSkill) Run(ctx context.Context, args map[string]any) (any, error) {
	link := strings.TrimSpace(stringArg(args, "url"))
	if link == "" {
		return nil, errors.New("url is required")
	}
	parsed, err := url.Parse(link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", link)
	}
	maxChars := intArg(args, "max_chars", fetchMaxChars)
	if maxChars <= 0 || maxChars > fetchMaxChars {
		maxChars = fetchMaxChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "orakle/1.0")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: status %d", link, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, fetchMaxBody), parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting content from %s: %w", link, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return FetchResult{
		URL:     link,
		Title:   strings.TrimSpace(article.Title),
		Byline:  strings.TrimSpace(article.Byline),
		Excerpt: strings.TrimSpace(article.Excerpt),
		Text:    text,
		Image:   article.Image,
		Status:  resp.StatusCode,
	}, nil
}
