package skills

import (
	"context"
	"errors"
	"log"

	"github.com/orakle-ai/orakle/internal/search"
)

// WebSearchSkill exposes the meta-search orchestrator as a capability.
// Responses are cached when a cache is configured.
type WebSearchSkill struct {
	orchestrator *search.Orchestrator
	cache        *search.Cache
	logger       *log.Logger
}

func NewWebSearchSkill(orchestrator *search.Orchestrator, cache *search.Cache) *WebSearchSkill {
	return &WebSearchSkill{
		orchestrator: orchestrator,
		cache:        cache,
		logger:       log.New(log.Writer(), "[SKILL web_search] ", log.LstdFlags),
	}
}

func (s *WebSearchSkill) Name() string { return "web_search" }

func (s *WebSearchSkill) Description() string {
	return "Search the web across multiple engines and return fused, deduplicated results"
}

func (s *WebSearchSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":        map[string]any{"type": "string"},
			"search_type":  map[string]any{"type": "string", "enum": []string{"comprehensive", "academic", "recent", "exploratory", "news"}},
			"num_results":  map[string]any{"type": "integer"},
			"engines":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recency":      map[string]any{"type": "string"},
			"extra_params": map[string]any{"type": "object"},
		},
		"required": []string{"query"},
	}
}

func (s *WebSearchSkill) Run(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, errors.New("query is required")
	}
	req := search.Request{
		Query:       query,
		SearchType:  stringArg(args, "search_type"),
		NumResults:  intArg(args, "num_results", 0),
		Engines:     stringSliceArg(args, "engines"),
		Recency:     stringArg(args, "recency"),
		ExtraParams: mapArg(args, "extra_params"),
	}
	if resp, ok := s.cache.Get(ctx, req); ok {
		s.logger.Printf("cache hit for %q", query)
		return resp, nil
	}
	resp := s.orchestrator.Run(ctx, req)
	s.cache.Set(ctx, req, resp)
	return resp, nil
}
