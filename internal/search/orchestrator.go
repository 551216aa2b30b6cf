package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orakle-ai/orakle/config"
	"github.com/orakle-ai/orakle/internal/telemetry"
)

// Request describes one meta-search.
type Request struct {
	Query       string         `json:"query"`
	SearchType  string         `json:"search_type,omitempty"`
	NumResults  int            `json:"num_results,omitempty"`
	Engines     []string       `json:"engines,omitempty"`
	Recency     string         `json:"recency,omitempty"`
	ExtraParams map[string]any `json:"extra_params,omitempty"`
}

// Response is the structured outcome of a meta-search. Failures surface as
// Status "error" with an empty result list, never as an error value.
type Response struct {
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	Query       string   `json:"query"`
	SearchType  string   `json:"search_type"`
	Results     []Result `json:"results"`
	EnginesUsed []string `json:"engines_used,omitempty"`
}

// Orchestrator fans a query out to the selected engines, weights and fuses
// the per-engine lists, deduplicates and truncates.
type Orchestrator struct {
	registry *Registry
	meta     config.MetaSearchConfig
	llm      Reranker
	logger   *log.Logger
	metrics  *telemetry.Telemetry
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator. llm may be nil; llm fusion then
// degrades to weighted fusion.
func NewOrchestrator(registry *Registry, meta config.MetaSearchConfig, llm Reranker, metrics *telemetry.Telemetry) *Orchestrator {
	if meta.FusionStrategy == "" {
		meta.FusionStrategy = "llm"
	}
	if meta.MaxLLMResults <= 0 {
		meta.MaxLLMResults = 30
	}
	return &Orchestrator{
		registry: registry,
		meta:     meta,
		llm:      llm,
		logger:   log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run executes the full meta-search pipeline.
func (o *Orchestrator) Run(ctx context.Context, req Request) Response {
	if req.NumResults <= 0 {
		req.NumResults = 10
	}
	if req.SearchType == "" {
		req.SearchType = TypeComprehensive
	}
	searchID := uuid.New().String()

	engines := o.selectEngines(req.Engines)
	if len(engines) == 0 {
		return Response{
			Status:     "error",
			Message:    "no search engines configured",
			Query:      req.Query,
			SearchType: req.SearchType,
			Results:    []Result{},
		}
	}

	byEngine := o.fanOut(ctx, searchID, req, engines)
	weights := o.collectEngineWeights(req.SearchType, engines)
	scored := o.applyInitialWeighting(req.SearchType, engines, byEngine, weights)

	fused := o.fuse(ctx, req.Query, engines, byEngine, scored, weights)
	fused = RemoveDuplicates(fused)
	if len(fused) > req.NumResults {
		fused = fused[:req.NumResults]
	}
	if fused == nil {
		// A hitless search still carries an array, matching the error path.
		fused = []Result{}
	}

	return Response{
		Status:      "ok",
		Query:       req.Query,
		SearchType:  req.SearchType,
		Results:     fused,
		EnginesUsed: engines,
	}
}

// selectEngines resolves the requested engine list against configuration.
// An empty or "meta" request means all engines; an intersection that comes
// up empty falls back to all engines rather than failing.
func (o *Orchestrator) selectEngines(requested []string) []string {
	all := o.registry.Names()
	useAll := len(requested) == 0
	for _, name := range requested {
		if name == "meta" {
			useAll = true
			break
		}
	}
	if useAll {
		return all
	}
	var selected []string
	for _, name := range requested {
		if _, ok := o.registry.Get(name); ok {
			selected = append(selected, name)
		}
	}
	if len(selected) == 0 {
		o.logger.Printf("none of the requested engines %v are configured, falling back to all", requested)
		return all
	}
	sort.Strings(selected)
	return selected
}

// fanOut issues one concurrent search per engine, each guarded so a single
// engine's failure or panic cannot abort the others. Results are tagged
// with their source engine and keep their per-engine order.
func (o *Orchestrator) fanOut(ctx context.Context, searchID string, req Request, engines []string) map[string][]Result {
	// Overshoot so deduplication doesn't leave us short.
	perEngine := req.NumResults + req.NumResults/2

	byEngine := make(map[string][]Result, len(engines))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range engines {
		adapter, ok := o.registry.Get(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(name string, adapter Adapter) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Printf("[%s] engine %s panicked: %v", searchID, name, r)
					o.metrics.ObserveEngineSearch(name, 0, fmt.Errorf("panic"))
				}
			}()
			params := o.assembleParams(name, adapter, req)
			start := o.now()
			results, err := adapter.Search(ctx, req.Query, perEngine, params)
			o.metrics.ObserveEngineSearch(name, o.now().Sub(start), err)
			if err != nil {
				o.logger.Printf("[%s] engine %s failed: %v", searchID, name, err)
				return
			}
			for i := range results {
				results[i].SourceEngine = name
			}
			mu.Lock()
			byEngine[name] = results
			mu.Unlock()
		}(name, adapter)
	}
	wg.Wait()

	// Once the caller cancels, partial results must not be merged.
	if ctx.Err() != nil {
		return map[string][]Result{}
	}
	return byEngine
}

// assembleParams merges global extras, recency-derived parameters and
// search-type overrides, in that order of increasing precedence.
func (o *Orchestrator) assembleParams(engine string, adapter Adapter, req Request) map[string]any {
	params := make(map[string]any)
	for k, v := range req.ExtraParams {
		params[k] = v
	}
	if req.Recency != "" {
		rp := RecencyParams(engine, req.Recency, o.now())
		if rp == nil {
			o.logger.Printf("recency %q not applicable for engine %s, skipping filter", req.Recency, engine)
		}
		for k, v := range rp {
			params[k] = v
		}
	}
	for k, v := range adapter.SearchTypeParams(req.SearchType) {
		params[k] = v
	}
	return params
}

// collectEngineWeights prefers configured weights over adapter defaults.
func (o *Orchestrator) collectEngineWeights(searchType string, engines []string) map[string]float64 {
	configured := o.meta.Weights[searchType]
	weights := make(map[string]float64, len(engines))
	for _, name := range engines {
		if w, ok := configured[name]; ok {
			weights[name] = w
			continue
		}
		if adapter, ok := o.registry.Get(name); ok {
			weights[name] = adapter.DefaultWeight(searchType)
			continue
		}
		weights[name] = UnknownWeight
	}
	return weights
}

// applyInitialWeighting scores every result before any fusion strategy
// runs, so specialist engines are not drowned out. The position index is
// captured here, at merge time.
func (o *Orchestrator) applyInitialWeighting(searchType string, engines []string, byEngine map[string][]Result, weights map[string]float64) []scoredResult {
	var scored []scoredResult
	for _, name := range engines {
		results := byEngine[name]
		weight, ok := weights[name]
		if !ok {
			weight = UnknownWeight
		}
		boost := 1.0
		if adapter, ok := o.registry.Get(name); ok && hasSpecialty(adapter, searchType) {
			boost = 1.5
		}
		for i, r := range results {
			relevance := r.RelevanceScore
			if relevance == 0 {
				relevance = 1
			}
			scored = append(scored, scoredResult{
				Result:   r,
				Engine:   name,
				Position: i,
				Score:    weight * positionScore(i) * relevance * boost,
			})
		}
	}
	sortScored(scored)
	return scored
}

// fuse dispatches to the configured fusion strategy. llm fusion falls back
// to weighted fusion on any failure.
func (o *Orchestrator) fuse(ctx context.Context, query string, engines []string, byEngine map[string][]Result, scored []scoredResult, weights map[string]float64) []Result {
	switch o.meta.FusionStrategy {
	case "simple":
		grouped := make(map[string][]scoredResult, len(engines))
		for _, it := range scored {
			grouped[it.Engine] = append(grouped[it.Engine], it)
		}
		for _, items := range grouped {
			sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
		}
		return simpleFusion(engines, grouped)
	case "llm":
		fused, err := llmFusion(ctx, o.llm, query, scored, weights, o.meta.MaxLLMResults)
		if err != nil {
			o.logger.Printf("llm fusion failed (%v), falling back to weighted", err)
			o.metrics.RecordFusionFallback("llm")
			return weightedFusion(scored)
		}
		return fused
	default: // weighted
		return weightedFusion(scored)
	}
}
