package search

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/orakle-ai/orakle/config"
)

type fakeAdapter struct {
	name        string
	specialties []string
	weight      float64
	results     []Result
	err         error
	typeParams  map[string]any

	gotParams map[string]any
	gotNum    int
}

func (f *fakeAdapter) Name() string          { return f.name }
func (f *fakeAdapter) Available() bool       { return true }
func (f *fakeAdapter) Specialties() []string { return f.specialties }
func (f *fakeAdapter) SearchTypeParams(searchType string) map[string]any {
	return f.typeParams
}
func (f *fakeAdapter) DefaultWeight(searchType string) float64 { return f.weight }
func (f *fakeAdapter) Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error) {
	f.gotParams = params
	f.gotNum = numResults
	return f.results, f.err
}

func testOrchestrator(meta config.MetaSearchConfig, llm Reranker, adapters ...Adapter) *Orchestrator {
	o := NewOrchestrator(NewRegistryWithAdapters(adapters...), meta, llm, nil)
	o.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return o
}

func TestRunDeduplicatesAcrossEngines(t *testing.T) {
	t.Parallel()
	tavily := &fakeAdapter{
		name:   "tavily",
		weight: 0.35,
		results: []Result{
			{Title: "tavily a", Link: "https://example.com/a"},
			{Title: "tavily b", Link: "https://example.com/b"},
			{Title: "tavily c", Link: "https://example.com/c"},
		},
	}
	google := &fakeAdapter{
		name:   "google",
		weight: 0.25,
		results: []Result{
			{Title: "google a", Link: "http://www.example.com/a"},
			{Title: "google d", Link: "https://example.com/d"},
			{Title: "google e", Link: "https://example.com/e"},
		},
	}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, tavily, google)

	resp := o.Run(context.Background(), Request{Query: "q", NumResults: 10})
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if len(resp.Results) != 5 {
		t.Fatalf("expected 5 results after dedup, got %d", len(resp.Results))
	}
	var copies int
	for _, r := range resp.Results {
		if NormalizeURL(r.Link) == "example.com/a" {
			copies++
			if r.SourceEngine != "tavily" {
				t.Fatalf("shared URL attributed to %s, want tavily", r.SourceEngine)
			}
		}
	}
	if copies != 1 {
		t.Fatalf("shared URL appears %d times, want exactly once", copies)
	}
}

func TestRunIsolatesEngineFailures(t *testing.T) {
	t.Parallel()
	good := &fakeAdapter{
		name:    "good",
		weight:  0.3,
		results: []Result{{Title: "hit", Link: "https://example.com/hit"}},
	}
	bad := &fakeAdapter{name: "bad", weight: 0.3, err: errors.New("connection refused")}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, good, bad)

	resp := o.Run(context.Background(), Request{Query: "q"})
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok despite one failing engine", resp.Status)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "hit" {
		t.Fatalf("expected only the healthy engine's result, got %+v", resp.Results)
	}
}

func TestRunOvershootsPerEngine(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{name: "a", weight: 0.3}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, a)

	o.Run(context.Background(), Request{Query: "q", NumResults: 10})
	if a.gotNum != 15 {
		t.Fatalf("per-engine request = %d, want 15 (1.5x overshoot)", a.gotNum)
	}
}

func TestSelectEnginesFallsBackToAll(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{name: "a", weight: 0.3}
	b := &fakeAdapter{name: "b", weight: 0.3}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, a, b)

	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{name: "empty means all", requested: nil, want: []string{"a", "b"}},
		{name: "meta means all", requested: []string{"meta"}, want: []string{"a", "b"}},
		{name: "intersection", requested: []string{"b", "nope"}, want: []string{"b"}},
		{name: "empty intersection falls back to all", requested: []string{"nope"}, want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := o.selectEngines(tt.requested); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("selectEngines(%v) = %v, want %v", tt.requested, got, tt.want)
			}
		})
	}
}

func TestRunNoEnginesIsErrorStatus(t *testing.T) {
	t.Parallel()
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil)
	resp := o.Run(context.Background(), Request{Query: "q"})
	if resp.Status != "error" {
		t.Fatalf("status = %q, want error", resp.Status)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected empty results, got %d", len(resp.Results))
	}
}

func TestRunNoHitsStillCarriesResultsArray(t *testing.T) {
	t.Parallel()
	empty := &fakeAdapter{name: "a", weight: 0.3}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, empty)

	resp := o.Run(context.Background(), Request{Query: "nothing matches"})
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if resp.Results == nil {
		t.Fatalf("a hitless search must return an empty slice, not nil")
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"results":[]`) {
		t.Fatalf("response must serialize results as an array, got %s", b)
	}
}

func TestRunCancelledContextMergesNothing(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{
		name:    "a",
		weight:  0.3,
		results: []Result{{Title: "late", Link: "https://example.com/late"}},
	}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := o.Run(ctx, Request{Query: "q"})
	if len(resp.Results) != 0 {
		t.Fatalf("cancelled request must not merge partial results, got %d", len(resp.Results))
	}
}

func TestCollectEngineWeightsPrefersConfig(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{name: "a", weight: 0.3}
	meta := config.MetaSearchConfig{
		FusionStrategy: "weighted",
		Weights:        map[string]map[string]float64{"news": {"a": 0.7}},
	}
	o := testOrchestrator(meta, nil, a)

	w := o.collectEngineWeights("news", []string{"a"})
	if w["a"] != 0.7 {
		t.Fatalf("configured weight must win, got %v", w["a"])
	}
	w = o.collectEngineWeights("comprehensive", []string{"a"})
	if w["a"] != 0.3 {
		t.Fatalf("adapter default expected, got %v", w["a"])
	}
}

func TestSpecialistBoost(t *testing.T) {
	t.Parallel()
	specialist := &fakeAdapter{
		name:        "news_engine",
		weight:      0.2,
		specialties: []string{TypeNews},
		results:     []Result{{Title: "specialist", Link: "https://example.com/s"}},
	}
	generalist := &fakeAdapter{
		name:    "general",
		weight:  0.2,
		results: []Result{{Title: "generalist", Link: "https://example.com/g"}},
	}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, specialist, generalist)

	byEngine := map[string][]Result{
		"news_engine": specialist.results,
		"general":     generalist.results,
	}
	weights := o.collectEngineWeights(TypeNews, []string{"general", "news_engine"})
	scored := o.applyInitialWeighting(TypeNews, []string{"general", "news_engine"}, byEngine, weights)
	if scored[0].Engine != "news_engine" {
		t.Fatalf("specialist must rank first, got %s", scored[0].Engine)
	}
	if got, want := scored[0].Score, 0.2*1.5; math.Abs(got-want) > 1e-9 {
		t.Fatalf("specialist score = %v, want %v", got, want)
	}
}

func TestLLMStrategyFallsBackToWeighted(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{
		name:   "a",
		weight: 0.3,
		results: []Result{
			{Title: "one", Link: "https://example.com/1"},
			{Title: "two", Link: "https://example.com/2"},
		},
	}
	meta := config.MetaSearchConfig{FusionStrategy: "llm"}

	broken := testOrchestrator(meta, stubReranker{err: errors.New("model down")}, a)
	weighted := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, a)

	got := broken.Run(context.Background(), Request{Query: "q"})
	want := weighted.Run(context.Background(), Request{Query: "q"})
	if !reflect.DeepEqual(got.Results, want.Results) {
		t.Fatalf("llm fallback output differs from weighted fusion:\ngot  %+v\nwant %+v", got.Results, want.Results)
	}

	// No reranker configured at all degrades the same way.
	noLLM := testOrchestrator(meta, nil, a)
	got = noLLM.Run(context.Background(), Request{Query: "q"})
	if !reflect.DeepEqual(got.Results, want.Results) {
		t.Fatalf("nil reranker fallback differs from weighted fusion")
	}
}

func TestAssembleParamsPrecedence(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{
		name:       "tavily",
		weight:     0.3,
		typeParams: map[string]any{"topic": "news"},
	}
	o := testOrchestrator(config.MetaSearchConfig{FusionStrategy: "weighted"}, nil, a)

	req := Request{
		Query:       "q",
		SearchType:  TypeNews,
		Recency:     "7d",
		ExtraParams: map[string]any{"topic": "general", "lang": "en"},
	}
	params := o.assembleParams("tavily", a, req)
	if params["topic"] != "news" {
		t.Fatalf("search-type params must win over extras, got %v", params["topic"])
	}
	if params["lang"] != "en" {
		t.Fatalf("extras must pass through, got %v", params["lang"])
	}
	if params["days"] != 7 {
		t.Fatalf("recency params missing, got %v", params["days"])
	}
}
