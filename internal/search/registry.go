package search

import (
	"log"
	"sort"

	"github.com/orakle-ai/orakle/config"
)

// Registry holds the configured engine adapters, built once at startup from
// credentials in configuration. An engine without credentials is simply not
// registered; that is never an error.
type Registry struct {
	adapters map[string]Adapter
	logger   *log.Logger
}

// NewRegistry instantiates every known adapter whose credentials are
// present. The adapter set is static; new engines register here.
func NewRegistry(cfg config.SearchConfig) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		logger:   log.New(log.Writer(), "[ENGINES] ", log.LstdFlags),
	}
	engine := func(name string) config.EngineConfig { return cfg.Engines[name] }

	candidates := []Adapter{
		NewTavilyAdapter(engine("tavily").APIKey, engine("tavily").BaseURL),
		NewGoogleAdapter(engine("google").APIKey, engine("google").CX, engine("google").BaseURL),
		NewMetaphorAdapter(engine("metaphor").APIKey, engine("metaphor").BaseURL),
		NewNewsAPIAdapter(engine("newsapi").APIKey, engine("newsapi").BaseURL),
		NewPerplexityAdapter(engine("perplexity").APIKey, engine("perplexity").BaseURL),
	}
	for _, a := range candidates {
		if !a.Available() {
			continue
		}
		r.adapters[a.Name()] = a
	}
	r.logger.Printf("initialized %d search engine(s): %v", len(r.adapters), r.Names())
	return r
}

// NewRegistryWithAdapters builds a registry from explicit adapters.
func NewRegistryWithAdapters(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		logger:   log.New(log.Writer(), "[ENGINES] ", log.LstdFlags),
	}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered engine names, sorted for determinism.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
