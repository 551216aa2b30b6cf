package search

import "context"

// Search type tags used for weighting and engine specialisation.
const (
	TypeComprehensive = "comprehensive"
	TypeAcademic      = "academic"
	TypeRecent        = "recent"
	TypeExploratory   = "exploratory"
	TypeNews          = "news"
)

// UnknownWeight is the advisory weight applied when neither configuration
// nor the adapter supplies one.
const UnknownWeight = 0.2

// Adapter wraps one external search API behind a uniform contract. Search
// must fail soft: transport and parsing errors come back as an error value
// (never a panic) and the orchestrator converts them into an empty
// contribution from that engine.
type Adapter interface {
	// Name is the engine identifier used in configuration and result tagging.
	Name() string
	// Available reports whether required credentials are present. It gates
	// discovery, not search.
	Available() bool
	// Specialties returns search type tags this engine is strong at.
	Specialties() []string
	// SearchTypeParams returns engine-specific request overrides for a
	// search type, merged into the request params at fan-out.
	SearchTypeParams(searchType string) map[string]any
	// DefaultWeight is the fallback weight when none is configured.
	DefaultWeight(searchType string) float64
	// Search runs one query. params carries engine-specific overrides
	// already translated into this engine's vocabulary.
	Search(ctx context.Context, query string, numResults int, params map[string]any) ([]Result, error)
}

func hasSpecialty(a Adapter, searchType string) bool {
	for _, s := range a.Specialties() {
		if s == searchType {
			return true
		}
	}
	return false
}
