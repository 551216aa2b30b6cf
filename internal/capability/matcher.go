package capability

import (
	"github.com/blevesearch/bleve"
)

// matcherDoc is what gets indexed per capability for fuzzy lookup.
type matcherDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Matcher is an in-memory full-text index over capability names and
// descriptions, used to answer "which capability fits this request".
type Matcher struct {
	index bleve.Index
}

func NewMatcher(caps []Capability) (*Matcher, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	for _, c := range caps {
		if err := index.Index(c.Name, matcherDoc{Name: c.Name, Description: c.Description}); err != nil {
			_ = index.Close()
			return nil, err
		}
	}
	return &Matcher{index: index}, nil
}

// Match returns up to k capability names ranked by relevance to q.
func (m *Matcher) Match(q string, k int) ([]string, error) {
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := m.index.Search(searchReq)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.ID)
	}
	return out, nil
}

func (m *Matcher) Close() error {
	return m.index.Close()
}
