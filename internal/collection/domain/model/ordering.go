package model

// DefaultOrderingCandidates are tried in order when a collection has no override.
var DefaultOrderingCandidates = []string{FieldCreatedAt, FieldUpdatedAt}

// OrderingPolicy holds the ordering candidates per collection. Candidates are
// re-tried on every fetch; the first accepted column is never cached.
type OrderingPolicy struct {
	defaults  []string
	overrides map[string][]string
}

// NewOrderingPolicy creates a policy. An empty defaults slice means
// DefaultOrderingCandidates.
func NewOrderingPolicy(defaults []string) *OrderingPolicy {
	if len(defaults) == 0 {
		defaults = DefaultOrderingCandidates
	}
	return &OrderingPolicy{
		defaults:  append([]string(nil), defaults...),
		overrides: make(map[string][]string),
	}
}

// Override sets the candidates of one collection. An empty slice means the
// collection is always read unordered.
func (p *OrderingPolicy) Override(collection string, candidates []string) *OrderingPolicy {
	p.overrides[collection] = append([]string{}, candidates...)
	return p
}

// Candidates returns a copy of the candidates for the collection.
func (p *OrderingPolicy) Candidates(collection string) []string {
	if c, ok := p.overrides[collection]; ok {
		return append([]string(nil), c...)
	}
	return append([]string(nil), p.defaults...)
}
