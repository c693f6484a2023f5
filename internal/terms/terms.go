// Package terms defines the trending-term value types shared by every stage of
// a run: single terms, per-source batches and deduplicated sets.
package terms

// Batch is the ordered output of one source invocation. A failed fetch yields
// an empty Batch, never an error.
type Batch []string

// Set is a deduplicated collection of terms. Membership is exact string
// equality. Terms are kept in first-seen order.
//
// The zero value is an empty set ready to use.
type Set struct {
	seen  map[string]struct{}
	order []string
}

// NewSet builds a Set from the given batches.
func NewSet(batches ...Batch) Set {
	var s Set
	for _, b := range batches {
		s.AddBatch(b)
	}
	return s
}

// Add inserts term and reports whether it was new. Empty terms are rejected.
func (s *Set) Add(term string) bool {
	if term == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[term]; ok {
		return false
	}
	s.seen[term] = struct{}{}
	s.order = append(s.order, term)
	return true
}

// AddBatch inserts every term of b and returns how many were new.
func (s *Set) AddBatch(b Batch) int {
	added := 0
	for _, term := range b {
		if s.Add(term) {
			added++
		}
	}
	return added
}

// Union inserts every term of other and returns how many were new.
func (s *Set) Union(other Set) int {
	return s.AddBatch(other.order)
}

// Contains reports whether term is a member.
func (s Set) Contains(term string) bool {
	_, ok := s.seen[term]
	return ok
}

// Len returns the number of distinct terms.
func (s Set) Len() int {
	return len(s.order)
}

// Empty reports whether the set holds no terms.
func (s Set) Empty() bool {
	return len(s.order) == 0
}

// Terms returns a copy of the members in first-seen order.
func (s Set) Terms() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
