package index

import (
	"context"
	"math"
	"sort"
)

// Score is the index score of one manifest for a set of query terms.
type Score struct {
	ID         string
	Raw        float64
	Normalized float64
	Matched    []string
}

// Score sums weight × count over every term's postings and normalises each
// manifest's sum by 1/sqrt(indexed unigram count). Results are sorted by id.
//
// The context is checked once, before scoring starts. Once started, every
// term is scored so a ranking is never built from a prefix of the query.
func (ix *Index) Score(ctx context.Context, terms []string) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byID := make(map[string]*Score)
	for _, t := range terms {
		for _, p := range ix.Postings(t) {
			s := byID[p.ID]
			if s == nil {
				s = &Score{ID: p.ID}
				byID[p.ID] = s
			}
			s.Raw += p.Field.Weight() * float64(p.Count)
			if n := len(s.Matched); n == 0 || s.Matched[n-1] != t {
				s.Matched = append(s.Matched, t)
			}
		}
	}

	out := make([]Score, 0, len(byID))
	for _, s := range byID {
		n := ix.DocLen(s.ID)
		if n < 1 {
			n = 1
		}
		s.Normalized = s.Raw / math.Sqrt(float64(n))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
