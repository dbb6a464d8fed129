package search

import (
	"sort"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

// less is the total order over match results: score descending, agents
// before skills, newer files first, then id ascending.
func less(a, b MatchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Kind != b.Kind {
		return a.Kind == manifest.KindAgent
	}
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return a.ID < b.ID
}

// SortResults orders results by the total order. Distinct ids never compare
// equal, so the outcome does not depend on the input order.
func SortResults(results []MatchResult) {
	sort.Slice(results, func(i, j int) bool { return less(results[i], results[j]) })
}
