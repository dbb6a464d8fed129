package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search/index"
)

// ErrCorruptIndex is returned when the index names a manifest the corpus
// does not hold.
var ErrCorruptIndex = errors.New("index references unknown manifest")

// Corpus is the read-only view of a snapshot the matcher ranks against.
type Corpus interface {
	Manifest(id string) (*manifest.Manifest, bool)
	Index() *index.Index
}

// MatchResult is one ranked manifest.
type MatchResult struct {
	ID          string        `json:"id"`
	Kind        manifest.Kind `json:"kind"`
	Score       float64       `json:"score"`
	IndexScore  float64       `json:"indexScore"`
	DomainBoost float64       `json:"domainBoost"`
	Matched     []string      `json:"matched,omitempty"`
	ModTime     time.Time     `json:"-"`
}

// Result is the outcome of a confident match. Matches[0] is the top match;
// the rest are secondary matches in rank order.
type Result struct {
	Matches []MatchResult
	// Partial is set when the context ended before every term was scored.
	Partial bool
}

// Top returns the top match.
func (r *Result) Top() MatchResult { return r.Matches[0] }

// NoConfidentMatch is returned instead of a Result when nothing scores at
// least the confidence threshold, or when an explicit agent is unknown.
// Candidates holds the best-ranked manifests for disambiguation.
type NoConfidentMatch struct {
	Threshold  float64       `json:"threshold"`
	Agent      string        `json:"agent,omitempty"`
	Candidates []MatchResult `json:"candidates"`
	Partial    bool          `json:"partial,omitempty"`
}

func (e *NoConfidentMatch) Error() string {
	if e.Agent != "" {
		return fmt.Sprintf("no agent with id %q", e.Agent)
	}
	if len(e.Candidates) == 0 {
		return "no manifest matched the query"
	}
	return fmt.Sprintf("best match %q scored %.3f, below confidence threshold %.3f",
		e.Candidates[0].ID, e.Candidates[0].Score, e.Threshold)
}
