package search

import (
	"context"
	"fmt"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search/index"
)

// Ranking defaults.
const (
	DefaultMinConfidence  = 1.0
	DefaultRelativeMargin = 0.8
	DefaultMaxMatches     = 3

	// DomainBoost is added once when a token of the manifest name appears in
	// the query.
	DomainBoost = 2.0
)

// Options tune the matcher.
type Options struct {
	MinConfidence  float64
	RelativeMargin float64
	MaxMatches     int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinConfidence:  DefaultMinConfidence,
		RelativeMargin: DefaultRelativeMargin,
		MaxMatches:     DefaultMaxMatches,
	}
}

// Matcher ranks manifests for a task description.
type Matcher struct {
	opts Options
}

// NewMatcher returns a matcher. Zero fields of opts take their defaults;
// MinConfidence is taken as given so that 0 disables the threshold.
func NewMatcher(opts Options) *Matcher {
	if opts.RelativeMargin <= 0 || opts.RelativeMargin > 1 {
		opts.RelativeMargin = DefaultRelativeMargin
	}
	if opts.MaxMatches <= 0 {
		opts.MaxMatches = DefaultMaxMatches
	}
	return &Matcher{opts: opts}
}

// Options returns the effective options.
func (m *Matcher) Options() Options { return m.opts }

// Rank scores every manifest that shares a term with query and returns them
// in total order. partial is set, with nothing ranked, when ctx was done
// before scoring started.
func (m *Matcher) Rank(ctx context.Context, c Corpus, query string) (ranked []MatchResult, partial bool, err error) {
	terms, tokens := index.QueryTerms(query)
	// Score only fails when ctx is done.
	scores, scoreErr := c.Index().Score(ctx, terms)
	partial = scoreErr != nil

	queryTokens := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		queryTokens[t] = true
	}

	ranked = make([]MatchResult, 0, len(scores))
	for _, s := range scores {
		man, ok := c.Manifest(s.ID)
		if !ok {
			return nil, partial, fmt.Errorf("%w %q", ErrCorruptIndex, s.ID)
		}
		ranked = append(ranked, result(man, s, queryTokens))
	}
	SortResults(ranked)
	return ranked, partial, nil
}

func result(man *manifest.Manifest, s index.Score, queryTokens map[string]bool) MatchResult {
	r := MatchResult{
		ID:         man.ID,
		Kind:       man.Kind,
		IndexScore: s.Normalized,
		Matched:    s.Matched,
		ModTime:    man.ModTime,
	}
	for _, t := range index.Tokenize(man.Name) {
		if queryTokens[t] {
			r.DomainBoost = DomainBoost
			break
		}
	}
	r.Score = r.IndexScore + r.DomainBoost
	return r
}

// Match returns the top match and the secondary matches within the relative
// margin of it, or a *NoConfidentMatch error.
//
// A non-empty agent restricts the ranking to that agent id, which then wins
// regardless of the confidence threshold.
func (m *Matcher) Match(ctx context.Context, c Corpus, query, agent string) (*Result, error) {
	ranked, partial, err := m.Rank(ctx, c, query)
	if err != nil {
		return nil, err
	}

	if agent != "" {
		man, ok := c.Manifest(agent)
		if !ok || man.Kind != manifest.KindAgent {
			return nil, &NoConfidentMatch{Threshold: m.opts.MinConfidence, Agent: agent, Candidates: m.head(ranked), Partial: partial}
		}
		for _, r := range ranked {
			if r.ID == agent {
				return &Result{Matches: []MatchResult{r}, Partial: partial}, nil
			}
		}
		return &Result{Matches: []MatchResult{{ID: man.ID, Kind: man.Kind, ModTime: man.ModTime}}, Partial: partial}, nil
	}

	if len(ranked) == 0 || ranked[0].Score < m.opts.MinConfidence {
		return nil, &NoConfidentMatch{Threshold: m.opts.MinConfidence, Candidates: m.head(ranked), Partial: partial}
	}

	top := ranked[0]
	out := []MatchResult{top}
	for _, r := range ranked[1:] {
		if len(out) >= m.opts.MaxMatches || r.Score < m.opts.RelativeMargin*top.Score {
			break
		}
		out = append(out, r)
	}
	return &Result{Matches: out, Partial: partial}, nil
}

func (m *Matcher) head(ranked []MatchResult) []MatchResult {
	if len(ranked) > m.opts.MaxMatches {
		return ranked[:m.opts.MaxMatches]
	}
	if ranked == nil {
		return []MatchResult{}
	}
	return ranked
}
