package assemble

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/refgraph"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search/index"
)

// TitleOverlap is the share of a reference title's tokens that must appear
// in the query for the reference to load without being requested.
const TitleOverlap = 0.5

// Corpus looks up manifests by id.
type Corpus interface {
	Manifest(id string) (*manifest.Manifest, bool)
}

// References lists and loads the references of skills.
type References interface {
	References(skillID string) []refgraph.Node
	Load(n refgraph.Node) (*refgraph.Document, error)
}

// Request is the input of one assembly.
type Request struct {
	Query   string
	Matches []search.MatchResult
	Budget  int
	// References are reference paths the caller asked for, either
	// corpus-relative or relative to the declaring skill.
	References []string
}

// Assembler turns ranked matches into a budgeted payload.
type Assembler struct {
	corpus Corpus
	refs   References
}

// New returns an assembler reading manifests from corpus and references
// through refs.
func New(corpus Corpus, refs References) *Assembler {
	return &Assembler{corpus: corpus, refs: refs}
}

type included struct {
	match search.MatchResult
	man   *manifest.Manifest
}

// Assemble builds the payload: the top match first, whatever the budget,
// then secondary matches in rank order, then references of the included
// skills. ctx is checked between entries; when it is done the entries so far
// are returned with a DeadlineExceeded warning.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Context, error) {
	budget := NewBudget(req.Budget)
	out := &Context{Budget: budget.Limit(), Entries: []Entry{}}
	if len(req.Matches) == 0 {
		return out, nil
	}

	var skills []included
	for i, m := range req.Matches {
		if i > 0 && a.deadline(ctx, out) {
			out.Used = budget.Used()
			return out, nil
		}
		man, ok := a.corpus.Manifest(m.ID)
		if !ok {
			return nil, fmt.Errorf("match %q is not in the corpus", m.ID)
		}
		e, ok := a.manifestEntry(man, m, budget, i == 0)
		if !ok {
			continue
		}
		if i == 0 && e.Truncated {
			out.Warnings = append(out.Warnings, Warning{
				Kind:     BudgetExceeded,
				SourceID: man.ID,
				Message:  fmt.Sprintf("top match needs %d tokens, budget is %d", EstimateTokens(man.Body), budget.Limit()),
			})
		}
		out.Entries = append(out.Entries, e)
		if man.Kind == manifest.KindSkill {
			skills = append(skills, included{match: m, man: man})
		}
	}

	_, queryTokens := index.QueryTerms(req.Query)
	requested := make(map[string]bool, len(req.References))
	for _, r := range req.References {
		requested[cleanRef(r)] = false
	}
	seen := make(map[string]bool)

	for _, s := range skills {
		for _, n := range a.refs.References(s.man.ID) {
			if seen[n.Path] {
				continue
			}
			asked := matchRequested(requested, s.man, n)
			if !asked && titleOverlap(n.Title, queryTokens) < TitleOverlap {
				continue
			}
			if a.deadline(ctx, out) {
				out.Used = budget.Used()
				return out, nil
			}
			seen[n.Path] = true
			if e, ok := a.referenceEntry(s, n, budget, out, asked); ok {
				out.Entries = append(out.Entries, e)
			}
		}
	}

	for _, r := range req.References {
		if p := cleanRef(r); !requested[p] {
			requested[p] = true
			out.Warnings = append(out.Warnings, Warning{
				Kind:    ReferenceNotFound,
				Path:    p,
				Message: "requested reference is not declared by any included skill",
			})
		}
	}
	out.Used = budget.Used()
	return out, nil
}

func (a *Assembler) deadline(ctx context.Context, out *Context) bool {
	if ctx.Err() == nil {
		return false
	}
	out.Partial = true
	out.Warnings = append(out.Warnings, Warning{
		Kind:    DeadlineExceeded,
		Message: "deadline passed, returning partial context",
	})
	return true
}

// manifestEntry fits a manifest body into the budget. Only the top match is
// kept when truncation leaves nothing.
func (a *Assembler) manifestEntry(man *manifest.Manifest, m search.MatchResult, budget *Budget, top bool) (Entry, bool) {
	kind := KindAgent
	if man.Kind == manifest.KindSkill {
		kind = KindSkill
	}
	e := Entry{
		SourceID: man.ID,
		Kind:     kind,
		Title:    man.Name,
		Score:    m.Score,
		Path:     man.Path,
	}
	body, cut, truncated := Truncate(man.Body, budget.Remaining())
	if truncated && body == "" && !top {
		return Entry{}, false
	}
	if top && budget.Limit() == 0 {
		body, cut, truncated = "", 0, true
	}
	e.Body = body
	e.Truncated = truncated
	if truncated {
		e.CutOffset = cut
	}
	e.Tokens = EstimateTokens(body)
	budget.Spend(e.Tokens)
	return e, true
}

// referenceEntry loads one reference if it fits in full. Unavailable
// references yield a flagged empty entry and a warning. A requested reference
// that does not fit is skipped with a BudgetExceeded warning.
func (a *Assembler) referenceEntry(s included, n refgraph.Node, budget *Budget, out *Context, asked bool) (Entry, bool) {
	skip := func(need int) (Entry, bool) {
		if asked {
			out.Warnings = append(out.Warnings, Warning{
				Kind:     BudgetExceeded,
				SourceID: s.man.ID,
				Path:     n.Path,
				Message:  fmt.Sprintf("requested reference skipped: needs at least %d tokens, %d remain", need, budget.Remaining()),
			})
		}
		return Entry{}, false
	}
	e := Entry{
		SourceID: s.man.ID,
		Kind:     KindReference,
		Title:    n.Title,
		Score:    s.match.Score,
		Path:     n.Path,
	}
	if need := minTokensForBytes(n.Size); n.Available && !budget.Fits(need) {
		return skip(need)
	}
	doc, err := a.refs.Load(n)
	if err != nil {
		out.Warnings = append(out.Warnings, Warning{
			Kind:     ReferenceNotFound,
			SourceID: s.man.ID,
			Path:     n.Path,
			Message:  err.Error(),
		})
		e.Unavailable = true
		return e, true
	}
	tokens := EstimateTokens(doc.Content)
	if !budget.Fits(tokens) {
		return skip(tokens)
	}
	e.Body = doc.Content
	e.Tokens = tokens
	budget.Spend(tokens)
	return e, true
}

func cleanRef(p string) string {
	return path.Clean(strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"), "./"))
}

// matchRequested reports whether n was asked for and marks the request as
// satisfied.
func matchRequested(requested map[string]bool, skill *manifest.Manifest, n refgraph.Node) bool {
	for _, p := range []string{n.Path, relativeTo(skill.Dir(), n.Path)} {
		if _, ok := requested[p]; ok {
			requested[p] = true
			return true
		}
	}
	return false
}

func relativeTo(dir, p string) string {
	if dir == "." {
		return p
	}
	return strings.TrimPrefix(p, dir+"/")
}

// titleOverlap is |title tokens ∩ query tokens| / |title tokens|.
func titleOverlap(title string, queryTokens []string) float64 {
	titleTokens := index.Tokenize(title)
	if len(titleTokens) == 0 {
		return 0
	}
	q := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		q[t] = true
	}
	uniq := make(map[string]bool, len(titleTokens))
	hit := 0
	for _, t := range titleTokens {
		if uniq[t] {
			continue
		}
		uniq[t] = true
		if q[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(uniq))
}
