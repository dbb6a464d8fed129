package assemble

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/refgraph"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 2, EstimateTokens("ééééé"))
	assert.Equal(t, 1, minTokensForBytes(13))
	assert.Equal(t, 0, minTokensForBytes(0))
}

func TestBudget(t *testing.T) {
	b := NewBudget(-5)
	assert.Equal(t, 0, b.Limit())
	assert.True(t, b.Fits(0))
	assert.False(t, b.Fits(1))

	b = NewBudget(10)
	b.Spend(7)
	assert.Equal(t, 3, b.Remaining())
	assert.True(t, b.Fits(3))
	assert.False(t, b.Fits(4))
}

func TestTruncate(t *testing.T) {
	body := "# Intro\nFirst line here.\n\n## Details\nMore text follows. And more.\n"

	got, cut, truncated := Truncate(body, 100)
	assert.Equal(t, body, got)
	assert.Equal(t, len(body), cut)
	assert.False(t, truncated)

	// A heading boundary wins even when a later sentence end would fit.
	got, cut, truncated = Truncate(body, 16)
	assert.Equal(t, "# Intro\nFirst line here.", got)
	assert.Equal(t, 24, cut)
	assert.True(t, truncated)

	got, cut, truncated = Truncate(body, 5)
	assert.Equal(t, "", got)
	assert.Equal(t, 0, cut)
	assert.True(t, truncated)

	got, cut, _ = Truncate("Para one is here.\n\nPara two is longer text.\n", 5)
	assert.Equal(t, "Para one is here.", got)
	assert.Equal(t, 17, cut)

	got, cut, _ = Truncate("One. Two three four five six.", 2)
	assert.Equal(t, "One.", got)
	assert.Equal(t, 4, cut)

	// Abbreviations and list markers are not sentence ends.
	got, cut, truncated = Truncate("Prefer signal stores, e.g. for cart state that many components read and write often.", 8)
	assert.Equal(t, "", got)
	assert.Equal(t, 0, cut)
	assert.True(t, truncated)

	got, cut, _ = Truncate("Use stores, i.e. Signal stores. Done here now.", 8)
	assert.Equal(t, "Use stores, i.e. Signal stores.", got)
	assert.Equal(t, 31, cut)

	got, cut, _ = Truncate("Steps:\n1. Install the package first. Then configure it.", 9)
	assert.Equal(t, "Steps:\n1. Install the package first.", got)
	assert.Equal(t, 36, cut)

	got, _, truncated = Truncate("abcdefghijkl", 2)
	assert.Equal(t, "", got)
	assert.True(t, truncated)

	got, _, _ = Truncate("", 0)
	assert.Equal(t, "", got)
}

func TestBoundaries_IgnoreFencedCode(t *testing.T) {
	body := "Intro text\n\n```\n# not heading. Really.\n```\n## Real\nrest\n"
	headings, paragraphs, sentences := boundaries(body)
	assert.Equal(t, []int{strings.Index(body, "## Real")}, headings)
	assert.Equal(t, []int{strings.Index(body, "```")}, paragraphs)
	assert.Empty(t, sentences)
}

type fakeCorpus map[string]*manifest.Manifest

func (c fakeCorpus) Manifest(id string) (*manifest.Manifest, bool) {
	m, ok := c[id]
	return m, ok
}

type fakeRefs struct {
	nodes    map[string][]refgraph.Node
	contents map[string]string
}

func (f *fakeRefs) References(skillID string) []refgraph.Node { return f.nodes[skillID] }

func (f *fakeRefs) Load(n refgraph.Node) (*refgraph.Document, error) {
	c, ok := f.contents[n.Path]
	if !ok {
		return nil, &refgraph.NotFoundError{SkillID: n.SkillID, Path: n.Path, Reason: "file not found"}
	}
	return &refgraph.Document{Path: n.Path, Title: n.Title, Content: c}, nil
}

const stateContent = "State content"

func fixture() (*Assembler, []search.MatchResult) {
	corpus := fakeCorpus{
		"alpha": {ID: "alpha", Kind: manifest.KindAgent, Name: "alpha", Path: "agents/alpha.md",
			Body: strings.TrimSpace(strings.Repeat("word ", 8))},
		"beta": {ID: "beta", Kind: manifest.KindSkill, Name: "beta", Path: "skills/beta/SKILL.md",
			Body: "Skill body."},
	}
	refs := &fakeRefs{
		nodes: map[string][]refgraph.Node{
			"beta": {
				{SkillID: "beta", Ref: 0, Path: "skills/beta/references/state.md", Title: "State management", Size: int64(len(stateContent)), Available: true},
				{SkillID: "beta", Ref: 1, Path: "skills/beta/references/testing.md", Title: "Testing", Size: 7, Available: true},
				{SkillID: "beta", Ref: 2, Path: "skills/beta/references/gone.md", Title: "Gone", Size: 10, Available: true},
			},
		},
		contents: map[string]string{
			"skills/beta/references/state.md":   stateContent,
			"skills/beta/references/testing.md": "Testing",
		},
	}
	matches := []search.MatchResult{
		{ID: "alpha", Kind: manifest.KindAgent, Score: 5},
		{ID: "beta", Kind: manifest.KindSkill, Score: 4},
	}
	return New(corpus, refs), matches
}

func TestAssemble_OrderAndTitleOverlap(t *testing.T) {
	a, matches := fixture()
	ctx, err := a.Assemble(context.Background(), Request{Query: "state management patterns", Matches: matches, Budget: 100})
	require.NoError(t, err)

	require.Len(t, ctx.Entries, 3)
	assert.Equal(t, "alpha", ctx.Entries[0].SourceID)
	assert.Equal(t, KindAgent, ctx.Entries[0].Kind)
	assert.Equal(t, 10, ctx.Entries[0].Tokens)
	assert.Equal(t, "beta", ctx.Entries[1].SourceID)
	assert.Equal(t, KindSkill, ctx.Entries[1].Kind)
	assert.Equal(t, KindReference, ctx.Entries[2].Kind)
	assert.Equal(t, "State management", ctx.Entries[2].Title)
	assert.Equal(t, stateContent, ctx.Entries[2].Body)
	assert.Equal(t, 4.0, ctx.Entries[2].Score)
	assert.Equal(t, 17, ctx.Used)
	assert.Empty(t, ctx.Warnings)
	assert.False(t, ctx.Partial)
}

func TestAssemble_RequestedAndUnavailableReferences(t *testing.T) {
	a, matches := fixture()
	ctx, err := a.Assemble(context.Background(), Request{
		Matches:    matches,
		Budget:     100,
		References: []string{"references/testing.md", "skills/beta/references/gone.md", "nope.md"},
	})
	require.NoError(t, err)

	require.Len(t, ctx.Entries, 4)
	assert.Equal(t, "Testing", ctx.Entries[2].Body)
	assert.True(t, ctx.Entries[3].Unavailable)
	assert.Equal(t, "", ctx.Entries[3].Body)
	assert.Equal(t, "skills/beta/references/gone.md", ctx.Entries[3].Path)

	require.Len(t, ctx.Warnings, 2)
	assert.Equal(t, ReferenceNotFound, ctx.Warnings[0].Kind)
	assert.Equal(t, "skills/beta/references/gone.md", ctx.Warnings[0].Path)
	assert.Equal(t, ReferenceNotFound, ctx.Warnings[1].Kind)
	assert.Equal(t, "nope.md", ctx.Warnings[1].Path)
}

func TestAssemble_ZeroBudget(t *testing.T) {
	a, matches := fixture()
	ctx, err := a.Assemble(context.Background(), Request{Query: "state management", Matches: matches, Budget: 0})
	require.NoError(t, err)

	require.Len(t, ctx.Entries, 1)
	assert.Equal(t, "alpha", ctx.Entries[0].SourceID)
	assert.Equal(t, "", ctx.Entries[0].Body)
	assert.True(t, ctx.Entries[0].Truncated)
	assert.True(t, ctx.HasWarning(BudgetExceeded))
	assert.Zero(t, ctx.Used)
}

func TestAssemble_ReferenceMustFitWhole(t *testing.T) {
	a, matches := fixture()
	ctx, err := a.Assemble(context.Background(), Request{Query: "state management", Matches: matches, Budget: 14})
	require.NoError(t, err)
	require.Len(t, ctx.Entries, 2)
	assert.Equal(t, 13, ctx.Used)
	assert.Empty(t, ctx.Warnings)
}

func TestAssemble_RequestedReferenceOverBudgetWarns(t *testing.T) {
	a, matches := fixture()
	ctx, err := a.Assemble(context.Background(), Request{
		Matches:    matches,
		Budget:     14,
		References: []string{"references/state.md"},
	})
	require.NoError(t, err)
	require.Len(t, ctx.Entries, 2)
	assert.Equal(t, 13, ctx.Used)

	require.Len(t, ctx.Warnings, 1)
	w := ctx.Warnings[0]
	assert.Equal(t, BudgetExceeded, w.Kind)
	assert.Equal(t, "beta", w.SourceID)
	assert.Equal(t, "skills/beta/references/state.md", w.Path)
	assert.Contains(t, w.Message, "requested reference skipped: needs at least 4 tokens, 1 remain")
}

func TestAssemble_SecondaryTruncatedToNothingIsSkipped(t *testing.T) {
	a, matches := fixture()
	ctx, err := a.Assemble(context.Background(), Request{Matches: matches, Budget: 11})
	require.NoError(t, err)
	require.Len(t, ctx.Entries, 1)
	assert.False(t, ctx.Entries[0].Truncated)
	assert.False(t, ctx.HasWarning(BudgetExceeded))
}

func TestAssemble_DeadlineKeepsTopMatch(t *testing.T) {
	a, matches := fixture()
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx, err := a.Assemble(cctx, Request{Query: "state management", Matches: matches, Budget: 100})
	require.NoError(t, err)
	require.Len(t, ctx.Entries, 1)
	assert.True(t, ctx.Partial)
	assert.True(t, ctx.HasWarning(DeadlineExceeded))
}

func TestAssemble_BudgetInvariant(t *testing.T) {
	a, matches := fixture()
	for budget := 0; budget <= 30; budget++ {
		ctx, err := a.Assemble(context.Background(), Request{Query: "state management", Matches: matches, Budget: budget})
		require.NoError(t, err)
		sum := 0
		for _, e := range ctx.Entries {
			sum += EstimateTokens(e.Body)
		}
		assert.LessOrEqual(t, sum, budget, "budget %d", budget)
		assert.Equal(t, sum, ctx.Used, "budget %d", budget)
		require.NotEmpty(t, ctx.Entries)
		assert.Equal(t, "alpha", ctx.Entries[0].SourceID)
		if budget < 10 {
			assert.True(t, ctx.Entries[0].Truncated, "budget %d", budget)
		}
	}
}

func TestAssemble_UnknownMatch(t *testing.T) {
	a, _ := fixture()
	_, err := a.Assemble(context.Background(), Request{Matches: []search.MatchResult{{ID: "ghost"}}, Budget: 10})
	assert.Error(t, err)
}
