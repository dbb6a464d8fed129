package manifest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestParse_Agent(t *testing.T) {
	content := `---
name: angular-expert
description: Use this agent for Angular work. Examples: <example>user: "Build a signals store" assistant: "I'll use the angular-expert agent"</example>
tools: Read, Write, Bash
color: red
model: sonnet
---

# Angular Expert
Body text.
`
	m, err := Parse("agents/angular-expert.md", KindAgent, []byte(content), testTime)
	require.NoError(t, err)

	assert.Equal(t, "angular-expert", m.ID)
	assert.Equal(t, KindAgent, m.Kind)
	assert.Equal(t, "angular-expert", m.Name)
	assert.Equal(t, []string{"Build a signals store", "I'll use the angular-expert agent"}, m.Triggers)
	assert.Equal(t, "# Angular Expert\nBody text.", m.Body)
	assert.Equal(t, HashBytes([]byte(content)), m.Hash)
	assert.Equal(t, testTime, m.ModTime)
	assert.Empty(t, m.Validation)
	assert.False(t, m.Opaque)
	require.NotNil(t, m.Agent)
	assert.Nil(t, m.Skill)
	assert.Equal(t, []string{"Read", "Write", "Bash"}, m.Tools())
	assert.Equal(t, "red", m.Agent.Color)
	assert.Equal(t, "sonnet", m.Agent.Model)
}

func TestParse_MultiLineDescriptionKeepsNarrativeLines(t *testing.T) {
	content := "---\nname: reviewer\ndescription: Reviews code.\n  Context: a PR is open.\nuser: \"Review my PR\"\ntools: [Read, Grep]\n---\nbody\n"
	m, err := Parse("agents/reviewer.md", KindAgent, []byte(content), testTime)
	require.NoError(t, err)

	assert.Equal(t, "Reviews code.\nContext: a PR is open.\nuser: \"Review my PR\"", m.Description)
	assert.Equal(t, []string{"Review my PR"}, m.Triggers)
	assert.Equal(t, []string{"Read", "Grep"}, m.Tools())
	assert.Empty(t, m.Validation)
}

func TestParse_QuotedDescriptionDecodesEscapes(t *testing.T) {
	content := "---\nname: state\ndescription: \"Use when \\\"Angular state management\\\" is needed.\\nMore\"\n---\n"
	m, err := Parse("skills/angular-state/SKILL.md", KindSkill, []byte(content), testTime)
	require.NoError(t, err)

	assert.Equal(t, "angular-state", m.ID)
	assert.Equal(t, "Use when \"Angular state management\" is needed.\nMore", m.Description)
	assert.Equal(t, []string{"Angular state management"}, m.Triggers)
	assert.Equal(t, "", m.Body)
}

func TestParse_BlockScalars(t *testing.T) {
	literal := "---\nname: lit\ndescription: |\n  Line one\n  Line \"quoted phrase\"\n---\n"
	m, err := Parse("agents/lit.md", KindAgent, []byte(literal), testTime)
	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine \"quoted phrase\"", m.Description)
	assert.Equal(t, []string{"quoted phrase"}, m.Triggers)

	folded := "---\nname: fold\ndescription: >\n  Line one\n  Line two\n---\n"
	m, err = Parse("agents/fold.md", KindAgent, []byte(folded), testTime)
	require.NoError(t, err)
	assert.Equal(t, "Line one Line two", m.Description)
}

func TestParse_MissingRequiredFieldIsRecorded(t *testing.T) {
	content := "---\nname: only-name\n---\nbody\n"
	m, err := Parse("skills/x/SKILL.md", KindSkill, []byte(content), testTime)
	require.NoError(t, err)

	require.Len(t, m.Validation, 1)
	assert.Equal(t, "description", m.Validation[0].Field)
	assert.Equal(t, "required field is missing", m.Validation[0].Reason)
	assert.Equal(t, "skills/x/SKILL.md", m.Validation[0].Path)
	assert.Equal(t, "SKILL.md", m.Description)
	assert.Equal(t, "only-name", m.Name)
}

func TestParse_MissingNameFallsBackToID(t *testing.T) {
	content := "---\nname:\ndescription: Something\n---\n"
	m, err := Parse("agents/fallback.md", KindAgent, []byte(content), testTime)
	require.NoError(t, err)

	assert.Equal(t, "fallback", m.Name)
	require.Len(t, m.Validation, 1)
	assert.Equal(t, "required field is empty", m.Validation[0].Reason)
}

func TestParse_UnknownAndDuplicateKeys(t *testing.T) {
	content := "---\nname: a\nname: b\ndescription: d\nlicense: MIT\n---\n"
	m, err := Parse("skills/dup/SKILL.md", KindSkill, []byte(content), testTime)
	require.NoError(t, err)

	assert.Equal(t, "a", m.Name)
	require.Len(t, m.Validation, 2)
	assert.Equal(t, "license", m.Validation[0].Field)
	assert.Equal(t, "unknown key", m.Validation[0].Reason)
	assert.Equal(t, "name", m.Validation[1].Field)
	assert.Equal(t, "duplicate key, first value kept", m.Validation[1].Reason)
}

func TestParse_NoFrontMatterIsOpaque(t *testing.T) {
	m, err := Parse("agents/plain.md", KindAgent, []byte("# Just prose\n"), testTime)
	require.NoError(t, err)

	assert.True(t, m.Opaque)
	assert.Equal(t, "plain", m.Name)
	assert.Equal(t, "plain.md", m.Description)
	assert.Equal(t, "# Just prose", m.Body)
	assert.NotNil(t, m.Agent)
	assert.Empty(t, m.Triggers)
}

func TestParse_UnterminatedFrontMatter(t *testing.T) {
	_, err := Parse("agents/broken.md", KindAgent, []byte("---\nname: broken\n"), testTime)
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "agents/broken.md", pe.Path)
	assert.True(t, errors.Is(err, ErrUnterminatedFrontMatter))
}

func TestParse_BOMAndCRLF(t *testing.T) {
	content := "\ufeff---\r\nname: win\r\ndescription: Windows file\r\n---\r\nbody line\r\n"
	m, err := Parse("agents/win.md", KindAgent, []byte(content), testTime)
	require.NoError(t, err)

	assert.Equal(t, "win", m.Name)
	assert.Equal(t, "Windows file", m.Description)
	assert.Equal(t, "body line", m.Body)
}

func TestDeriveID(t *testing.T) {
	assert.Equal(t, "react-expert", DeriveID("frontend/agents/react-expert.md", KindAgent))
	assert.Equal(t, "react-hooks", DeriveID("frontend/skills/react-hooks/SKILL.md", KindSkill))
	assert.Equal(t, "x", DeriveID(`agents\x.md`, KindAgent))
}

func TestExtractTriggers(t *testing.T) {
	long := strings.Repeat("a", 201)
	desc := `say "" and "x` + "\n" + `y" then "ok" "ok" "` + long + `" "last one"`
	assert.Equal(t, []string{"ok", "last one"}, ExtractTriggers(desc))
	assert.Nil(t, ExtractTriggers("no quotes here"))
	assert.Nil(t, ExtractTriggers(`dangling "quote`))
}

func TestNarrative(t *testing.T) {
	got := Narrative(`Use for "a b" and "c" when "` + "\n" + `" spans`)
	assert.Equal(t, `Use for and when " " spans`, strings.Join(strings.Fields(got), " "))
}
