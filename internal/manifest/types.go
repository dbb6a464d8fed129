package manifest

import (
	"strings"
	"time"
)

// Kind selects which front-matter record a manifest carries.
type Kind string

const (
	KindAgent Kind = "agent"
	KindSkill Kind = "skill"
)

// AgentFrontMatter is the typed front matter of agents/*.md.
type AgentFrontMatter struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools,omitempty"`
	Color       string   `json:"color,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// SkillFrontMatter is the typed front matter of skills/<name>/SKILL.md.
type SkillFrontMatter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Reference is one (relative path, display title) pair declared in a skill body.
type Reference struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Manifest is the parsed, immutable record of one agent or skill file.
//
// Exactly one of Agent or Skill is set, matching Kind. Name and Description
// are the effective values used for indexing: they fall back to the id and
// file name when the front matter is incomplete or absent.
type Manifest struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Body        string            `json:"body"`
	Triggers    []string          `json:"triggers,omitempty"`
	References  []Reference       `json:"references,omitempty"`
	Hash        string            `json:"hash"`
	ModTime     time.Time         `json:"mod_time"`
	Opaque      bool              `json:"opaque,omitempty"`
	Validation  []ValidationError `json:"validation,omitempty"`
	Agent       *AgentFrontMatter `json:"agent,omitempty"`
	Skill       *SkillFrontMatter `json:"skill,omitempty"`
}

// Dir returns the slash-separated directory holding the manifest file.
func (m *Manifest) Dir() string {
	i := strings.LastIndexByte(m.Path, '/')
	if i < 0 {
		return "."
	}
	return m.Path[:i]
}

// Depth is the number of directory segments in the manifest path.
// Deeper paths are more specific and win id conflicts.
func (m *Manifest) Depth() int {
	return strings.Count(m.Path, "/")
}

// Tools returns the declared tool list for agents, nil for skills.
func (m *Manifest) Tools() []string {
	if m.Agent == nil {
		return nil
	}
	return m.Agent.Tools
}
