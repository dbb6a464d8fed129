package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"time"
)

var (
	agentKeys = []string{"name", "description", "tools", "color", "model"}
	skillKeys = []string{"name", "description"}
)

// HashBytes returns the sha256 hex digest used to content-address manifests
// and reference documents.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// DeriveID returns the manifest id for a corpus-relative path: the file stem
// for agents, the directory name for skills.
func DeriveID(relPath string, kind Kind) string {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	if kind == KindSkill {
		return path.Base(path.Dir(relPath))
	}
	return strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
}

// Parse builds the manifest for one file. relPath is slash-separated and
// relative to the corpus root; kind comes from where the file was found.
//
// Only an unterminated front-matter block is an error. Missing, unknown or
// duplicated keys are recorded in Manifest.Validation and the manifest is
// still returned.
func Parse(relPath string, kind Kind, data []byte, modTime time.Time) (*Manifest, error) {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	lines, body, found, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, &ParseError{Path: relPath, Err: err}
	}

	m := &Manifest{
		ID:      DeriveID(relPath, kind),
		Kind:    kind,
		Path:    relPath,
		Body:    body,
		Hash:    HashBytes(data),
		ModTime: modTime,
	}

	if !found {
		m.Opaque = true
		m.Name = m.ID
		m.Description = path.Base(relPath)
		switch kind {
		case KindSkill:
			m.Skill = &SkillFrontMatter{}
			m.References = ExtractReferences(body)
		default:
			m.Agent = &AgentFrontMatter{}
		}
		return m, nil
	}

	fm := parseFrontMatter(lines)
	name := strings.TrimSpace(fm.scalar("name"))
	desc := strings.TrimSpace(fm.scalar("description"))

	allowed := agentKeys
	if kind == KindSkill {
		allowed = skillKeys
	}
	m.Validation = validate(relPath, fm, allowed)

	switch kind {
	case KindSkill:
		m.Skill = &SkillFrontMatter{Name: name, Description: desc}
		m.References = ExtractReferences(body)
	default:
		m.Kind = KindAgent
		m.Agent = &AgentFrontMatter{
			Name:        name,
			Description: desc,
			Tools:       fm.list("tools"),
			Color:       strings.TrimSpace(fm.scalar("color")),
			Model:       strings.TrimSpace(fm.scalar("model")),
		}
	}

	m.Name = name
	if m.Name == "" {
		m.Name = m.ID
	}
	m.Description = desc
	if m.Description == "" {
		m.Description = path.Base(relPath)
	}
	m.Triggers = ExtractTriggers(desc)
	return m, nil
}

func validate(relPath string, fm *frontMatter, allowed []string) []ValidationError {
	var out []ValidationError
	for _, k := range []string{"name", "description"} {
		if strings.TrimSpace(fm.scalar(k)) == "" {
			reason := "required field is missing"
			if fm.has(k) {
				reason = "required field is empty"
			}
			out = append(out, ValidationError{Path: relPath, Field: k, Reason: reason})
		}
	}
	for _, k := range fm.unknown(allowed...) {
		out = append(out, ValidationError{Path: relPath, Field: k, Reason: "unknown key"})
	}
	for _, k := range fm.dups {
		out = append(out, ValidationError{Path: relPath, Field: k, Reason: "duplicate key, first value kept"})
	}
	return out
}
