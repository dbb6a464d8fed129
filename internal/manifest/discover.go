package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns are the discovery globs used when none are configured.
var DefaultPatterns = []string{
	"agents/*.md",
	"*/agents/*.md",
	"skills/*/SKILL.md",
	"*/skills/*/SKILL.md",
}

// Source is one discovered manifest file.
type Source struct {
	Path string // slash-separated, relative to the corpus root
	Kind Kind
}

// KindOf classifies a corpus-relative path by location: a .md file directly
// under an agents directory is an agent, a SKILL.md one level under a skills
// directory is a skill.
func KindOf(relPath string) (Kind, bool) {
	dir, base := path.Split(relPath)
	dir = path.Clean(dir)
	switch {
	case base == "SKILL.md" && path.Base(path.Dir(dir)) == "skills":
		return KindSkill, true
	case path.Ext(base) == ".md" && path.Base(dir) == "agents":
		return KindAgent, true
	}
	return "", false
}

// Discover expands patterns against root and returns the manifest files in
// path order. Matches that are directories or that do not sit in an agents or
// skills location are ignored.
func Discover(root string, patterns []string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot stat corpus root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root is not a directory: %s", root)
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var out []Source
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid discovery pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			kind, ok := KindOf(m)
			if !ok {
				continue
			}
			st, err := fs.Stat(fsys, m)
			if err != nil || st.IsDir() {
				continue
			}
			seen[m] = true
			out = append(out, Source{Path: m, Kind: kind})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
