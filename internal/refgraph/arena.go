package refgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

// Node is one declared reference of one skill. Nodes are plain data and
// never point at other nodes.
type Node struct {
	Skill   int    `json:"-"`
	Ref     int    `json:"-"`
	SkillID string `json:"skillId"`
	// Path is corpus-relative and slash-separated.
	Path  string `json:"path"`
	Title string `json:"title"`
	Size  int64  `json:"size"`
	Hash  string `json:"hash,omitempty"`
	// Available is false when the file was missing, unreadable or outside
	// the corpus root when the arena was built.
	Available bool   `json:"available"`
	Problem   string `json:"problem,omitempty"`
}

// Arena holds every reference node of one snapshot, addressed by
// (skill index, reference index).
type Arena struct {
	skills  []string
	bySkill map[string]int
	nodes   [][]Node
}

// Locate resolves a declared reference path against the directory of the
// skill file. ok is false when the result escapes the corpus root.
func Locate(skillPath, ref string) (string, bool) {
	p := path.Join(path.Dir(skillPath), ref)
	if p == ".." || strings.HasPrefix(p, "../") || path.IsAbs(p) {
		return p, false
	}
	return p, true
}

// Probe stats and hashes one reference file.
func Probe(root, rel string) (size int64, hash string, err error) {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, "", err
	}
	if st.IsDir() {
		return 0, "", fmt.Errorf("%s is a directory", rel)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return 0, "", err
	}
	return int64(len(b)), manifest.HashBytes(b), nil
}

// Build probes every reference declared by skills and returns the arena.
// Skills are addressed in the order given; workers bounds concurrent probes.
// Probe failures mark nodes unavailable and never fail the build; only ctx
// cancellation does.
func Build(ctx context.Context, root string, skills []*manifest.Manifest, workers int) (*Arena, error) {
	a := &Arena{
		skills:  make([]string, len(skills)),
		bySkill: make(map[string]int, len(skills)),
		nodes:   make([][]Node, len(skills)),
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for si, m := range skills {
		a.skills[si] = m.ID
		a.bySkill[m.ID] = si
		a.nodes[si] = make([]Node, len(m.References))
		for ri, ref := range m.References {
			n := &a.nodes[si][ri]
			*n = Node{Skill: si, Ref: ri, SkillID: m.ID, Title: ref.Title}
			p, inside := Locate(m.Path, ref.Path)
			n.Path = p
			if !inside {
				n.Problem = "path escapes corpus root"
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				size, hash, err := Probe(root, p)
				if err != nil {
					n.Problem = problem(err)
					return nil
				}
				n.Size, n.Hash, n.Available = size, hash, true
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe references: %w", err)
	}
	return a, nil
}

func problem(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "file not found"
	}
	return err.Error()
}

// References returns the nodes of skill id in declaration order.
func (a *Arena) References(skillID string) []Node {
	si, ok := a.bySkill[skillID]
	if !ok {
		return nil
	}
	return a.nodes[si]
}

// Node returns the node at (skill, ref).
func (a *Arena) Node(skill, ref int) (Node, bool) {
	if skill < 0 || skill >= len(a.nodes) || ref < 0 || ref >= len(a.nodes[skill]) {
		return Node{}, false
	}
	return a.nodes[skill][ref], true
}

// Len returns the total number of nodes.
func (a *Arena) Len() int {
	n := 0
	for _, ns := range a.nodes {
		n += len(ns)
	}
	return n
}

// Hashes returns the set of content hashes of available nodes.
func (a *Arena) Hashes() map[string]bool {
	out := make(map[string]bool)
	for _, ns := range a.nodes {
		for _, n := range ns {
			if n.Available {
				out[n.Hash] = true
			}
		}
	}
	return out
}

// Fingerprint lists every node as "skill|path|hash" in sorted order, so two
// arenas with equal fingerprints describe the same reference files.
func (a *Arena) Fingerprint() []string {
	var out []string
	for _, ns := range a.nodes {
		for _, n := range ns {
			out = append(out, n.SkillID+"|"+n.Path+"|"+n.Hash)
		}
	}
	sort.Strings(out)
	return out
}
