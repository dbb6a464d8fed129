package refgraph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

// ErrReferenceNotFound is matched by every NotFoundError.
var ErrReferenceNotFound = errors.New("reference not found")

// NotFoundError reports a reference that could not be loaded. The query
// goes on without it.
type NotFoundError struct {
	SkillID string
	Path    string
	Reason  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reference %s of skill %s unavailable: %s", e.Path, e.SkillID, e.Reason)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrReferenceNotFound }

// Resolver loads the one-hop references of a snapshot's skills. Loaded
// documents are plain text and are never scanned for further references.
type Resolver struct {
	root  string
	arena *Arena
	cache *Cache
}

// NewResolver returns a resolver over arena, reading files below root.
func NewResolver(root string, arena *Arena, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{root: root, arena: arena, cache: cache}
}

// References returns the declared reference nodes of skillID.
func (r *Resolver) References(skillID string) []Node {
	return r.arena.References(skillID)
}

// Load returns the content of n. The file must still hash to the value
// recorded when the snapshot was built; otherwise it is reported as not
// found, since the snapshot no longer describes it.
func (r *Resolver) Load(n Node) (*Document, error) {
	if !n.Available {
		return nil, &NotFoundError{SkillID: n.SkillID, Path: n.Path, Reason: n.Problem}
	}
	doc := &Document{Path: n.Path, Title: n.Title, Size: n.Size, Hash: n.Hash}
	if content, ok := r.cache.Get(n.Hash); ok {
		doc.Content = content
		return doc, nil
	}

	b, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(n.Path)))
	if err != nil {
		return nil, &NotFoundError{SkillID: n.SkillID, Path: n.Path, Reason: problem(err)}
	}
	if manifest.HashBytes(b) != n.Hash {
		return nil, &NotFoundError{SkillID: n.SkillID, Path: n.Path, Reason: "file changed since snapshot"}
	}
	doc.Content = string(b)
	r.cache.Put(n.Hash, doc.Content)
	return doc, nil
}
