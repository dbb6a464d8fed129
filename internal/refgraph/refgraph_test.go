package refgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func fixture(t *testing.T) (string, *manifest.Manifest) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "skills/state/references/store.md", "# Store\nUse a signal store.\n")
	skill := &manifest.Manifest{
		ID:   "state",
		Kind: manifest.KindSkill,
		Path: "skills/state/SKILL.md",
		References: []manifest.Reference{
			{Path: "references/store.md", Title: "Store"},
			{Path: "references/missing.md", Title: "Missing"},
			{Path: "../../../outside.md", Title: "Outside"},
		},
	}
	return root, skill
}

func TestLocate(t *testing.T) {
	p, ok := Locate("skills/state/SKILL.md", "references/a.md")
	assert.True(t, ok)
	assert.Equal(t, "skills/state/references/a.md", p)

	p, ok = Locate("skills/state/SKILL.md", "../other/references/b.md")
	assert.True(t, ok)
	assert.Equal(t, "skills/other/references/b.md", p)

	_, ok = Locate("skills/state/SKILL.md", "../../../x.md")
	assert.False(t, ok)
}

func TestBuild_ProbesReferences(t *testing.T) {
	root, skill := fixture(t)
	a, err := Build(context.Background(), root, []*manifest.Manifest{skill}, 2)
	require.NoError(t, err)

	nodes := a.References("state")
	require.Len(t, nodes, 3)
	assert.True(t, nodes[0].Available)
	assert.Equal(t, "skills/state/references/store.md", nodes[0].Path)
	assert.Equal(t, int64(len("# Store\nUse a signal store.\n")), nodes[0].Size)
	assert.Equal(t, 0, nodes[0].Skill)
	assert.Equal(t, 0, nodes[0].Ref)

	assert.False(t, nodes[1].Available)
	assert.Equal(t, "file not found", nodes[1].Problem)
	assert.False(t, nodes[2].Available)
	assert.Equal(t, "path escapes corpus root", nodes[2].Problem)

	n, ok := a.Node(0, 1)
	require.True(t, ok)
	assert.Equal(t, "Missing", n.Title)
	_, ok = a.Node(0, 3)
	assert.False(t, ok)
	assert.Equal(t, 3, a.Len())
	assert.Len(t, a.Hashes(), 1)
	assert.Nil(t, a.References("unknown"))
}

func TestResolver_LoadAndCache(t *testing.T) {
	root, skill := fixture(t)
	a, err := Build(context.Background(), root, []*manifest.Manifest{skill}, 1)
	require.NoError(t, err)
	cache := NewCache()
	r := NewResolver(root, a, cache)

	nodes := r.References("state")
	doc, err := r.Load(nodes[0])
	require.NoError(t, err)
	assert.Equal(t, "# Store\nUse a signal store.\n", doc.Content)
	assert.Equal(t, "Store", doc.Title)
	assert.Equal(t, 1, cache.Len())

	_, err = r.Load(nodes[1])
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	// Served from the cache once loaded, even if the file goes away.
	require.NoError(t, os.Remove(filepath.Join(root, "skills/state/references/store.md")))
	doc, err = r.Load(nodes[0])
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "signal store")

	assert.Equal(t, 1, cache.Retain(map[string]bool{}))
	assert.Zero(t, cache.Len())
}

func TestResolver_DeletedOrChangedFile(t *testing.T) {
	root, skill := fixture(t)
	a, err := Build(context.Background(), root, []*manifest.Manifest{skill}, 1)
	require.NoError(t, err)
	node := a.References("state")[0]

	writeFile(t, root, "skills/state/references/store.md", "rewritten")
	_, err = NewResolver(root, a, nil).Load(node)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "file changed since snapshot", nf.Reason)

	require.NoError(t, os.Remove(filepath.Join(root, "skills/state/references/store.md")))
	_, err = NewResolver(root, a, nil).Load(node)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "file not found", nf.Reason)
}

func TestBuild_CancelledContext(t *testing.T) {
	root, skill := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, root, []*manifest.Manifest{skill}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
