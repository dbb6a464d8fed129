package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "manifests")
	store := NewStore(dir)
	states := []FileState{
		{Path: "agents/a.md", Kind: "agent", Hash: "h1", ModTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Path: "agents/b.md", Kind: "agent", Hash: "h2", Problem: "cannot parse"},
	}
	require.NoError(t, store.Save("/corpus", "scan-1", states))

	got, err := store.Load("/corpus")
	require.NoError(t, err)
	assert.Equal(t, states, got)

	_, err = store.Load("/elsewhere")
	assert.ErrorIs(t, err, ErrStaleCache)

	// A second save replaces the first.
	require.NoError(t, store.Save("/corpus", "scan-2", states[:1]))
	got, err = store.Load("/corpus")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"manifests", "manifests.lock"}, names)
}

func TestStore_Clear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store := NewStore(dir)
	require.NoError(t, store.Clear(), "clearing a missing cache is fine")

	require.NoError(t, store.Save("/corpus", "scan-1", []FileState{{Path: "agents/a.md", Kind: "agent", Hash: "h1"}}))
	require.NoError(t, store.Clear())
	assert.NoDirExists(t, dir)
	_, err := store.Load("/corpus")
	assert.Error(t, err)
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "none")).Load("/corpus")
	assert.Error(t, err)
}

func TestManager_SeedsFromStore(t *testing.T) {
	root := corpus(t)
	store := NewStore(filepath.Join(t.TempDir(), "cache"))

	m1, err := NewManager(Options{Root: root, Store: store})
	require.NoError(t, err)
	rep, err := m1.Rescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Parsed)
	require.NoError(t, m1.Close())

	m2, err := NewManager(Options{Root: root, Store: store})
	require.NoError(t, err)
	defer m2.Close()
	rep, err = m2.Rescan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Parsed)
	assert.Equal(t, 3, rep.Reused)
	assert.True(t, rep.Changed, "first snapshot of a new manager is always published")

	s, err := m2.Acquire()
	require.NoError(t, err)
	defer s.Release()
	a, ok := s.Manifest("alpha")
	require.True(t, ok)
	assert.Equal(t, "Alpha agent", a.Description)
}
