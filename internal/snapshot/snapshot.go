package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/refgraph"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search/index"
)

// Problem is a file skipped during a scan.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Snapshot is an immutable view of the corpus: manifests, their index and
// the reference arena. Readers hold it with Acquire/Release; it is freed
// after the last Release once a newer snapshot replaced it.
type Snapshot struct {
	version   uint64
	scanID    string
	createdAt time.Time
	root      string

	manifests []*manifest.Manifest
	byID      map[string]*manifest.Manifest
	index     *index.Index
	arena     *refgraph.Arena
	refs      *refgraph.Resolver
	states    []FileState
	conflicts []*manifest.ConflictError
	problems  []Problem

	count  atomic.Int64
	onFree func(*Snapshot)
}

// Version increases by one with every published snapshot of a manager.
func (s *Snapshot) Version() uint64 { return s.version }

// ScanID identifies the rescan that built the snapshot.
func (s *Snapshot) ScanID() string { return s.scanID }

// CreatedAt is when the snapshot was published.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Root is the corpus root the snapshot was built from.
func (s *Snapshot) Root() string { return s.root }

// Manifest returns the manifest with id.
func (s *Snapshot) Manifest(id string) (*manifest.Manifest, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// Manifests returns every manifest sorted by id. Callers must not modify
// the slice.
func (s *Snapshot) Manifests() []*manifest.Manifest { return s.manifests }

// Index returns the capability index.
func (s *Snapshot) Index() *index.Index { return s.index }

// Arena returns the reference arena.
func (s *Snapshot) Arena() *refgraph.Arena { return s.arena }

// References returns the reference resolver bound to this snapshot.
func (s *Snapshot) References() *refgraph.Resolver { return s.refs }

// Conflicts lists manifests excluded for duplicate ids.
func (s *Snapshot) Conflicts() []*manifest.ConflictError { return s.conflicts }

// Problems lists files that could not be read or parsed.
func (s *Snapshot) Problems() []Problem { return s.problems }

// States returns the per-file state the snapshot was built from, sorted by
// path.
func (s *Snapshot) States() []FileState { return s.states }

// tryAcquire adds a reference unless the snapshot is already freed.
func (s *Snapshot) tryAcquire() bool {
	for {
		n := s.count.Load()
		if n <= 0 {
			return false
		}
		if s.count.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference taken by Manager.Acquire.
func (s *Snapshot) Release() {
	n := s.count.Add(-1)
	switch {
	case n == 0:
		if s.onFree != nil {
			s.onFree(s)
		}
	case n < 0:
		panic("snapshot: Release without matching Acquire")
	}
}

// Refs returns the current reference count.
func (s *Snapshot) Refs() int64 { return s.count.Load() }
