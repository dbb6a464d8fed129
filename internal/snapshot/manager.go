package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/refgraph"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search/index"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("snapshot manager is closed")
	// ErrNoSnapshot is returned by Acquire before the first successful rescan.
	ErrNoSnapshot = errors.New("no snapshot published yet")
)

// Options configure a Manager.
type Options struct {
	Root     string
	Patterns []string
	// Workers bounds concurrent file loads; GOMAXPROCS when zero.
	Workers int
	// RescanTimeout is a soft limit: a rescan that exceeds it is abandoned
	// and the previous snapshot stays current. Zero disables it.
	RescanTimeout time.Duration
	// Store, when set, seeds file states at start and receives them after
	// every published snapshot.
	Store  *Store
	Logger *zap.Logger
}

// Report summarises one rescan.
type Report struct {
	ScanID   string        `json:"scanId"`
	Version  uint64        `json:"version"`
	Changed  bool          `json:"changed"`
	TimedOut bool          `json:"timedOut,omitempty"`
	Files    int           `json:"files"`
	Parsed   int           `json:"parsed"`
	Reused   int           `json:"reused"`
	Added    int           `json:"added"`
	Removed  int           `json:"removed"`
	Refs     int           `json:"references"`
	Duration time.Duration `json:"duration"`

	Conflicts []*manifest.ConflictError `json:"conflicts,omitempty"`
	Problems  []Problem                 `json:"problems,omitempty"`
}

// Manager rebuilds snapshots from the corpus and publishes them. Queries
// never take its mutex; they only Acquire the current snapshot.
type Manager struct {
	opts  Options
	log   *zap.Logger
	cache *refgraph.Cache

	mu      sync.Mutex // serialises rescans
	files   map[string]FileState
	version uint64

	current atomic.Pointer[Snapshot]
	closed  atomic.Bool

	liveMu sync.Mutex
	live   map[*Snapshot]struct{}
}

// NewManager returns a manager for opts.Root. No snapshot exists until the
// first Rescan.
func NewManager(opts Options) (*Manager, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("corpus root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve corpus root: %w", err)
	}
	opts.Root = root
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = manifest.DefaultPatterns
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		opts:  opts,
		log:   log,
		cache: refgraph.NewCache(),
		files: make(map[string]FileState),
		live:  make(map[*Snapshot]struct{}),
	}
	if opts.Store != nil {
		states, err := opts.Store.Load(root)
		if err != nil {
			log.Debug("manifest cache not used", zap.String("dir", opts.Store.Dir()), zap.Error(err))
		} else {
			for _, st := range states {
				m.files[st.Path] = st
			}
			log.Debug("seeded file states from cache", zap.Int("files", len(states)))
		}
	}
	return m, nil
}

// Root returns the absolute corpus root.
func (m *Manager) Root() string { return m.opts.Root }

// Cache returns the reference cache shared by this manager's snapshots.
func (m *Manager) Cache() *refgraph.Cache { return m.cache }

// Acquire returns the current snapshot with a reference held. The caller
// must Release it.
func (m *Manager) Acquire() (*Snapshot, error) {
	for {
		s := m.current.Load()
		if s == nil {
			if m.closed.Load() {
				return nil, ErrClosed
			}
			return nil, ErrNoSnapshot
		}
		if s.tryAcquire() {
			return s, nil
		}
		// s was freed between the load and the increment, so a newer
		// snapshot has been published.
	}
}

// Close releases the current snapshot. Snapshots held by readers stay valid
// until they are released.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Swap(true) {
		return nil
	}
	if old := m.current.Swap(nil); old != nil {
		old.Release()
	}
	return nil
}

type loaded struct {
	state  FileState
	reused bool
}

// Rescan reloads changed files and publishes a new snapshot when anything
// changed. Files whose content hash is unchanged are neither re-parsed nor
// re-indexed. When the soft timeout passes the report says TimedOut and the
// previous snapshot stays current.
func (m *Manager) Rescan(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	rep := &Report{ScanID: uuid.NewString(), Version: m.version}
	log := m.log.With(zap.String("scan_id", rep.ScanID))

	rctx := ctx
	if m.opts.RescanTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, m.opts.RescanTimeout)
		defer cancel()
	}

	next, states, err := m.build(rctx, rep)
	rep.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			rep.TimedOut = true
			log.Warn("rescan exceeded soft timeout, keeping previous snapshot",
				zap.Duration("timeout", m.opts.RescanTimeout),
				zap.Uint64("version", m.version))
			return rep, nil
		}
		return nil, err
	}

	m.files = make(map[string]FileState, len(states))
	for _, st := range states {
		m.files[st.Path] = st
	}
	if next == nil {
		log.Debug("corpus unchanged", zap.Int("files", rep.Files), zap.Duration("duration", rep.Duration))
		return rep, nil
	}

	m.version++
	next.version = m.version
	next.createdAt = time.Now()
	next.count.Store(1)
	next.onFree = m.free
	m.liveMu.Lock()
	m.live[next] = struct{}{}
	m.liveMu.Unlock()
	if old := m.current.Swap(next); old != nil {
		old.Release()
	}
	rep.Version = next.version
	rep.Changed = true

	for _, c := range rep.Conflicts {
		log.Warn("duplicate manifest id", zap.String("id", c.ID), zap.String("winner", c.Winner), zap.String("loser", c.Loser))
	}
	for _, p := range rep.Problems {
		log.Warn("manifest skipped", zap.String("path", p.Path), zap.String("reason", p.Message))
	}
	log.Info("snapshot published",
		zap.Uint64("version", next.version),
		zap.Int("files", rep.Files),
		zap.Int("parsed", rep.Parsed),
		zap.Int("reused", rep.Reused),
		zap.Int("added", rep.Added),
		zap.Int("removed", rep.Removed),
		zap.Duration("duration", rep.Duration))

	if m.opts.Store != nil {
		if err := m.opts.Store.Save(m.opts.Root, rep.ScanID, states); err != nil {
			log.Warn("cannot persist manifest cache", zap.Error(err))
		}
	}
	return rep, nil
}

// build loads every discovered file on the worker pool and, after all
// workers finish, derives the next snapshot. It returns a nil snapshot when
// nothing changed.
func (m *Manager) build(ctx context.Context, rep *Report) (*Snapshot, []FileState, error) {
	sources, err := manifest.Discover(m.opts.Root, m.opts.Patterns)
	if err != nil {
		return nil, nil, err
	}
	rep.Files = len(sources)

	results := make([]loaded, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.load(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	states := make([]FileState, len(results))
	var parsed []*manifest.Manifest
	for i, r := range results {
		states[i] = r.state
		if r.reused {
			rep.Reused++
		} else {
			rep.Parsed++
		}
		if r.state.Manifest != nil {
			parsed = append(parsed, r.state.Manifest)
		}
		if r.state.Problem != "" {
			rep.Problems = append(rep.Problems, Problem{Path: r.state.Path, Message: r.state.Problem})
		}
	}

	kept, conflicts := manifest.ResolveConflicts(parsed)
	rep.Conflicts = conflicts

	var skills []*manifest.Manifest
	byID := make(map[string]*manifest.Manifest, len(kept))
	for _, mf := range kept {
		byID[mf.ID] = mf
		if mf.Kind == manifest.KindSkill {
			skills = append(skills, mf)
		}
	}
	arena, err := refgraph.Build(ctx, m.opts.Root, skills, m.opts.Workers)
	if err != nil {
		return nil, nil, err
	}
	rep.Refs = arena.Len()

	old := m.current.Load()
	oldIndex, err := index.Build(nil)
	if err != nil {
		return nil, nil, err
	}
	var oldByID map[string]*manifest.Manifest
	if old != nil {
		oldIndex = old.index
		oldByID = old.byID
	}

	var remove []string
	for id, om := range oldByID {
		if byID[id] != om {
			remove = append(remove, id)
		}
	}
	slices.Sort(remove)
	var add []index.Document
	for _, mf := range kept {
		if oldByID[mf.ID] != mf {
			add = append(add, index.FromManifest(mf))
		}
	}
	rep.Removed = len(remove)
	rep.Added = len(add)

	if old != nil && len(remove) == 0 && len(add) == 0 &&
		slices.Equal(arena.Fingerprint(), old.arena.Fingerprint()) &&
		sameDiagnostics(old, conflicts, rep.Problems) {
		return nil, states, nil
	}

	ix, err := oldIndex.Apply(remove, add)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot update index: %w", err)
	}
	return &Snapshot{
		scanID:    rep.ScanID,
		root:      m.opts.Root,
		manifests: kept,
		byID:      byID,
		index:     ix,
		arena:     arena,
		refs:      refgraph.NewResolver(m.opts.Root, arena, m.cache),
		states:    states,
		conflicts: conflicts,
		problems:  rep.Problems,
	}, states, nil
}

// load reads and hashes one file, reusing the previous manifest when the
// hash is unchanged. It runs on worker goroutines and only reads m.files.
func (m *Manager) load(src manifest.Source) loaded {
	st := FileState{Path: src.Path, Kind: src.Kind}
	full := filepath.Join(m.opts.Root, filepath.FromSlash(src.Path))
	info, err := os.Stat(full)
	if err != nil {
		st.Problem = err.Error()
		return loaded{state: st}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		st.Problem = err.Error()
		return loaded{state: st}
	}
	st.Hash = manifest.HashBytes(data)
	st.ModTime = info.ModTime()

	if prev, ok := m.files[src.Path]; ok && prev.Hash == st.Hash && prev.Kind == src.Kind {
		return loaded{state: prev, reused: true}
	}

	mf, err := manifest.Parse(src.Path, src.Kind, data, st.ModTime)
	if err != nil {
		st.Problem = err.Error()
		return loaded{state: st}
	}
	st.Manifest = mf
	return loaded{state: st}
}

func sameDiagnostics(old *Snapshot, conflicts []*manifest.ConflictError, problems []Problem) bool {
	if len(old.conflicts) != len(conflicts) || len(old.problems) != len(problems) {
		return false
	}
	for i := range conflicts {
		if *old.conflicts[i] != *conflicts[i] {
			return false
		}
	}
	return slices.Equal(old.problems, problems)
}

// free runs when a snapshot's last reference is released. Cached reference
// documents no longer reachable from any live snapshot are evicted.
func (m *Manager) free(s *Snapshot) {
	m.liveMu.Lock()
	delete(m.live, s)
	liveHashes := make(map[string]bool)
	for other := range m.live {
		for h := range other.arena.Hashes() {
			liveHashes[h] = true
		}
	}
	m.liveMu.Unlock()

	evicted := m.cache.Retain(liveHashes)
	m.log.Debug("snapshot freed",
		zap.Uint64("version", s.version),
		zap.Int("evicted", evicted))
}
