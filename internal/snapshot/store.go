package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

// CacheVersion is bumped whenever the persisted FileState layout changes;
// caches of another version are ignored.
const CacheVersion = 1

const (
	cacheManifestFile = "cache_manifest.json"
	statesFile        = "manifests.jsonl"
)

// ErrStaleCache is returned by Store.Load when the cache was written for a
// different corpus root or format version.
var ErrStaleCache = errors.New("manifest cache does not match corpus")

// FileState is what a rescan knows about one manifest file. Manifest is nil
// when the file could not be read or parsed.
type FileState struct {
	Path     string             `json:"path"`
	Kind     manifest.Kind      `json:"kind"`
	Hash     string             `json:"hash"`
	ModTime  time.Time          `json:"mod_time"`
	Manifest *manifest.Manifest `json:"manifest,omitempty"`
	Problem  string             `json:"problem,omitempty"`
}

// cacheManifest describes a persisted cache directory.
type cacheManifest struct {
	CacheVersion int    `json:"cache_version"`
	CreatedAt    string `json:"created_at"`
	Root         string `json:"root"`
	ScanID       string `json:"scan_id"`
	Count        int    `json:"count"`
	StatesFile   string `json:"states_file"`
}

// Store persists parsed file states between processes so a fresh manager
// can skip re-parsing unchanged files. Writers and readers serialise on a
// file lock next to the cache directory.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

// NewStore returns a store writing to dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, lockTimeout: 5 * time.Second}
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.dir), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache parent: %w", err)
	}
	lockPath := s.dir + ".lock"
	l := flock.New(lockPath)
	deadline := time.Now().Add(s.lockTimeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire cache lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("manifest cache is locked by another process (lock: %s)", lockPath)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Save writes states into a temporary directory and swaps it into place.
func (s *Store) Save(root, scanID string, states []FileState) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tmp := fmt.Sprintf("%s.tmp-%s", s.dir, uuid.NewString())
	if err := write(tmp, root, scanID, states); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := AtomicSwap(tmp, s.dir); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("cannot install manifest cache: %w", err)
	}
	return nil
}

func write(dir, root, scanID string, states []FileState) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create cache dir %s: %w", dir, err)
	}

	m := cacheManifest{
		CacheVersion: CacheVersion,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Root:         root,
		ScanID:       scanID,
		Count:        len(states),
		StatesFile:   statesFile,
	}
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, cacheManifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write cache manifest: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, m.StatesFile))
	if err != nil {
		return fmt.Errorf("cannot create states file: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, st := range states {
		line, err := json.Marshal(st)
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = f.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads the states saved for root.
func (s *Store) Load(root string) ([]FileState, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	manifestPath := filepath.Join(s.dir, cacheManifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read cache manifest %s: %w", manifestPath, err)
	}
	var m cacheManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid cache manifest JSON %s: %w", manifestPath, err)
	}
	if m.CacheVersion != CacheVersion || m.Root != root {
		return nil, ErrStaleCache
	}
	if m.StatesFile == "" {
		m.StatesFile = statesFile
	}
	states, err := loadStates(filepath.Join(s.dir, m.StatesFile))
	if err != nil {
		return nil, err
	}
	if len(states) != m.Count {
		return nil, fmt.Errorf("manifest cache holds %d states, manifest says %d", len(states), m.Count)
	}
	return states, nil
}

func loadStates(path string) ([]FileState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open states file %s: %w", path, err)
	}
	defer f.Close()

	var out []FileState
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var st FileState
		if err := json.Unmarshal(line, &st); err != nil {
			return nil, fmt.Errorf("invalid states JSONL %s: %w", path, err)
		}
		out = append(out, st)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read states file %s: %w", path, err)
	}
	return out, nil
}

// Clear removes the cache directory. A missing directory is not an error.
func (s *Store) Clear() error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("cannot remove manifest cache %s: %w", s.dir, err)
	}
	return nil
}

// AtomicSwap replaces destDir with srcDir by renaming.
func AtomicSwap(srcDir, destDir string) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		// rollback best-effort
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}
