// Package checkpoint persists per-stage resume markers.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mapleads/mapleads/internal/scrape"
)

// Store loads and saves stage checkpoints. Save must be crash-safe: a
// partially written checkpoint is never read back as valid.
type Store interface {
	Load(stage string) (scrape.Checkpoint, bool, error)
	Save(stage string, index int) error
}

// FileStore keeps one JSON checkpoint file per stage under a directory.
// Writes go to a temp file in the same directory and are renamed into
// place, so readers only ever observe complete checkpoints.
type FileStore struct {
	dir string
}

// NewFileStore creates the checkpoint directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the checkpoint for a stage. The second return value is false
// when no checkpoint exists yet.
func (s *FileStore) Load(stage string) (scrape.Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return scrape.Checkpoint{}, false, nil
		}
		return scrape.Checkpoint{}, false, fmt.Errorf("read checkpoint for %s: %w", stage, err)
	}
	var cp scrape.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return scrape.Checkpoint{}, false, fmt.Errorf("decode checkpoint for %s: %w", stage, err)
	}
	return cp, true, nil
}

// Save persists the last completed index for a stage. The index must never
// regress; a lower value than the stored one is rejected.
func (s *FileStore) Save(stage string, index int) error {
	if prev, ok, err := s.Load(stage); err != nil {
		return err
	} else if ok && index < prev.LastCompletedIndex {
		return fmt.Errorf("checkpoint for %s would regress from %d to %d", stage, prev.LastCompletedIndex, index)
	}

	cp := scrape.Checkpoint{
		Stage:              stage,
		LastCompletedIndex: index,
		UpdatedAt:          time.Now().UTC(),
	}
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint for %s: %w", stage, err)
	}

	tmp, err := os.CreateTemp(s.dir, stage+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync checkpoint temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(stage)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint for %s: %w", stage, err)
	}
	return nil
}

func (s *FileStore) path(stage string) string {
	return filepath.Join(s.dir, stage+".json")
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu  sync.Mutex
	cps map[string]scrape.Checkpoint
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{cps: make(map[string]scrape.Checkpoint)}
}

// Load returns the stored checkpoint, if any.
func (s *MemStore) Load(stage string) (scrape.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.cps[stage]
	return cp, ok, nil
}

// Save records the index for a stage.
func (s *MemStore) Save(stage string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cps[stage] = scrape.Checkpoint{
		Stage:              stage,
		LastCompletedIndex: index,
		UpdatedAt:          time.Now().UTC(),
	}
	return nil
}
