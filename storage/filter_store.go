package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
)

// FilterStore persists the merged Bloom filter at a well-known shared path.
// Stage 1 writes it exactly once; every stage 2 worker loads it read-only.
// A failed Save or Load is fatal to the owning stage, there is no partial
// filter worth running with.
type FilterStore struct {
	path string
	mu   sync.Mutex
}

// NewFilterStore creates a store rooted at the given filter path.
func NewFilterStore(path string) *FilterStore {
	return &FilterStore{path: path}
}

// Path returns the filter location.
func (s *FilterStore) Path() string {
	return s.path
}

// Save writes the filter blob atomically: temp file first, then rename, so a
// reader never observes a half-written filter.
func (s *FilterStore) Save(filter *bloom.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create filter directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, blob, 0o644); err != nil {
		return fmt.Errorf("write filter temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename filter file: %w", err)
	}

	log.Printf("action: save_filter | result: success | path: %s | bits: %d | hashes: %d",
		s.path, filter.Bits(), filter.Hashes())

	return nil
}

// Load reads the persisted filter back.
func (s *FilterStore) Load() (*bloom.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read filter file: %w", err)
	}

	var filter bloom.Filter
	if err := filter.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("decode filter file %s: %w", s.path, err)
	}

	log.Printf("action: load_filter | result: success | path: %s | bits: %d | hashes: %d",
		s.path, filter.Bits(), filter.Hashes())

	return &filter, nil
}

// Exists reports whether a persisted filter is present.
func (s *FilterStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
