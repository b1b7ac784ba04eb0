// Package memory provides an in-memory run-history store, used as the
// default backend and in tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/promptlab/workbench/internal/domain"
)

// Store keeps run history in memory, newest first per version.
type Store struct {
	mu        sync.RWMutex
	byVersion map[string][]*domain.RunHistoryEntry
}

// NewStore creates an empty in-memory history store.
func NewStore() *Store {
	return &Store{
		byVersion: make(map[string][]*domain.RunHistoryEntry),
	}
}

// Save stores an immutable copy of the entry.
func (s *Store) Save(_ context.Context, entry *domain.RunHistoryEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.ID == "" {
		return errors.New("entry id cannot be empty")
	}

	clone := *entry
	clone.Results = append([]domain.ExecutionResult(nil), entry.Results...)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend so reads are newest-first without sorting.
	s.byVersion[entry.VersionID] = append(
		[]*domain.RunHistoryEntry{&clone},
		s.byVersion[entry.VersionID]...,
	)
	return nil
}

// ListByVersion returns past runs for a version, newest first.
func (s *Store) ListByVersion(_ context.Context, versionID string, limit int) ([]*domain.RunHistoryEntry, error) {
	if limit <= 0 {
		return []*domain.RunHistoryEntry{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byVersion[versionID]
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]*domain.RunHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}
