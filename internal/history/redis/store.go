// Package redis provides a run-history store backed by Redis lists, one
// list per template version, newest first.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/promptlab/workbench/internal/domain"
	"github.com/promptlab/workbench/internal/observability"
)

const keyPrefix = "history:version:"

// Store persists run history in Redis.
type Store struct {
	client  *redis.Client
	maxKeep int64
}

// NewStore creates a Redis history store. maxKeep bounds how many entries
// are retained per version (0 keeps everything).
func NewStore(client *redis.Client, maxKeep int64) *Store {
	return &Store{
		client:  client,
		maxKeep: maxKeep,
	}
}

// Save pushes the entry onto the version's list. LPUSH keeps reads
// newest-first without sorting.
func (s *Store) Save(ctx context.Context, entry *domain.RunHistoryEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.ID == "" {
		return errors.New("entry id cannot be empty")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	key := keyPrefix + entry.VersionID

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	if s.maxKeep > 0 {
		pipe.LTrim(ctx, key, 0, s.maxKeep-1)
	}

	if _, execErr := pipe.Exec(ctx); execErr != nil {
		observability.FromContext(ctx).Error("failed to save run history",
			observability.Error(execErr))
		return fmt.Errorf("save run history: %w", execErr)
	}

	return nil
}

// ListByVersion returns past runs for a version, newest first, bounded by limit.
func (s *Store) ListByVersion(ctx context.Context, versionID string, limit int) ([]*domain.RunHistoryEntry, error) {
	if limit <= 0 {
		return []*domain.RunHistoryEntry{}, nil
	}

	raw, err := s.client.LRange(ctx, keyPrefix+versionID, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list run history: %w", err)
	}

	entries := make([]*domain.RunHistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.RunHistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal run history: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
