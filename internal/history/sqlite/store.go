// Package sqlite provides a durable run-history store backed by a local
// SQLite database (CGo-free driver).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/promptlab/workbench/internal/domain"
)

// Store persists run history in a SQLite database. The full entry is stored
// as a JSON payload; prompt/version ids and the timestamp are indexed
// columns for the read path.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_history (
			id         TEXT PRIMARY KEY,
			prompt_id  TEXT NOT NULL,
			version_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			payload    TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_version ON run_history(version_id, created_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Store{db: db}, nil
}

// Save stores an immutable run record. Saving an existing id is rejected.
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_history(id, prompt_id, version_id, created_at, payload) VALUES(?, ?, ?, ?, ?)`,
		entry.ID, entry.PromptID, entry.VersionID, entry.CreatedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("save run history: %w", err)
	}
	return nil
}

// ListByVersion returns past runs for a version, newest first, bounded by limit.
func (s *Store) ListByVersion(ctx context.Context, versionID string, limit int) ([]*domain.RunHistoryEntry, error) {
	if limit <= 0 {
		return []*domain.RunHistoryEntry{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM run_history WHERE version_id = ? ORDER BY created_at DESC LIMIT ?`,
		versionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list run history: %w", err)
	}
	defer rows.Close()

	entries := []*domain.RunHistoryEntry{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run history: %w", err)
		}
		var entry domain.RunHistoryEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal run history: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}

	return entries, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
