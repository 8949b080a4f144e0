// ABOUTME: Memories is a TTL-bounded key/value collection giving the ReAct
// ABOUTME: agent continuity across runs. SQLite has no native TTL index (the
// ABOUTME: Python original's Mongo store likely used one), so expiry is
// ABOUTME: enforced by sweeping stale rows on every read.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultMemoryTTL matches spec.md §6's 24h default.
const DefaultMemoryTTL = 24 * time.Hour

// Memory is one stored fact available to a ReAct agent.
type Memory struct {
	ID          string
	RunID       string
	Content     string
	LastUpdated time.Time
}

// SaveMemory inserts a new memory row under a fresh id with last_updated set
// to now. Existing rows are never updated, so their last_updated timestamps
// are not refreshed.
func (s *SQLiteJSONLStore) SaveMemory(ctx context.Context, runID, content string) (string, error) {
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, run_id, content, last_updated) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, id, runID, content)
	if err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	return id, nil
}

// LoadMemories sweeps rows older than ttl (deleting them), then returns the
// surviving memories for runID, newest first. Expiry happens only inside
// this call; there is no background sweep timer.
func (s *SQLiteJSONLStore) LoadMemories(ctx context.Context, runID string, ttl time.Duration) ([]Memory, error) {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	cutoff := time.Now().Add(-ttl)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE last_updated < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("sweep expired memories: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, content, last_updated FROM memories WHERE run_id = ? ORDER BY last_updated DESC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.RunID, &m.Content, &m.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
