// ABOUTME: SQLiteJSONLStore is the run store adapter: a SQLite index for
// ABOUTME: queries plus an append-only JSONL event log, matching the
// ABOUTME: teacher's spec/store package layout (home/specs/{id}/{index.db,
// ABOUTME: events.jsonl}) and attractor/runstate_fs.go's atomic-write style.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flowxcore/engine/engine"
)

// SQLiteJSONLStore implements engine.RunStore. Each run gets its own
// directory under baseDir: "<baseDir>/<runID>/events.jsonl" for the
// append-only log, with a single shared "index.db" SQLite database for the
// results table used to answer LoadResults without a full log replay.
type SQLiteJSONLStore struct {
	baseDir string
	db      *sql.DB

	mu   sync.Mutex
	logs map[string]*os.File
}

// Open creates (if needed) baseDir and its SQLite index, in WAL mode to
// match the teacher's spec/store/sqlite.go.
func Open(baseDir string) (*SQLiteJSONLStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(baseDir, "index.db")+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteJSONLStore{baseDir: baseDir, db: db, logs: make(map[string]*os.File)}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS node_results (
	run_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	status TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, node_id)
);
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	content TEXT NOT NULL,
	last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memories_run ON memories(run_id);
`

func (s *SQLiteJSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.logs {
		f.Close()
	}
	return s.db.Close()
}

// RecordResult upserts the node's outcome into the SQLite index, the
// fast-path read used by LoadResults on rehydration.
func (s *SQLiteJSONLStore) RecordResult(ctx context.Context, runID string, result engine.NodeResult) error {
	payloadJSON, err := json.Marshal(result.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_results (run_id, node_id, status, payload_json, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			status = excluded.status,
			payload_json = excluded.payload_json,
			updated_at = CURRENT_TIMESTAMP
	`, runID, result.NodeID, string(result.Status), string(payloadJSON))
	return err
}

// LoadResults reads every recorded node outcome for runID back out of the
// SQLite index. Only StatusSuccess entries are meaningful to the executor's
// rehydration path; StatusFailure and StatusSkipped entries are returned too
// so callers can distinguish "never ran" from "ran and failed", but the
// executor itself re-attempts those nodes rather than treating them as done.
func (s *SQLiteJSONLStore) LoadResults(ctx context.Context, runID string) (map[string]engine.NodeResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_id, status, payload_json FROM node_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]engine.NodeResult)
	for rows.Next() {
		var nodeID, status, payloadJSON string
		if err := rows.Scan(&nodeID, &status, &payloadJSON); err != nil {
			return nil, err
		}
		var payload engine.Payload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", nodeID, err)
		}
		out[nodeID] = engine.NodeResult{NodeID: nodeID, Status: engine.Status(status), Payload: payload}
	}
	return out, rows.Err()
}

// MarkRunStatus upserts the run's top-level status.
func (s *SQLiteJSONLStore) MarkRunStatus(ctx context.Context, runID string, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, status, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(run_id) DO UPDATE SET status = excluded.status, updated_at = CURRENT_TIMESTAMP
	`, runID, status)
	return err
}

// AppendEvent appends ev as one JSON line to the run's event log, creating
// the run's directory and log file on first use. Mirrors the teacher's
// spec/store/jsonl.go Append (open-append-fsync) and
// attractor/runstate_fs.go's per-run directory convention.
func (s *SQLiteJSONLStore) AppendEvent(ctx context.Context, ev engine.Event) error {
	f, err := s.logFile(ev.RunID)
	if err != nil {
		return err
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return f.Sync()
}

func (s *SQLiteJSONLStore) logFile(runID string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.logs[runID]; ok {
		return f, nil
	}

	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(runDir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	s.logs[runID] = f
	return f, nil
}

// ReplayEvents reads every event recorded for runID back in order, for the
// /workflows/{id}/events tail/history endpoint.
func (s *SQLiteJSONLStore) ReplayEvents(runID string) ([]engine.Event, error) {
	path := filepath.Join(s.baseDir, runID, "events.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []engine.Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var ev engine.Event
		if err := dec.Decode(&ev); err != nil {
			return events, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
