package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the SQLite-backed trace store. It indexes persisted traces so the
// CLI can list and re-evaluate past runs without scanning JSON files.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultDBPath returns the XDG data path for the trace database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "rounds", "traces.db")
}

// OpenDB opens the trace database at the given path, creating parent
// directories as needed. WAL mode is enabled for concurrent reads.
func OpenDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

const schemaTraces = `
CREATE TABLE IF NOT EXISTS traces (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	context TEXT,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trace_events (
	id TEXT PRIMARY KEY,
	trace_id TEXT NOT NULL REFERENCES traces(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	event_type TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	stage TEXT,
	data TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	parent_event_id TEXT,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trace_events_trace_id ON trace_events(trace_id, seq);
`

func (db *DB) migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(schemaTraces); err != nil {
		return fmt.Errorf("create trace tables: %w", err)
	}
	return nil
}

// Save persists a complete trace. Saving the same trace id twice replaces
// the previous copy.
func (db *DB) Save(tr *Trace) error {
	if tr == nil {
		return nil
	}
	if tr.ID == "" {
		return fmt.Errorf("trace has no trace_id")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	contextJSON, err := json.Marshal(tr.Context)
	if err != nil {
		return fmt.Errorf("encode trace context: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM traces WHERE id = ?`, tr.ID); err != nil {
		return fmt.Errorf("clear existing trace: %w", err)
	}

	var completedAt any
	if !tr.CompletedAt.IsZero() {
		completedAt = tr.CompletedAt
	}
	_, err = tx.Exec(
		`INSERT INTO traces (id, query, context, started_at, completed_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.Query, string(contextJSON), tr.StartedAt, completedAt, tr.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}

	for i, e := range tr.Events {
		dataJSON, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("encode event %d data: %w", i, err)
		}
		_, err = tx.Exec(
			`INSERT INTO trace_events (id, trace_id, seq, event_type, agent_type, stage, data, duration_ms, parent_event_id, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, tr.ID, i, string(e.Type), e.Agent, e.Stage, string(dataJSON), e.DurationMS, e.ParentEventID, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace: %w", err)
	}
	return nil
}

// Get loads a trace by id.
func (db *DB) Get(id string) (*Trace, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tr := &Trace{ID: id}
	var contextJSON string
	var completedAt sql.NullTime
	row := db.conn.QueryRow(`SELECT query, context, started_at, completed_at, duration_ms FROM traces WHERE id = ?`, id)
	if err := row.Scan(&tr.Query, &contextJSON, &tr.StartedAt, &completedAt, &tr.DurationMS); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("trace %s not found", id)
		}
		return nil, fmt.Errorf("load trace: %w", err)
	}
	if completedAt.Valid {
		tr.CompletedAt = completedAt.Time
	}
	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &tr.Context); err != nil {
			return nil, fmt.Errorf("decode trace context: %w", err)
		}
	}

	rows, err := db.conn.Query(
		`SELECT id, event_type, agent_type, stage, data, duration_ms, parent_event_id, timestamp
		 FROM trace_events WHERE trace_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Event
		var eventType, dataJSON string
		var parent sql.NullString
		if err := rows.Scan(&e.ID, &eventType, &e.Agent, &e.Stage, &dataJSON, &e.DurationMS, &parent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = EventType(eventType)
		if parent.Valid {
			e.ParentEventID = parent.String
		}
		if dataJSON != "" {
			if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		tr.Events = append(tr.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	tr.normalize()
	return tr, nil
}

// TraceSummary is one row of the trace listing.
type TraceSummary struct {
	ID         string
	Query      string
	StartedAt  time.Time
	DurationMS int64
	EventCount int
}

// List returns summaries of stored traces, newest first.
func (db *DB) List(limit int) ([]TraceSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		`SELECT t.id, t.query, t.started_at, t.duration_ms,
		        (SELECT COUNT(*) FROM trace_events e WHERE e.trace_id = t.id)
		 FROM traces t ORDER BY t.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var s TraceSummary
		if err := rows.Scan(&s.ID, &s.Query, &s.StartedAt, &s.DurationMS, &s.EventCount); err != nil {
			return nil, fmt.Errorf("scan trace summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
