package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists Entry rows to a local sqlite file, grounded on the
// teacher's session.SQLiteStore idiom but scoped to one append-only table
// instead of a full conversation schema — this is ambient cost accounting,
// not the conversation persistence §1 excludes.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS usage_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TIMESTAMP NOT NULL,
    session_id TEXT NOT NULL,
    request_id TEXT NOT NULL,
    model TEXT NOT NULL,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    cached_tokens INTEGER NOT NULL DEFAULT 0,
    cost_usd REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_usage_entries_timestamp ON usage_entries(timestamp);
`

// OpenStore opens (creating if necessary) the sqlite-backed usage store at
// path, applying the schema.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("usage: failed to create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("usage: failed to open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("usage: failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DefaultStorePath returns the usage store's location under the given
// config directory.
func DefaultStorePath(configDir string) string {
	return filepath.Join(configDir, "usage.db")
}

// Record appends one call's usage accounting.
func (s *Store) Record(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO usage_entries (timestamp, session_id, request_id, model, input_tokens, output_tokens, cached_tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.SessionID, e.RequestID, e.Model, e.InputTokens, e.OutputTokens, e.CachedTokens, e.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("usage: failed to record entry: %w", err)
	}
	return nil
}

// LoadRange returns every entry recorded within [since, until], ordered by
// timestamp.
func (s *Store) LoadRange(since, until time.Time) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, session_id, request_id, model, input_tokens, output_tokens, cached_tokens, cost_usd
		 FROM usage_entries WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC`,
		since, until,
	)
	if err != nil {
		return nil, fmt.Errorf("usage: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.SessionID, &e.RequestID, &e.Model, &e.InputTokens, &e.OutputTokens, &e.CachedTokens, &e.CostUSD); err != nil {
			return nil, fmt.Errorf("usage: failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
