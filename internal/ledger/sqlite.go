package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS seen_papers (
  topic TEXT NOT NULL,
  arxiv_id TEXT NOT NULL,
  seen_at TEXT NOT NULL,
  PRIMARY KEY (topic, arxiv_id)
)`

// SQLiteStore is a file-backed ledger. Concurrent runs against the same file
// are not supported; the store assumes a single writer.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	// SQLite doesn't support concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// HasSeen reports whether the pair is recorded.
func (s *SQLiteStore) HasSeen(ctx context.Context, topic, arxivID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM seen_papers WHERE topic = ? AND arxiv_id = ?",
		topic, arxivID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return true, nil
}

// MarkSeen records the pair, committing immediately. Marking an already-seen
// pair is a no-op.
func (s *SQLiteStore) MarkSeen(ctx context.Context, topic, arxivID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO seen_papers (topic, arxiv_id, seen_at) VALUES (?, ?, ?)",
		topic, arxivID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

// Count returns the number of recorded pairs for a topic.
func (s *SQLiteStore) Count(ctx context.Context, topic string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM seen_papers WHERE topic = ?", topic,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting ledger entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
