package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one cached synthesis result, keyed by node identifier and valid
// only while the node's fingerprint is unchanged.
type Entry struct {
	NodeID      string
	Fingerprint string
	Markdown    string
	Summary     string
	UpdatedAt   time.Time
}

// Store is the local synthesis cache. A cache hit on an unchanged
// fingerprint lets a rerun skip the model call entirely; on synthesis
// failure a stale entry still serves as fallback content.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		node_id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		markdown TEXT NOT NULL,
		summary TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`)
	return err
}

// Get returns the cached entry for a node, or (nil, nil) when there is
// none.
func (s *Store) Get(nodeID string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT node_id, fingerprint, markdown, summary, updated_at FROM documents WHERE node_id = ?`,
		nodeID,
	)
	var e Entry
	err := row.Scan(&e.NodeID, &e.Fingerprint, &e.Markdown, &e.Summary, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Put inserts or replaces the entry for a node.
func (s *Store) Put(e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO documents (node_id, fingerprint, markdown, summary, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   markdown = excluded.markdown,
		   summary = excluded.summary,
		   updated_at = excluded.updated_at`,
		e.NodeID, e.Fingerprint, e.Markdown, e.Summary, e.UpdatedAt,
	)
	return err
}
