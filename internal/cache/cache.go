// Package cache persists parsed documents keyed by their source hash, so
// converting an unchanged input never re-parses it. Storage is a single
// SQLite file via the pure Go driver.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lyricore/lyricore/core/errors"
	"github.com/lyricore/lyricore/core/ir"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	hash        TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	accessed_at INTEGER NOT NULL
);
`

// Store is a document cache backed by one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path. ":memory:" gives an
// ephemeral cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &errors.IOError{Operation: "open", Path: path, Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached document for a source hash, or ok=false on a
// miss. A hit refreshes the access time.
func (s *Store) Get(ctx context.Context, hash string) (*ir.Document, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE hash = ?`, hash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}

	var doc ir.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		// A row that no longer decodes is useless; drop it.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM documents WHERE hash = ?`, hash)
		return nil, false, nil
	}

	_, _ = s.db.ExecContext(ctx,
		`UPDATE documents SET accessed_at = ? WHERE hash = ?`, time.Now().Unix(), hash)
	return &doc, true, nil
}

// Put stores a document under its own source hash.
func (s *Store) Put(ctx context.Context, doc *ir.Document) error {
	if doc == nil || doc.SourceHash == "" {
		return &errors.ValidationError{Field: "document", Message: "document has no source hash"}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (hash, payload, created_at, accessed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET payload = excluded.payload, accessed_at = excluded.accessed_at`,
		doc.SourceHash, payload, now, now)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Delete removes one entry. Deleting a missing hash is not an error.
func (s *Store) Delete(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE hash = ?`, hash)
	return err
}

// Len returns the number of cached documents.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Prune drops entries not accessed within maxAge and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE accessed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}
