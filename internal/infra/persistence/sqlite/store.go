// Package sqlite persists project documents to an embedded SQLite file as
// JSON blobs, one bucket per top-level document field. The full document is
// snapshotted on every save.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"blockcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion.
var _ domain.ProjectStore = (*Store)(nil)

// Store snapshots project documents into a single SQLite table.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path; an empty path defaults
// to blockcore.db in the working directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "blockcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS project_state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create project_state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

var buckets = []string{"variables", "lists", "timer", "answer", "messages", "functions"}

func bucketPayloads(doc domain.ProjectDocument) (map[string][]byte, error) {
	sources := map[string]any{
		"variables": doc.Variables,
		"lists":     doc.Lists,
		"timer":     doc.Timer,
		"answer":    doc.Answer,
		"messages":  doc.Messages,
		"functions": doc.Functions,
	}
	payloads := make(map[string][]byte, len(buckets))
	for _, bucket := range buckets {
		data, err := json.Marshal(sources[bucket])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		payloads[bucket] = data
	}
	return payloads, nil
}

func decodeBucket(doc *domain.ProjectDocument, bucket string, payload []byte) error {
	var err error
	switch bucket {
	case "variables":
		err = json.Unmarshal(payload, &doc.Variables)
	case "lists":
		err = json.Unmarshal(payload, &doc.Lists)
	case "timer":
		err = json.Unmarshal(payload, &doc.Timer)
	case "answer":
		err = json.Unmarshal(payload, &doc.Answer)
	case "messages":
		err = json.Unmarshal(payload, &doc.Messages)
	case "functions":
		err = json.Unmarshal(payload, &doc.Functions)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

// Save snapshots the document.
func (s *Store) Save(ctx context.Context, doc domain.ProjectDocument) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payloads, err := bucketPayloads(doc)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, payloads[bucket]); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return retErr
	}
	return nil
}

// Load reads the last snapshot; found is false when the table is empty.
func (s *Store) Load(ctx context.Context) (domain.ProjectDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM project_state`)
	if err != nil {
		return domain.ProjectDocument{}, false, fmt.Errorf("select project_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var doc domain.ProjectDocument
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.ProjectDocument{}, false, fmt.Errorf("scan: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if err := decodeBucket(&doc, bucket, payload); err != nil {
			return domain.ProjectDocument{}, false, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return domain.ProjectDocument{}, false, fmt.Errorf("iterate: %w", err)
	}
	return doc, found, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
