// Package postgres persists project documents to PostgreSQL using the same
// bucket-of-JSON scheme as the sqlite driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"blockcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion.
var _ domain.ProjectStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/blockcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store snapshots project documents into a Postgres table.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the snapshot table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS project_state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure project_state table: %w", err)
	}
	return &Store{db: db}, nil
}

var buckets = []string{"variables", "lists", "timer", "answer", "messages", "functions"}

// Save snapshots the document.
func (s *Store) Save(ctx context.Context, doc domain.ProjectDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sources := map[string]any{
		"variables": doc.Variables,
		"lists":     doc.Lists,
		"timer":     doc.Timer,
		"answer":    doc.Answer,
		"messages":  doc.Messages,
		"functions": doc.Functions,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		data, err := json.Marshal(sources[bucket])
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
			bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
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
			return domain.ProjectDocument{}, false, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var target any
		switch bucket {
		case "variables":
			target = &doc.Variables
		case "lists":
			target = &doc.Lists
		case "timer":
			target = &doc.Timer
		case "answer":
			target = &doc.Answer
		case "messages":
			target = &doc.Messages
		case "functions":
			target = &doc.Functions
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return domain.ProjectDocument{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return domain.ProjectDocument{}, false, fmt.Errorf("iterate state: %w", err)
	}
	return doc, found, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
