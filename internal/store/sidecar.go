package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// Sidecar is the SQLite metadata store paired with a dense vector file.
// Every vector position has exactly one row here; the pairing is validated
// at load time and any disagreement fails the whole index closed.
type Sidecar struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenSidecar opens (or creates) the sidecar database at path.
func OpenSidecar(path string) (*Sidecar, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sidecar database: %w", err)
	}

	// Single writer keeps lock contention out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Sidecar{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sidecar schema: %w", err)
	}
	return s, nil
}

// OpenSidecarReadOnly opens an existing sidecar and runs an integrity check.
func OpenSidecarReadOnly(path string) (*Sidecar, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, riskerr.New(riskerr.ErrCodeIndexNotFound,
			fmt.Sprintf("metadata sidecar not found at %s", path), err)
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sidecar database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		_ = db.Close()
		return nil, riskerr.CorruptIndex("sidecar integrity check failed", err)
	}
	if result != "ok" {
		_ = db.Close()
		return nil, riskerr.CorruptIndex(
			fmt.Sprintf("sidecar integrity check reported: %s", result), nil)
	}

	return &Sidecar{db: db, path: path}, nil
}

// initSchema creates the documents and index_state tables.
func (s *Sidecar) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per vector; pos mirrors the vector store insertion position.
	CREATE TABLE IF NOT EXISTS documents (
		pos            INTEGER PRIMARY KEY,
		chunk_id       TEXT NOT NULL UNIQUE,
		content        TEXT NOT NULL,
		source         TEXT NOT NULL,
		doc_type       TEXT NOT NULL,
		jurisdiction   TEXT NOT NULL,
		act_name       TEXT NOT NULL DEFAULT '',
		act_key        TEXT NOT NULL DEFAULT '',
		section_number TEXT NOT NULL DEFAULT '',
		base_number    TEXT NOT NULL DEFAULT '',
		state          TEXT NOT NULL DEFAULT '',
		title          TEXT NOT NULL DEFAULT '',
		version        TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_documents_anchor
		ON documents (act_key, section_number);

	-- Index-level state: dimensions, embedding model, document count.
	CREATE TABLE IF NOT EXISTS index_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocuments writes documents keyed by insertion position, replacing any
// previous content. Called once per build under the build lock.
func (s *Sidecar) SaveDocuments(ctx context.Context, docs []*statute.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sidecar is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sidecar transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM documents"); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents
			(pos, chunk_id, content, source, doc_type, jurisdiction,
			 act_name, act_key, section_number, base_number, state, title, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for pos, doc := range docs {
		_, err := stmt.ExecContext(ctx, pos, doc.ChunkID, doc.Content, doc.Source,
			string(doc.Type), doc.Jurisdiction,
			doc.ActOrRuleName, statute.ActKey(doc.ActOrRuleName),
			doc.SectionOrRuleNumber, doc.BaseNumber,
			doc.State, doc.Title, doc.Version)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ChunkID, err)
		}
	}

	return tx.Commit()
}

// All returns every document in insertion-position order.
func (s *Sidecar) All(ctx context.Context) ([]*statute.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("sidecar is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, source, doc_type, jurisdiction,
		       act_name, section_number, base_number, state, title, version
		FROM documents ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*statute.Document
	for rows.Next() {
		var doc statute.Document
		var docType string
		if err := rows.Scan(&doc.ChunkID, &doc.Content, &doc.Source, &docType,
			&doc.Jurisdiction, &doc.ActOrRuleName, &doc.SectionOrRuleNumber,
			&doc.BaseNumber, &doc.State, &doc.Title, &doc.Version); err != nil {
			return nil, riskerr.CorruptIndex("scan sidecar row", err)
		}
		doc.Type = statute.DocumentType(docType)
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, riskerr.CorruptIndex("iterate sidecar rows", err)
	}
	return docs, nil
}

// LookupAnchor returns the first-inserted document matching the anchor's act
// key and exact section number, plus whether more than one match exists.
func (s *Sidecar) LookupAnchor(ctx context.Context, anchor statute.Anchor) (*statute.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, fmt.Errorf("sidecar is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, source, doc_type, jurisdiction,
		       act_name, section_number, base_number, state, title, version
		FROM documents
		WHERE act_key = ? AND section_number = ?
		ORDER BY pos LIMIT 2`,
		statute.ActKey(anchor.ActOrRuleName), anchor.SectionOrRuleNumber)
	if err != nil {
		return nil, false, fmt.Errorf("query anchor: %w", err)
	}
	defer rows.Close()

	var first *statute.Document
	count := 0
	for rows.Next() {
		var doc statute.Document
		var docType string
		if err := rows.Scan(&doc.ChunkID, &doc.Content, &doc.Source, &docType,
			&doc.Jurisdiction, &doc.ActOrRuleName, &doc.SectionOrRuleNumber,
			&doc.BaseNumber, &doc.State, &doc.Title, &doc.Version); err != nil {
			return nil, false, fmt.Errorf("scan anchor row: %w", err)
		}
		doc.Type = statute.DocumentType(docType)
		count++
		if first == nil {
			first = &doc
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate anchor rows: %w", err)
	}
	return first, count > 1, nil
}

// Count returns the number of document rows.
func (s *Sidecar) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("sidecar is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// SetState stores an index-level key/value pair.
func (s *Sidecar) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sidecar is closed")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO index_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// GetState reads an index-level key. Missing keys return ("", nil).
func (s *Sidecar) GetState(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("sidecar is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read index state %q: %w", key, err)
	}
	return value, nil
}

// Close closes the database connection.
func (s *Sidecar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
