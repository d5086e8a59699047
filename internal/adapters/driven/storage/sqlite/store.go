package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/semdocstore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driven"
	"github.com/custodia-labs/semdocstore/internal/core/services"
)

// Store is a SQLite-backed driven.DocumentStore.
type Store struct {
	db   *sql.DB
	path string

	txMu sync.Mutex
	tx   *sql.Tx
}

var _ driven.DocumentStore = (*Store)(nil)

// NewStore opens (creating if absent) a SQLite database at path and
// runs pending migrations. An empty path defaults to
// "./semdocstore.db".
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "semdocstore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: creating database directory: %v", domain.ErrIO, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", domain.ErrIO, err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", domain.ErrStorage, err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %v", domain.ErrStorage, err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(fsys embed.FS) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fsys.ReadDir(".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fsys.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting mutators
// run inside or outside an explicit transaction transparently.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn() execer {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Add inserts a new document, generating an id when customID is empty.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string, customID string) (string, error) {
	id := customID
	if id == "" {
		generated, err := services.GenerateID()
		if err != nil {
			return "", fmt.Errorf("%w: generating id: %v", domain.ErrIO, err)
		}
		id = generated
	} else {
		exists, err := s.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if exists {
			return "", domain.ErrIDConflict
		}
	}

	now := time.Now().UTC()
	conn := s.conn()
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO documents (id, text, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, id, text, now, now); err != nil {
		return "", fmt.Errorf("%w: inserting document: %v", domain.ErrStorage, err)
	}

	if err := s.replaceMetadata(ctx, conn, id, metadata, now); err != nil {
		return "", err
	}
	return id, nil
}

// Upsert atomically inserts or replaces id, preserving CreatedAt.
func (s *Store) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	now := time.Now().UTC()
	conn := s.conn()
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO documents (id, text, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			updated_at = excluded.updated_at
	`, id, text, now, now); err != nil {
		return fmt.Errorf("%w: upserting document: %v", domain.ErrStorage, err)
	}
	return s.replaceMetadata(ctx, conn, id, metadata, now)
}

// Update replaces text/metadata for an existing id.
func (s *Store) Update(ctx context.Context, id, text string, metadata map[string]string) error {
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	conn := s.conn()
	if _, err := conn.ExecContext(ctx, `
		UPDATE documents SET text = ?, updated_at = ? WHERE id = ?
	`, text, now, id); err != nil {
		return fmt.Errorf("%w: updating document: %v", domain.ErrStorage, err)
	}
	return s.replaceMetadata(ctx, conn, id, metadata, now)
}

// Delete removes a document; metadata cascades via the foreign key.
func (s *Store) Delete(ctx context.Context, id string) error {
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	if _, err := s.conn().ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: deleting document: %v", domain.ErrStorage, err)
	}
	return nil
}

// Get returns a single document by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, text, created_at, updated_at FROM documents WHERE id = ?
	`, id)

	var doc domain.Document
	if err := row.Scan(&doc.ID, &doc.Text, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning document: %v", domain.ErrStorage, err)
	}

	metadata, err := s.loadMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Metadata = metadata
	return &doc, nil
}

// GetAll returns every document ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, text, created_at, updated_at FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", domain.ErrStorage, err)
	}
	defer rows.Close()
	return s.scanDocuments(ctx, rows)
}

// Count returns the number of live documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	row := s.conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM documents")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting documents: %v", domain.ErrStorage, err)
	}
	return n, nil
}

// AllIDs returns every document id, ordered.
func (s *Store) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn().QueryContext(ctx, "SELECT id FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: querying document ids: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning document id: %v", domain.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists reports whether id names a live document.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	row := s.conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", id)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("%w: checking existence: %v", domain.ErrStorage, err)
	}
	return n > 0, nil
}

// SearchSubstring returns documents whose text contains q.
func (s *Store) SearchSubstring(ctx context.Context, q string) ([]domain.Document, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, text, created_at, updated_at FROM documents
		WHERE instr(text, ?) > 0
		ORDER BY id
	`, q)
	if err != nil {
		return nil, fmt.Errorf("%w: searching substring: %v", domain.ErrStorage, err)
	}
	defer rows.Close()
	return s.scanDocuments(ctx, rows)
}

// GetByMetadata returns documents carrying metadata[key] == value.
func (s *Store) GetByMetadata(ctx context.Context, key, value string) ([]domain.Document, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT DISTINCT d.id, d.text, d.created_at, d.updated_at
		FROM documents d
		JOIN document_metadata m ON m.document_id = d.id
		WHERE m.key = ? AND m.value = ?
		ORDER BY d.id
	`, key, value)
	if err != nil {
		return nil, fmt.Errorf("%w: searching metadata: %v", domain.ErrStorage, err)
	}
	defer rows.Close()
	return s.scanDocuments(ctx, rows)
}

// Begin starts a transaction. At most one may be active per store.
func (s *Store) Begin(ctx context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.tx != nil {
		return fmt.Errorf("%w: a transaction is already active", domain.ErrStorage)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStorage, err)
	}
	s.tx = tx
	return nil
}

// Commit commits the active transaction.
func (s *Store) Commit(ctx context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.tx == nil {
		return fmt.Errorf("%w: no active transaction", domain.ErrStorage)
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStorage, err)
	}
	return nil
}

// Rollback aborts the active transaction, if any. Safe to call with
// no active transaction (a no-op), matching automatic rollback on
// teardown.
func (s *Store) Rollback(ctx context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("%w: rolling back transaction: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) replaceMetadata(ctx context.Context, conn execer, id string, metadata map[string]string, now time.Time) error {
	if _, err := conn.ExecContext(ctx, "DELETE FROM document_metadata WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("%w: clearing metadata: %v", domain.ErrStorage, err)
	}
	for k, v := range metadata {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO document_metadata (document_id, key, value, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, k, v, now, now); err != nil {
			return fmt.Errorf("%w: inserting metadata: %v", domain.ErrStorage, err)
		}
	}
	return nil
}

func (s *Store) loadMetadata(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.conn().QueryContext(ctx, "SELECT key, value FROM document_metadata WHERE document_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("%w: querying metadata: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: scanning metadata: %v", domain.ErrStorage, err)
		}
		metadata[k] = v
	}
	return metadata, rows.Err()
}

func (s *Store) scanDocuments(ctx context.Context, rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Text, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning document: %v", domain.ErrStorage, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %v", domain.ErrStorage, err)
	}
	for i := range docs {
		metadata, err := s.loadMetadata(ctx, docs[i].ID)
		if err != nil {
			return nil, err
		}
		docs[i].Metadata = metadata
	}
	return docs, nil
}
