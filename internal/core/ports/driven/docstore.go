package driven

import (
	"context"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
)

// DocumentStore is a durable, transactional mapping from string
// document id to (text, metadata) with substring and exact-metadata
// scans. Backed by SQLite.
type DocumentStore interface {
	// Add inserts a new document. If customID is empty, an id is
	// generated. If customID is set and already exists, Add returns
	// domain.ErrIDConflict and the caller is expected to use Upsert
	// instead.
	Add(ctx context.Context, text string, metadata map[string]string, customID string) (string, error)

	// Upsert atomically inserts or replaces the document at id,
	// preserving the original CreatedAt if the row already existed.
	Upsert(ctx context.Context, id, text string, metadata map[string]string) error

	// Update replaces text/metadata for an existing id, leaving
	// CreatedAt untouched. Returns domain.ErrNotFound if id is unknown.
	Update(ctx context.Context, id, text string, metadata map[string]string) error

	// Delete removes a document and cascades its metadata. Returns
	// domain.ErrNotFound if id is unknown.
	Delete(ctx context.Context, id string) error

	// Get returns a single document by id.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetAll returns every live document, ordered by id.
	GetAll(ctx context.Context) ([]domain.Document, error)

	// Count returns the number of live documents.
	Count(ctx context.Context) (int, error)

	// AllIDs returns every live document id, ordered.
	AllIDs(ctx context.Context) ([]string, error)

	// Exists reports whether id names a live document.
	Exists(ctx context.Context, id string) (bool, error)

	// SearchSubstring returns documents whose text contains q,
	// ordered by id.
	SearchSubstring(ctx context.Context, q string) ([]domain.Document, error)

	// GetByMetadata returns documents carrying metadata[key] == value,
	// distinct by id, ordered by id.
	GetByMetadata(ctx context.Context, key, value string) ([]domain.Document, error)

	// Begin starts a transaction. At most one may be active per store.
	Begin(ctx context.Context) error

	// Commit commits the active transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the active transaction, if any.
	Rollback(ctx context.Context) error

	// Close releases the underlying handle.
	Close() error
}
