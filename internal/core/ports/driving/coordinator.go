package driving

import (
	"context"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
)

// Coordinator is the Index Coordinator's public contract: the Service
// Facade never touches the Document Store, ANN Index, Inference
// Engine, or Position->Id mapping directly.
type Coordinator interface {
	// AddDocument persists text/metadata, embeds it, and appends it
	// to the ANN index. Returns the assigned id.
	AddDocument(ctx context.Context, text string, metadata map[string]string, customID string) (string, error)

	// AddDocuments persists and embeds a batch of documents under a
	// single document-store transaction. Returns the number inserted.
	AddDocuments(ctx context.Context, texts []string, metadatas []map[string]string, customIDs []string) (int, error)

	// UpsertDocument inserts or replaces id, then rebuilds the index.
	UpsertDocument(ctx context.Context, id, text string, metadata map[string]string) error

	// UpdateDocument replaces text/metadata for an existing id, then
	// rebuilds the index. Returns domain.ErrNotFound if id is unknown.
	UpdateDocument(ctx context.Context, id, text string, metadata map[string]string) error

	// DeleteDocument removes id, then rebuilds the index. Returns
	// domain.ErrNotFound if id is unknown.
	DeleteDocument(ctx context.Context, id string) error

	// GetDocument returns a single document by id.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns every document, or those matching
	// metadata[key] == value when both are non-empty.
	ListDocuments(ctx context.Context, key, value string) ([]domain.Document, error)

	// CountDocuments counts every document, or those matching
	// metadata[key] == value when both are non-empty.
	CountDocuments(ctx context.Context, key, value string) (int, error)

	// SearchSemantic embeds query, searches the ANN index, and
	// materializes results scoring at or above threshold.
	SearchSemantic(ctx context.Context, query string, k int, threshold float64, efSearch int) ([]domain.SearchResult, error)

	// SearchSubstring returns documents whose text contains query,
	// scored 1.0, honoring threshold.
	SearchSubstring(ctx context.Context, query string, k int, threshold float64) ([]domain.SearchResult, error)

	// SearchByMetadata returns up to k documents matching
	// metadata[key] == value, scored 1.0.
	SearchByMetadata(ctx context.Context, key, value string, k int) ([]domain.SearchResult, error)

	// RebuildIndex discards and re-populates the ANN index from the
	// Document Store.
	RebuildIndex(ctx context.Context) error

	// SaveIndex serializes the ANN index to its configured path.
	SaveIndex(ctx context.Context) error

	// Health reports the document count and ANN index size.
	Health(ctx context.Context) (documents int, indexSize int, err error)
}
