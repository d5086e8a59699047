package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driven"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driving"
	"github.com/custodia-labs/semdocstore/internal/logger"
)

// coordinatorState models Uninitialized -> Initialized(no_model) ->
// Ready -> Closed. Only Ready accepts reads/writes.
type coordinatorState int

const (
	stateUninitialized coordinatorState = iota
	stateInitializedNoModel
	stateReady
	stateClosed
)

const defaultMaxLen = 256

// IndexFactory constructs a fresh, empty ANN index of the given
// embedding dimension. The Coordinator needs this because the ANN
// index's dimension is fixed at construction and is only discovered
// once the Inference Engine has loaded a model.
type IndexFactory func(dimension int) driven.VectorIndex

// Coordinator is the Index Coordinator: it owns one Inference Engine,
// one Document Store, one ANN Index, and one Position->Id mapping, and
// enforces consistency across mutations and restart under a single
// exclusive critical section.
type Coordinator struct {
	mu sync.Mutex

	store   driven.DocumentStore
	engine  driven.InferenceEngine
	index   driven.VectorIndex
	newIdx  IndexFactory
	mapping []string

	indexPath string
	maxLen    int
	state     coordinatorState
}

var _ driving.Coordinator = (*Coordinator)(nil)

// NewCoordinator constructs a Coordinator in the Uninitialized state.
// Call Initialize before any other method.
func NewCoordinator(store driven.DocumentStore, engine driven.InferenceEngine, newIdx IndexFactory) *Coordinator {
	return &Coordinator{
		store:  store,
		engine: engine,
		newIdx: newIdx,
		maxLen: defaultMaxLen,
	}
}

// Initialize runs the startup sequence: load the model, then load or
// create the ANN index at indexPath and reconcile it against the
// Document Store.
func (c *Coordinator) Initialize(modelPath, tokenizerPath, indexPath string, useGPU bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.indexPath = indexPath

	if err := c.engine.Load(modelPath, tokenizerPath, useGPU); err != nil {
		c.state = stateInitializedNoModel
		return fmt.Errorf("loading inference engine: %w", err)
	}

	h := c.engine.EmbeddingDimension()
	c.index = c.newIdx(h)

	if indexPath != "" {
		if err := c.index.Deserialize(indexPath); err == nil {
			ids, err := c.store.AllIDs(context.Background())
			if err != nil {
				return fmt.Errorf("reading document ids at startup: %w", err)
			}
			if len(ids) == c.index.Count() {
				c.mapping = ids
				c.state = stateReady
				return nil
			}
			logger.Warn("index/document-store mismatch at startup (mapping=%d, index=%d), rebuilding", len(ids), c.index.Count())
		}
	}

	if err := c.rebuildLocked(context.Background()); err != nil {
		c.state = stateClosed
		return fmt.Errorf("rebuild at startup: %w", err)
	}
	c.state = stateReady
	return nil
}

func (c *Coordinator) requireReady() error {
	switch c.state {
	case stateReady:
		return nil
	case stateClosed:
		return fmt.Errorf("%w: coordinator closed after a fatal rebuild failure", domain.ErrStorage)
	default:
		return fmt.Errorf("%w: coordinator not initialized", domain.ErrEngineNotLoaded)
	}
}

// rebuildLocked discards the ANN index and re-populates it from the
// Document Store. Callers must hold c.mu.
func (c *Coordinator) rebuildLocked(ctx context.Context) error {
	fresh := c.newIdx(c.engine.EmbeddingDimension())

	docs, err := c.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading documents for rebuild", domain.ErrStorage)
	}

	if len(docs) == 0 {
		c.index = fresh
		c.mapping = nil
		return nil
	}

	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
		ids[i] = d.ID
	}

	embeddings, err := c.engine.EmbedBatch(texts, c.maxLen)
	if err != nil {
		return fmt.Errorf("embedding documents for rebuild: %w", err)
	}

	if err := fresh.Add(embeddings); err != nil {
		return fmt.Errorf("populating rebuilt index: %w", err)
	}

	if fresh.Count() != len(ids) {
		return fmt.Errorf("%w: rebuilt index count %d != document count %d", domain.ErrStorage, fresh.Count(), len(ids))
	}

	c.index = fresh
	c.mapping = ids
	return nil
}

// RebuildIndex is the exported, locked form of rebuild.
func (c *Coordinator) RebuildIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.rebuildLocked(ctx); err != nil {
		c.state = stateClosed
		return err
	}
	return nil
}

// AddDocument persists text/metadata, embeds it, and appends it to
// the ANN index.
func (c *Coordinator) AddDocument(ctx context.Context, text string, metadata map[string]string, customID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return "", err
	}

	id, err := c.store.Add(ctx, text, metadata, customID)
	if err != nil {
		return "", err
	}

	v, err := c.engine.Embed(text, c.maxLen)
	if err != nil {
		if delErr := c.store.Delete(ctx, id); delErr != nil {
			logger.Warn("compensating delete of %s failed after embedding error: %v", id, delErr)
		}
		return "", fmt.Errorf("embedding document: %w", err)
	}

	if err := c.index.Add([][]float32{v}); err != nil {
		if delErr := c.store.Delete(ctx, id); delErr != nil {
			logger.Warn("compensating delete of %s failed after index error: %v", id, delErr)
		}
		return "", fmt.Errorf("adding to ann index: %w", err)
	}
	c.mapping = append(c.mapping, id)

	return id, nil
}

// AddDocuments persists and embeds a batch of documents under a
// single document-store transaction.
func (c *Coordinator) AddDocuments(ctx context.Context, texts []string, metadatas []map[string]string, customIDs []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	if len(texts) == 0 {
		return 0, nil
	}

	if err := c.store.Begin(ctx); err != nil {
		return 0, fmt.Errorf("%w: beginning batch insert", domain.ErrStorage)
	}

	ids := make([]string, len(texts))
	for i, text := range texts {
		var meta map[string]string
		if i < len(metadatas) {
			meta = metadatas[i]
		}
		var customID string
		if i < len(customIDs) {
			customID = customIDs[i]
		}
		id, err := c.store.Add(ctx, text, meta, customID)
		if err != nil {
			_ = c.store.Rollback(ctx)
			return 0, err
		}
		ids[i] = id
	}

	embeddings, err := c.engine.EmbedBatch(texts, c.maxLen)
	if err != nil {
		_ = c.store.Rollback(ctx)
		return 0, fmt.Errorf("embedding batch: %w", err)
	}

	if err := c.store.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: committing batch insert", domain.ErrStorage)
	}

	if err := c.index.Add(embeddings); err != nil {
		return 0, fmt.Errorf("adding batch to ann index: %w", err)
	}
	c.mapping = append(c.mapping, ids...)

	return len(ids), nil
}

// UpsertDocument inserts or replaces id, then rebuilds the index
// because the document may already occupy a position whose vector
// must change.
func (c *Coordinator) UpsertDocument(ctx context.Context, id, text string, metadata map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.store.Upsert(ctx, id, text, metadata); err != nil {
		return err
	}
	if err := c.rebuildLocked(ctx); err != nil {
		c.state = stateClosed
		return err
	}
	return nil
}

// UpdateDocument replaces text/metadata for an existing id, then
// rebuilds the index.
func (c *Coordinator) UpdateDocument(ctx context.Context, id, text string, metadata map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.store.Update(ctx, id, text, metadata); err != nil {
		return err
	}
	if err := c.rebuildLocked(ctx); err != nil {
		c.state = stateClosed
		return err
	}
	return nil
}

// DeleteDocument removes id, then rebuilds the index.
func (c *Coordinator) DeleteDocument(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.rebuildLocked(ctx); err != nil {
		c.state = stateClosed
		return err
	}
	return nil
}

// GetDocument returns a single document by id.
func (c *Coordinator) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	return c.store.Get(ctx, id)
}

// ListDocuments returns every document, or those matching
// metadata[key] == value when both are non-empty.
func (c *Coordinator) ListDocuments(ctx context.Context, key, value string) ([]domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if key != "" && value != "" {
		return c.store.GetByMetadata(ctx, key, value)
	}
	return c.store.GetAll(ctx)
}

// CountDocuments counts every document, or those matching
// metadata[key] == value when both are non-empty.
func (c *Coordinator) CountDocuments(ctx context.Context, key, value string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	if key != "" && value != "" {
		docs, err := c.store.GetByMetadata(ctx, key, value)
		if err != nil {
			return 0, err
		}
		return len(docs), nil
	}
	return c.store.Count(ctx)
}

// SearchSemantic embeds query, searches the ANN index, and
// materializes results in the order the index emits them
// (nearest-first).
func (c *Coordinator) SearchSemantic(ctx context.Context, query string, k int, threshold float64, efSearch int) ([]domain.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return nil, err
	}

	q, err := c.engine.Embed(query, c.maxLen)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	distances, positions, err := c.index.Search(q, k, efSearch)
	if err != nil {
		return nil, fmt.Errorf("searching ann index: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(positions))
	for i, pos := range positions {
		if pos < 0 || pos >= len(c.mapping) {
			continue
		}
		score := 1.0 / (1.0 + float64(distances[i]))
		if score < threshold {
			continue
		}
		id := c.mapping[pos]
		doc, err := c.store.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("fetching search hit %s failed: %v", id, err)
			}
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Score:    score,
		})
	}
	return results, nil
}

// SearchSubstring returns documents whose text contains query, scored
// 1.0, honoring threshold.
func (c *Coordinator) SearchSubstring(ctx context.Context, query string, k int, threshold float64) ([]domain.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if threshold > 1.0 {
		return nil, nil
	}
	docs, err := c.store.SearchSubstring(ctx, query)
	if err != nil {
		logger.Warn("substring search failed: %v", err)
		return nil, nil
	}
	return truncate(toResults(docs, 1.0), k), nil
}

// SearchByMetadata returns up to k documents matching
// metadata[key] == value, scored 1.0.
func (c *Coordinator) SearchByMetadata(ctx context.Context, key, value string, k int) ([]domain.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	docs, err := c.store.GetByMetadata(ctx, key, value)
	if err != nil {
		logger.Warn("metadata search failed: %v", err)
		return nil, nil
	}
	return truncate(toResults(docs, 1.0), k), nil
}

// SaveIndex serializes the ANN Index to its configured path.
func (c *Coordinator) SaveIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return err
	}
	if c.indexPath == "" {
		return nil
	}
	return c.index.Serialize(c.indexPath)
}

// Health reports the document count and ANN index size.
func (c *Coordinator) Health(ctx context.Context) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReady(); err != nil {
		return 0, 0, err
	}
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return n, c.index.Count(), nil
}

func toResults(docs []domain.Document, score float64) []domain.SearchResult {
	out := make([]domain.SearchResult, len(docs))
	for i, d := range docs {
		out[i] = domain.SearchResult{ID: d.ID, Text: d.Text, Metadata: d.Metadata, Score: score}
	}
	return out
}

func truncate(results []domain.SearchResult, k int) []domain.SearchResult {
	if k > 0 && len(results) > k {
		return results[:k]
	}
	return results
}
