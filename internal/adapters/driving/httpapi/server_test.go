package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driving"
)

var _ driving.Coordinator = (*fakeCoordinator)(nil)

type fakeCoordinator struct {
	addDocumentFn func(ctx context.Context, text string, metadata map[string]string, customID string) (string, error)
	getDocumentFn func(ctx context.Context, id string) (*domain.Document, error)
	deleteFn      func(ctx context.Context, id string) error
	searchFn      func(ctx context.Context, query string, k int, threshold float64, efSearch int) ([]domain.SearchResult, error)
	healthFn      func(ctx context.Context) (int, int, error)
}

func (f *fakeCoordinator) AddDocument(ctx context.Context, text string, metadata map[string]string, customID string) (string, error) {
	return f.addDocumentFn(ctx, text, metadata, customID)
}
func (f *fakeCoordinator) AddDocuments(ctx context.Context, texts []string, metadatas []map[string]string, customIDs []string) (int, error) {
	return len(texts), nil
}
func (f *fakeCoordinator) UpsertDocument(ctx context.Context, id, text string, metadata map[string]string) error {
	return nil
}
func (f *fakeCoordinator) UpdateDocument(ctx context.Context, id, text string, metadata map[string]string) error {
	return nil
}
func (f *fakeCoordinator) DeleteDocument(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}
func (f *fakeCoordinator) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return f.getDocumentFn(ctx, id)
}
func (f *fakeCoordinator) ListDocuments(ctx context.Context, key, value string) ([]domain.Document, error) {
	return nil, nil
}
func (f *fakeCoordinator) CountDocuments(ctx context.Context, key, value string) (int, error) {
	return 0, nil
}
func (f *fakeCoordinator) SearchSemantic(ctx context.Context, query string, k int, threshold float64, efSearch int) ([]domain.SearchResult, error) {
	return f.searchFn(ctx, query, k, threshold, efSearch)
}
func (f *fakeCoordinator) SearchSubstring(ctx context.Context, query string, k int, threshold float64) ([]domain.SearchResult, error) {
	return nil, nil
}
func (f *fakeCoordinator) SearchByMetadata(ctx context.Context, key, value string, k int) ([]domain.SearchResult, error) {
	return nil, nil
}
func (f *fakeCoordinator) RebuildIndex(ctx context.Context) error { return nil }
func (f *fakeCoordinator) SaveIndex(ctx context.Context) error    { return nil }
func (f *fakeCoordinator) Health(ctx context.Context) (int, int, error) {
	return f.healthFn(ctx)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	fc := &fakeCoordinator{healthFn: func(ctx context.Context) (int, int, error) { return 5, 5, nil }}
	s := New(fc)

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["documents"])
}

func TestHandleAddDocument_MissingText(t *testing.T) {
	s := New(&fakeCoordinator{})
	rec := doRequest(t, s, http.MethodPost, "/documents", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAddDocument_IDConflictMapsTo500(t *testing.T) {
	fc := &fakeCoordinator{
		addDocumentFn: func(ctx context.Context, text string, metadata map[string]string, customID string) (string, error) {
			return "", domain.ErrIDConflict
		},
	}
	s := New(fc)
	rec := doRequest(t, s, http.MethodPost, "/documents", map[string]any{"text": "a", "id": "k"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetDocument_NotFoundMapsTo404(t *testing.T) {
	fc := &fakeCoordinator{
		getDocumentFn: func(ctx context.Context, id string) (*domain.Document, error) {
			return nil, domain.ErrNotFound
		},
	}
	s := New(fc)
	rec := doRequest(t, s, http.MethodGet, "/documents/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	s := New(&fakeCoordinator{})
	rec := doRequest(t, s, http.MethodPost, "/search", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch_Semantic(t *testing.T) {
	fc := &fakeCoordinator{
		searchFn: func(ctx context.Context, query string, k int, threshold float64, efSearch int) ([]domain.SearchResult, error) {
			return []domain.SearchResult{{ID: "doc_1", Text: "ocean", Score: 0.9}}, nil
		},
	}
	s := New(fc)
	rec := doRequest(t, s, http.MethodPost, "/search", map[string]any{"query": "ocean", "k": 1})
	assert.Equal(t, http.StatusOK, rec.Code)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "doc_1", results[0].ID)
}

func TestOptions_AlwaysSucceeds(t *testing.T) {
	s := New(&fakeCoordinator{})
	rec := doRequest(t, s, http.MethodOptions, "/documents", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUnknownRoute_Returns404(t *testing.T) {
	s := New(&fakeCoordinator{})
	rec := doRequest(t, s, http.MethodGet, "/no-such-route", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
