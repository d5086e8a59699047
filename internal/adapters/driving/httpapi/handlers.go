package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
)

const (
	defaultSearchK         = 10
	defaultSearchThreshold = 0.0
	defaultEFSearch        = 50

	searchTypeSemantic = "semantic"
	searchTypeText     = "text"
	searchTypeFulltext = "fulltext"
	searchTypeMetadata = "metadata"
)

type searchRequest struct {
	Query     string  `json:"query"`
	K         *int    `json:"k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	EFSearch  *int    `json:"efSearch,omitempty"`
	Type      string  `json:"type,omitempty"`
	Metadata  *struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"metadata,omitempty"`
}

type searchResultJSON struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type != searchTypeMetadata && req.Metadata == nil && req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	k := defaultSearchK
	if req.K != nil {
		k = *req.K
	}
	efSearch := defaultEFSearch
	if req.EFSearch != nil {
		efSearch = *req.EFSearch
	}

	var (
		results []domain.SearchResult
		err     error
	)
	switch {
	case req.Type == searchTypeMetadata || (req.Type == "" && req.Query == "" && req.Metadata != nil):
		if req.Metadata == nil {
			writeError(w, http.StatusBadRequest, "metadata is required")
			return
		}
		results, err = s.coordinator.SearchByMetadata(r.Context(), req.Metadata.Key, req.Metadata.Value, k)
	case req.Type == searchTypeText || req.Type == searchTypeFulltext:
		results, err = s.coordinator.SearchSubstring(r.Context(), req.Query, k, req.Threshold)
	case req.Type == "" || req.Type == searchTypeSemantic:
		results, err = s.coordinator.SearchSemantic(r.Context(), req.Query, k, req.Threshold, efSearch)
	default:
		writeError(w, http.StatusBadRequest, "unknown search type: "+req.Type)
		return
	}
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}

	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{ID: r.ID, Text: r.Text, Score: r.Score, Metadata: r.Metadata}
	}
	writeJSON(w, http.StatusOK, out)
}

type addDocumentRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	ID       string            `json:"id,omitempty"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := s.coordinator.AddDocument(r.Context(), req.Text, req.Metadata, req.ID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "message": "document added"})
}

type addDocumentsRequest struct {
	Documents []addDocumentRequest `json:"documents"`
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req addDocumentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents is required")
		return
	}

	texts := make([]string, len(req.Documents))
	metadatas := make([]map[string]string, len(req.Documents))
	ids := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		if d.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required for every document")
			return
		}
		texts[i] = d.Text
		metadatas[i] = d.Metadata
		ids[i] = d.ID
	}

	count, err := s.coordinator.AddDocuments(r.Context(), texts, metadatas, ids)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "message": "documents added"})
}

type upsertDocumentRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req upsertDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := s.coordinator.UpsertDocument(r.Context(), id, req.Text, req.Metadata); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "message": "document upserted"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.coordinator.GetDocument(r.Context(), id)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentJSON{ID: doc.ID, Text: doc.Text, Metadata: doc.Metadata})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.coordinator.DeleteDocument(r.Context(), id); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "document deleted"})
}

type documentJSON struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	value := r.URL.Query().Get("value")

	docs, err := s.coordinator.ListDocuments(r.Context(), key, value)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}

	out := make([]documentJSON, len(docs))
	for i, d := range docs {
		out[i] = documentJSON{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCountDocuments(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	value := r.URL.Query().Get("value")

	count, err := s.coordinator.CountDocuments(r.Context(), key, value)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}

	resp := map[string]any{"count": count}
	if key != "" && value != "" {
		resp["filter"] = map[string]string{"key": key, "value": value}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.RebuildIndex(r.Context()); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "index rebuilt"})
}

func (s *Server) handleSaveIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.SaveIndex(r.Context()); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "index saved"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	documents, indexSize, err := s.coordinator.Health(r.Context())
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"documents":  documents,
		"index_size": indexSize,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeCoordinatorError maps a Coordinator error to a status code per
// the taxonomy: 400 for BadRequest, 404 for NotFound, 500 for
// everything else, including IdConflict.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
