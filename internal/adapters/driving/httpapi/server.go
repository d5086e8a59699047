// Package httpapi is the Service Facade: it translates HTTP/JSON
// requests into driving.Coordinator calls. Routing uses the standard
// library's method-and-pattern net/http.ServeMux (Go 1.22+); nothing
// in this system's dependency corpus reaches for a third-party router
// for a surface this small.
package httpapi

import (
	"net/http"
	"time"

	"github.com/custodia-labs/semdocstore/internal/core/ports/driving"
	"github.com/custodia-labs/semdocstore/internal/logger"
)

// Server wraps a Coordinator behind the documented HTTP/JSON surface.
type Server struct {
	coordinator driving.Coordinator
	mux         *http.ServeMux
}

// New builds a Server routed against coordinator.
func New(coordinator driving.Coordinator) *Server {
	s := &Server{coordinator: coordinator, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /search", s.handleSearch)
	s.mux.HandleFunc("POST /documents", s.handleAddDocument)
	s.mux.HandleFunc("POST /documents/batch", s.handleAddDocuments)
	s.mux.HandleFunc("PUT /documents/{id}", s.handleUpsertDocument)
	s.mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /documents/count", s.handleCountDocuments)
	s.mux.HandleFunc("GET /documents", s.handleListDocuments)
	s.mux.HandleFunc("POST /index/rebuild", s.handleRebuildIndex)
	s.mux.HandleFunc("POST /index/save", s.handleSaveIndex)
	s.mux.HandleFunc("/", s.handleCatchAll)
}

// ServeHTTP implements http.Handler, wrapping every request with open
// CORS headers and a request log line.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mux.ServeHTTP(w, r)
	logger.Info("%s %s %s", r.Method, r.URL.Path, time.Since(start))
}

func (s *Server) handleCatchAll(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "no such route")
}

// ListenAndServe starts the HTTP server on addr, blocking until the
// server errors or is shut down.
func (s *Server) ListenAndServe(addr string) error {
	logger.Info("listening on %s", addr)
	return http.ListenAndServe(addr, s)
}
