// Package sqlite provides a SQLite-based implementation of the
// driven.DocumentStore port.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO. Documents live in two relations: "documents"
// (id, text, timestamps) and "document_metadata" (document_id, key,
// value, timestamps, cascade-deleted with the parent).
//
// # Schema
//
// The schema is managed through versioned migrations embedded in the
// migrations/ directory.
//
// # Thread Safety
//
// All operations are thread-safe; the store uses database-level
// locking provided by SQLite in WAL mode. Callers needing atomic
// multi-row writes use Begin/Commit/Rollback; at most one transaction
// is active per store instance.
package sqlite
