package domain

import "time"

// Document is the system's primary entity: free text plus flat
// string metadata, keyed by an opaque, unique string id.
type Document struct {
	// ID is the unique identifier, either user-supplied or generated
	// as "doc_" + 12 random alphanumeric characters + "_" + a
	// millisecond timestamp.
	ID string

	// Text is arbitrary UTF-8 content. Non-empty for a live document.
	Text string

	// Metadata is a flat string-to-string map; keys are unique per
	// document.
	Metadata map[string]string

	// CreatedAt is set on first insert and never changes afterward,
	// including across upsert/update.
	CreatedAt time.Time

	// UpdatedAt changes on every mutation.
	UpdatedAt time.Time
}

// Clone returns a deep copy, so callers cannot mutate a Document held
// internally by a store through an aliased Metadata map.
func (d Document) Clone() Document {
	out := d
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SearchResult is a single scored match, common to semantic,
// substring, and metadata search.
type SearchResult struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}
