package driven

// VectorIndex wraps a hierarchical navigable small-world (HNSW) index
// over unit-norm vectors using Euclidean (L2) distance. Deletion is
// not supported; the coordinator handles deletes by rebuild.
type VectorIndex interface {
	// Add appends vectors, assigning them consecutive internal
	// positions starting at Count().
	Add(vectors [][]float32) error

	// Search returns up to k nearest neighbours to query. Positions
	// may be -1 where fewer than k neighbours exist; callers must
	// filter those out. Distances are true Euclidean L2 distances.
	Search(query []float32, k int, efSearch int) (distances []float32, positions []int, err error)

	// Count returns the number of vectors currently held.
	Count() int

	// Serialize writes the index to path.
	Serialize(path string) error

	// Deserialize replaces the index's contents with what was
	// previously written to path.
	Deserialize(path string) error
}
