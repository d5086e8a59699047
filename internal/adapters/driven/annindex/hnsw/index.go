// Package hnsw adapts github.com/hupe1980/vecgo's HNSW index to the
// driven.VectorIndex port. Vectors are addressed by their insertion
// position (0-indexed); the library's own uint64 handles are never
// exposed past this package.
package hnsw

import (
	"fmt"
	"math"
	"os"

	"github.com/hupe1980/vecgo"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driven"
)

// DefaultM is the number of graph connections per layer. New always
// uses it; this adapter offers no way to choose another M, and it
// leaves efConstruction at the library's default.
const DefaultM = 16

// Index is an in-memory HNSW approximate nearest neighbor index over
// squared-L2 distance.
type Index struct {
	dimension int
	m         int
	vg        *vecgo.Vecgo[int]
	count     int
}

var _ driven.VectorIndex = (*Index)(nil)

// New builds an empty HNSW index for vectors of the given dimension.
func New(dimension int) *Index {
	idx := &Index{dimension: dimension, m: DefaultM}
	idx.vg = vecgo.New[int](dimension, func(o *vecgo.Options) {
		o.HNSW.M = DefaultM
	})
	return idx
}

// Add appends vectors to the index, assigning them positions
// len(existing)..len(existing)+len(vectors)-1 in insertion order.
func (i *Index) Add(vectors [][]float32) error {
	if i.vg == nil {
		return fmt.Errorf("%w: hnsw index not initialized", domain.ErrStorage)
	}
	for offset, v := range vectors {
		item := &vecgo.VectorWithData[int]{Vector: v, Data: i.count + offset}
		if _, err := i.vg.Insert(item); err != nil {
			return fmt.Errorf("%w: inserting vector: %v", domain.ErrStorage, err)
		}
	}
	i.count += len(vectors)
	return nil
}

// Search returns the k nearest neighbors to query as true Euclidean
// distances (the square root of the index's native squared-L2
// distance) alongside their insertion positions.
func (i *Index) Search(query []float32, k int, efSearch int) ([]float32, []int, error) {
	if i.vg == nil {
		return nil, nil, fmt.Errorf("%w: hnsw index not initialized", domain.ErrStorage)
	}
	results, err := i.vg.KNNSearch(query, k, func(o *vecgo.KNNSearchOptions[int]) {
		o.EF = efSearch
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: searching index: %v", domain.ErrStorage, err)
	}

	distances := make([]float32, len(results))
	positions := make([]int, len(results))
	for idx, r := range results {
		distances[idx] = float32(math.Sqrt(float64(r.Distance)))
		positions[idx] = r.Data
	}
	return distances, positions, nil
}

// Count returns the number of vectors added to the index.
func (i *Index) Count() int { return i.count }

// Serialize writes the index to path using the library's native
// snapshot format, plus a small sidecar header recording the
// dimension and vector count needed to restore Index state without
// re-scanning the snapshot.
func (i *Index) Serialize(path string) error {
	if i.vg == nil {
		return fmt.Errorf("%w: hnsw index not initialized", domain.ErrStorage)
	}
	if err := i.vg.SaveToFile(path); err != nil {
		return fmt.Errorf("%w: saving index: %v", domain.ErrStorage, err)
	}
	header := fmt.Sprintf("%d %d\n", i.dimension, i.count)
	if err := os.WriteFile(path+".meta", []byte(header), 0o600); err != nil {
		return fmt.Errorf("%w: saving index metadata: %v", domain.ErrStorage, err)
	}
	return nil
}

// Deserialize replaces the index's contents with the snapshot at
// path, previously written by Serialize.
func (i *Index) Deserialize(path string) error {
	header, err := os.ReadFile(path + ".meta")
	if err != nil {
		return fmt.Errorf("%w: reading index metadata: %v", domain.ErrStorage, err)
	}
	var dimension, count int
	if _, err := fmt.Sscanf(string(header), "%d %d", &dimension, &count); err != nil {
		return fmt.Errorf("%w: parsing index metadata: %v", domain.ErrStorage, err)
	}

	vg, err := vecgo.NewFromFilename[int](path)
	if err != nil {
		return fmt.Errorf("%w: loading index: %v", domain.ErrStorage, err)
	}

	i.vg = vg
	i.dimension = dimension
	i.count = count
	return nil
}
