package hnsw

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_AddAndSearch_ReturnsInsertionPositions(t *testing.T) {
	idx := New(2)

	err := idx.Add([][]float32{
		{0, 0},
		{10, 10},
		{20, 20},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())

	distances, positions, err := idx.Search([]float32{0, 0}, 1, 50)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 0, positions[0])
	assert.InDelta(t, 0, distances[0], 1e-4)
}

func TestIndex_Search_OrdersByDistance(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add([][]float32{
		{5, 5},
		{0, 0},
		{100, 100},
	}))

	_, positions, err := idx.Search([]float32{0, 0}, 3, 50)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.Equal(t, 1, positions[0])
}

func TestIndex_AppendsAcrossMultipleAddCalls(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add([][]float32{{1, 1}}))
	require.NoError(t, idx.Add([][]float32{{2, 2}, {3, 3}}))
	assert.Equal(t, 3, idx.Count())
}

func TestIndex_SerializeDeserialize_RoundTrips(t *testing.T) {
	dir, err := os.MkdirTemp("", "hnsw-index-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	idx := New(2)
	require.NoError(t, idx.Add([][]float32{{1, 1}, {2, 2}}))

	path := filepath.Join(dir, "index.bin")
	require.NoError(t, idx.Serialize(path))

	restored := New(2)
	require.NoError(t, restored.Deserialize(path))

	assert.Equal(t, idx.Count(), restored.Count())

	_, positions, err := restored.Search([]float32{1, 1}, 1, 50)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 0, positions[0])
}
