package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadBatch_PadsShorterRows(t *testing.T) {
	ids := [][]int64{
		{1, 2, 3},
		{4, 5},
	}

	flatIDs, flatMask, flatTypes := padBatch(ids, 3)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 0}, flatIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 0}, flatMask)
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0}, flatTypes)
}

func TestPadBatch_UniformLengthNoPadding(t *testing.T) {
	ids := [][]int64{{1, 2}, {3, 4}}

	flatIDs, flatMask, _ := padBatch(ids, 2)

	assert.Equal(t, []int64{1, 2, 3, 4}, flatIDs)
	assert.Equal(t, []int64{1, 1, 1, 1}, flatMask)
}

func TestNew_StartsUnloaded(t *testing.T) {
	e := New()
	assert.False(t, e.Loaded())
	assert.Zero(t, e.EmbeddingDimension())
}

func TestEmbed_BeforeLoad_ReturnsError(t *testing.T) {
	e := New()
	_, err := e.Embed("hello", 32)
	assert.Error(t, err)
}
