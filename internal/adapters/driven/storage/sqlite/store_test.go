package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "semdocstore-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := NewStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Add_GeneratesIDWhenEmpty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "hello world", map[string]string{"lang": "en"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.Text)
	assert.Equal(t, "en", doc.Metadata["lang"])
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
}

func TestStore_Add_CustomID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "custom doc", nil, "my-custom-id")
	require.NoError(t, err)
	assert.Equal(t, "my-custom-id", id)
}

func TestStore_Add_CustomIDConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "first", nil, "dupe")
	require.NoError(t, err)

	_, err = store.Add(ctx, "second", nil, "dupe")
	require.ErrorIs(t, err, domain.ErrIDConflict)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Upsert_InsertsWhenAbsent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "up-1", "upserted text", map[string]string{"k": "v"})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "upserted text", doc.Text)
	assert.Equal(t, "v", doc.Metadata["k"])
}

func TestStore_Upsert_PreservesCreatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "original", nil, "up-2")
	require.NoError(t, err)

	original, err := store.Get(ctx, id)
	require.NoError(t, err)

	err = store.Upsert(ctx, id, "replaced", map[string]string{"new": "meta"})
	require.NoError(t, err)

	updated, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "replaced", updated.Text)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "meta", updated.Metadata["new"])
	_, hadOldKey := updated.Metadata["lang"]
	assert.False(t, hadOldKey)
}

func TestStore_Update_UnknownID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "nope", "text", nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Update_ReplacesMetadataWholesale(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "original", map[string]string{"a": "1", "b": "2"}, "")
	require.NoError(t, err)

	err = store.Update(ctx, id, "updated", map[string]string{"c": "3"})
	require.NoError(t, err)

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "updated", doc.Text)
	assert.Equal(t, map[string]string{"c": "3"}, doc.Metadata)
}

func TestStore_Delete_CascadesMetadata(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "to be deleted", map[string]string{"k": "v"}, "")
	require.NoError(t, err)

	err = store.Delete(ctx, id)
	require.NoError(t, err)

	_, err = store.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	var count int
	row := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_metadata WHERE document_id = ?", id)
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}

func TestStore_Delete_UnknownID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Delete(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetAll_OrderedByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "c", nil, "c-id")
	require.NoError(t, err)
	_, err = store.Add(ctx, "a", nil, "a-id")
	require.NoError(t, err)
	_, err = store.Add(ctx, "b", nil, "b-id")
	require.NoError(t, err)

	docs, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"a-id", "b-id", "c-id"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestStore_Count(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Add(ctx, "one", nil, "")
	require.NoError(t, err)
	_, err = store.Add(ctx, "two", nil, "")
	require.NoError(t, err)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_AllIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "one", nil, "id-1")
	require.NoError(t, err)
	_, err = store.Add(ctx, "two", nil, "id-2")
	require.NoError(t, err)

	ids, err := store.AllIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id-1", "id-2"}, ids)
}

func TestStore_Exists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	id, err := store.Add(ctx, "here", nil, "")
	require.NoError(t, err)

	exists, err = store.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_SearchSubstring(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "the quick brown fox", nil, "")
	require.NoError(t, err)
	_, err = store.Add(ctx, "a lazy dog", nil, "")
	require.NoError(t, err)

	docs, err := store.SearchSubstring(ctx, "quick")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "quick")
}

func TestStore_GetByMetadata(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "doc one", map[string]string{"category": "news"}, "")
	require.NoError(t, err)
	_, err = store.Add(ctx, "doc two", map[string]string{"category": "sports"}, "")
	require.NoError(t, err)
	_, err = store.Add(ctx, "doc three", map[string]string{"category": "news"}, "")
	require.NoError(t, err)

	docs, err := store.GetByMetadata(ctx, "category", "news")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestStore_Transaction_CommitPersists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx))
	_, err := store.Add(ctx, "tx doc", nil, "tx-id")
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx))

	_, err = store.Get(ctx, "tx-id")
	require.NoError(t, err)
}

func TestStore_Transaction_RollbackDiscards(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx))
	_, err := store.Add(ctx, "tx doc", nil, "tx-id-2")
	require.NoError(t, err)
	require.NoError(t, store.Rollback(ctx))

	_, err = store.Get(ctx, "tx-id-2")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Transaction_DoubleBeginFails(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx))
	defer store.Rollback(ctx)

	err := store.Begin(ctx)
	assert.Error(t, err)
}

func TestStore_Transaction_RollbackWithoutBeginIsNoop(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Rollback(ctx)
	assert.NoError(t, err)
}
