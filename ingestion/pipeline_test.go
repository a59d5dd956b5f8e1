package ingestion

import (
	"context"
	"testing"

	"github.com/poiesic/embedsync/ai/mock"
	"github.com/poiesic/embedsync/converters"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/storage"
	badgerstore "github.com/poiesic/embedsync/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*Pipeline, storage.Store) {
	t.Helper()

	store, cleanup, err := badgerstore.NewMemoryStoreForTest()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	registry := pool.NewRegistry()
	require.NoError(t, registry.AddPool(pool.Pool{
		Name:             "default",
		EmbeddingVersion: "embeddinggemma-v1",
		Collections:      []string{"posts"},
	}))
	registry.RegisterConverter("posts", converters.PlainText)

	p, err := NewPipeline(store, mock.NewMockEmbedder(), registry, WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return p, store
}

func TestNewPipeline_RequiredDependencies(t *testing.T) {
	registry := pool.NewRegistry()
	embedder := mock.NewMockEmbedder()

	store, cleanup, err := badgerstore.NewMemoryStoreForTest()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	_, err = NewPipeline(nil, embedder, registry)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(store, nil, registry)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(store, embedder, nil)
	assert.ErrorIs(t, err, ErrRegistryRequired)
}

func TestDocumentChanged_EmbedsChunks(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	err := p.DocumentChanged(ctx, &core.Document{
		Collection: "posts",
		DocId:      "a",
		Content:    "first paragraph\n\nsecond paragraph",
	})
	require.NoError(t, err)
	p.Wait()

	doc, err := store.FindDocument(ctx, "posts", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.DocId)

	rows, err := store.GetDocumentEmbeddings(ctx, "default", "posts", "a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first paragraph", rows[0].ChunkText)
	assert.Equal(t, "embeddinggemma-v1", rows[0].EmbeddingVersion)
	assert.NotEmpty(t, rows[0].Vector)
}

func TestDocumentChanged_ReplacesOldRows(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.DocumentChanged(ctx, &core.Document{
		Collection: "posts", DocId: "a",
		Content: "one\n\ntwo\n\nthree",
	}))
	p.Wait()

	// Shrinks to a single chunk: the extra rows must disappear.
	require.NoError(t, p.DocumentChanged(ctx, &core.Document{
		Collection: "posts", DocId: "a",
		Content: "only chunk now",
	}))
	p.Wait()

	rows, err := store.GetDocumentEmbeddings(ctx, "default", "posts", "a")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "only chunk now", rows[0].ChunkText)
}

func TestDocumentChanged_UnmappedCollection(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	// No pool feeds from "drafts"; the write still succeeds.
	require.NoError(t, p.DocumentChanged(ctx, &core.Document{
		Collection: "drafts", DocId: "a", Content: "x",
	}))
	p.Wait()

	_, err := store.FindDocument(ctx, "drafts", "a")
	assert.NoError(t, err)
}

func TestDocumentDeleted_DropsRows(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.DocumentChanged(ctx, &core.Document{
		Collection: "posts", DocId: "a", Content: "some text",
	}))
	p.Wait()

	require.NoError(t, p.DocumentDeleted(ctx, "posts", "a"))
	p.Wait()

	_, err := store.FindDocument(ctx, "posts", "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rows, err := store.GetDocumentEmbeddings(ctx, "default", "posts", "a")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDocumentChanged_EmptyDocumentDropsRows(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.DocumentChanged(ctx, &core.Document{
		Collection: "posts", DocId: "a", Content: "text",
	}))
	p.Wait()

	require.NoError(t, p.DocumentChanged(ctx, &core.Document{
		Collection: "posts", DocId: "a", Content: "   ",
	}))
	p.Wait()

	rows, err := store.GetDocumentEmbeddings(ctx, "default", "posts", "a")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
