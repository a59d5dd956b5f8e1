package embedsync

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/embedsync/ai/mock"
	"github.com/poiesic/embedsync/converters"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	registry := pool.NewRegistry()
	require.NoError(t, registry.AddPool(pool.Pool{
		Name:             "default",
		EmbeddingVersion: "embeddinggemma-v1",
		Collections:      []string{"posts"},
	}))
	registry.RegisterConverter("posts", converters.PlainText)

	db, err := NewDatabase("",
		WithInMemoryStore(),
		WithEmbedder(mock.NewMockEmbedder()),
		WithRegistry(registry),
		WithWorkerOptions(queue.WithRedeliveryDelay(time.Millisecond)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func waitForRun(t *testing.T, db *Database, runID core.ID) {
	t.Helper()

	require.Eventually(t, func() bool {
		progress, err := db.Progress(context.Background(), runID)
		if err != nil {
			return false
		}
		return progress.Done()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDatabase_BulkEmbedEndToEnd(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Store().PutDocuments(ctx, &core.Document{
		Collection: "posts",
		DocId:      "a",
		Content:    "first paragraph\n\nsecond paragraph",
		UpdatedAt:  time.Now(),
	}))

	runID, err := db.StartBulkEmbed(ctx, "default")
	require.NoError(t, err)
	waitForRun(t, db, runID)

	progress, err := db.Progress(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSucceeded, progress.Status)
	assert.Equal(t, 2, progress.Succeeded)

	rows, err := db.Store().GetDocumentEmbeddings(ctx, "default", "posts", "a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "embeddinggemma-v1", rows[0].EmbeddingVersion)
}

func TestDatabase_SearchAfterBulkEmbed(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Store().PutDocuments(ctx, &core.Document{
		Collection: "posts",
		DocId:      "a",
		Content:    "the quarterly revenue report\n\nnotes from the offsite",
		UpdatedAt:  time.Now(),
	}))

	runID, err := db.StartBulkEmbed(ctx, "default")
	require.NoError(t, err)
	waitForRun(t, db, runID)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)

	// The deterministic mock embeds identical text to identical vectors, so
	// an exact-text query must come back as the top hit.
	results, err := searcher.FindSimilar(ctx, "default", "the quarterly revenue report", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "the quarterly revenue report", results[0].Embedding.ChunkText)
}

func TestDatabase_IngestionPipeline(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	require.NoError(t, pipeline.DocumentChanged(ctx, &core.Document{
		Collection: "posts",
		DocId:      "live",
		Content:    "a live update",
		UpdatedAt:  time.Now(),
	}))
	pipeline.Wait()

	rows, err := db.Store().GetDocumentEmbeddings(ctx, "default", "posts", "live")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a live update", rows[0].ChunkText)
}

func TestDatabase_UnknownPool(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.StartBulkEmbed(context.Background(), "nope")
	assert.ErrorIs(t, err, pool.ErrUnknownPool)
}
