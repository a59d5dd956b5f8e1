package storage

import (
	"context"

	"github.com/poiesic/embedsync/core"
)

// RunRepository provides operations for managing bulk-embedding runs.
// Implementations must be thread-safe and support concurrent access.
type RunRepository interface {
	// AddRun persists a new run. Generates an ID from sequence and sets
	// SubmittedAt if not already set. Returns the run with the ID populated.
	AddRun(ctx context.Context, run *core.Run) (*core.Run, error)

	// UpdateRun updates an existing run. Returns ErrNotFound if the run does
	// not exist and ErrInvalidTransition if the stored run is terminal and the
	// update would change its status.
	UpdateRun(ctx context.Context, run *core.Run) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if it doesn't exist.
	GetRun(ctx context.Context, id core.ID) (*core.Run, error)

	// LatestSucceededRun returns the most recently completed succeeded run for
	// a pool, or nil if the pool has no succeeded run yet.
	LatestSucceededRun(ctx context.Context, pool string) (*core.Run, error)
}

// BatchRepository provides operations for managing provider batches.
type BatchRepository interface {
	// AddBatch persists a new batch. Generates an ID from sequence and sets
	// SubmittedAt if not already set. Returns the batch with the ID populated.
	AddBatch(ctx context.Context, batch *core.Batch) (*core.Batch, error)

	// UpdateBatch updates an existing batch.
	// Returns ErrNotFound if the batch does not exist.
	UpdateBatch(ctx context.Context, batch *core.Batch) error

	// GetBatch retrieves a batch by ID. Returns ErrNotFound if it doesn't exist.
	GetBatch(ctx context.Context, id core.ID) (*core.Batch, error)

	// GetRunBatches retrieves all batches of a run, ordered by BatchIndex.
	GetRunBatches(ctx context.Context, runID core.ID) ([]*core.Batch, error)
}

// ChunkMetadataRepository provides operations for the chunk staging records.
// (runId, inputId) is the unique key; writes are upserts, which keeps task
// retries idempotent.
type ChunkMetadataRepository interface {
	// AddChunkMetadata upserts staging records.
	AddChunkMetadata(ctx context.Context, records ...*core.ChunkMetadata) error

	// GetChunkMetadata retrieves one staging record by its unique key.
	// Returns ErrNotFound if it doesn't exist.
	GetChunkMetadata(ctx context.Context, runID core.ID, inputID string) (*core.ChunkMetadata, error)

	// GetBatchChunkMetadata retrieves all staging records of one batch.
	GetBatchChunkMetadata(ctx context.Context, batchID core.ID) ([]*core.ChunkMetadata, error)

	// DeleteChunkMetadata removes staging records by key. Missing records are
	// not an error.
	DeleteChunkMetadata(ctx context.Context, runID core.ID, inputIDs ...string) error

	// DeleteBatchChunkMetadata removes all staging records of one batch.
	DeleteBatchChunkMetadata(ctx context.Context, batchID core.ID) error
}

// EmbeddingRepository provides operations for the derived embedding rows.
type EmbeddingRepository interface {
	// PutEmbeddings upserts embedding rows, keyed by
	// (pool, sourceCollection, docId, chunkIndex).
	PutEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error

	// GetDocumentEmbeddings retrieves all embedding rows of one document in a
	// pool, ordered by chunk index.
	GetDocumentEmbeddings(ctx context.Context, pool, collection, docID string) ([]*core.Embedding, error)

	// HasEmbeddingVersion reports whether the document has at least one
	// embedding row recorded under the given embedding version.
	HasEmbeddingVersion(ctx context.Context, pool, collection, docID, version string) (bool, error)

	// DeleteDocumentEmbeddings removes all embedding rows of one document in a
	// pool. Missing rows are not an error.
	DeleteDocumentEmbeddings(ctx context.Context, pool, collection, docID string) error

	// FindSimilar finds embedding rows similar to the given vector within a
	// pool. Returns rows with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, pool string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// DocumentStore provides access to source documents. The bulk orchestrator
// only reads; writes exist for ingestion and tests.
type DocumentStore interface {
	// FindPage retrieves one page of a collection ordered by document id.
	// page is 0-based. Returns an empty slice past the end.
	FindPage(ctx context.Context, collection string, page, limit int) ([]*core.Document, error)

	// FindDocument retrieves one document.
	// Returns ErrNotFound if it doesn't exist.
	FindDocument(ctx context.Context, collection, docID string) (*core.Document, error)

	// PutDocuments upserts documents, setting InsertedAt on first write and
	// UpdatedAt on every write.
	PutDocuments(ctx context.Context, docs ...*core.Document) error

	// DeleteDocument removes a document. Returns ErrNotFound if it doesn't
	// exist.
	DeleteDocument(ctx context.Context, collection, docID string) error
}

// VectorIndex is the hook for an external vector search engine. The badger
// store satisfies it directly over the embedding rows; deployments with a
// dedicated engine plug their adapter in here.
type VectorIndex interface {
	// StoreEmbedding forwards one freshly written vector to the index.
	StoreEmbedding(ctx context.Context, pool, collection, docID string, recordID core.ID, vector []float32) error

	// DeleteEmbeddings drops all indexed vectors of one document in a pool.
	DeleteEmbeddings(ctx context.Context, pool, collection, docID string) error

	// Search returns the ids of the limit nearest vectors in a pool.
	Search(ctx context.Context, pool string, query []float32, limit int, minSimilarity float32) ([]*core.SimilarityMatch, error)
}

// Store combines every repository the orchestrator needs behind one handle.
type Store interface {
	RunRepository
	BatchRepository
	ChunkMetadataRepository
	EmbeddingRepository
	DocumentStore

	// Close closes the storage backend and releases resources.
	Close() error
}
