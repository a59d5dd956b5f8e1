package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/reembed"
	"github.com/poiesic/embedsync/storage"
)

// Pipeline reacts to single-document changes: it persists the document and
// refreshes its embedding rows in every affected pool on a background
// worker pool.
type Pipeline struct {
	store      storage.Store
	embedder   ai.Embedder
	registry   *pool.Registry
	vectors    storage.VectorIndex
	workerPool *ants.Pool
	logger     *slog.Logger

	// wg lets tests and Release wait for in-flight background work.
	wg sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for background processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.workerPool != nil {
			p.workerPool.Release()
		}

		workerPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.workerPool = workerPool
		return nil
	}
}

// WithVectorIndex attaches an external vector index kept in step with the
// embedding rows.
func WithVectorIndex(vectors storage.VectorIndex) Option {
	return func(p *Pipeline) error {
		p.vectors = vectors
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new live ingestion pipeline.
func NewPipeline(store storage.Store, embedder ai.Embedder, registry *pool.Registry, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	workerPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:      store,
		embedder:   embedder,
		registry:   registry,
		workerPool: workerPool,
		logger:     slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// DocumentChanged persists the document and schedules its re-embedding in
// every pool fed by its collection. The write is synchronous; embedding
// happens in the background and its errors are logged, not returned.
func (p *Pipeline) DocumentChanged(ctx context.Context, doc *core.Document) error {
	if err := p.store.PutDocuments(ctx, doc); err != nil {
		return err
	}

	pools := p.registry.PoolsForCollection(doc.Collection)
	if len(pools) == 0 {
		return nil
	}

	p.wg.Add(1)
	err := p.workerPool.Submit(func() {
		defer p.wg.Done()
		for _, kp := range pools {
			if err := p.embedDocument(context.Background(), kp, doc); err != nil {
				p.logger.Error("error embedding changed document",
					"pool", kp.Name,
					"collection", doc.Collection,
					"docId", doc.DocId,
					"err", err)
			}
		}
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// DocumentDeleted removes the document and schedules the removal of its
// embedding rows from every affected pool.
func (p *Pipeline) DocumentDeleted(ctx context.Context, collection, docId string) error {
	if err := p.store.DeleteDocument(ctx, collection, docId); err != nil {
		return err
	}

	pools := p.registry.PoolsForCollection(collection)
	if len(pools) == 0 {
		return nil
	}

	p.wg.Add(1)
	err := p.workerPool.Submit(func() {
		defer p.wg.Done()
		for _, kp := range pools {
			if err := p.dropDocument(context.Background(), kp.Name, collection, docId); err != nil {
				p.logger.Error("error dropping embeddings of deleted document",
					"pool", kp.Name,
					"collection", collection,
					"docId", docId,
					"err", err)
			}
		}
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until all scheduled background work has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release waits for in-flight work and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.wg.Wait()
	if p.workerPool != nil {
		p.workerPool.Release()
	}
}

func (p *Pipeline) embedDocument(ctx context.Context, kp pool.Pool, doc *core.Document) error {
	conv, err := p.registry.Converter(doc.Collection)
	if err != nil {
		return err
	}
	chunks, err := conv(doc)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		// The document no longer yields chunks; stale rows must not linger.
		return p.dropDocument(ctx, kp.Name, doc.Collection, doc.DocId)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	// Old generation out, new generation in, in that order.
	if err := p.dropDocument(ctx, kp.Name, doc.Collection, doc.DocId); err != nil {
		return err
	}

	rows := make([]*core.Embedding, len(chunks))
	for i, chunk := range chunks {
		inputId := core.InputId(doc.Collection, doc.DocId, i)
		var vector []float32
		if i < len(vectors) {
			vector = reembed.NormalizeVector(vectors[i])
		}
		rows[i] = &core.Embedding{
			Id:               core.EmbeddingId(kp.Name, inputId),
			Pool:             kp.Name,
			SourceCollection: doc.Collection,
			DocId:            doc.DocId,
			ChunkIndex:       i,
			ChunkText:        chunk.Text,
			EmbeddingVersion: kp.EmbeddingVersion,
			Vector:           vector,
			Extensions:       chunk.Extensions,
		}
	}
	if err := p.store.PutEmbeddings(ctx, rows...); err != nil {
		return err
	}

	if p.vectors != nil {
		for _, row := range rows {
			if err := p.vectors.StoreEmbedding(ctx, kp.Name, doc.Collection, doc.DocId, row.Id, row.Vector); err != nil {
				return err
			}
		}
	}

	p.logger.Debug("document re-embedded",
		"pool", kp.Name,
		"collection", doc.Collection,
		"docId", doc.DocId,
		"chunks", len(chunks))
	return nil
}

func (p *Pipeline) dropDocument(ctx context.Context, poolName, collection, docId string) error {
	if err := p.store.DeleteDocumentEmbeddings(ctx, poolName, collection, docId); err != nil {
		return err
	}
	if p.vectors != nil {
		return p.vectors.DeleteEmbeddings(ctx, poolName, collection, docId)
	}
	return nil
}
