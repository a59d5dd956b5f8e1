package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
// Rows are keyed by (pool, collection, docId, chunkIndex), so writes are
// upserts and a re-delivered merge task overwrites instead of duplicating.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) *EmbeddingRepository {
	return &EmbeddingRepository{
		backend: backend,
	}
}

// PutEmbeddings upserts embedding rows.
func (r *EmbeddingRepository) PutEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, embedding := range embeddings {
			if embedding.InsertedAt.IsZero() {
				embedding.InsertedAt = time.Now().UTC()
			}
			key := makeEmbeddingKey(embedding.Pool, embedding.SourceCollection,
				embedding.DocId, embedding.ChunkIndex)
			if err := tx.Set(key, storage.MarshalEmbedding(embedding)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocumentEmbeddings retrieves all embedding rows of one document, ordered
// by chunk index (the key encodes the index BigEndian).
func (r *EmbeddingRepository) GetDocumentEmbeddings(ctx context.Context, pool, collection, docID string) ([]*core.Embedding, error) {
	var rows []*core.Embedding
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocEmbeddingPrefix(pool, collection, docID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				row, err := storage.UnmarshalEmbedding(val)
				if err != nil {
					return err
				}
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return rows, err
}

// HasEmbeddingVersion reports whether the document has at least one embedding
// row under the given version.
func (r *EmbeddingRepository) HasEmbeddingVersion(ctx context.Context, pool, collection, docID, version string) (bool, error) {
	found := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocEmbeddingPrefix(pool, collection, docID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				row, err := storage.UnmarshalEmbedding(val)
				if err != nil {
					return err
				}
				if row.EmbeddingVersion == version {
					found = true
				}
				return nil
			})
			if err != nil {
				return err
			}
			if found {
				return nil
			}
		}
		return nil
	}, false)
	return found, err
}

// DeleteDocumentEmbeddings removes all embedding rows of one document.
func (r *EmbeddingRepository) DeleteDocumentEmbeddings(ctx context.Context, pool, collection, docID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeDocEmbeddingPrefix(pool, collection, docID)
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindSimilar finds embedding rows similar to the given vector within a pool.
func (r *EmbeddingRepository) FindSimilar(ctx context.Context, pool string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePoolEmbeddingPrefix(pool)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var row *core.Embedding
			err := iter.Item().Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			if row == nil || len(row.Vector) == 0 {
				continue
			}

			// Cosine similarity (dot product for normalized vectors)
			similarity := dotProduct(vector, row.Vector)

			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Embedding: row,
					Score:     similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
