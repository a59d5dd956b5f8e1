package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// MetadataRepository implements storage.ChunkMetadataRepository for BadgerDB.
//
// The primary key is (runId, inputId); writes are upserts so a re-delivered
// streaming task lands on the same keys instead of duplicating staging rows.
type MetadataRepository struct {
	backend *Backend
}

var _ storage.ChunkMetadataRepository = (*MetadataRepository)(nil)

// NewMetadataRepository creates a new MetadataRepository.
func NewMetadataRepository(backend *Backend) *MetadataRepository {
	return &MetadataRepository{
		backend: backend,
	}
}

// AddChunkMetadata upserts staging records and their batch index entries.
func (r *MetadataRepository) AddChunkMetadata(ctx context.Context, records ...*core.ChunkMetadata) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			key := makeMetaKey(record.RunId, record.InputId)
			if err := tx.Set(key, storage.MarshalChunkMetadata(record)); err != nil {
				return err
			}

			batchKey := makeMetaBatchKey(record.BatchId, record.InputId)
			if err := tx.Set(batchKey, storage.MarshalID(record.RunId)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunkMetadata retrieves one staging record by its unique key.
func (r *MetadataRepository) GetChunkMetadata(ctx context.Context, runID core.ID, inputID string) (*core.ChunkMetadata, error) {
	var meta *core.ChunkMetadata
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMetaKey(runID, inputID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			meta, err = storage.UnmarshalChunkMetadata(val)
			return err
		})
	}, false)
	return meta, err
}

// GetBatchChunkMetadata retrieves all staging records of one batch via the
// batch index.
func (r *MetadataRepository) GetBatchChunkMetadata(ctx context.Context, batchID core.ID) ([]*core.ChunkMetadata, error) {
	var records []*core.ChunkMetadata
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeMetaBatchPrefix(batchID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			inputID := string(item.Key()[len(prefix):])

			var runID core.ID
			err := item.Value(func(val []byte) error {
				var err error
				runID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			metaItem, err := tx.Get(makeMetaKey(runID, inputID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue // index without record, skip
				}
				return err
			}
			err = metaItem.Value(func(val []byte) error {
				meta, err := storage.UnmarshalChunkMetadata(val)
				if err != nil {
					return err
				}
				records = append(records, meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return records, err
}

// DeleteChunkMetadata removes staging records by key. Missing records are not
// an error, which keeps per-output deletion in the merger idempotent.
func (r *MetadataRepository) DeleteChunkMetadata(ctx context.Context, runID core.ID, inputIDs ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, inputID := range inputIDs {
			meta, err := r.readMeta(tx, runID, inputID)
			if err != nil {
				return err
			}
			if meta == nil {
				continue
			}

			if err := tx.Delete(makeMetaKey(runID, inputID)); err != nil {
				return err
			}
			if err := tx.Delete(makeMetaBatchKey(meta.BatchId, inputID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteBatchChunkMetadata removes all staging records of one batch.
func (r *MetadataRepository) DeleteBatchChunkMetadata(ctx context.Context, batchID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeMetaBatchPrefix(batchID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		type pair struct {
			runID   core.ID
			inputID string
		}
		var pairs []pair

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			inputID := string(item.Key()[len(prefix):])

			var runID core.ID
			err := item.Value(func(val []byte) error {
				var err error
				runID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}
			pairs = append(pairs, pair{runID: runID, inputID: inputID})
		}
		iter.Close()

		for _, p := range pairs {
			if err := tx.Delete(makeMetaKey(p.runID, p.inputID)); err != nil {
				return err
			}
			if err := tx.Delete(makeMetaBatchKey(batchID, p.inputID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readMeta reads a staging record within a transaction. Returns nil if not found.
func (r *MetadataRepository) readMeta(tx *badger.Txn, runID core.ID, inputID string) (*core.ChunkMetadata, error) {
	item, err := tx.Get(makeMetaKey(runID, inputID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var meta *core.ChunkMetadata
	err = item.Value(func(val []byte) error {
		var err error
		meta, err = storage.UnmarshalChunkMetadata(val)
		return err
	})
	return meta, err
}
