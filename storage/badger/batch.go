package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// BatchRepository implements storage.BatchRepository for BadgerDB.
type BatchRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.BatchRepository = (*BatchRepository)(nil)

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(backend *Backend) (*BatchRepository, error) {
	idSeq, err := backend.GetSequence(batchIDSeq)
	if err != nil {
		return nil, err
	}

	return &BatchRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *BatchRepository) Close() error {
	return r.idSeq.Release()
}

// AddBatch persists a new batch, generating its ID from sequence.
func (r *BatchRepository) AddBatch(ctx context.Context, batch *core.Batch) (*core.Batch, error) {
	if err := core.ValidateBatch(batch); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		batch.Id = core.ID(nextID)

		if batch.SubmittedAt.IsZero() {
			batch.SubmittedAt = time.Now().UTC()
		}

		if err := tx.Set(makeBatchKey(batch.Id), storage.MarshalBatch(batch)); err != nil {
			return err
		}

		// Run index for polling passes
		runKey := makeBatchRunKey(batch.RunId, batch.Id)
		if err := tx.Set(runKey, storage.MarshalID(batch.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return batch, err
}

// UpdateBatch updates an existing batch. Terminal-to-queued transitions are
// allowed here: single-batch retry re-drives a failed batch.
func (r *BatchRepository) UpdateBatch(ctx context.Context, batch *core.Batch) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBatchKey(batch.Id)

		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		if err := tx.Set(key, storage.MarshalBatch(batch)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetBatch retrieves a batch by ID.
func (r *BatchRepository) GetBatch(ctx context.Context, id core.ID) (*core.Batch, error) {
	var batch *core.Batch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBatchKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			batch, err = storage.UnmarshalBatch(val)
			return err
		})
	}, false)
	return batch, err
}

// GetRunBatches retrieves all batches of a run, ordered by BatchIndex.
func (r *BatchRepository) GetRunBatches(ctx context.Context, runID core.ID) ([]*core.Batch, error) {
	var batches []*core.Batch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeBatchRunPrefix(runID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			item, err := tx.Get(makeBatchKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue // index without record, skip
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				batch, err := storage.UnmarshalBatch(val)
				if err != nil {
					return err
				}
				batches = append(batches, batch)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(batches, func(a, b *core.Batch) int {
		return a.BatchIndex - b.BatchIndex
	})
	return batches, nil
}
