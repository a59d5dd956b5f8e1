package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) (*RunRepository, error) {
	idSeq, err := backend.GetSequence(runIDSeq)
	if err != nil {
		return nil, err
	}

	return &RunRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *RunRepository) Close() error {
	return r.idSeq.Release()
}

// AddRun persists a new run, generating its ID from sequence.
func (r *RunRepository) AddRun(ctx context.Context, run *core.Run) (*core.Run, error) {
	if err := core.ValidateRun(run); err != nil {
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
		run.Id = core.ID(nextID)

		if run.SubmittedAt.IsZero() {
			run.SubmittedAt = time.Now().UTC()
		}

		if err := tx.Set(makeRunKey(run.Id), storage.MarshalRun(run)); err != nil {
			return err
		}

		// Pool index for baseline lookups
		if err := tx.Set(makeRunPoolKey(run.Pool, run.Id), storage.MarshalID(run.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return run, err
}

// UpdateRun updates an existing run. A run whose stored status is terminal
// may update counts but never move to a different status.
func (r *RunRepository) UpdateRun(ctx context.Context, run *core.Run) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(run.Id)

		old, err := r.readRun(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}
		if !core.CanTransition(old.Status, run.Status) {
			return storage.ErrInvalidTransition
		}

		if err := tx.Set(key, storage.MarshalRun(run)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, id core.ID) (*core.Run, error) {
	var run *core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		run, err = r.readRun(tx, makeRunKey(id))
		if err != nil {
			return err
		}
		if run == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return run, err
}

// LatestSucceededRun returns the most recently completed succeeded run for a
// pool, or nil if none exists. Runs are few per pool, so the pool index is
// scanned in full.
func (r *RunRepository) LatestSucceededRun(ctx context.Context, pool string) (*core.Run, error) {
	var latest *core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRunPoolPrefix(pool)
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

			run, err := r.readRun(tx, makeRunKey(id))
			if err != nil {
				return err
			}
			if run == nil || run.Status != core.StatusSucceeded {
				continue
			}
			if latest == nil || run.CompletedAt.After(latest.CompletedAt) {
				latest = run
			}
		}
		return nil
	}, false)
	return latest, err
}

// readRun reads a run within a transaction. Returns nil if not found.
func (r *RunRepository) readRun(tx *badger.Txn, key []byte) (*core.Run, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var run *core.Run
	err = item.Value(func(val []byte) error {
		var err error
		run, err = storage.UnmarshalRun(val)
		return err
	})
	return run, err
}
