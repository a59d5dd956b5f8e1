package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// DocumentRepository implements storage.DocumentStore for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{
		backend: backend,
	}
}

// FindPage retrieves one page of a collection ordered by document id.
// Pagination by skipping keeps the scanner from holding a collection in
// memory; badger iterates the prefix in key order.
func (r *DocumentRepository) FindPage(ctx context.Context, collection string, page, limit int) ([]*core.Document, error) {
	if page < 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var docs []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skip := page * limit
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(docs) == limit {
				break
			}
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return docs, err
}

// FindDocument retrieves one document.
func (r *DocumentRepository) FindDocument(ctx context.Context, collection, docID string) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(collection, docID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
	}, false)
	return doc, err
}

// PutDocuments upserts documents, setting InsertedAt on first write and
// UpdatedAt on every write.
func (r *DocumentRepository) PutDocuments(ctx context.Context, docs ...*core.Document) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, doc := range docs {
			if err := core.ValidateDocument(doc); err != nil {
				return err
			}

			key := makeDocumentKey(doc.Collection, doc.DocId)
			if item, err := tx.Get(key); err == nil {
				err = item.Value(func(val []byte) error {
					old, err := storage.UnmarshalDocument(val)
					if err != nil {
						return err
					}
					doc.InsertedAt = old.InsertedAt
					return nil
				})
				if err != nil {
					return err
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if doc.InsertedAt.IsZero() {
				doc.InsertedAt = now
			}
			doc.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocument removes a document.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, collection, docID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(collection, docID)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
