// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// Store bundles all BadgerDB repositories behind the storage.Store interface.
// It also satisfies storage.VectorIndex directly over the embedding rows, so
// deployments without a dedicated vector engine need nothing extra.
type Store struct {
	*RunRepository
	*BatchRepository
	*MetadataRepository
	*EmbeddingRepository
	*DocumentRepository

	backend *Backend
}

var (
	_ storage.Store       = (*Store)(nil)
	_ storage.VectorIndex = (*Store)(nil)
)

// NewStore opens a BadgerDB-backed store at the given path.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(filePath string) (storage.Store, error) {
	return newStore(filePath, false)
}

// NewMemoryStore opens an in-memory store, typically for tests.
func NewMemoryStore() (storage.Store, error) {
	return newStore("", true)
}

func newStore(filePath string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	runs, err := NewRunRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	batches, err := NewBatchRepository(backend)
	if err != nil {
		runs.Close()
		backend.Close()
		return nil, err
	}

	return &Store{
		RunRepository:       runs,
		BatchRepository:     batches,
		MetadataRepository:  NewMetadataRepository(backend),
		EmbeddingRepository: NewEmbeddingRepository(backend),
		DocumentRepository:  NewDocumentRepository(backend),
		backend:             backend,
	}, nil
}

// Close releases sequences and closes the backend.
func (s *Store) Close() error {
	if err := s.RunRepository.Close(); err != nil {
		return err
	}
	if err := s.BatchRepository.Close(); err != nil {
		return err
	}
	return s.backend.Close()
}

// StoreEmbedding implements storage.VectorIndex. The vector already lives in
// the embedding row, so there is nothing further to index.
func (s *Store) StoreEmbedding(ctx context.Context, pool, collection, docID string, recordID core.ID, vector []float32) error {
	return nil
}

// DeleteEmbeddings implements storage.VectorIndex by dropping the rows.
func (s *Store) DeleteEmbeddings(ctx context.Context, pool, collection, docID string) error {
	return s.DeleteDocumentEmbeddings(ctx, pool, collection, docID)
}

// Search implements storage.VectorIndex over the embedding rows.
func (s *Store) Search(ctx context.Context, pool string, query []float32, limit int, minSimilarity float32) ([]*core.SimilarityMatch, error) {
	results, err := s.FindSimilar(ctx, pool, query, minSimilarity, limit)
	if err != nil {
		return nil, err
	}
	matches := make([]*core.SimilarityMatch, len(results))
	for i, result := range results {
		matches[i] = &core.SimilarityMatch{
			RecordId: result.Embedding.Id,
			Score:    result.Score,
		}
	}
	return matches, nil
}
