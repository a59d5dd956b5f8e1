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


package reembed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/storage"
)

// Scanner decides which source documents need (re-)embedding for a run.
type Scanner struct {
	store    storage.Store
	pageSize int
	logger   *slog.Logger
}

// NewScanner creates a scanner paginating source collections with the given
// page size.
func NewScanner(store storage.Store, pageSize int, logger *slog.Logger) *Scanner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		store:    store,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Baseline returns the pool's most recent succeeded run, or nil if there is
// none yet.
func (s *Scanner) Baseline(ctx context.Context, poolName string) (*core.Run, error) {
	baseline, err := s.store.LatestSucceededRun(ctx, poolName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return baseline, nil
}

// EachEligible streams every eligible document of the pool's collections to
// fn, in collection order and document-id order within each collection.
// Collections are paginated; the whole corpus is never held in memory.
//
// Eligibility: with no baseline, or a baseline embedded under a different
// version, every document is eligible (full re-embed). Otherwise a document
// is eligible if it was updated after the baseline completed, or if it has
// no embedding recorded under the current version (covers gaps left by
// prior partial failures).
func (s *Scanner) EachEligible(ctx context.Context, p pool.Pool, baseline *core.Run, fn func(doc *core.Document) error) error {
	embedAll := baseline == nil || baseline.EmbeddingVersion != p.EmbeddingVersion

	for _, collection := range p.Collections {
		for page := 0; ; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			docs, err := s.store.FindPage(ctx, collection, page, s.pageSize)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				break
			}

			for _, doc := range docs {
				eligible, err := s.isEligible(ctx, p, baseline, embedAll, doc)
				if err != nil {
					return err
				}
				if !eligible {
					continue
				}
				if err := fn(doc); err != nil {
					return err
				}
			}

			if len(docs) < s.pageSize {
				break
			}
		}
	}
	return nil
}

func (s *Scanner) isEligible(ctx context.Context, p pool.Pool, baseline *core.Run, embedAll bool, doc *core.Document) (bool, error) {
	if embedAll {
		return true, nil
	}
	if doc.UpdatedAt.After(baseline.CompletedAt) {
		return true, nil
	}

	has, err := s.store.HasEmbeddingVersion(ctx, p.Name, doc.Collection, doc.DocId, p.EmbeddingVersion)
	if err != nil {
		return false, err
	}
	return !has, nil
}
