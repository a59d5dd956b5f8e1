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
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/storage"
)

// mergeState accumulates the outcome of one polling pass over a batch.
// seenDocs guards the delete-then-insert ordering: old embeddings of a
// document are dropped at most once per pass, before its first new row.
type mergeState struct {
	succeeded  int
	failed     int
	failedRefs []core.ChunkRef
	seenDocs   map[string]bool
}

func newMergeState() *mergeState {
	return &mergeState{seenDocs: make(map[string]bool)}
}

// Merger turns provider outputs into embedding rows, consuming the staging
// record of each merged chunk. Every path is idempotent so a re-polled
// batch never duplicates rows or counts.
type Merger struct {
	store   storage.Store
	vectors storage.VectorIndex
	logger  *slog.Logger
}

// NewMerger creates a merger. vectors may be nil when no external vector
// index is attached.
func NewMerger(store storage.Store, vectors storage.VectorIndex, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		store:   store,
		vectors: vectors,
		logger:  logger,
	}
}

// MergeOutput processes one provider output for a run. Per-chunk failures
// (provider error, missing vector, document deleted mid-run) are counted
// and recorded in the state's failed refs; only persistence errors return a
// non-nil error and abort the polling task.
func (m *Merger) MergeOutput(ctx context.Context, run *core.Run, state *mergeState, output provider.Output) error {
	meta, err := m.store.GetChunkMetadata(ctx, run.Id, output.Id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return m.mergeWithoutMetadata(ctx, run, state, output)
		}
		return err
	}

	if output.Err != nil || len(output.Embedding) == 0 {
		m.logger.Warn("chunk failed at provider",
			"runId", run.Id,
			"inputId", output.Id,
			"err", output.Err)
		state.failed++
		state.failedRefs = append(state.failedRefs, meta.Ref())
		return nil
	}

	// The source document may have been deleted while the batch was in
	// flight; its embedding must not be resurrected.
	if _, err := m.store.FindDocument(ctx, meta.SourceCollection, meta.DocId); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Info("source document deleted mid-run, skipping chunk",
				"runId", run.Id,
				"inputId", output.Id)
			state.failed++
			state.failedRefs = append(state.failedRefs, meta.Ref())
			return m.store.DeleteChunkMetadata(ctx, run.Id, output.Id)
		}
		return err
	}

	if err := m.supersedeOldEmbeddings(ctx, run, state, meta); err != nil {
		return err
	}

	embedding := &core.Embedding{
		Id:               core.EmbeddingId(run.Pool, meta.InputId),
		Pool:             run.Pool,
		SourceCollection: meta.SourceCollection,
		DocId:            meta.DocId,
		ChunkIndex:       meta.ChunkIndex,
		ChunkText:        meta.Text,
		EmbeddingVersion: meta.EmbeddingVersion,
		Vector:           NormalizeVector(output.Embedding),
		Extensions:       meta.Extensions,
	}
	if err := m.store.PutEmbeddings(ctx, embedding); err != nil {
		return err
	}
	if m.vectors != nil {
		if err := m.vectors.StoreEmbedding(ctx, run.Pool, meta.SourceCollection, meta.DocId, embedding.Id, embedding.Vector); err != nil {
			return err
		}
	}

	if err := m.store.DeleteChunkMetadata(ctx, run.Id, output.Id); err != nil {
		return err
	}

	state.succeeded++
	return nil
}

// mergeWithoutMetadata handles an output whose staging record is gone. That
// happens when the same output is delivered twice: the first delivery wrote
// the row and consumed the record. If a current-version row exists, count
// the chunk succeeded; anything else is an inconsistency, counted failed.
func (m *Merger) mergeWithoutMetadata(ctx context.Context, run *core.Run, state *mergeState, output provider.Output) error {
	ref, err := core.ParseInputId(output.Id)
	if err != nil {
		m.logger.Error("output with unparseable input id", "runId", run.Id, "inputId", output.Id)
		state.failed++
		return nil
	}

	has, err := m.store.HasEmbeddingVersion(ctx, run.Pool, ref.Collection, ref.DocId, run.EmbeddingVersion)
	if err != nil {
		return err
	}
	if has {
		state.succeeded++
		return nil
	}

	m.logger.Error("output without staging record or embedding row",
		"runId", run.Id,
		"inputId", output.Id)
	state.failed++
	state.failedRefs = append(state.failedRefs, ref)
	return nil
}

// supersedeOldEmbeddings drops a document's previous embedding generation
// before the first new row of this pass is written. Rows already recorded
// under the current version are left alone, so re-polls and sibling batches
// never wipe rows written moments earlier.
func (m *Merger) supersedeOldEmbeddings(ctx context.Context, run *core.Run, state *mergeState, meta *core.ChunkMetadata) error {
	docKey := meta.SourceCollection + ":" + meta.DocId
	if state.seenDocs[docKey] {
		return nil
	}
	state.seenDocs[docKey] = true

	has, err := m.store.HasEmbeddingVersion(ctx, run.Pool, meta.SourceCollection, meta.DocId, meta.EmbeddingVersion)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if err := m.store.DeleteDocumentEmbeddings(ctx, run.Pool, meta.SourceCollection, meta.DocId); err != nil {
		return err
	}
	if m.vectors != nil {
		if err := m.vectors.DeleteEmbeddings(ctx, run.Pool, meta.SourceCollection, meta.DocId); err != nil {
			return err
		}
	}
	return nil
}
