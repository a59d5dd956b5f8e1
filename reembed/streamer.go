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
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/storage"
)

// FlushFunc decides when accumulated chunks become a provider batch. It is
// called once per offered chunk with the full pending window (the just
// offered chunk included) and isLast true exactly once, on the final chunk
// of the eligible set. Returning a nil Submission keeps accumulating; a
// non-nil Submission covers the oldest Submission.InputCount pending chunks.
type FlushFunc func(ctx context.Context, pending []provider.Input, isLast bool) (*provider.Submission, error)

// SizeFlush returns the default flush policy: submit the whole pending
// window once it reaches batchSize chunks, and force-flush the trailing
// partial window on the last chunk.
func SizeFlush(prov provider.Provider, batchSize int) FlushFunc {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return func(ctx context.Context, pending []provider.Input, isLast bool) (*provider.Submission, error) {
		if len(pending) < batchSize && !isLast {
			return nil, nil
		}
		return prov.PrepareBatch(ctx, pending)
	}
}

// StreamResult reports what the streamer produced for a run.
type StreamResult struct {
	Inputs  int
	Batches int
}

// Streamer converts eligible documents into chunks and groups them into
// persisted batches under a flush policy.
//
// It streams in two passes: the first counts chunks so the second knows
// which chunk is globally last, keeping memory bounded by one flush window
// instead of the corpus size.
type Streamer struct {
	store      storage.Store
	registry   *pool.Registry
	scanner    *Scanner
	flush      FlushFunc
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewStreamer creates a streamer using the given flush policy.
func NewStreamer(store storage.Store, registry *pool.Registry, scanner *Scanner, flush FlushFunc, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		store:      store,
		registry:   registry,
		scanner:    scanner,
		flush:      flush,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Stream discovers the run's eligible chunks and persists one Batch plus
// one ChunkMetadata row per covered chunk for every flush. Batch indexes
// are contiguous from 0 in discovery order.
func (st *Streamer) Stream(ctx context.Context, run *core.Run, p pool.Pool, baseline *core.Run) (*StreamResult, error) {
	total, err := st.countChunks(ctx, p, baseline)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &StreamResult{}, nil
	}

	var (
		pendingInputs []provider.Input
		pendingMeta   []*core.ChunkMetadata
		seen          int
		batchIndex    int
	)

	createBatch := func(sub *provider.Submission) error {
		covered := sub.InputCount
		if covered <= 0 || covered > len(pendingInputs) {
			covered = len(pendingInputs)
		}

		status := sub.Status
		if status == 0 {
			status = core.StatusQueued
		}

		batch, err := st.store.AddBatch(ctx, &core.Batch{
			RunId:           run.Id,
			BatchIndex:      batchIndex,
			ProviderBatchId: sub.ProviderBatchId,
			Status:          status,
			InputCount:      covered,
		})
		if err != nil {
			return err
		}

		for _, meta := range pendingMeta[:covered] {
			meta.BatchId = batch.Id
		}
		if err := st.store.AddChunkMetadata(ctx, pendingMeta[:covered]...); err != nil {
			return err
		}

		st.logger.Debug("batch created",
			"runId", run.Id,
			"batchId", batch.Id,
			"batchIndex", batchIndex,
			"inputs", covered)

		pendingInputs = pendingInputs[covered:]
		pendingMeta = pendingMeta[covered:]
		batchIndex++
		return nil
	}

	err = st.scanner.EachEligible(ctx, p, baseline, func(doc *core.Document) error {
		chunks, err := st.convert(doc)
		if err != nil {
			return err
		}

		for i, chunk := range chunks {
			seen++
			inputId := core.InputId(doc.Collection, doc.DocId, i)
			pendingInputs = append(pendingInputs, provider.Input{Id: inputId, Text: chunk.Text})
			pendingMeta = append(pendingMeta, &core.ChunkMetadata{
				RunId:            run.Id,
				InputId:          inputId,
				Text:             chunk.Text,
				SourceCollection: doc.Collection,
				DocId:            doc.DocId,
				ChunkIndex:       i,
				EmbeddingVersion: p.EmbeddingVersion,
				Extensions:       chunk.Extensions,
			})

			sub, err := st.offer(ctx, pendingInputs, seen >= total)
			if err != nil {
				return err
			}
			if sub != nil {
				if err := createBatch(sub); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A document shrinking between the counting and streaming passes can
	// leave the last window unflushed; force it out.
	for len(pendingInputs) > 0 {
		sub, err := st.offer(ctx, pendingInputs, true)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, fmt.Errorf("flush policy returned no submission for final window of %d chunks", len(pendingInputs))
		}
		if err := createBatch(sub); err != nil {
			return nil, err
		}
	}

	return &StreamResult{Inputs: seen, Batches: batchIndex}, nil
}

func (st *Streamer) offer(ctx context.Context, pending []provider.Input, isLast bool) (*provider.Submission, error) {
	var sub *provider.Submission
	err := RetryWithBackoff(ctx, func() error {
		var err error
		sub, err = st.flush(ctx, pending, isLast)
		return err
	}, st.maxRetries, st.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("submitting batch after %d attempts: %w", st.maxRetries, err)
	}
	return sub, nil
}

// countChunks is the first streaming pass.
func (st *Streamer) countChunks(ctx context.Context, p pool.Pool, baseline *core.Run) (int, error) {
	total := 0
	err := st.scanner.EachEligible(ctx, p, baseline, func(doc *core.Document) error {
		chunks, err := st.convert(doc)
		if err != nil {
			return err
		}
		total += len(chunks)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (st *Streamer) convert(doc *core.Document) ([]core.Chunk, error) {
	conv, err := st.registry.Converter(doc.Collection)
	if err != nil {
		return nil, err
	}
	chunks, err := conv(doc)
	if err != nil {
		return nil, fmt.Errorf("converting %s/%s: %w", doc.Collection, doc.DocId, err)
	}
	return chunks, nil
}
