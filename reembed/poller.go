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
	"log/slog"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/storage"
)

// Poller advances batches through queued → running → terminal, one provider
// poll per invocation.
type Poller struct {
	store    storage.Store
	provider provider.Provider
	merger   *Merger
	logger   *slog.Logger
}

// NewPoller creates a poller merging completed outputs through merger.
func NewPoller(store storage.Store, prov provider.Provider, merger *Merger, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    store,
		provider: prov,
		merger:   merger,
		logger:   logger,
	}
}

// PollBatch performs one polling step for a batch and persists the outcome.
// Polling an already-terminal batch is a no-op. When the batch reaches a
// terminal state in this step, the returned refs are the chunks that will
// never get an embedding from it: per-chunk failures for a succeeded batch,
// every retained chunk for a failed or canceled one.
//
// Batch counters are assigned, not accumulated, from the merge pass; an
// interrupted and re-delivered poll recomputes them against the idempotent
// merger instead of double counting.
func (p *Poller) PollBatch(ctx context.Context, run *core.Run, batch *core.Batch) ([]core.ChunkRef, error) {
	if batch.Status.Terminal() {
		return nil, nil
	}

	if batch.Status == core.StatusQueued {
		batch.Status = core.StatusRunning
		if err := p.store.UpdateBatch(ctx, batch); err != nil {
			return nil, err
		}
	}

	state := newMergeState()
	result, err := p.provider.PollBatch(ctx, batch.ProviderBatchId, func(output provider.Output) error {
		return p.merger.MergeOutput(ctx, run, state, output)
	})
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case core.StatusSucceeded:
		batch.Status = core.StatusSucceeded
		batch.SucceededCount = state.succeeded
		batch.FailedCount = state.failed
		batch.CompletedAt = time.Now().UTC()
		if err := p.store.UpdateBatch(ctx, batch); err != nil {
			return nil, err
		}

		p.logger.Info("batch succeeded",
			"runId", run.Id,
			"batchId", batch.Id,
			"succeeded", state.succeeded,
			"failed", state.failed)
		return state.failedRefs, nil

	case core.StatusFailed, core.StatusCanceled:
		batch.Status = result.Status
		batch.Error = result.Error
		batch.SucceededCount = 0
		batch.FailedCount = batch.InputCount
		batch.CompletedAt = time.Now().UTC()

		// Metadata stays behind for RetryFailedBatch; report its chunks.
		retained, err := p.store.GetBatchChunkMetadata(ctx, batch.Id)
		if err != nil {
			return nil, err
		}
		refs := make([]core.ChunkRef, 0, len(retained))
		for _, meta := range retained {
			refs = append(refs, meta.Ref())
		}

		if err := p.store.UpdateBatch(ctx, batch); err != nil {
			return nil, err
		}

		p.logger.Warn("batch reached terminal failure",
			"runId", run.Id,
			"batchId", batch.Id,
			"status", batch.Status.String(),
			"err", batch.Error)
		return refs, nil

	default:
		// Still in flight; nothing to persist beyond the running marker.
		return nil, nil
	}
}
