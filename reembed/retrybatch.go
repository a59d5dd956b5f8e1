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
	"slices"
	"strings"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/queue"
)

// RetryFailedBatch re-drives one failed or canceled batch through
// submit/poll/complete using its retained staging records, without
// re-running the scanner or streamer.
//
// Calling it on a succeeded, queued or running batch is a no-op returning
// the current status, so repeated invocations are safe. The batch's chunks
// are removed from the run's failed-chunk list up front; whatever fails
// again is re-reported by the poll.
func (o *Orchestrator) RetryFailedBatch(ctx context.Context, batchID core.ID) (core.Status, error) {
	batch, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}

	switch batch.Status {
	case core.StatusFailed, core.StatusCanceled:
		// retryable
	case core.StatusSucceeded, core.StatusQueued, core.StatusRunning:
		return batch.Status, nil
	default:
		return 0, fmt.Errorf("%w: batch %d has status %s", ErrBatchNotRetryable, batch.Id, batch.Status.String())
	}

	retained, err := o.store.GetBatchChunkMetadata(ctx, batch.Id)
	if err != nil {
		return 0, err
	}
	if len(retained) == 0 {
		return 0, fmt.Errorf("%w: batch %d", ErrNoRetainedMetadata, batch.Id)
	}

	// Deterministic submission order: document order, then chunk order.
	slices.SortFunc(retained, func(a, b *core.ChunkMetadata) int {
		if c := strings.Compare(a.SourceCollection, b.SourceCollection); c != 0 {
			return c
		}
		if c := strings.Compare(a.DocId, b.DocId); c != 0 {
			return c
		}
		return a.ChunkIndex - b.ChunkIndex
	})

	inputs := make([]provider.Input, len(retained))
	refs := make([]core.ChunkRef, len(retained))
	for i, meta := range retained {
		inputs[i] = provider.Input{Id: meta.InputId, Text: meta.Text}
		refs[i] = meta.Ref()
	}

	var sub *provider.Submission
	err = RetryWithBackoff(ctx, func() error {
		var err error
		sub, err = o.provider.PrepareBatch(ctx, inputs)
		return err
	}, o.config.MaxRetries, o.config.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("resubmitting batch %d: %w", batch.Id, err)
	}

	run, err := o.store.GetRun(ctx, batch.RunId)
	if err != nil {
		return 0, err
	}
	run.FailedChunks = removeRefs(run.FailedChunks, refs)
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return 0, err
	}

	batch.ProviderBatchId = sub.ProviderBatchId
	batch.Status = core.StatusQueued
	batch.Error = ""
	batch.SucceededCount = 0
	batch.FailedCount = 0
	batch.SubmittedAt = time.Now().UTC()
	batch.CompletedAt = time.Time{}
	if err := o.store.UpdateBatch(ctx, batch); err != nil {
		return 0, err
	}

	if err := o.queue.Enqueue(ctx, queue.Task{Kind: queue.TaskBatchPoll, RunId: run.Id, BatchId: batch.Id}); err != nil {
		return 0, err
	}

	o.logger.Info("batch retry submitted",
		"runId", run.Id,
		"batchId", batch.Id,
		"inputs", len(inputs),
		"providerBatchId", sub.ProviderBatchId)
	return core.StatusQueued, nil
}

// handleBatchPoll drives one retried batch. The run's counters and
// failed-chunk list are refreshed when the batch turns terminal; a terminal
// run's status itself never changes.
func (o *Orchestrator) handleBatchPoll(ctx context.Context, batchID core.ID) error {
	batch, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status.Terminal() {
		return nil
	}

	run, err := o.store.GetRun(ctx, batch.RunId)
	if err != nil {
		return err
	}

	refs, err := o.poller.PollBatch(ctx, run, batch)
	if err != nil {
		return err
	}

	if !batch.Status.Terminal() {
		return o.queue.Enqueue(ctx, queue.Task{Kind: queue.TaskBatchPoll, RunId: run.Id, BatchId: batch.Id})
	}

	if batch.Status == core.StatusSucceeded {
		if err := o.store.DeleteBatchChunkMetadata(ctx, batch.Id); err != nil {
			return err
		}
	}

	batches, err := o.store.GetRunBatches(ctx, run.Id)
	if err != nil {
		return err
	}
	succeeded, failed := 0, 0
	for _, b := range batches {
		succeeded += b.SucceededCount
		failed += b.FailedCount
	}
	run.Succeeded = succeeded
	run.Failed = failed
	run.FailedChunks = append(run.FailedChunks, refs...)
	return o.store.UpdateRun(ctx, run)
}

// removeRefs drops every ref in toRemove from refs, preserving order.
func removeRefs(refs []core.ChunkRef, toRemove []core.ChunkRef) []core.ChunkRef {
	if len(refs) == 0 || len(toRemove) == 0 {
		return refs
	}
	drop := make(map[core.ChunkRef]bool, len(toRemove))
	for _, r := range toRemove {
		drop[r] = true
	}
	kept := refs[:0]
	for _, r := range refs {
		if !drop[r] {
			kept = append(kept, r)
		}
	}
	return kept
}
