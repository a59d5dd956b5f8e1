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
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/storage"
)

// Finalizer closes out a run once every batch is terminal: it aggregates
// counts, purges staging records of succeeded batches and notifies the
// failure callback when something went wrong.
type Finalizer struct {
	store    storage.Store
	notifier provider.ErrorNotifier
	logger   *slog.Logger
}

// NewFinalizer creates a finalizer. notifier may be nil.
func NewFinalizer(store storage.Store, notifier provider.ErrorNotifier, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// FinalizeRun persists the run's terminal state. The run succeeds when at
// least one batch succeeded; an all-canceled run is canceled; anything else
// fails. Metadata of succeeded batches is deleted, metadata of failed and
// canceled batches is retained for single-batch retry.
func (f *Finalizer) FinalizeRun(ctx context.Context, run *core.Run, batches []*core.Batch) error {
	if err := f.restoreFailedChunkRefs(ctx, run, batches); err != nil {
		return err
	}

	var (
		succeeded, failed       int
		anySucceeded, anyFailed bool
		allCanceled             = len(batches) > 0
		failedBatchIds          []string
	)

	for _, batch := range batches {
		succeeded += batch.SucceededCount
		failed += batch.FailedCount

		switch batch.Status {
		case core.StatusSucceeded:
			anySucceeded = true
			allCanceled = false
			if err := f.store.DeleteBatchChunkMetadata(ctx, batch.Id); err != nil {
				return err
			}
		case core.StatusFailed:
			anyFailed = true
			allCanceled = false
			failedBatchIds = append(failedBatchIds, batch.ProviderBatchId)
		case core.StatusCanceled:
			failedBatchIds = append(failedBatchIds, batch.ProviderBatchId)
		}
	}

	switch {
	case anySucceeded, len(batches) == 0:
		run.Status = core.StatusSucceeded
	case allCanceled:
		run.Status = core.StatusCanceled
	default:
		run.Status = core.StatusFailed
	}

	run.Succeeded = succeeded
	run.Failed = failed
	run.CompletedAt = time.Now().UTC()
	if run.Status != core.StatusSucceeded && run.Error == "" {
		run.Error = fmt.Sprintf("%d of %d batches failed", len(failedBatchIds), len(batches))
	}

	if err := f.store.UpdateRun(ctx, run); err != nil {
		return err
	}

	if f.notifier != nil && (anyFailed || !anySucceeded) && len(failedBatchIds) > 0 {
		cause := errors.New(run.Error)
		if run.Error == "" {
			cause = fmt.Errorf("run %d finished with failed batches", run.Id)
		}
		f.notifier.OnError(ctx, failedBatchIds, cause, run.FailedChunks)
	}

	f.logger.Info("run finalized",
		"runId", run.Id,
		"pool", run.Pool,
		"status", run.Status.String(),
		"inputs", run.Inputs,
		"succeeded", run.Succeeded,
		"failed", run.Failed,
		"batches", len(batches))
	return nil
}

// restoreFailedChunkRefs folds the refs of every retained staging record
// into the run's failed-chunk list. Batch state and the run record are
// persisted in separate transactions, so a task that dies between a batch
// turning terminal and the next run update loses the refs that polling pass
// collected; the staging records left behind name exactly the chunks that
// never produced a current-version row.
func (f *Finalizer) restoreFailedChunkRefs(ctx context.Context, run *core.Run, batches []*core.Batch) error {
	known := make(map[core.ChunkRef]bool, len(run.FailedChunks))
	for _, ref := range run.FailedChunks {
		known[ref] = true
	}

	for _, batch := range batches {
		retained, err := f.store.GetBatchChunkMetadata(ctx, batch.Id)
		if err != nil {
			return err
		}
		for _, meta := range retained {
			ref := meta.Ref()
			if known[ref] {
				continue
			}
			known[ref] = true
			run.FailedChunks = append(run.FailedChunks, ref)
		}
	}
	return nil
}
