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


package queue

import (
	"context"

	"github.com/poiesic/embedsync/core"
)

// Task kinds understood by the orchestrator's task handler.
const (
	// TaskRunStart scans, streams and submits batches for a new run.
	TaskRunStart = "run.start"

	// TaskRunPoll polls every non-terminal batch of a run and finalizes the
	// run once all batches are terminal. Re-enqueues itself otherwise.
	TaskRunPoll = "run.poll"

	// TaskBatchPoll polls a single retried batch to its terminal state.
	TaskBatchPoll = "batch.poll"
)

// Task is one unit of orchestration work. Kind selects the handler behavior;
// RunId and BatchId identify the subject (BatchId is zero except for
// batch-scoped kinds).
type Task struct {
	Kind    string
	RunId   core.ID
	BatchId core.ID
}

// Handler processes one task. Delivery is at-least-once: handlers must be
// idempotent with respect to already-terminal runs and batches.
type Handler func(ctx context.Context, task Task) error

// Queue accepts tasks for later execution.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}
