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


// Package reembed implements the bulk re-embedding orchestrator: a durable,
// crash-resumable state machine that keeps a knowledge pool's embedding rows
// in sync with its source collections.
//
// A bulk run proceeds through discrete, independently schedulable tasks:
//
//   - run.start scans the pool's source collections for eligible documents,
//     streams their chunks into provider-sized batches and persists a
//     staging record per chunk.
//   - run.poll advances every non-terminal batch of the run by one provider
//     poll, merging completed outputs into embedding rows, and re-enqueues
//     itself until all batches are terminal, at which point the run is
//     finalized and succeeded batches' staging records are purged.
//   - batch.poll drives a single retried batch to its terminal state.
//
// All state (Run, Batch, ChunkMetadata) is persisted before a task returns,
// so a crashed process resumes from the queue with no in-memory state. Task
// delivery is at-least-once; every handler is a no-op for already-terminal
// runs and batches, and the completion merger is idempotent per chunk.
//
// Failure isolation: a failed batch never stops its siblings. Its staging
// records are retained so RetryFailedBatch can re-drive just that batch
// later; chunks that never produced an embedding are reported through the
// run's failed-chunk list.
package reembed
