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


// Package queue provides the at-least-once work queue driving the
// orchestrator's task-based execution model.
//
// Every state transition of a bulk re-embedding run is a discrete Task;
// waiting on the embedding provider is expressed as a poll task that
// re-enqueues itself rather than a blocking loop. Because delivery is
// at-least-once, task handlers are idempotent against already-terminal runs
// and batches.
//
// Two implementations are provided: Workers, an ants-backed pool for
// production use, and Manual, a synchronous FIFO drain for tests and
// blocking CLI commands.
package queue
