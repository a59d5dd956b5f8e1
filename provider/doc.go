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


// Package provider defines the embedding provider contract consumed by the
// bulk re-embedding orchestrator.
//
// A Provider accepts batches of text inputs (PrepareBatch) and later reports
// their outcome (PollBatch), streaming per-chunk outputs through a callback
// so that large batches never need to be held in memory at once. The contract
// is deliberately poll-based: waiting for provider completion is expressed as
// repeated PollBatch calls scheduled by the work queue, never as a blocking
// loop inside the provider.
//
// provider/local implements the contract over any ai.Embedder for deployments
// without an asynchronous batch API.
package provider
